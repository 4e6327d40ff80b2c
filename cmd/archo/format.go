package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"archo/internal/determinism"
	"archo/internal/frames"
	"archo/internal/graph"
	"archo/internal/policy"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// IndexResponse summarizes one index run.
type IndexResponse struct {
	RunID           string             `json:"runId"`
	Repo            string             `json:"repo"`
	Commit          string             `json:"commit"`
	Symbols         int                `json:"symbols"`
	Calls           int                `json:"calls"`
	ModuleEdges     int                `json:"moduleEdges"`
	KillPatternHits int                `json:"killPatternHits"`
	WarningCount    int                `json:"warningCount"`
	Determinism     determinism.Report `json:"determinism"`
	FramesWritten   int                `json:"framesWritten"`
	FramesInserted  int                `json:"framesInserted"`
}

// CheckResponse is the result of a policy conformance run.
type CheckResponse struct {
	Repo        string             `json:"repo"`
	Commit      string             `json:"commit"`
	PolicyHash  string             `json:"policyHash"`
	Determinism determinism.Report `json:"determinism"`
	Violations  []policy.Violation `json:"violations"`
}

// FramesPutResponse reports a frame write.
type FramesPutResponse struct {
	FramesWritten  int `json:"framesWritten"`
	FramesInserted int `json:"framesInserted"`
}

// FramesGetResponse lists stored frames.
type FramesGetResponse struct {
	Frames []frames.Frame `json:"frames"`
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *IndexResponse:
		return formatIndexHuman(v), nil
	case *CheckResponse:
		return formatCheckHuman(v), nil
	case *graph.Neighborhood:
		return formatNeighborhoodHuman(v), nil
	case *graph.SymbolSlice:
		return formatSliceHuman(v), nil
	case *FramesPutResponse:
		return fmt.Sprintf("Wrote %d frames (%d new)\n", v.FramesWritten, v.FramesInserted), nil
	case *FramesGetResponse:
		return formatFramesHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

func formatIndexHuman(r *IndexResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Indexed %s @ %s (run %s)\n", r.Repo, shortCommit(r.Commit), r.RunID)
	fmt.Fprintf(&b, "  Symbols:      %d\n", r.Symbols)
	fmt.Fprintf(&b, "  Calls:        %d\n", r.Calls)
	fmt.Fprintf(&b, "  Module edges: %d\n", r.ModuleEdges)
	if r.KillPatternHits > 0 {
		fmt.Fprintf(&b, "  Kill hits:    %d\n", r.KillPatternHits)
	}
	if r.WarningCount > 0 {
		fmt.Fprintf(&b, "  Warnings:     %d malformed facts skipped\n", r.WarningCount)
	}
	b.WriteString(formatDeterminismHuman(r.Determinism))
	fmt.Fprintf(&b, "Frames: %d written, %d new\n", r.FramesWritten, r.FramesInserted)

	return b.String()
}

func formatCheckHuman(r *CheckResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Checked %s @ %s against policy %s\n", r.Repo, shortCommit(r.Commit), shortCommit(r.PolicyHash))
	b.WriteString(formatDeterminismHuman(r.Determinism))

	if len(r.Violations) == 0 {
		b.WriteString("No violations\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%d violation(s):\n", len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "  [%s] %s\n", v.Kind, v.Detail)
	}
	return b.String()
}

func formatDeterminismHuman(r determinism.Report) string {
	status := "ok"
	if !r.MeetsTarget {
		status = "below target"
	}
	line := fmt.Sprintf("Determinism: %.3f (target %.2f, rung %s, %s)", r.Ratio, r.Target, r.Rung, status)
	if r.NextRung != "" {
		line += fmt.Sprintf(", consider rung %s", r.NextRung)
	}
	return line + "\n"
}

func formatNeighborhoodHuman(n *graph.Neighborhood) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Neighborhood of %s (radius %d): %d modules, %d edges\n",
		strings.Join(n.SeedModules, ", "), n.FoldRadius, len(n.Modules), len(n.Edges))
	for _, m := range n.Modules {
		fmt.Fprintf(&b, "  %s (distance %d)", m.Module, m.Distance)
		if len(m.AllowedCallers) > 0 {
			fmt.Fprintf(&b, " allowed=%v", m.AllowedCallers)
		}
		if len(m.ForbiddenCallers) > 0 {
			fmt.Fprintf(&b, " forbidden=%v", m.ForbiddenCallers)
		}
		b.WriteString("\n")
	}
	for _, e := range n.Edges {
		fmt.Fprintf(&b, "  %s -> %s (%d)\n", e.From, e.To, e.Weight)
	}
	return b.String()
}

func formatSliceHuman(s *graph.SymbolSlice) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Slice of %s (radius %d): %d symbols, %d calls\n",
		s.Root, s.FoldRadius, len(s.Symbols), len(s.Calls))
	for _, sym := range s.Symbols {
		name := sym.ID
		if sym.Known {
			name = sym.Symbol.FullyQualifiedName
		}
		fmt.Fprintf(&b, "  %s (distance %d)\n", name, sym.Distance)
	}
	return b.String()
}

func formatFramesHuman(r *FramesGetResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d frame(s)\n", len(r.Frames))
	for _, f := range r.Frames {
		fmt.Fprintf(&b, "  %s kind=%s part=%d/%d encoded=%dB items=%d\n",
			shortCommit(f.FrameID), f.Kind, f.Part, f.TotalParts, f.Stats.EncodedBytes, f.Stats.Items)
	}
	return b.String()
}

func shortCommit(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// printResponse renders resp on stdout in the active format.
func printResponse(resp interface{}) error {
	out, err := FormatResponse(resp, outputFormat())
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(out, "\n"))
	return nil
}
