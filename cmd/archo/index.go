package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"archo/internal/frames"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Extract the code graph and persist it as frames",
	Long: `Runs every available extractor over the repository, merges and validates
their facts, applies the heuristics ladder against the determinism target,
and writes the admitted graph to the frame store. Re-indexing unchanged
inputs writes nothing new.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	pol, err := loadPolicy(cfg, logger)
	if err != nil {
		return err
	}

	graph, warnings, err := extractGraph(ctx, cfg, pol, logger)
	if err != nil {
		return err
	}

	rung, err := effectiveRung(cfg, pol)
	if err != nil {
		return err
	}
	admitted, report := evaluateLadder(graph, determinismTarget(cfg, pol), rung)

	builder, err := frameBuilder(cfg, logger)
	if err != nil {
		return err
	}
	scope := repoScope()
	inputsHash := frames.HashInputs(scope.Repo, scope.Commit, pol.ContentHash(), string(report.Rung))
	set, err := builder.BuildFrames(graphFrameKind, scope, inputsHash, admitted)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	inserted, err := frames.PutAll(ctx, store, set)
	if err != nil {
		return err
	}

	return printResponse(&IndexResponse{
		RunID:           uuid.NewString(),
		Repo:            scope.Repo,
		Commit:          scope.Commit,
		Symbols:         len(admitted.Symbols),
		Calls:           len(admitted.Calls),
		ModuleEdges:     len(admitted.Modules),
		KillPatternHits: len(admitted.KillPatternHits),
		WarningCount:    len(warnings),
		Determinism:     report,
		FramesWritten:   len(set),
		FramesInserted:  inserted,
	})
}

type invalidRungError struct {
	value string
}

func (e *invalidRungError) Error() string {
	return "invalid heuristics rung " + e.value + " (want off, static-only, hard, or soft)"
}
