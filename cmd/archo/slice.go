package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archo/internal/graph"
)

var sliceRadius int

var sliceCmd = &cobra.Command{
	Use:   "slice <symbol-id>",
	Short: "Show the call-graph slice around a symbol",
	Long: `Extracts the symbols within the given radius of a symbol over the call
graph, expanding through both callers and callees. Edges appear only when
both endpoints are inside the slice.`,
	Args: cobra.ExactArgs(1),
	RunE: runSlice,
}

func init() {
	sliceCmd.Flags().IntVar(&sliceRadius, "radius", 1, "Slice radius in hops")
	rootCmd.AddCommand(sliceCmd)
}

func runSlice(cmd *cobra.Command, args []string) error {
	if sliceRadius < 0 {
		return fmt.Errorf("radius must be non-negative, got %d", sliceRadius)
	}

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	pol, err := loadPolicy(cfg, logger)
	if err != nil {
		return err
	}

	g, err := obtainGraph(cmd.Context(), cfg, pol, logger)
	if err != nil {
		return err
	}

	return printResponse(graph.SliceCallGraph(args[0], g, sliceRadius))
}
