package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archo/internal/graph"
)

var contextRadius int

var contextCmd = &cobra.Command{
	Use:   "context <module> [module...]",
	Short: "Show the module neighborhood around one or more seeds",
	Long: `Extracts the bounded-radius neighborhood of the seed modules from the
stored code graph, annotated with each module's policy lists and a
deterministic layout. Radius 0 returns exactly the seeds.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().IntVar(&contextRadius, "radius", 1, "Neighborhood radius in hops")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	if contextRadius < 0 {
		return fmt.Errorf("radius must be non-negative, got %d", contextRadius)
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

	adj := graph.BuildAdjacency(g.Modules)
	neighborhood := graph.ExtractNeighborhood(args, adj, pol, contextRadius)

	return printResponse(neighborhood)
}
