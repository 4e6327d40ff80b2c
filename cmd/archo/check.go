package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"archo/internal/config"
	"archo/internal/facts"
	"archo/internal/frames"
	"archo/internal/logging"
	"archo/internal/policy"
)

var checkFresh bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the code graph against declared policy",
	Long: `Loads the stored code graph for the current commit (or extracts a fresh
one with --fresh or when nothing is stored) and evaluates every module edge
and kill-pattern hit against the policy file. Violations are reported as
data and set exit code 1; only a failed run exits 2.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkFresh, "fresh", false, "Re-extract instead of reading stored frames")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	pol, err := loadPolicy(cfg, logger)
	if err != nil {
		return err
	}

	graph, err := obtainGraph(ctx, cfg, pol, logger)
	if err != nil {
		return err
	}

	rung, err := effectiveRung(cfg, pol)
	if err != nil {
		return err
	}
	admitted, report := evaluateLadder(graph, determinismTarget(cfg, pol), rung)

	violations := policy.Check(admitted, pol)

	scope := repoScope()
	if err := printResponse(&CheckResponse{
		Repo:        scope.Repo,
		Commit:      scope.Commit,
		PolicyHash:  pol.ContentHash(),
		Determinism: report,
		Violations:  violations,
	}); err != nil {
		return err
	}

	if len(violations) > 0 {
		return fmt.Errorf("%w: %d", errViolationsFound, len(violations))
	}
	return nil
}

// obtainGraph prefers the stored graph for the current scope and falls back
// to fresh extraction.
func obtainGraph(ctx context.Context, cfg *config.Config, pol *policy.Policy, logger *logging.Logger) (facts.CodeGraph, error) {
	if !checkFresh {
		builder, err := frameBuilder(cfg, logger)
		if err != nil {
			return facts.CodeGraph{}, err
		}
		store, closeStore, err := openStore(cfg, logger)
		if err != nil {
			return facts.CodeGraph{}, err
		}
		defer func() { _ = closeStore() }()

		g, found, err := loadStoredGraph(ctx, store, builder)
		if err != nil {
			// Store communication failures are hard errors; only local
			// decode problems fall back to re-extraction.
			var remoteErr *frames.RemoteStoreError
			if errors.As(err, &remoteErr) {
				return facts.CodeGraph{}, err
			}
			logger.Warn("stored graph unusable, re-extracting", map[string]interface{}{
				"error": err.Error(),
			})
		} else if found {
			return g, nil
		}
	}

	g, _, err := extractGraph(ctx, cfg, pol, logger)
	return g, err
}
