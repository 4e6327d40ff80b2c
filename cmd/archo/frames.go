package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"archo/internal/frames"
)

var (
	framesKind  string
	framesFile  string
	framesLimit int
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Inspect and write content-addressed frames directly",
}

var framesPutCmd = &cobra.Command{
	Use:   "put",
	Short: "Chunk a JSON payload into frames and store them",
	Long: `Reads a JSON document, splits it into size-bounded frames for the current
repository scope, and writes them to the configured store. Storing the same
payload twice inserts nothing on the second run.`,
	RunE: runFramesPut,
}

var framesGetCmd = &cobra.Command{
	Use:   "get",
	Short: "List stored frames for the current scope",
	RunE:  runFramesGet,
}

func init() {
	framesPutCmd.Flags().StringVar(&framesKind, "kind", "", "Frame kind (required)")
	framesPutCmd.Flags().StringVar(&framesFile, "file", "", "Path to the JSON payload (required)")
	_ = framesPutCmd.MarkFlagRequired("kind")
	_ = framesPutCmd.MarkFlagRequired("file")

	framesGetCmd.Flags().StringVar(&framesKind, "kind", "", "Frame kind (required)")
	framesGetCmd.Flags().IntVar(&framesLimit, "limit", 0, "Maximum frames to return (0 = no limit)")
	_ = framesGetCmd.MarkFlagRequired("kind")

	framesCmd.AddCommand(framesPutCmd)
	framesCmd.AddCommand(framesGetCmd)
	rootCmd.AddCommand(framesCmd)
}

func runFramesPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(framesFile)
	if err != nil {
		return err
	}
	var payload json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("payload %s is not valid JSON: %w", framesFile, err)
	}

	builder, err := frameBuilder(cfg, logger)
	if err != nil {
		return err
	}
	scope := repoScope()
	set, err := builder.BuildFrames(framesKind, scope, frames.HashInputs(framesFile, scope.Commit), payload)
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

	return printResponse(&FramesPutResponse{
		FramesWritten:  len(set),
		FramesInserted: inserted,
	})
}

func runFramesGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	stored, err := store.Get(ctx, framesKind, repoScope(), framesLimit)
	if err != nil {
		return err
	}

	return printResponse(&FramesGetResponse{Frames: stored})
}
