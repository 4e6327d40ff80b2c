package main

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"archo/internal/config"
	"archo/internal/frames"
	"archo/internal/logging"
	"archo/internal/version"
)

var (
	repoFlag string
	jsonFlag bool
)

// errViolationsFound signals that the run completed but found policy
// violations. It maps to exit code 1 instead of 2.
var errViolationsFound = errors.New("policy violations found")

var rootCmd = &cobra.Command{
	Use:   "archo",
	Short: "archo - structural code model and policy engine",
	Long: `archo extracts a structural model of a codebase (symbols, call edges,
module dependencies), tracks how much of that model is statically resolved,
stores it as content-addressed frames, and checks it against declared
architectural policy.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("archo version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", ".", "Repository root to operate on")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON on stdout")
}

// outputFormat resolves the effective output format from the --json flag.
func outputFormat() OutputFormat {
	if jsonFlag {
		return FormatJSON
	}
	return FormatHuman
}

// loadEnv loads the repository config and builds the run logger from it.
func loadEnv() (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig(repoFlag)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})
	return cfg, logger, nil
}

// openStore opens the configured frame store. The returned closer is a no-op
// for remote stores.
func openStore(cfg *config.Config, logger *logging.Logger) (frames.Store, func() error, error) {
	switch cfg.Store.Mode {
	case "remote":
		rc, err := frames.LoadRemoteConfig(resolvePath(cfg.Store.RemotesPath))
		if err != nil {
			return nil, nil, err
		}
		return frames.NewRemoteStore(rc, logger), func() error { return nil }, nil
	default:
		store, err := frames.OpenSQLiteStore(repoFlag, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

// resolvePath interprets a config path relative to the repository root.
func resolvePath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return repoFlag + "/" + path
}

// gitHead returns the current commit of the repository, or "unknown" when
// the repository has no git metadata.
func gitHead(repoRoot string) string {
	cmd := exec.Command("git", "-C", repoRoot, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
