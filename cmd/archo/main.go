package main

import (
	"errors"
	"os"

	"archo/internal/logging"
)

// Exit codes: 0 means no violations, 1 means violations were found, 2 means
// the run itself failed.
const (
	exitClean      = 0
	exitViolations = 1
	exitInternal   = 2
)

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitClean)
	}
	if errors.Is(err, errViolationsFound) {
		os.Exit(exitViolations)
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.InfoLevel,
	})
	logger.Error("Command execution failed", map[string]interface{}{
		"error": err.Error(),
	})
	os.Exit(exitInternal)
}
