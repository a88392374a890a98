// Package cmd implements the codemapper command tree.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/facade"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/logging"
)

var (
	flagConfig  string
	flagRoot    string
	flagVerbose bool
	flagJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "codemapper",
	Short: "Code analysis and CST refactoring service for Python projects",
	Long: `codemapper indexes a Python project tree (classes, functions, methods,
imports, usages), chunks and embeds its docstrings and comments for semantic
retrieval, and provides a selector-driven CST editing engine that preserves
formatting and comments.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree, printing errors in the stable wire format.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable JSON output")
}

// printError renders the typed error payload: red on a TTY, structured for
// JSON consumers.
func printError(err error) {
	payload := facade.AsErrorPayload(err)
	if flagJSON {
		data, _ := json.Marshal(map[string]any{"error": payload})
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(os.Stderr, "error [%s]: %s\n", payload.Code, payload.Message)
	for k, v := range payload.Details {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", k, v)
	}
}

// loadConfig loads the YAML config with CLI overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// withFacade builds the facade for the duration of one command.
func withFacade(fn func(f *facade.Facade, cfg *config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cleanup, err := logging.SetupDefault(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: flagVerbose,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := facade.New(cfg, facade.Options{RootDir: flagRoot})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", closeErr)
		}
	}()

	return fn(f, cfg)
}

// emit prints a payload as JSON (always; human-oriented commands format
// their own output and call this only under --json).
func emit(payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
