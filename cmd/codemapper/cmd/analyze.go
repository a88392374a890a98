package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/facade"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/watcher"
)

var (
	flagForce   bool
	flagDataset string
	flagWatch   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [dir]",
	Short: "Analyze a project tree and populate the store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := flagRoot
		if len(args) == 1 {
			dir = args[0]
		}
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			return runAnalyze(cmd.Context(), f, dir)
		})
	},
}

func runAnalyze(ctx context.Context, f *facade.Facade, dir string) error {
	var bar *progressbar.ProgressBar
	opts := facade.AnalyzeOptions{Force: flagForce, Dataset: flagDataset}
	if !flagJSON {
		opts.Progress = func(done, total int, path string) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("analyzing"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(done)
		}
	}

	stats, err := f.Analyze(ctx, dir, opts)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if flagJSON {
		return emit(stats)
	}
	fmt.Printf("project %s\n", stats.ProjectID)
	fmt.Printf("  files:     %s (%d up to date)\n", humanize.Comma(int64(stats.Files)), stats.Skipped)
	fmt.Printf("  classes:   %s\n", humanize.Comma(int64(stats.Classes)))
	fmt.Printf("  functions: %s\n", humanize.Comma(int64(stats.Functions)))
	fmt.Printf("  methods:   %s\n", humanize.Comma(int64(stats.Methods)))
	fmt.Printf("  issues:    %s\n", humanize.Comma(int64(stats.Issues)))
	if stats.Errors > 0 {
		fmt.Printf("  errors:    %d\n", stats.Errors)
	}

	if !flagWatch {
		return nil
	}
	return watchAndReanalyze(ctx, f, dir)
}

// watchAndReanalyze keeps re-analyzing changed files until interrupted.
func watchAndReanalyze(ctx context.Context, f *facade.Facade, dir string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", abs)

	w := watcher.New(abs, 0, func(ctx context.Context, _ string) {
		// Re-analysis is incremental: unchanged files are skipped by mtime.
		if _, err := f.Analyze(ctx, abs, facade.AnalyzeOptions{Dataset: flagDataset}); err != nil {
			printError(err)
		}
	}, nil)

	err = w.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func init() {
	analyzeCmd.Flags().BoolVar(&flagForce, "force", false, "re-analyze files even when up to date")
	analyzeCmd.Flags().StringVar(&flagDataset, "dataset", "", "dataset tag for analyzed files")
	analyzeCmd.Flags().BoolVar(&flagWatch, "watch", false, "keep watching for changes")
	rootCmd.AddCommand(analyzeCmd)
}
