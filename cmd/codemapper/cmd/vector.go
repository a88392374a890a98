package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/facade"
)

var (
	flagProject    string
	flagDatasetVec string
)

var rebuildFaissCmd = &cobra.Command{
	Use:   "rebuild-faiss",
	Short: "Rebuild the vector index from the store with dense id reassignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			result, err := f.RebuildFaiss(cmd.Context(), flagProject, flagDatasetVec)
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(result)
			}
			fmt.Printf("rebuilt %d vectors (%d missing)\n", result.Vectors, result.Missing)
			return nil
		})
	},
}

var revectorizeCmd = &cobra.Command{
	Use:   "revectorize [paths...]",
	Short: "Re-chunk and re-embed files (all project files when no paths given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			result, err := f.Revectorize(cmd.Context(), args)
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(result)
			}
			fmt.Printf("processed %d files (%d errors)\n", result.Processed, result.Errors)
			return nil
		})
	},
}

var indexSyncCmd = &cobra.Command{
	Use:   "index-sync",
	Short: "Check store/index vector-id consistency",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			report, err := f.CheckIndexSync(cmd.Context(), flagProject, flagDatasetVec)
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(report)
			}
			if report.InSync {
				fmt.Printf("in sync: %d vectors\n", report.IndexCount)
				return nil
			}
			fmt.Printf("OUT OF SYNC: store=%d index=%d missing_in_index=%d extra_in_index=%d\n",
				report.StoreCount, report.IndexCount, report.MissingInIndex, report.ExtraInIndex)
			if len(report.MissingSample) > 0 {
				fmt.Printf("  missing sample: %v\n", report.MissingSample)
			}
			if len(report.ExtraSample) > 0 {
				fmt.Printf("  extra sample: %v\n", report.ExtraSample)
			}
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{rebuildFaissCmd, indexSyncCmd} {
		c.Flags().StringVar(&flagProject, "project", "", "project id (defaults to the project of --root)")
		c.Flags().StringVar(&flagDatasetVec, "dataset", "", "restrict to a dataset")
	}
	rootCmd.AddCommand(rebuildFaissCmd, revectorizeCmd, indexSyncCmd)
}
