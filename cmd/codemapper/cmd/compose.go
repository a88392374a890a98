package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cstpatch"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/facade"
)

var (
	flagOpsFile      string
	flagApply        bool
	flagBackup       bool
	flagReturnSource bool
	flagReturnDiff   bool
)

var composeCmd = &cobra.Command{
	Use:   "compose-cst-module <file>",
	Short: "Apply replace/insert/create operations to a Python module",
	Long: `Apply patch operations to a module. Operations are read as a JSON
array from --ops-file (or stdin with "-"):

  [
    {"replace": {"selector": {"kind": "cst_query",
                              "query": "smallstmt[type=\"Return\"]:first"},
                 "new_code": "return 123"}},
    {"create": {"new_code": "VERSION = \"1.0\"", "position": "end_of_module"}}
  ]

Without --apply the result is computed but not written. A failing operation
leaves the file untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := readOps()
		if err != nil {
			return err
		}
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			result, err := f.ComposeCSTModule(cmd.Context(), args[0], ops, facade.ComposeOptions{
				Apply:        flagApply,
				CreateBackup: flagBackup,
				ReturnSource: flagReturnSource,
				ReturnDiff:   flagReturnDiff,
			})
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(result)
			}
			fmt.Printf("replaced=%d removed=%d created=%d inserted=%d unmatched=%d\n",
				result.Stats.Replaced, result.Stats.Removed, result.Stats.Created,
				result.Stats.Inserted, len(result.Stats.Unmatched))
			if result.Applied {
				fmt.Printf("wrote %s\n", result.FilePath)
				if result.BackupPath != "" {
					fmt.Printf("backup at %s\n", result.BackupPath)
				}
			}
			if result.Diff != "" {
				fmt.Print(result.Diff)
			}
			if flagReturnSource && result.Source != "" {
				fmt.Print(result.Source)
			}
			return nil
		})
	},
}

func readOps() ([]cstpatch.Op, error) {
	if flagOpsFile == "" {
		return nil, cerr.New(cerr.CodeCSTModulePatchError, "--ops-file is required (use - for stdin)")
	}
	var data []byte
	var err error
	if flagOpsFile == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(flagOpsFile)
	}
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeCSTModulePatchError, err)
	}
	var ops []cstpatch.Op
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, cerr.Newf(cerr.CodeCSTModulePatchError, "invalid ops JSON: %v", err)
	}
	return ops, nil
}

func init() {
	composeCmd.Flags().StringVar(&flagOpsFile, "ops-file", "", "JSON file with patch operations (- for stdin)")
	composeCmd.Flags().BoolVar(&flagApply, "apply", false, "write the result to the file")
	composeCmd.Flags().BoolVar(&flagBackup, "backup", true, "keep a pre-edit backup when applying")
	composeCmd.Flags().BoolVar(&flagReturnSource, "return-source", false, "print the resulting source")
	composeCmd.Flags().BoolVar(&flagReturnDiff, "diff", false, "print a unified diff")
	rootCmd.AddCommand(composeCmd)
}
