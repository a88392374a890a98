package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/facade"
)

var listBlocksCmd = &cobra.Command{
	Use:   "list-cst-blocks <file>",
	Short: "List replaceable logical blocks of a Python file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			result, err := f.ListCSTBlocks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(result)
			}
			if !result.HasDocstring {
				fmt.Fprintln(os.Stderr, "note: module has no docstring")
			}
			for _, b := range result.Blocks {
				fmt.Printf("%-40s %s lines %d-%d\n", b.BlockID, b.Kind, b.StartLine, b.EndLine)
			}
			return nil
		})
	},
}

var (
	flagIncludeCode bool
	flagMaxResults  int
)

var queryCSTCmd = &cobra.Command{
	Use:   "query-cst <file> <selector>",
	Short: "Query a file's CST with a CSS-like selector",
	Long: `Query a file's concrete syntax tree.

Selector steps match node kinds (module, class, function, method, stmt,
smallstmt, import, node), concrete node types (If, For, Return, Call, ...)
or * for anything. Steps combine with descendant (space) and child (>)
combinators, attribute predicates ([name="x"], [qualname^="A."]) and the
pseudos :first, :last, :nth(N).

Returned node ids are span-based and valid only for the current file bytes;
re-query after any edit.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			result, err := f.QueryCST(cmd.Context(), args[0], args[1], flagIncludeCode, flagMaxResults)
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(result)
			}
			for _, m := range result.Matches {
				fmt.Printf("%s\n", m.NodeID)
				if flagIncludeCode && m.Code != "" {
					fmt.Printf("    %s\n", m.Code)
				}
			}
			if result.Truncated {
				fmt.Fprintf(os.Stderr, "showing %d of %d matches\n", len(result.Matches), result.Total)
			}
			return nil
		})
	},
}

func init() {
	queryCSTCmd.Flags().BoolVar(&flagIncludeCode, "include-code", false, "attach source snippets to matches")
	queryCSTCmd.Flags().IntVar(&flagMaxResults, "max-results", 100, "limit returned matches")
	rootCmd.AddCommand(listBlocksCmd, queryCSTCmd)
}
