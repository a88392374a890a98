package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/facade"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Structural, full-text and semantic search",
}

var findClassesCmd = &cobra.Command{
	Use:   "find-classes [pattern]",
	Short: "Find classes by name pattern",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			hits, err := f.SearchClasses(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(hits)
			}
			for _, h := range hits {
				bases := ""
				if len(h.Class.Bases) > 0 {
					bases = "(" + strings.Join(h.Class.Bases, ", ") + ")"
				}
				fmt.Printf("%s:%d: class %s%s\n", h.FilePath, h.Class.Line, h.Class.Name, bases)
			}
			return nil
		})
	},
}

var classMethodsCmd = &cobra.Command{
	Use:   "class-methods [class]",
	Short: "List methods, optionally for one class",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		class := ""
		if len(args) == 1 {
			class = args[0]
		}
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			hits, err := f.SearchMethods(cmd.Context(), class)
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(hits)
			}
			for _, h := range hits {
				flags := methodFlags(&h.Method)
				fmt.Printf("%s:%d: %s.%s(%s)%s\n", h.FilePath, h.Method.Line,
					h.ClassName, h.Method.Name, strings.Join(h.Method.Args, ", "), flags)
			}
			return nil
		})
	},
}

func methodFlags(m *store.Method) string {
	var parts []string
	if m.IsAbstract {
		parts = append(parts, "abstract")
	}
	if m.BodyIsNoOp {
		parts = append(parts, "no-op")
	}
	if m.RaisesNotImplemented {
		parts = append(parts, "raises NotImplementedError")
	}
	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, ", ") + "]"
}

var (
	flagTargetType  string
	flagTargetClass string
)

var findUsagesCmd = &cobra.Command{
	Use:   "find-usages <name>",
	Short: "Find usage sites of a function or method name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			usages, err := f.FindUsages(cmd.Context(), args[0], store.UsageKind(flagTargetType), flagTargetClass)
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(usages)
			}
			for _, u := range usages {
				target := u.TargetName
				if u.TargetClass != "" {
					target = u.TargetClass + "." + target
				}
				fmt.Printf("file %d line %d: %s %s\n", u.FileID, u.Line, u.Kind, target)
			}
			return nil
		})
	},
}

var flagLimit int

var fulltextCmd = &cobra.Command{
	Use:   "fulltext <query>",
	Short: "Full-text search over indexed code content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			hits, err := f.FullTextSearch(cmd.Context(), args[0], flagEntityType, flagLimit)
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(hits)
			}
			for _, h := range hits {
				fmt.Printf("%s: %s %s: %s\n", h.FilePath, h.EntityKind, h.EntityName, h.Snippet)
			}
			return nil
		})
	},
}

var flagEntityType string

var (
	flagK           int
	flagMaxDistance float64
	flagSourceType  string
	flagPathFilter  string
	flagDatasetSem  string
)

var semanticCmd = &cobra.Command{
	Use:   "semantic <query>",
	Short: "Semantic search over docstring and comment chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, _ *config.Config) error {
			hits, err := f.SemanticSearch(cmd.Context(), args[0], facade.SemanticOptions{
				K:                 flagK,
				MaxDistance:       flagMaxDistance,
				SourceType:        flagSourceType,
				FilePathSubstring: flagPathFilter,
				Dataset:           flagDatasetSem,
			})
			if err != nil {
				return err
			}
			if flagJSON {
				return emit(hits)
			}
			for _, h := range hits {
				marker := ""
				if h.Approximate {
					marker = " (approximate)"
				}
				fmt.Printf("%s:%d [%s] d=%.4f%s\n  %s\n", h.FilePath, h.Line, h.SourceType, h.Distance, marker, h.Text)
			}
			return nil
		})
	},
}

func init() {
	findUsagesCmd.Flags().StringVar(&flagTargetType, "target-type", "", "usage kind: method-call, attribute-access, function-call")
	findUsagesCmd.Flags().StringVar(&flagTargetClass, "target-class", "", "restrict to a target class")
	fulltextCmd.Flags().StringVar(&flagEntityType, "entity-type", "", "restrict to class, method or function")
	fulltextCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum results")
	semanticCmd.Flags().IntVar(&flagK, "k", 10, "nearest neighbors to retrieve")
	semanticCmd.Flags().Float64Var(&flagMaxDistance, "max-distance", 0, "drop hits beyond this distance")
	semanticCmd.Flags().StringVar(&flagSourceType, "source-type", "", "filter by chunk source type")
	semanticCmd.Flags().StringVar(&flagPathFilter, "path", "", "filter by file path substring")
	semanticCmd.Flags().StringVar(&flagDatasetSem, "dataset", "", "restrict to a dataset")

	searchCmd.AddCommand(findClassesCmd, classMethodsCmd, findUsagesCmd, fulltextCmd, semanticCmd)
	rootCmd.AddCommand(searchCmd)
}
