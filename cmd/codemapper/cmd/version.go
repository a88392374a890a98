package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maverikod/vvz-code-analyzis-sub010/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			return emit(map[string]string{
				"version":    version.Version,
				"commit":     version.Commit,
				"date":       version.Date,
				"go_version": version.GoVersion,
			})
		}
		fmt.Println(version.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
