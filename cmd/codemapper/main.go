// codemapper is the command-line surface of the code-analysis service.
package main

import (
	"os"

	"github.com/maverikod/vvz-code-analyzis-sub010/cmd/codemapper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
