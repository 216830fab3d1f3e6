package projectcore

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the projectcore version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("projectcore %s\n", getVersion())
	},
}

var version = "dev"

func getVersion() string {
	if version == "dev" {
		return "v0.0.1-dev"
	}
	return version
}
