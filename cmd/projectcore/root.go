// Package projectcore is the CLI driver used to exercise the Project
// core outside of a language-server session: `projectcore watch <dir>`
// wires a real filesystem watcher over a directory and prints delta
// reports as files change, so the graph-update and change-delta
// protocols can be observed end to end. Grounded on the teacher's
// cmd/root.go command-tree wiring (a package-level rootCmd with
// subcommands registered from init).
package projectcore

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "projectcore",
	Short: "Drive a language-service Project core from the command line",
	Long: `projectcore is a test-drive harness for the Project core: it wires a
real Script Store, Watcher Set and incremental builder over a directory
and reports the same versioned change deltas a session layer would see.`,
}

// Execute runs the CLI, matching the teacher's Execute/os.Exit pattern.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
