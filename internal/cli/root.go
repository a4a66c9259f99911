// Package cli implements the noded command surface (spec.md §6): an
// external collaborator that talks to the daemon exclusively over the
// IPC socket, never touching orchestrator/logmgr/statemgr state directly.
package cli

import (
	"fmt"
	"os"

	"github.com/noded/noded/internal/banner"
	"github.com/noded/noded/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "noded",
	Short:   "⚡ host-local process supervisor",
	Version: version.Version,
	Long:    banner.Render(),
}

// Execute runs the command tree and terminates the process with the exit
// code spec.md §6 assigns to whatever error surfaced, if any.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitInvalidArgs)
	}
}

func exitOn(err error) {
	if err == nil {
		return
	}
	PrintError("%v", err)
	os.Exit(ExitCodeFor(err))
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(webuiCmd)
	rootCmd.AddCommand(versionCmd)
}
