package cli

import (
	"github.com/spf13/cobra"
)

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Gracefully stop the daemon and every managed process",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newClient()
		if err != nil {
			exitOn(err)
			return
		}
		if err := requireRunningDaemon(client); err != nil {
			exitOn(err)
			return
		}
		if err := client.Shutdown(); err != nil {
			exitOn(err)
			return
		}
		PrintSuccess("daemon shutting down")
	},
}
