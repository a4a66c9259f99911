package cli

import (
	"github.com/noded/noded/internal/orchestrator"
	"github.com/spf13/cobra"
)

var restartGraceful bool

var restartCmd = &cobra.Command{
	Use:   "restart <name|id>",
	Short: "Restart a managed process",
	Args:  cobra.ExactArgs(1),
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
		var mp orchestrator.ManagedProcess
		if err := client.Restart(args[0], restartGraceful, &mp); err != nil {
			exitOn(err)
			return
		}
		PrintSuccess("restarted '%s'", mp.Name)
		PrintDetail("status", string(mp.Status))
	},
}

func init() {
	restartCmd.Flags().BoolVarP(&restartGraceful, "graceful", "g", true, "zero-downtime cluster reload when applicable")
}
