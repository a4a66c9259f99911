package cli

import (
	"github.com/spf13/cobra"
)

var stopForce bool

var stopCmd = &cobra.Command{
	Use:   "stop <name|id>",
	Short: "Stop a managed process",
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
		if err := client.Stop(args[0], stopForce); err != nil {
			exitOn(err)
			return
		}
		PrintSuccess("stopped '%s'", args[0])
	},
}

func init() {
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "send SIGTERM with a 1s grace period before SIGKILL")
}
