package cli

import (
	"encoding/json"
	"fmt"

	"github.com/noded/noded/internal/orchestrator"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [name|id]",
	Short: "Show daemon or process status",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newClient()
		if err != nil {
			exitOn(err)
			return
		}
		if !client.IsRunning() {
			if statusJSON {
				fmt.Println(`{"running":false}`)
				return
			}
			PrintMuted("daemon is not running")
			return
		}

		if len(args) == 0 {
			var procs []orchestrator.ManagedProcess
			if err := client.List(&procs); err != nil {
				exitOn(err)
				return
			}
			if statusJSON {
				data, _ := json.MarshalIndent(map[string]any{"running": true, "processes": procs}, "", "  ")
				fmt.Println(string(data))
				return
			}
			PrintSuccess("daemon is running")
			PrintDetail("processes", fmt.Sprintf("%d", len(procs)))
			return
		}

		var mp orchestrator.ManagedProcess
		if err := client.Status(args[0], &mp); err != nil {
			exitOn(err)
			return
		}
		if statusJSON {
			data, _ := json.MarshalIndent(mp, "", "  ")
			fmt.Println(string(data))
			return
		}
		PrintDetail("name", mp.Name)
		PrintDetail("status", string(mp.Status))
		PrintDetail("instances", fmt.Sprintf("%d", len(mp.Instances)))
		PrintDetail("restarts", fmt.Sprintf("%d", mp.AggregateRestarts))
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print as JSON")
}
