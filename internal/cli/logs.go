package cli

import (
	"encoding/json"
	"fmt"

	"github.com/noded/noded/internal/logmgr"
	"github.com/spf13/cobra"
)

var (
	logsLines int
	logsJSON  bool
)

var logsCmd = &cobra.Command{
	Use:   "logs <name|id>",
	Short: "Show recent output from a managed process",
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

		var entries []logmgr.Entry
		if err := client.Logs(args[0], logsLines, &entries); err != nil {
			exitOn(err)
			return
		}

		if logsJSON {
			data, _ := json.MarshalIndent(entries, "", "  ")
			fmt.Println(string(data))
			return
		}

		if len(entries) == 0 {
			PrintMuted("no log entries yet")
			return
		}
		for _, e := range entries {
			ts := e.Timestamp.Format("15:04:05")
			if e.Level == logmgr.LevelError {
				fmt.Printf("%s %s\n", mutedStyle.Render(ts), errorStyle.Render(e.Message))
				continue
			}
			fmt.Printf("%s %s\n", mutedStyle.Render(ts), e.Message)
		}
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "l", 100, "number of lines to show")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "print as JSON")
}
