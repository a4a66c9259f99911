package cli

import (
	"os"

	"github.com/noded/noded/internal/ipc"
	"github.com/spf13/cobra"
)

var (
	webuiPort     int
	webuiHost     string
	webuiUsername string
)

// webuiCmd is a thin pass-through to the daemon's webui handler. The
// optional Web dashboard and its WebSocket push fabric live outside this
// build, so every subcommand here surfaces the daemon's stub response
// rather than standing up any server itself.
var webuiCmd = &cobra.Command{
	Use:   "webui",
	Short: "Manage the optional web dashboard",
}

var webuiStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the web dashboard",
	Run: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NODEDAEMON_WEBUI_PASSWORD") == "" {
			PrintWarning("NODEDAEMON_WEBUI_PASSWORD is not set; the dashboard password is never read from flags or argv")
		}
		callWebUI()
	},
}

var webuiStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the web dashboard",
	Run: func(cmd *cobra.Command, args []string) {
		callWebUI()
	},
}

var webuiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show web dashboard status",
	Run: func(cmd *cobra.Command, args []string) {
		callWebUI()
	},
}

func callWebUI() {
	client, err := newClient()
	if err != nil {
		exitOn(err)
		return
	}
	if err := requireRunningDaemon(client); err != nil {
		exitOn(err)
		return
	}
	if err := client.Call(ipc.TypeWebUI, nil, nil); err != nil {
		exitOn(err)
		return
	}
	PrintSuccess("ok")
}

func init() {
	webuiCmd.PersistentFlags().IntVar(&webuiPort, "port", 8080, "dashboard listen port")
	webuiCmd.PersistentFlags().StringVar(&webuiHost, "host", "127.0.0.1", "dashboard listen host")
	webuiCmd.PersistentFlags().StringVar(&webuiUsername, "username", "admin", "dashboard basic-auth username")
	webuiCmd.AddCommand(webuiStartCmd, webuiStopCmd, webuiStatusCmd)
}
