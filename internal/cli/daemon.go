package cli

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/noded/noded/internal/daemond"
	"github.com/noded/noded/internal/logging"
	"github.com/spf13/cobra"
)

var (
	daemonDetach   bool
	daemonLogLevel string
	daemonMetrics  string
	daemonConfig   string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the supervising daemon",
	Long:  "Start, foreground or detached, the daemon that supervises the fleet (spec.md §6).",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := newClient()
		if err != nil {
			exitOn(err)
			return
		}
		if client.IsRunning() {
			PrintWarning("daemon already running")
			return
		}

		if !daemonDetach {
			runDaemonForeground(logging.ModeConsole)
			return
		}

		exePath, err := os.Executable()
		if err != nil {
			exitOn(fmt.Errorf("failed to resolve executable path: %w", err))
			return
		}
		daemonArgs := []string{"daemon", "run", "--log-level=" + daemonLogLevel}
		if daemonMetrics != "" {
			daemonArgs = append(daemonArgs, "--metrics-addr="+daemonMetrics)
		}
		child := exec.Command(exePath, daemonArgs...)
		child.Stdout = nil
		child.Stderr = nil
		child.Stdin = nil
		if err := child.Start(); err != nil {
			exitOn(fmt.Errorf("failed to start daemon: %w", err))
			return
		}
		_ = child.Process.Release()

		PrintInfo("starting daemon...")
		for i := 0; i < 25; i++ {
			time.Sleep(200 * time.Millisecond)
			if client.IsRunning() {
				PrintSuccess("daemon started")
				return
			}
		}
		PrintWarning("daemon started but is not yet responding")
	},
}

var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the daemon in the foreground (internal use)",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		runDaemonForeground(logging.ModeJSON)
	},
}

func runDaemonForeground(mode logging.Mode) {
	log, err := logging.New(daemonLogLevel, mode)
	if err != nil {
		exitOn(fmt.Errorf("failed to build logger: %w", err))
		return
	}
	defer log.Sync()

	paths, err := resolvePaths()
	if err != nil {
		exitOn(err)
		return
	}

	opts := daemond.Options{
		Home:          paths.Home(),
		BootstrapFile: daemonConfig,
		MetricsAddr:   daemonMetrics,
	}
	core, err := daemond.New(log, opts)
	if err != nil {
		exitOn(err)
		return
	}

	if err := core.Run(opts); err != nil {
		os.Exit(ExitGeneralError)
	}
}

func init() {
	daemonCmd.Flags().BoolVarP(&daemonDetach, "detach", "d", false, "run the daemon detached from the terminal")
	defaultLogLevel := "info"
	if env := os.Getenv("NODEDAEMON_LOG_LEVEL"); env != "" {
		defaultLogLevel = env
	}
	daemonCmd.PersistentFlags().StringVar(&daemonLogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	daemonCmd.PersistentFlags().StringVar(&daemonMetrics, "metrics-addr", "", "optional address to serve /metrics on")
	daemonCmd.PersistentFlags().StringVarP(&daemonConfig, "config", "c", "", "optional static bootstrap config file")
	daemonCmd.AddCommand(daemonRunCmd)
}
