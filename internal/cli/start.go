package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/orchestrator"
	"github.com/spf13/cobra"
)

var (
	startName            string
	startInterpreter     string
	startCwd             string
	startInstances       string
	startWatch           bool
	startWatchPaths      []string
	startEnvFile         string
	startMaxMemory       string
	startMemoryThreshold string
	startAutoRestartMem  bool
	startAutoRestartCPU  bool
	startCPUThreshold    float64
)

var startCmd = &cobra.Command{
	Use:   "start <script> [args...]",
	Short: "Start a managed process",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		script := args[0]
		var scriptArgs []string
		if len(args) > 1 {
			scriptArgs = args[1:]
		}

		pc := config.ProcessConfig{
			Name:        startName,
			Script:      script,
			Interpreter: startInterpreter,
			Args:        scriptArgs,
			Cwd:         startCwd,
			Instances:   startInstances,
			Watch:       startWatch,
			WatchPaths:  startWatchPaths,
			EnvFile:     startEnvFile,
		}
		if pc.Name == "" {
			pc.Name = filepath.Base(script)
		}
		if pc.Cwd == "" {
			pc.Cwd, _ = os.Getwd()
		}
		if startMaxMemory != "" {
			n, err := config.ParseSize(startMaxMemory)
			if err != nil {
				exitOn(&config.Error{Kind: config.ErrInvalidConfig, Message: err.Error()})
				return
			}
			pc.MaxMemory = n
		}
		if startMemoryThreshold != "" {
			n, err := config.ParseSize(startMemoryThreshold)
			if err != nil {
				exitOn(&config.Error{Kind: config.ErrInvalidConfig, Message: err.Error()})
				return
			}
			pc.MemoryThreshold = n
		}
		pc.AutoRestartOnHighMemory = startAutoRestartMem
		pc.AutoRestartOnHighCPU = startAutoRestartCPU
		pc.CPUThreshold = startCPUThreshold

		if err := pc.Normalize(); err != nil {
			exitOn(err)
			return
		}

		client, err := newClient()
		if err != nil {
			exitOn(err)
			return
		}
		if err := requireRunningDaemon(client); err != nil {
			exitOn(err)
			return
		}

		payload, err := json.Marshal(pc)
		if err != nil {
			exitOn(fmt.Errorf("failed to encode process config: %w", err))
			return
		}

		var mp orchestrator.ManagedProcess
		if err := client.Start(payload, &mp); err != nil {
			exitOn(err)
			return
		}

		PrintSuccess("started '%s' (%d instance(s))", mp.Name, len(mp.Instances))
		PrintDetail("id", mp.ID)
		PrintDetail("script", mp.Script)
		PrintDetail("status", string(mp.Status))
	},
}

func init() {
	startCmd.Flags().StringVarP(&startName, "name", "n", "", "process name (default: script basename)")
	startCmd.Flags().StringVarP(&startInterpreter, "interpreter", "i", "", "interpreter to invoke the script with")
	startCmd.Flags().StringVarP(&startCwd, "cwd", "c", "", "working directory (default: current directory)")
	startCmd.Flags().StringVar(&startInstances, "instances", "1", `instance count, or "max" for runtime.NumCPU()`)
	startCmd.Flags().BoolVar(&startWatch, "watch", false, "restart on file changes under --watch-path")
	startCmd.Flags().StringSliceVar(&startWatchPaths, "watch-path", nil, "paths to watch, repeatable")
	startCmd.Flags().StringVar(&startEnvFile, "env-file", "", "KEY=VALUE env file merged behind explicit env")
	startCmd.Flags().StringVar(&startMaxMemory, "max-memory", "", "hard memory ceiling (e.g. 500MB)")
	startCmd.Flags().StringVar(&startMemoryThreshold, "memory-threshold", "", "high-memory issue threshold (e.g. 400MB)")
	startCmd.Flags().BoolVar(&startAutoRestartMem, "auto-restart-on-high-memory", false, "restart the process when a health check finds memory over the threshold")
	startCmd.Flags().BoolVar(&startAutoRestartCPU, "auto-restart-on-high-cpu", false, "restart the process when a health check finds cpu over the threshold")
	startCmd.Flags().Float64Var(&startCPUThreshold, "cpu-threshold", 0, "high-CPU issue threshold percent")
}
