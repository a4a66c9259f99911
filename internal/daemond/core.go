// Package daemond wires the supervision engine's components into one
// process: Orchestrator, Log Manager, State Manager, File Watcher, Health
// Monitor, and IPC Server, plus signal translation and the startup/
// shutdown sequences (spec.md §4.7).
package daemond

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/ipc"
	"github.com/noded/noded/internal/logmgr"
	"github.com/noded/noded/internal/metrics"
	"github.com/noded/noded/internal/orchestrator"
	"github.com/noded/noded/internal/statemgr"
	"github.com/noded/noded/internal/watcher"
	"go.uber.org/zap"
)

// Options configures one daemon run.
type Options struct {
	Home           string
	BootstrapFile  string
	CheckInterval  string // parsed with time.ParseDuration; metrics.DefaultCheckInterval if empty
	MetricsAddr    string // optional prometheus listen address, empty disables it
}

// Core owns every long-lived component and the goroutines wiring them
// together. Exactly one Core exists per daemon process.
type Core struct {
	log    *zap.Logger
	paths  *statemgr.Paths
	orch   *orchestrator.Orchestrator
	logs   *logmgr.Manager
	state  *statemgr.Manager
	watch  *watcher.Watcher
	health *metrics.Monitor
	ipcSrv *ipc.Server
	httpSrv *metricsServer

	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
}

// New constructs every component but does not start accepting connections
// or watching files; call Run for that.
func New(log *zap.Logger, opts Options) (*Core, error) {
	paths, err := statemgr.NewPaths(opts.Home)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare daemon home: %w", err)
	}

	logs, err := logmgr.New(paths.LogsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to start log manager: %w", err)
	}

	orch := orchestrator.New(log, logs)

	w, err := watcher.New(log, watcher.DefaultIgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	c := &Core{
		log:   log,
		paths: paths,
		orch:  orch,
		logs:  logs,
		watch: w,
		done:  make(chan struct{}),
	}
	c.state = statemgr.New(log, paths, orch)
	interval := metrics.DefaultCheckInterval
	if opts.CheckInterval != "" {
		d, err := time.ParseDuration(opts.CheckInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid check interval %q: %w", opts.CheckInterval, err)
		}
		interval = d
	}
	c.health = metrics.NewMonitor(log, interval, c.onIssues, c.onRecycle)
	c.ipcSrv = ipc.NewServer(log, paths.SocketPath())
	registerHandlers(c.ipcSrv, c)

	if opts.MetricsAddr != "" {
		c.httpSrv = newMetricsServer(opts.MetricsAddr, orch)
	}

	go c.pumpWatchEvents()
	go c.pumpOrchestratorEvents()

	return c, nil
}

// Run executes the startup sequence, blocks handling OS signals, and runs
// the shutdown sequence before returning (spec.md §4.7 Startup/Signals).
func (c *Core) Run(opts Options) error {
	if err := c.startup(opts); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				c.reloadAll()
			default:
				c.log.Info("received shutdown signal", zap.String("signal", sig.String()))
				return c.Shutdown()
			}
		case <-c.done:
			return c.shutdownErr
		}
	}
}

// startup runs four ordered steps: bootstrap config, IPC server, state
// recovery, and the optional metrics endpoint.
func (c *Core) startup(opts Options) error {
	if opts.BootstrapFile != "" {
		file, err := config.LoadFile(opts.BootstrapFile)
		if err != nil {
			return fmt.Errorf("failed to load bootstrap config: %w", err)
		}
		for _, pc := range file.Processes {
			if _, err := c.orch.Start(pc); err != nil {
				c.log.Warn("bootstrap process failed to start", zap.String("name", pc.Name), zap.Error(err))
			}
		}
	}

	if err := c.ipcSrv.Start(); err != nil {
		return fmt.Errorf("failed to start ipc server: %w", err)
	}

	if err := c.state.Recover(c.orch.Start); err != nil {
		c.log.Warn("state recovery reported an error", zap.Error(err))
	}

	if c.httpSrv != nil {
		if err := c.httpSrv.Start(); err != nil {
			c.log.Warn("failed to start metrics endpoint", zap.Error(err))
		}
	}

	c.log.Info("daemon started", zap.String("socket", c.paths.SocketPath()))
	return nil
}

func (c *Core) reloadAll() {
	c.log.Info("SIGHUP received, reloading all managed processes")
	for _, mp := range c.orch.List() {
		if mp.Status != orchestrator.StatusRunning {
			continue
		}
		if err := c.orch.Restart(mp.ID, true); err != nil {
			c.log.Warn("reload failed", zap.String("process", mp.Name), zap.Error(err))
		}
	}
}

// Shutdown runs spec.md §4.7's ordered shutdown sequence exactly once.
func (c *Core) Shutdown() error {
	c.shutdownOnce.Do(func() {
		c.log.Info("shutting down")

		if err := c.ipcSrv.Stop(); err != nil {
			c.log.Warn("error stopping ipc server", zap.Error(err))
		}
		c.health.Close()
		if c.httpSrv != nil {
			c.httpSrv.Stop()
		}
		if err := c.watch.Close(); err != nil {
			c.log.Warn("error stopping file watcher", zap.Error(err))
		}

		c.orch.Shutdown()

		if err := c.state.Shutdown(); err != nil {
			c.log.Warn("final state save failed", zap.Error(err))
			c.shutdownErr = err
		}

		if err := c.logs.Close(); err != nil {
			c.log.Warn("error closing log manager", zap.Error(err))
		}

		close(c.done)
	})
	return c.shutdownErr
}

// pumpWatchEvents turns file-change notifications for watched
// ManagedProcesses into restarts (spec.md §4.3 File Watcher → Core wiring).
func (c *Core) pumpWatchEvents() {
	for ev := range c.watch.Events() {
		c.log.Debug("file change detected", zap.String("path", ev.AbsolutePath), zap.String("type", string(ev.Type)))
		for _, mp := range c.orch.List() {
			if !mp.Config.Watch {
				continue
			}
			if !pathWatched(mp.Config.WatchPaths, ev.AbsolutePath) {
				continue
			}
			if err := c.orch.Restart(mp.ID, false); err != nil {
				c.log.Warn("watch-triggered restart failed", zap.String("process", mp.Name), zap.Error(err))
			}
		}
	}
}

func pathWatched(roots []string, path string) bool {
	if len(roots) == 0 {
		return true
	}
	for _, r := range roots {
		if len(path) >= len(r) && path[:len(r)] == r {
			return true
		}
	}
	return false
}

// pumpOrchestratorEvents keeps the file watcher's watch set, the health
// monitor's tracked PIDs, and the state manager's debounce timer in sync
// with fleet mutations (spec.md §2 Control flow: "all other mutations ...
// are triggered by its events").
func (c *Core) pumpOrchestratorEvents() {
	ch := c.orch.Subscribe()
	for ev := range ch {
		switch ev.Kind {
		case orchestrator.EventProcessStarted:
			if ev.Process.Config.Watch && len(ev.Process.Config.WatchPaths) > 0 {
				_ = c.watch.Watch(ev.Process.Config.WatchPaths, true)
			}
			for _, inst := range ev.Process.Instances {
				c.health.Add(ev.Process.ID, ev.Process.Name, int32(inst.PID), thresholdsOf(ev.Process.Config))
			}
			c.state.Touch()
		case orchestrator.EventInstanceStarted:
			if inst := findInstance(ev.Process, ev.InstanceID); inst != nil {
				c.health.Add(ev.Process.ID, ev.Process.Name, int32(inst.PID), thresholdsOf(ev.Process.Config))
			}
			c.state.Touch()
		case orchestrator.EventInstanceExit:
			if inst := findInstance(ev.Process, ev.InstanceID); inst != nil {
				c.health.Remove(int32(inst.PID))
			}
		case orchestrator.EventMaxRestartsReached, orchestrator.EventReloadCompleted:
			c.state.Touch()
			c.health.ClearRecycle(ev.Process.ID)
		}
	}
}

func findInstance(mp orchestrator.ManagedProcess, instanceID string) *orchestrator.ProcessInstance {
	for _, inst := range mp.Instances {
		if inst.ID == instanceID {
			return inst
		}
	}
	return nil
}

func thresholdsOf(cfg config.ProcessConfig) metrics.Thresholds {
	return metrics.Thresholds{
		MemoryThreshold:         cfg.MemoryThreshold,
		AutoRestartOnHighMemory: cfg.AutoRestartOnHighMemory,
		CPUThreshold:            cfg.CPUThreshold,
		AutoRestartOnHighCPU:    cfg.AutoRestartOnHighCPU,
	}
}

// onIssues logs health issues the monitor raises (spec.md §4.2).
func (c *Core) onIssues(issues []metrics.Issue) {
	for _, issue := range issues {
		c.log.Warn("health issue detected",
			zap.String("process", issue.ProcessID),
			zap.String("kind", string(issue.Kind)),
			zap.Float64("value", issue.Value),
			zap.Float64("threshold", issue.Threshold))
	}
}

// onRecycle asks the Orchestrator to restart a process whose resource
// budget tripped, then releases the in-flight flag regardless of outcome.
func (c *Core) onRecycle(processID string) {
	defer c.health.ClearRecycle(processID)
	if err := c.orch.Restart(processID, true); err != nil {
		c.log.Warn("recycle restart failed", zap.String("process", processID), zap.Error(err))
	}
}

// Orchestrator exposes the fleet owner for the IPC handler layer.
func (c *Core) Orchestrator() *orchestrator.Orchestrator { return c.orch }

// Logs exposes the log manager for the IPC handler layer.
func (c *Core) Logs() *logmgr.Manager { return c.logs }

// RequestShutdown triggers the shutdown sequence asynchronously, used by
// the IPC `shutdown` handler which must reply before the daemon exits.
func (c *Core) RequestShutdown() {
	go c.Shutdown()
}

// Done is closed once the shutdown sequence has completed.
func (c *Core) Done() <-chan struct{} { return c.done }
