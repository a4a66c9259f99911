package orchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/idgen"
	"go.uber.org/zap"
)

const (
	// StartWindow bounds how long Start waits for every instance to reach
	// running before failing the whole call and tearing down what spawned
	// (spec.md §4.1).
	StartWindow = 30 * time.Second

	reloadStabilizeDelay = 2 * time.Second
	reloadStopDelay      = 1 * time.Second
)

// LogSink receives per-instance stdout/stderr and lifecycle log lines. The
// orchestrator never owns durable log storage itself (spec.md §3: "the Log
// Manager exclusively owns durable copies"); it only routes bytes there.
type LogSink interface {
	WriteProcessLog(processID, processName string, stream string, line []byte)
}

// Orchestrator is the sole mutator of fleet state (spec.md §4.1).
type Orchestrator struct {
	log *zap.Logger

	mu        sync.RWMutex
	processes map[string]*ManagedProcess

	subsMu sync.Mutex
	subs   []chan Event

	sink LogSink

	shuttingDown bool
	shutdownMu   sync.Mutex

	clock idgen.Clock
}

func New(log *zap.Logger, sink LogSink) *Orchestrator {
	return &Orchestrator{
		log:       log,
		processes: make(map[string]*ManagedProcess),
		sink:      sink,
		clock:     idgen.SystemClock{},
	}
}

func (o *Orchestrator) isShuttingDown() bool {
	o.shutdownMu.Lock()
	defer o.shutdownMu.Unlock()
	return o.shuttingDown
}

// Start normalizes config, picks a spawn strategy, and brings up every
// instance, failing the whole call if any instance doesn't reach running
// within StartWindow (spec.md §4.1).
func (o *Orchestrator) Start(cfg config.ProcessConfig) (*ManagedProcess, error) {
	if o.isShuttingDown() {
		return nil, config.New(config.ErrShutdown, "daemon is shutting down")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := checkScript(cfg); err != nil {
		return nil, err
	}

	o.mu.RLock()
	for _, mp := range o.processes {
		if mp.Name == cfg.Name {
			o.mu.RUnlock()
			return nil, config.WithID(config.ErrAlreadyExists, "a process with this name already exists", mp.ID)
		}
	}
	o.mu.RUnlock()

	n, strategy, err := resolveInstances(cfg)
	if err != nil {
		return nil, err
	}

	mp := &ManagedProcess{
		ID:        idgen.New(),
		Name:      cfg.Name,
		Script:    cfg.Script,
		Config:    cfg,
		Status:    StatusStarting,
		Strategy:  strategy,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	for i := 0; i < n; i++ {
		mp.Instances = append(mp.Instances, &ProcessInstance{ID: idgen.New(), Status: InstanceStarting})
	}

	ctx, cancel := context.WithTimeout(context.Background(), StartWindow)
	defer cancel()

	for _, inst := range mp.Instances {
		if err := o.spawnInstance(ctx, mp, inst); err != nil {
			o.teardownPartialStart(mp)
			return nil, config.Wrap(config.ErrSpawnFailed, "failed to start process", err)
		}
	}

	mp.mu.Lock()
	mp.Status = StatusRunning
	mp.UpdatedAt = time.Now()
	mp.mu.Unlock()

	o.mu.Lock()
	o.processes[mp.ID] = mp
	o.mu.Unlock()

	o.emit(Event{Kind: EventProcessStarted, Process: mp.Snapshot()})
	return mp, nil
}

// teardownPartialStart kills any instance that did manage to spawn when
// Start fails early, so a failed Start never leaks children.
func (o *Orchestrator) teardownPartialStart(mp *ManagedProcess) {
	for _, inst := range mp.Instances {
		if inst.PID != 0 {
			o.killInstance(inst, mp.Config.KillTimeout)
		}
	}
}

// checkScript verifies cfg.Script is resolvable before any instance spawns,
// so a missing script surfaces as the distinct ScriptMissing spec.md §4.1
// lists as a Start failure instead of a generic SpawnFailed once exec.Start
// fails downstream. A script handed to an interpreter, or containing a
// path separator, is checked as a file relative to cfg.Cwd; a bare command
// name is resolved on PATH instead.
func checkScript(cfg config.ProcessConfig) error {
	if cfg.Interpreter != "" || strings.ContainsRune(cfg.Script, os.PathSeparator) {
		path := cfg.Script
		if !filepath.IsAbs(path) {
			cwd := cfg.Cwd
			if cwd == "" {
				cwd, _ = os.Getwd()
			}
			path = filepath.Join(cwd, path)
		}
		if _, err := os.Stat(path); err != nil {
			return config.New(config.ErrScriptMissing, "script not found: "+cfg.Script)
		}
		return nil
	}
	if _, err := exec.LookPath(cfg.Script); err != nil {
		return config.New(config.ErrScriptMissing, "script not found on PATH: "+cfg.Script)
	}
	return nil
}

func resolveInstances(cfg config.ProcessConfig) (int, Strategy, error) {
	var n int
	if cfg.Instances == "max" {
		n = runtime.NumCPU()
	} else {
		v, err := strconv.Atoi(cfg.Instances)
		if err != nil || v < 1 {
			return 0, "", config.New(config.ErrInvalidConfig, "instances must be a positive integer or \"max\"")
		}
		n = v
	}

	switch {
	case n > 1 || cfg.Instances == "max":
		return n, StrategyCluster, nil
	case cfg.Interpreter != "":
		return n, StrategySpawn, nil
	default:
		return n, StrategyFork, nil
	}
}

// Stop transitions a ManagedProcess to stopping and gracefully (then
// forcefully) terminates every instance.
func (o *Orchestrator) Stop(id string, force bool) error {
	mp, err := o.get(id)
	if err != nil {
		return err
	}

	mp.opMu.Lock()
	defer mp.opMu.Unlock()

	mp.mu.Lock()
	if mp.Status == StatusStopping {
		mp.mu.Unlock()
		return config.WithID(config.ErrAlreadyExists, "process is already stopping", id)
	}
	mp.Status = StatusStopping
	mp.mu.Unlock()

	killTimeout := mp.Config.KillTimeout
	if force {
		killTimeout = config.DefaultForceKillTimeout
	}

	var wg sync.WaitGroup
	for _, inst := range mp.Instances {
		inst := inst
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.stopInstance(inst, killTimeout)
		}()
	}
	wg.Wait()

	mp.mu.Lock()
	mp.Status = StatusStopped
	mp.UpdatedAt = time.Now()
	mp.mu.Unlock()

	o.emit(Event{Kind: EventProcessStopped, Process: mp.Snapshot()})
	return nil
}

// Restart performs a plain Stop+Start cycle, or — for a cluster
// ManagedProcess asked to restart gracefully — the zero-downtime reload
// protocol in reload.go.
func (o *Orchestrator) Restart(id string, graceful bool) error {
	mp, err := o.get(id)
	if err != nil {
		return err
	}

	if graceful && mp.Strategy == StrategyCluster && len(mp.Instances) > 1 {
		return o.gracefulReload(mp)
	}

	mp.opMu.Lock()
	defer mp.opMu.Unlock()

	killTimeout := mp.Config.KillTimeout
	var wg sync.WaitGroup
	for _, inst := range mp.Instances {
		inst := inst
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.stopInstance(inst, killTimeout)
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), StartWindow)
	defer cancel()

	mp.mu.Lock()
	mp.Status = StatusStarting
	mp.mu.Unlock()

	for _, inst := range mp.Instances {
		inst.mu.Lock()
		inst.Status = InstanceStarting
		inst.stopping = false
		inst.mu.Unlock()
		if err := o.spawnInstance(ctx, mp, inst); err != nil {
			return config.Wrap(config.ErrSpawnFailed, "failed to restart process", err)
		}
	}

	mp.mu.Lock()
	mp.Status = StatusRunning
	mp.UpdatedAt = time.Now()
	mp.mu.Unlock()
	return nil
}

// Delete removes a ManagedProcess from the fleet; it must be stopped or
// errored first (spec.md §4.1).
func (o *Orchestrator) Delete(id string) error {
	mp, err := o.get(id)
	if err != nil {
		return err
	}

	mp.mu.Lock()
	status := mp.Status
	mp.mu.Unlock()
	if status != StatusStopped && status != StatusErrored {
		return config.WithID(config.ErrInvalidConfig, "process must be stopped before it can be deleted", id)
	}

	o.mu.Lock()
	delete(o.processes, id)
	o.mu.Unlock()

	o.emit(Event{Kind: EventProcessDeleted, Process: mp.Snapshot()})
	return nil
}

// List returns a snapshot of every ManagedProcess, sorted by name for
// stable CLI/IPC output.
func (o *Orchestrator) List() []ManagedProcess {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]ManagedProcess, 0, len(o.processes))
	for _, mp := range o.processes {
		out = append(out, mp.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (o *Orchestrator) Get(id string) (*ManagedProcess, error) {
	return o.get(id)
}

func (o *Orchestrator) GetByName(name string) (*ManagedProcess, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, mp := range o.processes {
		if mp.Name == name {
			return mp, nil
		}
	}
	return nil, config.New(config.ErrNotFound, "process not found: "+name)
}

func (o *Orchestrator) get(id string) (*ManagedProcess, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	mp, ok := o.processes[id]
	if !ok {
		return nil, config.WithID(config.ErrNotFound, "process not found", id)
	}
	return mp, nil
}

// Find resolves either an id or a name, as the IPC handlers and CLI do
// throughout (spec.md §4.6: "Process lookup by name walks the
// Orchestrator's map").
func (o *Orchestrator) Find(idOrName string) (*ManagedProcess, error) {
	if mp, err := o.get(idOrName); err == nil {
		return mp, nil
	}
	return o.GetByName(idOrName)
}

// Shutdown stops every live ManagedProcess with its configured
// killTimeout; idempotent, called once from the Daemon Core's shutdown
// sequence (spec.md §4.7).
func (o *Orchestrator) Shutdown() {
	o.shutdownMu.Lock()
	if o.shuttingDown {
		o.shutdownMu.Unlock()
		return
	}
	o.shuttingDown = true
	o.shutdownMu.Unlock()

	o.mu.RLock()
	ids := make([]string, 0, len(o.processes))
	for id := range o.processes {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.Stop(id, false); err != nil {
				o.log.Warn("shutdown: stop failed", zap.String("id", id), zap.Error(err))
			}
		}()
	}
	wg.Wait()
}
