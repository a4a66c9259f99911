// Package orchestrator owns the fleet: ManagedProcess and ProcessInstance
// lifecycle, restart backoff, and cluster graceful reload (spec.md §4.1).
// It is the only component that mutates fleet state; everything else reads
// it through the query methods on *Orchestrator or reacts to its Events.
package orchestrator

import (
	"os/exec"
	"sync"
	"time"

	"github.com/noded/noded/internal/config"
)

type ProcessStatus string

const (
	StatusStarting  ProcessStatus = "starting"
	StatusRunning   ProcessStatus = "running"
	StatusStopping  ProcessStatus = "stopping"
	StatusStopped   ProcessStatus = "stopped"
	StatusErrored   ProcessStatus = "errored"
	StatusReloading ProcessStatus = "reloading"
)

type InstanceStatus string

const (
	InstanceStarting InstanceStatus = "starting"
	InstanceRunning  InstanceStatus = "running"
	InstanceStopping InstanceStatus = "stopping"
	InstanceStopped  InstanceStatus = "stopped"
	InstanceCrashed  InstanceStatus = "crashed"
	InstanceErrored  InstanceStatus = "errored"
)

// Strategy is the spawn strategy chosen per ManagedProcess at first start
// (spec.md §4.1).
type Strategy string

const (
	StrategyFork   Strategy = "fork"
	StrategySpawn  Strategy = "spawn"
	StrategyCluster Strategy = "cluster"
)

// ProcessInstance is one live worker slot of a ManagedProcess. The slot
// object is reused across restarts; a new *ProcessInstance is allocated
// only at initial Start and for each replacement during a cluster reload.
type ProcessInstance struct {
	ID            string
	PID           int
	Status        InstanceStatus
	Restarts      int
	StartedAt     time.Time
	LastRestartAt time.Time
	MemoryBytes   uint64
	CPUPercent    float64

	mu         sync.Mutex
	cmd        *exec.Cmd
	restartTmr *time.Timer
	exitedCh   chan struct{} // closed once cmd.Wait() returns
	stopping   bool          // true once an intentional Stop is in flight
}

// Snapshot returns a value copy safe to hand to callers outside the
// orchestrator's serialization domain (query API, persistence).
func (pi *ProcessInstance) Snapshot() ProcessInstance {
	cp := *pi
	cp.cmd = nil
	cp.restartTmr = nil
	cp.exitedCh = nil
	return cp
}

// ManagedProcess is one user-declared application being supervised.
type ManagedProcess struct {
	ID                string
	Name              string
	Script            string
	Config            config.ProcessConfig
	Status            ProcessStatus
	Strategy          Strategy
	Instances         []*ProcessInstance
	AggregateRestarts int
	CreatedAt         time.Time
	UpdatedAt         time.Time

	mu              sync.Mutex
	opMu            sync.Mutex // serializes Stop/Restart/reload for this id (spec.md §5)
	recycleInFlight bool
}

// Snapshot returns a deep value copy of the ManagedProcess and its
// instances, safe for concurrent readers (List/Get, state persistence,
// IPC responses).
func (mp *ManagedProcess) Snapshot() ManagedProcess {
	cp := *mp
	cp.Instances = make([]*ProcessInstance, len(mp.Instances))
	for i, inst := range mp.Instances {
		s := inst.Snapshot()
		cp.Instances[i] = &s
	}
	return cp
}

func (mp *ManagedProcess) aggregateRestarts() int {
	total := 0
	for _, inst := range mp.Instances {
		total += inst.Restarts
	}
	return total
}

// recomputeStatus applies the invariants from spec.md §3:
//   running  <=> at least one instance running
//   errored  <=> every instance in {errored, crashed} and at least one hit its ceiling
// Must be called with mp.mu held.
func (mp *ManagedProcess) recomputeStatus() {
	if mp.Status == StatusReloading || mp.Status == StatusStopping {
		return
	}
	anyRunning := false
	allDead := true
	anyErrored := false
	for _, inst := range mp.Instances {
		if inst.Status == InstanceRunning {
			anyRunning = true
		}
		if inst.Status != InstanceErrored && inst.Status != InstanceCrashed {
			allDead = false
		}
		if inst.Status == InstanceErrored {
			anyErrored = true
		}
	}
	switch {
	case anyRunning:
		mp.Status = StatusRunning
	case allDead && anyErrored:
		mp.Status = StatusErrored
	case allDead && len(mp.Instances) > 0:
		mp.Status = StatusStopped
	}
	mp.AggregateRestarts = mp.aggregateRestarts()
	mp.UpdatedAt = time.Now()
}
