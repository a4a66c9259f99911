package statemgr

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/orchestrator"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	debounceDelay = 1 * time.Second
	periodicDelay = 30 * time.Second
)

// FleetSource is satisfied by *orchestrator.Orchestrator; kept as an
// interface so tests can fake the fleet without spawning real processes.
type FleetSource interface {
	List() []orchestrator.ManagedProcess
}

// Manager owns state.json: coalesced atomic writes, a debounced save
// armed by every fleet mutation, a periodic save as a backstop, and
// startup recovery (spec.md §4.5).
type Manager struct {
	log   *zap.Logger
	paths *Paths
	fleet FleetSource

	group singleflight.Group

	mu           sync.Mutex
	debounceTmr  *time.Timer
	periodicTmr  *time.Timer
	shuttingDown bool
}

func New(log *zap.Logger, paths *Paths, fleet FleetSource) *Manager {
	m := &Manager{log: log, paths: paths, fleet: fleet}
	m.armPeriodic()
	return m
}

// Touch is called after every fleet mutation; it (re-)arms the debounced
// save, cancelling any previously pending one first so cancellation stays
// symmetric with arming (spec.md §4.5 Timers).
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown {
		return
	}
	if m.debounceTmr != nil {
		m.debounceTmr.Stop()
	}
	m.debounceTmr = time.AfterFunc(debounceDelay, func() {
		if err := m.Save(); err != nil {
			m.log.Warn("debounced state save failed", zap.Error(err))
		}
	})
}

func (m *Manager) armPeriodic() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.periodicTmr != nil {
		m.periodicTmr.Stop()
	}
	m.periodicTmr = time.AfterFunc(periodicDelay, func() {
		if err := m.Save(); err != nil {
			m.log.Warn("periodic state save failed", zap.Error(err))
		}
		m.armPeriodic()
	})
}

// Save serializes the current fleet to state.json via a tmp-file-then-
// rename write, coalescing concurrent callers through singleflight (spec.md
// §4.5 Write discipline): a caller that arrives while a write is in flight
// joins that write and gets its result, and no second write is queued, so
// a change made after the in-flight write took its fleet snapshot is not
// in the file until the next Save.
func (m *Manager) Save() error {
	_, err, _ := m.group.Do("save", func() (any, error) {
		return nil, m.writeNow()
	})
	return err
}

func (m *Manager) writeNow() error {
	snap := FromFleet(m.fleet.List())

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	final := m.paths.StateFile()
	tmp := fmt.Sprintf("%s.tmp.%d", final, os.Getpid())

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp state: %w", err)
	}
	return nil
}

// Load reads state.json if present. An unparseable file is moved aside
// rather than rejected outright, and a fresh empty Snapshot is returned so
// the daemon still starts (spec.md §4.5 Recovery).
func (m *Manager) Load() (Snapshot, error) {
	path := m.paths.StateFile()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("read state file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		corrupt := path + ".corrupt." + time.Now().UTC().Format("20060102T150405")
		if renameErr := os.Rename(path, corrupt); renameErr != nil {
			m.log.Warn("failed to move aside corrupt state file", zap.Error(renameErr))
		} else {
			m.log.Warn("state file was unparseable, moved aside and starting fresh", zap.String("movedTo", corrupt))
		}
		return Snapshot{}, nil
	}
	return snap, nil
}

// Recover replays every persisted ManagedProcess through start. Transient
// fields (PIDs, live statuses) never reach disk in the first place —
// Snapshot carries each process's config plus identity and restart
// counters, no runtime state — so recovery is just handing each config
// back to Start; a ManagedProcess that fails to respawn is logged and
// skipped rather than aborting the rest of the fleet.
func (m *Manager) Recover(start func(config.ProcessConfig) (*orchestrator.ManagedProcess, error)) error {
	snap, err := m.Load()
	if err != nil {
		return err
	}
	for _, ps := range snap.Processes {
		if _, err := start(ps.Config); err != nil {
			m.log.Warn("failed to respawn process from recovered state",
				zap.String("name", ps.Name), zap.Error(err))
		}
	}
	return nil
}

// Shutdown stops both timers and performs one final synchronous save, the
// "force a final state save" step of spec.md §4.7's shutdown sequence.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	m.shuttingDown = true
	if m.debounceTmr != nil {
		m.debounceTmr.Stop()
	}
	if m.periodicTmr != nil {
		m.periodicTmr.Stop()
	}
	m.mu.Unlock()

	return m.Save()
}
