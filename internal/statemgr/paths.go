// Package statemgr serializes the fleet snapshot to a single crash-safe
// JSON file and recovers it at daemon startup (spec.md §4.5).
package statemgr

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths lays out the daemon's home directory the way the teacher's
// storage package does: one root under $HOME, with logs/ and pids/
// subdirectories alongside the state file itself.
type Paths struct {
	home string
}

func NewPaths(home string) (*Paths, error) {
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		home = filepath.Join(dir, ".noded")
	}

	p := &Paths{home: home}
	for _, dir := range []string{p.home, p.LogsDir(), p.PidsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return p, nil
}

func (p *Paths) Home() string    { return p.home }
func (p *Paths) LogsDir() string { return filepath.Join(p.home, "logs") }
func (p *Paths) PidsDir() string { return filepath.Join(p.home, "pids") }

// StateFile is the single JSON snapshot file (spec.md §4.5).
func (p *Paths) StateFile() string { return filepath.Join(p.home, "state.json") }

// SocketPath is the IPC server's filesystem-rendezvous endpoint
// (spec.md §4.6).
func (p *Paths) SocketPath() string { return filepath.Join(p.home, "noded.sock") }

// DaemonPidFile records the supervising daemon's own PID.
func (p *Paths) DaemonPidFile() string { return filepath.Join(p.home, "noded.pid") }
