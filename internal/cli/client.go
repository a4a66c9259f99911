package cli

import (
	"fmt"
	"os"

	"github.com/noded/noded/internal/ipc"
	"github.com/noded/noded/internal/statemgr"
)

// resolvePaths builds the daemon home layout, honoring NODEDAEMON_HOME
// (spec.md §6 Environment variables consumed). The NODEDAEMON_SOCKET
// override is applied by socketPath, not here.
func resolvePaths() (*statemgr.Paths, error) {
	home := os.Getenv("NODEDAEMON_HOME")
	return statemgr.NewPaths(home)
}

// socketPath honors NODEDAEMON_SOCKET ahead of the daemon-home default.
func socketPath() (string, error) {
	if override := os.Getenv("NODEDAEMON_SOCKET"); override != "" {
		return override, nil
	}
	paths, err := resolvePaths()
	if err != nil {
		return "", err
	}
	return paths.SocketPath(), nil
}

// newClient dials no connection yet; it just resolves where to dial.
func newClient() (*ipc.Client, error) {
	sock, err := socketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve daemon socket: %w", err)
	}
	return ipc.NewClient(sock), nil
}

// requireRunningDaemon fails fast with ExitDaemonNotRunning semantics when
// nothing answers the socket, instead of letting every subsequent call
// time out individually.
func requireRunningDaemon(c *ipc.Client) error {
	if !c.IsRunning() {
		return errDaemonNotRunning
	}
	return nil
}

var errDaemonNotRunning = fmt.Errorf("daemon is not running")
