package cli

import (
	"errors"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/ipc"
)

// Exit codes (spec.md §6): 0 success; 1 general error; 2 invalid
// arguments; 3 daemon not running; 4 process not found; 5 permission
// denied; 6 resource limit exceeded; 7 timeout; 8 configuration error.
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitDaemonNotRunning = 3
	ExitProcessNotFound  = 4
	ExitPermissionDenied = 5
	ExitResourceLimit    = 6
	ExitTimeout          = 7
	ExitConfigError      = 8
)

// ExitCodeFor maps an error returned from an ipc.Client call to the exit
// code the CLI process should terminate with.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if err == errDaemonNotRunning {
		return ExitDaemonNotRunning
	}
	var callErr *ipc.CallError
	if errors.As(err, &callErr) {
		switch callErr.Kind {
		case config.ErrNotFound:
			return ExitProcessNotFound
		case config.ErrPermissionDenied:
			return ExitPermissionDenied
		case config.ErrTimeout:
			return ExitTimeout
		case config.ErrInvalidConfig, config.ErrScriptMissing:
			return ExitConfigError
		case config.ErrProtocolError:
			return ExitInvalidArgs
		}
		return ExitGeneralError
	}
	return ExitGeneralError
}
