package orchestrator

import (
	"context"
	"os/exec"
	"time"

	"github.com/noded/noded/internal/config"
	"go.uber.org/zap"
)

// handleUnexpectedExit is reached whenever an instance's cmd.Wait() returns
// without a preceding intentional Stop. It records the exit, decides
// whether the restart policy applies, and either schedules a backed-off
// respawn or marks the instance (and possibly the whole ManagedProcess)
// errored (spec.md §4.3).
func (o *Orchestrator) handleUnexpectedExit(mp *ManagedProcess, inst *ProcessInstance, waitErr error) {
	exitCode := -1
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if waitErr == nil {
		exitCode = 0
	}

	mp.mu.Lock()
	cfg := mp.Config
	mp.mu.Unlock()

	inst.mu.Lock()
	inst.Status = InstanceCrashed
	uptime := time.Since(inst.StartedAt)
	inst.mu.Unlock()

	o.log.Warn("instance exited unexpectedly",
		zap.String("process", mp.Name),
		zap.String("instance", inst.ID),
		zap.Int("exitCode", exitCode),
		zap.Duration("uptime", uptime))

	o.emit(Event{Kind: EventInstanceExit, Process: mp.Snapshot(), InstanceID: inst.ID})

	if o.isShuttingDown() {
		return
	}

	if cfg.Autorestart == config.RestartOff {
		o.markInstanceErrored(mp, inst)
		return
	}

	// An instance that stayed up at least minUptime is considered to have
	// recovered; its restart counter resets so a later crash starts the
	// backoff schedule fresh (spec.md §4.3).
	inst.mu.Lock()
	if uptime >= cfg.MinUptime {
		inst.Restarts = 0
	}
	restarts := inst.Restarts
	inst.mu.Unlock()

	// Ceiling check (step 3) happens against the pre-increment count: the
	// counter itself only advances when the restart actually fires (step
	// 4, in respawn), so it never exceeds maxRestarts.
	if restarts >= cfg.MaxRestarts {
		o.emit(Event{Kind: EventMaxRestartsReached, Process: mp.Snapshot(), InstanceID: inst.ID})
		o.markInstanceErrored(mp, inst)
		return
	}

	delay := backoffDelay(cfg.RestartDelay, cfg.MaxRestartDelay, restarts)

	inst.mu.Lock()
	inst.restartTmr = time.AfterFunc(delay, func() {
		o.respawn(mp, inst)
	})
	inst.mu.Unlock()
}

// backoffDelay implements spec.md §4.3's schedule:
// d = min(maxRestartDelay, restartDelay · 2^attempt), attempt 0-based.
// A restartDelay of zero or less is treated as 1s.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// respawn re-launches a crashed instance after its backoff delay elapses.
// A fresh context bounds how long the respawn itself may take to reach
// running; it is independent of the original Start's StartWindow.
func (o *Orchestrator) respawn(mp *ManagedProcess, inst *ProcessInstance) {
	if o.isShuttingDown() {
		return
	}

	inst.mu.Lock()
	inst.Restarts++
	inst.LastRestartAt = time.Now()
	inst.Status = InstanceStarting
	inst.stopping = false
	inst.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), StartWindow)
	defer cancel()

	if err := o.spawnInstance(ctx, mp, inst); err != nil {
		o.markInstanceErrored(mp, inst)
		return
	}

	mp.mu.Lock()
	mp.recomputeStatus()
	mp.mu.Unlock()
}

func (o *Orchestrator) markInstanceErrored(mp *ManagedProcess, inst *ProcessInstance) {
	inst.mu.Lock()
	inst.Status = InstanceErrored
	inst.mu.Unlock()

	mp.mu.Lock()
	mp.recomputeStatus()
	mp.mu.Unlock()
}
