package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/noded/noded/internal/config"
)

// spawnInstance builds the exec.Cmd per the ManagedProcess's Strategy,
// starts it, pipes its stdout/stderr to the LogSink line by line, and
// marks the instance running as soon as the process has started. It does
// not wait on ctx: it returns ctx's error only if ctx has already expired
// by then (spec.md §4.1).
func (o *Orchestrator) spawnInstance(ctx context.Context, mp *ManagedProcess, inst *ProcessInstance) error {
	cfg := mp.Config

	var cmd *exec.Cmd
	if cfg.Interpreter != "" {
		args := append([]string{cfg.Script}, cfg.Args...)
		cmd = exec.CommandContext(context.Background(), cfg.Interpreter, args...)
	} else {
		cmd = exec.CommandContext(context.Background(), cfg.Script, cfg.Args...)
	}

	cmd.Dir = cfg.Cwd
	if cmd.Dir == "" {
		cmd.Dir, _ = os.Getwd()
	}

	env := filteredEnviron()
	for k, v := range instanceEnv(cfg, mp, inst) {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	// Own process group so Stop can signal every descendant the child
	// spawns, not just the direct child (spec.md §4.1 kill semantics).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	inst.mu.Lock()
	inst.cmd = cmd
	inst.PID = cmd.Process.Pid
	inst.Status = InstanceRunning
	inst.StartedAt = time.Now()
	inst.exitedCh = make(chan struct{})
	inst.stopping = false
	inst.mu.Unlock()

	go o.pumpLog(mp, inst, "stdout", stdout)
	go o.pumpLog(mp, inst, "stderr", stderr)
	go o.waitInstance(mp, inst)

	o.emit(Event{Kind: EventInstanceStarted, Process: mp.Snapshot(), InstanceID: inst.ID})

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// daemonEnvPrefix marks the daemon's own configuration variables
// (NODEDAEMON_HOME, NODEDAEMON_SOCKET, NODEDAEMON_LOG_LEVEL,
// NODEDAEMON_WEBUI_PASSWORD, ...) so filteredEnviron can strip them before
// a supervised child ever sees them (spec.md §9: never pass the daemon's
// full environment to a child, to avoid leaking secrets like the Web UI
// password).
const daemonEnvPrefix = "NODEDAEMON_"

// filteredEnviron returns the daemon's own environment with every
// daemon-configuration variable removed, the safe base a child's env is
// built on top of.
func filteredEnviron() []string {
	full := os.Environ()
	out := make([]string, 0, len(full))
	for _, kv := range full {
		if strings.HasPrefix(kv, daemonEnvPrefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// instanceEnv layers the ManagedProcess's explicit env over its envFile
// (explicit wins, per config.MergeEnv) plus the identity variables spec.md
// §6 documents every supervised child receives.
func instanceEnv(cfg config.ProcessConfig, mp *ManagedProcess, inst *ProcessInstance) map[string]string {
	fromFile := map[string]string{}
	if cfg.EnvFile != "" {
		if parsed, err := config.ParseEnvFile(cfg.EnvFile); err == nil {
			fromFile = parsed
		}
	}
	merged := config.MergeEnv(cfg.Env, fromFile)
	merged["DAEMON"] = "1"
	merged["DAEMON_PROCESS_ID"] = mp.ID
	merged["DAEMON_PROCESS_NAME"] = mp.Name
	merged["DAEMON_INSTANCE_ID"] = inst.ID
	return merged
}

func (o *Orchestrator) pumpLog(mp *ManagedProcess, inst *ProcessInstance, stream string, r io.Reader) {
	if o.sink == nil {
		io.Copy(io.Discard, r)
		return
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		o.sink.WriteProcessLog(mp.ID, mp.Name, stream, line)
	}
}

// waitInstance blocks on the child's exit and routes it into either the
// "this was an intentional Stop" path or the restart-backoff path
// (restart.go), implementing spec.md §4.3.
func (o *Orchestrator) waitInstance(mp *ManagedProcess, inst *ProcessInstance) {
	err := inst.cmd.Wait()
	close(inst.exitedCh)

	inst.mu.Lock()
	wasStopping := inst.stopping
	inst.mu.Unlock()

	if wasStopping {
		return
	}

	o.handleUnexpectedExit(mp, inst, err)
}

// stopInstance sends SIGTERM to the instance's process group and escalates
// to SIGKILL if it hasn't exited within killTimeout (spec.md §3, §4.1).
func (o *Orchestrator) stopInstance(inst *ProcessInstance, killTimeout time.Duration) {
	inst.mu.Lock()
	inst.stopping = true
	if inst.restartTmr != nil {
		inst.restartTmr.Stop()
	}
	pid := inst.PID
	exited := inst.exitedCh
	inst.Status = InstanceStopping
	inst.mu.Unlock()

	if pid == 0 || exited == nil {
		inst.mu.Lock()
		inst.Status = InstanceStopped
		inst.mu.Unlock()
		return
	}

	syscall.Kill(-pid, syscall.SIGTERM)

	select {
	case <-exited:
	case <-time.After(killTimeout):
		syscall.Kill(-pid, syscall.SIGKILL)
		<-exited
	}

	inst.mu.Lock()
	inst.Status = InstanceStopped
	inst.mu.Unlock()
}

// killInstance tears down instances of partially-started fleets. It is
// stopInstance with the given killTimeout: SIGTERM first, SIGKILL once
// killTimeout passes.
func (o *Orchestrator) killInstance(inst *ProcessInstance, killTimeout time.Duration) {
	o.stopInstance(inst, killTimeout)
}
