package orchestrator

import (
	"context"
	"time"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/idgen"
)

// gracefulReload replaces every instance of a cluster ManagedProcess one
// at a time: spawn a replacement and add it to the fleet, wait a fixed
// delay, then stop and remove the old instance, so the fleet never drops
// below len(Instances) workers (spec.md §4.4, "cluster mode graceful
// zero-downtime reload").
func (o *Orchestrator) gracefulReload(mp *ManagedProcess) error {
	mp.opMu.Lock()
	defer mp.opMu.Unlock()

	mp.mu.Lock()
	mp.Status = StatusReloading
	mp.mu.Unlock()

	o.emit(Event{Kind: EventReloadBegan, Process: mp.Snapshot()})

	old := append([]*ProcessInstance(nil), mp.Instances...)

	for _, oldInst := range old {
		newInst := &ProcessInstance{ID: idgen.New(), Status: InstanceStarting}

		ctx, cancel := context.WithTimeout(context.Background(), StartWindow)
		err := o.spawnInstance(ctx, mp, newInst)
		cancel()
		if err != nil {
			// Replacement failed: leave the old instance running and
			// report partial failure rather than shrinking the fleet.
			o.stopInstance(newInst, mp.Config.KillTimeout)
			mp.mu.Lock()
			mp.Status = StatusRunning
			mp.mu.Unlock()
			return config.Wrap(config.ErrSpawnFailed, "reload failed, rolled back", err)
		}

		// The replacement is already running at this point (spawnInstance
		// only returns nil once it is); add it to the observable fleet
		// immediately so a concurrent List/Get/Snapshot sees both the new
		// and old slot, never dropping below N running (spec.md §3 allows
		// |instances| to transiently reach 2×count during reloading).
		mp.mu.Lock()
		mp.Instances = append(mp.Instances, newInst)
		mp.mu.Unlock()

		// Give the replacement a moment before the old instance is torn
		// down. The replacement's status is not checked again after the
		// wait: the old instance is stopped even if the replacement has
		// exited in the meantime.
		time.Sleep(reloadStabilizeDelay)

		time.Sleep(reloadStopDelay)
		o.stopInstance(oldInst, mp.Config.KillTimeout)

		mp.mu.Lock()
		mp.Instances = removeInstance(mp.Instances, oldInst)
		mp.mu.Unlock()
	}

	mp.mu.Lock()
	mp.Status = StatusRunning
	mp.UpdatedAt = time.Now()
	mp.mu.Unlock()

	o.emit(Event{Kind: EventReloadCompleted, Process: mp.Snapshot()})
	return nil
}

// removeInstance returns instances with target excluded, preserving order.
func removeInstance(instances []*ProcessInstance, target *ProcessInstance) []*ProcessInstance {
	out := make([]*ProcessInstance, 0, len(instances))
	for _, inst := range instances {
		if inst != target {
			out = append(out, inst)
		}
	}
	return out
}
