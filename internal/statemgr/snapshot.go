package statemgr

import (
	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/orchestrator"
)

// Snapshot is the persisted shape of the fleet: one entry per
// ManagedProcess, config plus enough instance bookkeeping to resume
// supervision after a restart (spec.md §4.5).
type Snapshot struct {
	Processes []ProcessSnapshot `json:"processes"`
}

type ProcessSnapshot struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Config            config.ProcessConfig `json:"config"`
	Strategy          orchestrator.Strategy `json:"strategy"`
	AggregateRestarts int                  `json:"aggregateRestarts"`
	InstanceCount     int                  `json:"instanceCount"`
}

// FromFleet builds a Snapshot from the Orchestrator's current list. Only
// durable fields travel to disk — PIDs and live statuses are transient
// and are rebuilt by Start on recovery (spec.md §4.5 Recovery).
func FromFleet(fleet []orchestrator.ManagedProcess) Snapshot {
	s := Snapshot{Processes: make([]ProcessSnapshot, 0, len(fleet))}
	for _, mp := range fleet {
		s.Processes = append(s.Processes, ProcessSnapshot{
			ID:                mp.ID,
			Name:              mp.Name,
			Config:            mp.Config,
			Strategy:          mp.Strategy,
			AggregateRestarts: mp.AggregateRestarts,
			InstanceCount:     len(mp.Instances),
		})
	}
	return s
}
