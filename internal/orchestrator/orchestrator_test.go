package orchestrator_test

import (
	"testing"
	"time"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type discardSink struct{}

func (discardSink) WriteProcessLog(processID, processName, stream string, line []byte) {}

func newTestOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(zap.NewNop(), discardSink{})
}

func TestStartAndList(t *testing.T) {
	o := newTestOrchestrator()
	mp, err := o.Start(config.ProcessConfig{Name: "echoer", Script: "echo", Args: []string{"hi"}})
	require.NoError(t, err)
	assert.Equal(t, "echoer", mp.Name)
	assert.Len(t, mp.Instances, 1)

	list := o.List()
	require.Len(t, list, 1)
	assert.Equal(t, mp.ID, list[0].ID)
}

func TestStartDuplicateNameRejected(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.Start(config.ProcessConfig{Name: "dup", Script: "sleep", Args: []string{"5"}})
	require.NoError(t, err)

	_, err = o.Start(config.ProcessConfig{Name: "dup", Script: "sleep", Args: []string{"5"}})
	require.Error(t, err)
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.ErrAlreadyExists, cfgErr.Kind)

	require.NoError(t, o.Stop(mustFind(t, o, "dup").ID, true))
}

func TestStopTransitionsToStopped(t *testing.T) {
	o := newTestOrchestrator()
	mp, err := o.Start(config.ProcessConfig{Name: "sleeper", Script: "sleep", Args: []string{"10"}})
	require.NoError(t, err)

	require.NoError(t, o.Stop(mp.ID, false))

	got, err := o.Get(mp.ID)
	require.NoError(t, err)
	snap := got.Snapshot()
	assert.Equal(t, orchestrator.StatusStopped, snap.Status)
}

func TestDeleteRequiresStopped(t *testing.T) {
	o := newTestOrchestrator()
	mp, err := o.Start(config.ProcessConfig{Name: "keepalive", Script: "sleep", Args: []string{"10"}})
	require.NoError(t, err)

	err = o.Delete(mp.ID)
	require.Error(t, err)
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.ErrInvalidConfig, cfgErr.Kind)

	require.NoError(t, o.Stop(mp.ID, false))
	require.NoError(t, o.Delete(mp.ID))

	_, err = o.Get(mp.ID)
	require.Error(t, err)
}

func TestGetByNameAndFind(t *testing.T) {
	o := newTestOrchestrator()
	mp, err := o.Start(config.ProcessConfig{Name: "byname", Script: "sleep", Args: []string{"5"}})
	require.NoError(t, err)
	defer o.Stop(mp.ID, true)

	byName, err := o.GetByName("byname")
	require.NoError(t, err)
	assert.Equal(t, mp.ID, byName.ID)

	byEither, err := o.Find(mp.ID)
	require.NoError(t, err)
	assert.Equal(t, mp.ID, byEither.ID)

	byEither, err = o.Find("byname")
	require.NoError(t, err)
	assert.Equal(t, mp.ID, byEither.ID)
}

func TestSubscribeReceivesProcessStarted(t *testing.T) {
	o := newTestOrchestrator()
	events := o.Subscribe()

	mp, err := o.Start(config.ProcessConfig{Name: "subscribed", Script: "echo"})
	require.NoError(t, err)
	defer o.Stop(mp.ID, true)

	// Start emits one instanceStarted per instance before processStarted,
	// and the short-lived child may already have produced an instanceExit.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == orchestrator.EventInstanceStarted || ev.Kind == orchestrator.EventInstanceExit {
				continue
			}
			assert.Equal(t, orchestrator.EventProcessStarted, ev.Kind)
			assert.Equal(t, mp.ID, ev.Process.ID)
			return
		case <-deadline:
			t.Fatal("timed out waiting for processStarted event")
		}
	}
}

func TestShutdownStopsEverything(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.Start(config.ProcessConfig{Name: "a", Script: "sleep", Args: []string{"10"}})
	require.NoError(t, err)
	_, err = o.Start(config.ProcessConfig{Name: "b", Script: "sleep", Args: []string{"10"}})
	require.NoError(t, err)

	o.Shutdown()

	for _, mp := range o.List() {
		assert.Equal(t, orchestrator.StatusStopped, mp.Status)
	}
}

func mustFind(t *testing.T, o *orchestrator.Orchestrator, name string) *orchestrator.ManagedProcess {
	t.Helper()
	mp, err := o.GetByName(name)
	require.NoError(t, err)
	return mp
}
