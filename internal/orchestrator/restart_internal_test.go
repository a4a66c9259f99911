package orchestrator

import (
	"testing"
	"time"

	"github.com/noded/noded/internal/config"
	"github.com/stretchr/testify/assert"
)

func testConfig(instances, interpreter string) config.ProcessConfig {
	return config.ProcessConfig{Script: "app.js", Instances: instances, Interpreter: interpreter}
}

func TestBackoffDelayDoublesUntilCeiling(t *testing.T) {
	base := 100 * time.Millisecond
	max := 1 * time.Second

	assert.Equal(t, 100*time.Millisecond, backoffDelay(base, max, 0))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(base, max, 1))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, max, 2))
	assert.Equal(t, 800*time.Millisecond, backoffDelay(base, max, 3))
	assert.Equal(t, max, backoffDelay(base, max, 4))
	assert.Equal(t, max, backoffDelay(base, max, 10))
}

func TestBackoffDelayDefaultsBaseWhenZero(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(0, 5*time.Second, 0))
}

func TestResolveInstancesPicksStrategy(t *testing.T) {
	forkCfg := testConfig("1", "")
	n, strategy, err := resolveInstances(forkCfg)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StrategyFork, strategy)

	spawnCfg := testConfig("1", "node")
	_, strategy, err = resolveInstances(spawnCfg)
	assert.NoError(t, err)
	assert.Equal(t, StrategySpawn, strategy)

	clusterCfg := testConfig("4", "node")
	n, strategy, err = resolveInstances(clusterCfg)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, StrategyCluster, strategy)
}

func TestResolveInstancesRejectsInvalid(t *testing.T) {
	_, _, err := resolveInstances(testConfig("not-a-number", ""))
	assert.Error(t, err)
}
