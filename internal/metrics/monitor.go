package metrics

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCheckInterval = 5 * time.Second
	MinCheckInterval     = 1 * time.Second
	maxHistory           = 100
	leakWindow           = 10
	leakMinGrowthSteps   = 8
	leakGrowthRatio      = 0.20
	spikeWindow          = 5
	spikeCPUMultiplier   = 1.5
)

type IssueKind string

const (
	IssueHighMemory    IssueKind = "highMemory"
	IssueHighCPU       IssueKind = "highCPU"
	IssuePossibleLeak  IssueKind = "possibleLeak"
	IssueCPUSpike      IssueKind = "cpuSpike"
)

type Issue struct {
	ProcessID string
	Kind      IssueKind
	Value     float64
	Threshold float64
}

// Thresholds mirrors the autoRestartOnHigh*/*Threshold knobs on
// config.ProcessConfig that the monitor needs per watched process,
// without importing the config package and creating a cycle back
// through orchestrator.
type Thresholds struct {
	MemoryThreshold         int64
	AutoRestartOnHighMemory bool
	CPUThreshold            float64
	AutoRestartOnHighCPU    bool
}

// watched is the monitor's view of one live instance.
type watched struct {
	processID   string
	processName string
	pid         int32
	thresholds  Thresholds
	history     []Sample
}

// Monitor periodically samples every registered instance and emits
// health issues and recycle triggers (spec.md §4.2).
type Monitor struct {
	log          *zap.Logger
	sampler      *Sampler
	checkInterval time.Duration

	mu       sync.Mutex
	byPID    map[int32]*watched
	recycling map[string]bool // processID -> recycle in flight

	onIssues  func([]Issue)
	onRecycle func(processID string)

	stop chan struct{}
	once sync.Once
}

func NewMonitor(log *zap.Logger, checkInterval time.Duration, onIssues func([]Issue), onRecycle func(processID string)) *Monitor {
	if checkInterval < MinCheckInterval {
		checkInterval = DefaultCheckInterval
	}
	m := &Monitor{
		log:           log,
		sampler:       NewSampler(),
		checkInterval: checkInterval,
		byPID:         make(map[int32]*watched),
		recycling:     make(map[string]bool),
		onIssues:      onIssues,
		onRecycle:     onRecycle,
		stop:          make(chan struct{}),
	}
	go m.loop()
	return m
}

// Add registers a PID for periodic sampling (spec.md §4.2 Contract).
func (m *Monitor) Add(processID, processName string, pid int32, thresholds Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPID[pid] = &watched{processID: processID, processName: processName, pid: pid, thresholds: thresholds}
}

// Update refreshes an instance's thresholds without resetting its sample
// history, e.g. after a config reload.
func (m *Monitor) Update(pid int32, thresholds Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.byPID[pid]; ok {
		w.thresholds = thresholds
	}
}

// Remove stops tracking a PID (spec.md §4.2 Contract).
func (m *Monitor) Remove(pid int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byPID, pid)
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.runCycle()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) runCycle() {
	m.mu.Lock()
	targets := make([]*watched, 0, len(m.byPID))
	for _, w := range m.byPID {
		targets = append(targets, w)
	}
	m.mu.Unlock()

	var issues []Issue
	for _, w := range targets {
		sample, err := m.sampler.Sample(w.pid)
		if err != nil {
			m.log.Warn("metric sampler could not resolve pid", zap.Int32("pid", w.pid), zap.Error(err))
			continue
		}

		m.mu.Lock()
		w.history = append(w.history, sample)
		if len(w.history) > maxHistory {
			w.history = w.history[len(w.history)-maxHistory:]
		}
		found := detectIssues(w)
		m.mu.Unlock()

		issues = append(issues, found...)
	}

	if len(issues) > 0 && m.onIssues != nil {
		m.onIssues(issues)
	}

	for _, issue := range issues {
		m.maybeRecycle(issue)
	}
}

// detectIssues applies spec.md §4.2's four rules to one instance's
// current history. Caller holds m.mu.
func detectIssues(w *watched) []Issue {
	var issues []Issue
	if len(w.history) == 0 {
		return issues
	}
	latest := w.history[len(w.history)-1]

	if w.thresholds.MemoryThreshold > 0 && int64(latest.RSS) > w.thresholds.MemoryThreshold {
		issues = append(issues, Issue{ProcessID: w.processID, Kind: IssueHighMemory, Value: float64(latest.RSS), Threshold: float64(w.thresholds.MemoryThreshold)})
	}
	if w.thresholds.CPUThreshold > 0 && latest.CPUPercent >= w.thresholds.CPUThreshold {
		issues = append(issues, Issue{ProcessID: w.processID, Kind: IssueHighCPU, Value: latest.CPUPercent, Threshold: w.thresholds.CPUThreshold})
	}

	if len(w.history) >= leakWindow {
		recent := w.history[len(w.history)-leakWindow:]
		grown := 0
		for i := 1; i < len(recent); i++ {
			if recent[i].RSS > recent[i-1].RSS {
				grown++
			}
		}
		first := float64(recent[0].RSS)
		last := float64(recent[len(recent)-1].RSS)
		if grown >= leakMinGrowthSteps && first > 0 && (last-first)/first > leakGrowthRatio {
			issues = append(issues, Issue{ProcessID: w.processID, Kind: IssuePossibleLeak, Value: last, Threshold: first * (1 + leakGrowthRatio)})
		}
	}

	if len(w.history) >= spikeWindow && w.thresholds.CPUThreshold > 0 {
		recent := w.history[len(w.history)-spikeWindow:]
		var sum float64
		for _, s := range recent {
			sum += s.CPUPercent
		}
		mean := sum / float64(len(recent))
		if mean > w.thresholds.CPUThreshold*spikeCPUMultiplier {
			issues = append(issues, Issue{ProcessID: w.processID, Kind: IssueCPUSpike, Value: mean, Threshold: w.thresholds.CPUThreshold * spikeCPUMultiplier})
		}
	}

	return issues
}

// maybeRecycle asks the Daemon Core to restart a ManagedProcess when its
// autoRestartOnHigh* flag is set for the issue that fired, enforcing
// at-most-one recycle in flight per process (spec.md §4.2 Recycle
// triggers).
func (m *Monitor) maybeRecycle(issue Issue) {
	m.mu.Lock()
	w := m.findByProcessID(issue.ProcessID)
	if w == nil {
		m.mu.Unlock()
		return
	}
	trigger := false
	switch issue.Kind {
	case IssueHighMemory, IssuePossibleLeak:
		trigger = w.thresholds.AutoRestartOnHighMemory
	case IssueHighCPU, IssueCPUSpike:
		trigger = w.thresholds.AutoRestartOnHighCPU
	}
	if !trigger || m.recycling[issue.ProcessID] {
		m.mu.Unlock()
		return
	}
	m.recycling[issue.ProcessID] = true
	m.mu.Unlock()

	if m.onRecycle != nil {
		m.onRecycle(issue.ProcessID)
	}
}

// ClearRecycle releases the in-flight recycle flag once the Daemon Core's
// restart call has completed, so a later issue can trigger another one.
func (m *Monitor) ClearRecycle(processID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recycling, processID)
}

func (m *Monitor) findByProcessID(processID string) *watched {
	for _, w := range m.byPID {
		if w.processID == processID {
			return w
		}
	}
	return nil
}

// Close stops the sampling loop.
func (m *Monitor) Close() {
	m.once.Do(func() { close(m.stop) })
}
