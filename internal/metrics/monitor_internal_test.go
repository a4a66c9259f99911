package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIssuesHighMemory(t *testing.T) {
	w := &watched{
		processID:  "p1",
		thresholds: Thresholds{MemoryThreshold: 100},
		history:    []Sample{{RSS: 200}},
	}
	issues := detectIssues(w)
	assertHasKind(t, issues, IssueHighMemory)
}

func TestDetectIssuesHighCPU(t *testing.T) {
	w := &watched{
		processID:  "p1",
		thresholds: Thresholds{CPUThreshold: 80},
		history:    []Sample{{CPUPercent: 95}},
	}
	issues := detectIssues(w)
	assertHasKind(t, issues, IssueHighCPU)
}

func TestDetectIssuesPossibleLeak(t *testing.T) {
	w := &watched{processID: "p1"}
	base := uint64(1000)
	for i := 0; i < 10; i++ {
		base += 150 // steadily growing, >20% over 10 samples
		w.history = append(w.history, Sample{RSS: base})
	}
	issues := detectIssues(w)
	assertHasKind(t, issues, IssuePossibleLeak)
}

func TestDetectIssuesNoLeakWhenStable(t *testing.T) {
	w := &watched{processID: "p1"}
	for i := 0; i < 10; i++ {
		w.history = append(w.history, Sample{RSS: 1000})
	}
	issues := detectIssues(w)
	assertNoKind(t, issues, IssuePossibleLeak)
}

func TestDetectIssuesCPUSpike(t *testing.T) {
	w := &watched{
		processID:  "p1",
		thresholds: Thresholds{CPUThreshold: 50},
	}
	for i := 0; i < 5; i++ {
		w.history = append(w.history, Sample{CPUPercent: 90})
	}
	issues := detectIssues(w)
	assertHasKind(t, issues, IssueCPUSpike)
}

func TestDetectIssuesEmptyHistory(t *testing.T) {
	w := &watched{processID: "p1"}
	assert.Empty(t, detectIssues(w))
}

func assertHasKind(t *testing.T, issues []Issue, kind IssueKind) {
	t.Helper()
	for _, i := range issues {
		if i.Kind == kind {
			return
		}
	}
	t.Fatalf("expected an issue of kind %s, got %+v", kind, issues)
}

func assertNoKind(t *testing.T, issues []Issue, kind IssueKind) {
	t.Helper()
	for _, i := range issues {
		if i.Kind == kind {
			t.Fatalf("did not expect issue of kind %s, got %+v", kind, i)
		}
	}
}
