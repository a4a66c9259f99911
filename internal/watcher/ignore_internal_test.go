package watcher

import "testing"

func TestMatchesIgnoreDirectoryName(t *testing.T) {
	if !matchesIgnore("/repo/node_modules/pkg/index.js", DefaultIgnorePatterns) {
		t.Fatal("expected node_modules path to be ignored")
	}
}

func TestMatchesIgnoreGlobPattern(t *testing.T) {
	if !matchesIgnore("/var/log/app.log", []string{"*.log"}) {
		t.Fatal("expected *.log to match app.log")
	}
}

func TestMatchesIgnoreNoMatch(t *testing.T) {
	if matchesIgnore("/repo/src/main.go", DefaultIgnorePatterns) {
		t.Fatal("did not expect src/main.go to be ignored")
	}
}
