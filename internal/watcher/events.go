// Package watcher watches a set of directory roots recursively and emits
// a debounced stream of file-change events (spec.md §4.3).
package watcher

import "time"

type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeModify ChangeType = "change"
	ChangeUnlink ChangeType = "unlink"
)

// FileChangeEvent is emitted once per settled change, after debouncing and
// content-hash dedup have collapsed the raw OS events.
type FileChangeEvent struct {
	Type         ChangeType
	AbsolutePath string
	DetectedAt   time.Time
}
