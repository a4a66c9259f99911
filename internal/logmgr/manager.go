package logmgr

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns the daemon's own log channel (backed by lumberjack, whose
// size-based rotation and gzip compression cover everything the daemon
// channel itself needs) plus one bespoke channel per ManagedProcess, and
// the shared ring buffer recent-log queries read from.
type Manager struct {
	dir      string
	maxSize  int64
	maxFiles int

	daemonLog *lumberjack.Logger

	mu       sync.Mutex
	channels map[string]*channel // processID -> channel

	ring *ring
}

const defaultRingSize = 2000

func New(dir string) (*Manager, error) {
	m := &Manager{
		dir:      dir,
		maxSize:  DefaultMaxLogSize,
		maxFiles: DefaultMaxLogFiles,
		channels: make(map[string]*channel),
		ring:     newRing(defaultRingSize),
	}
	m.daemonLog = &lumberjack.Logger{
		Filename: filepath.Join(dir, "daemon.log"),
		MaxSize:  int(DefaultMaxLogSize / (1024 * 1024)),
		MaxBackups: DefaultMaxLogFiles,
		Compress: true,
	}
	return m, nil
}

// Daemon returns an io.Writer suitable for zap's WriteSyncer wrapping —
// the daemon's operational log channel.
func (m *Manager) Daemon() *lumberjack.Logger { return m.daemonLog }

// LogDaemon records a structured entry to both the daemon channel and the
// ring buffer.
func (m *Manager) LogDaemon(level Level, message string, data map[string]any) {
	e := Entry{Timestamp: time.Now(), Level: level, Message: message, Data: data}
	m.ring.add(e)
	line, _ := json.Marshal(e)
	line = append(line, '\n')
	m.daemonLog.Write(line)
}

// WriteProcessLog satisfies orchestrator.LogSink: every stdout/stderr line
// from a supervised instance becomes one structured Entry, persisted to
// that ManagedProcess's channel and the ring buffer.
func (m *Manager) WriteProcessLog(processID, processName, stream string, line []byte) {
	level := LevelInfo
	if stream == "stderr" {
		level = LevelError
	}
	e := Entry{
		Timestamp:   time.Now(),
		Level:       level,
		ProcessID:   processID,
		ProcessName: processName,
		Message:     string(line),
	}
	m.ring.add(e)

	ch, err := m.channelFor(processID, processName)
	if err != nil {
		return
	}
	ch.write(e)
}

func (m *Manager) channelFor(processID, processName string) (*channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.channels[processID]; ok {
		return ch, nil
	}
	path := filepath.Join(m.dir, fmt.Sprintf("%s.log", processName))
	ch, err := newChannel(path, m.maxSize, m.maxFiles)
	if err != nil {
		return nil, err
	}
	m.channels[processID] = ch
	return ch, nil
}

// GetRecent implements spec.md §4.4's Query: up to `lines` entries from
// the ring buffer, newest first, optionally filtered by process.
func (m *Manager) GetRecent(lines int, processID string) []Entry {
	return m.ring.getRecent(lines, processID)
}

// Tail reads the last n lines of durable history for a ManagedProcess,
// reaching back into gzip archives if the active file alone doesn't have
// enough, for callers that want more than the ring buffer's retention
// window.
func (m *Manager) Tail(processID, processName string, n int) ([]Entry, error) {
	ch, err := m.channelFor(processID, processName)
	if err != nil {
		return nil, err
	}

	ch.mu.Lock()
	path, maxFiles := ch.path, ch.maxFiles
	ch.mu.Unlock()

	lines, err := readEntries(path)
	if err != nil {
		return nil, err
	}

	for i := 1; i <= maxFiles && len(lines) < n; i++ {
		raw, err := decompressGzip(ch.archivePath(i))
		if err != nil {
			break
		}
		lines = append(parseEntries(raw), lines...)
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func readEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err == nil {
			lines = append(lines, e)
		}
	}
	return lines, scanner.Err()
}

func parseEntries(raw []byte) []Entry {
	var out []Entry
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// Close flushes and closes every channel and the daemon log, per
// spec.md §4.7's shutdown sequence ("flush and close the Log Manager").
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, ch := range m.channels {
		if err := ch.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.daemonLog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
