package logmgr

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultMaxLogSize is MAX_LOG_SIZE from spec.md §4.4.
	DefaultMaxLogSize int64 = 10 * 1024 * 1024
	// DefaultMaxLogFiles is MAX_LOG_FILES from spec.md §4.4.
	DefaultMaxLogFiles = 5
)

// channel is one logical log stream: the daemon's own, or one per
// ManagedProcess. It owns the active file and performs the bespoke
// index-shift rotation the spec requires (lumberjack is used only for the
// daemon's own log file, which Manager writes directly, where the exact
// archive-numbering contract doesn't apply).
type channel struct {
	mu          sync.Mutex
	path        string
	maxSize     int64
	maxFiles    int
	file        *os.File
	size        int64
}

func newChannel(path string, maxSize int64, maxFiles int) (*channel, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxLogFiles
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	c := &channel{path: path, maxSize: maxSize, maxFiles: maxFiles}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *channel) open() error {
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	c.file = f
	c.size = stat.Size()
	return nil
}

// write appends one JSON-per-line record, rotating first if the write
// would push the active file past maxSize.
func (c *channel) write(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size+int64(len(line)) > c.maxSize {
		if err := c.rotate(); err != nil {
			return err
		}
	}

	n, err := c.file.Write(line)
	c.size += int64(n)
	return err
}

// rotate implements spec.md §4.4's exact contract:
//  1. shift archives from MAX_LOG_FILES-1 down to 1, renaming base.i.log.gz
//     to base.(i+1).log.gz, dropping the one that would exceed MAX_LOG_FILES
//  2. compress the active file into base.1.log.gz
//  3. truncate/recreate the active file
func (c *channel) rotate() error {
	for i := c.maxFiles - 1; i >= 1; i-- {
		from := c.archivePath(i)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		// Renaming onto base.(i+1).log.gz overwrites whatever oldest
		// archive was sitting there, which is the deletion spec.md §4.4
		// describes for the slot that would fall past MAX_LOG_FILES.
		if err := os.Rename(from, c.archivePath(i+1)); err != nil {
			return fmt.Errorf("shift archive %d: %w", i, err)
		}
	}

	if err := c.file.Close(); err != nil {
		return fmt.Errorf("close active log before rotation: %w", err)
	}

	if err := compressToGzip(c.path, c.archivePath(1)); err != nil {
		return fmt.Errorf("compress active log: %w", err)
	}

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old active log: %w", err)
	}

	return c.open()
}

func (c *channel) archivePath(i int) string {
	return fmt.Sprintf("%s.%d.log.gz", c.path, i)
}

// compressToGzip streams source into a gzip-compressed destination. Any
// failure tears down all three streams (source, gzip writer, destination)
// and is returned through rotate and write; Manager.WriteProcessLog
// discards that error, so a failed rotation is not logged.
func compressToGzip(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

func (c *channel) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}

// decompressGzip is used by Manager.Tail when reading archived
// segments; kept here rather than bufio-scanning the raw file so callers
// never need to know a segment is compressed.
func decompressGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, gr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
