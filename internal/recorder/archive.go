package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ErrArchiveClosed is returned by Write after Close.
var ErrArchiveClosed = errors.New("archive closed")

// Archive appends feed updates to zstd-compressed NDJSON segment files.
// Segments rotate once maxBytes of uncompressed data have been written.
type Archive struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger

	mu      sync.Mutex
	file    *os.File
	enc     *zstd.Encoder
	written int64
	lines   int64
	seq     int
	closed  bool
}

// archiveLine is one NDJSON record.
type archiveLine struct {
	Type       string `json:"type"`
	ReceivedAt int64  `json:"received_at"` // Microseconds
	Data       any    `json:"data"`
}

// NewArchive creates the archive directory if needed and opens the first segment.
func NewArchive(dir string, maxBytes int64, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	a := &Archive{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger,
	}
	if err := a.openSegment(); err != nil {
		return nil, err
	}
	return a, nil
}

// Write appends one update as a JSON line, rotating the segment when full.
func (a *Archive) Write(eventType string, receivedAt time.Time, data any) error {
	line, err := json.Marshal(archiveLine{
		Type:       eventType,
		ReceivedAt: receivedAt.UnixMicro(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal archive line: %w", err)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArchiveClosed
	}
	if a.written >= a.maxBytes {
		if err := a.rotate(); err != nil {
			return err
		}
	}

	n, err := a.enc.Write(line)
	a.written += int64(n)
	if err != nil {
		return fmt.Errorf("write archive line: %w", err)
	}
	a.lines++
	return nil
}

// Lines returns the total number of records written across all segments.
func (a *Archive) Lines() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lines
}

// Close flushes and closes the current segment. Safe to call twice.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	return a.closeSegment()
}

// rotate closes the current segment and opens a fresh one. Caller holds mu.
func (a *Archive) rotate() error {
	if err := a.closeSegment(); err != nil {
		return err
	}
	return a.openSegment()
}

// openSegment opens a new segment file. Caller holds mu (or owns a exclusively).
func (a *Archive) openSegment() error {
	a.seq++
	name := fmt.Sprintf("feed-%s-%04d.ndjson.zst",
		time.Now().UTC().Format("20060102T150405Z"), a.seq)

	f, err := os.Create(filepath.Join(a.dir, name))
	if err != nil {
		return fmt.Errorf("create archive segment: %w", err)
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("create zstd writer: %w", err)
	}

	a.file = f
	a.enc = enc
	a.written = 0

	a.logger.Info("opened archive segment", "path", f.Name())
	return nil
}

// closeSegment flushes the encoder and closes the file. Caller holds mu.
func (a *Archive) closeSegment() error {
	if a.enc == nil {
		return nil
	}

	encErr := a.enc.Close()
	fileErr := a.file.Close()
	a.enc = nil
	a.file = nil

	if encErr != nil {
		return fmt.Errorf("close zstd writer: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("close archive segment: %w", fileErr)
	}
	return nil
}
