package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/stratvault/deskfeed/internal/model"
)

// readArchiveLines decompresses every segment in dir, in name order.
func readArchiveLines(t *testing.T, dir string) []archiveLine {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}

	var lines []archiveLine
	for _, e := range entries {
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("open segment %s: %v", e.Name(), err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd reader for %s: %v", e.Name(), err)
		}
		scanner := bufio.NewScanner(dec)
		for scanner.Scan() {
			var line archiveLine
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
			}
			lines = append(lines, line)
		}
		if err := scanner.Err(); err != nil {
			t.Fatalf("scan segment %s: %v", e.Name(), err)
		}
		dec.Close()
		f.Close()
	}
	return lines
}

func countSegments(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	return len(entries)
}

func TestArchive_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}

	receivedAt := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	updates := []model.PositionUpdate{
		{Symbol: "AAPL", Account: "desk-1", Quantity: 100},
		{Symbol: "MSFT", Account: "desk-1", Quantity: -50},
		{Symbol: "NVDA", Account: "desk-2", Quantity: 10},
	}
	for _, u := range updates {
		if err := a.Write(model.TypePosition, receivedAt, u); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if a.Lines() != 3 {
		t.Errorf("Lines() = %d, want 3", a.Lines())
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := readArchiveLines(t, dir)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		if line.Type != model.TypePosition {
			t.Errorf("line %d type = %q, want %q", i, line.Type, model.TypePosition)
		}
		if line.ReceivedAt != receivedAt.UnixMicro() {
			t.Errorf("line %d received_at = %d, want %d", i, line.ReceivedAt, receivedAt.UnixMicro())
		}
		data, ok := line.Data.(map[string]any)
		if !ok {
			t.Fatalf("line %d data is %T, want object", i, line.Data)
		}
		if data["Symbol"] != updates[i].Symbol {
			t.Errorf("line %d symbol = %v, want %s", i, data["Symbol"], updates[i].Symbol)
		}
	}
}

func TestArchive_Rotation(t *testing.T) {
	dir := t.TempDir()

	// One byte per segment: every write after the first rotates
	a, err := NewArchive(dir, 1, nil)
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		u := model.PositionUpdate{Symbol: "AAPL", Quantity: int64(i)}
		if err := a.Write(model.TypePosition, time.Now(), u); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := countSegments(t, dir); got != 3 {
		t.Errorf("segment count = %d, want 3", got)
	}

	lines := readArchiveLines(t, dir)
	if len(lines) != 3 {
		t.Fatalf("got %d lines across segments, want 3", len(lines))
	}
}

func TestArchive_WriteAfterClose(t *testing.T) {
	a, err := NewArchive(t.TempDir(), 1<<20, nil)
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err = a.Write(model.TypePosition, time.Now(), model.PositionUpdate{Symbol: "AAPL"})
	if !errors.Is(err, ErrArchiveClosed) {
		t.Errorf("Write after close = %v, want ErrArchiveClosed", err)
	}
}

func TestArchive_CloseTwice(t *testing.T) {
	a, err := NewArchive(t.TempDir(), 1<<20, nil)
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}
