package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/model"
)

func TestCrawlWriter_ArchivesUpdates(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir, 64<<20, nil)
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}

	input := make(chan feed.Update[model.CrawlProgress], 4)
	w := NewCrawlWriter(input, archive, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	now := time.Now()
	input <- feed.Update[model.CrawlProgress]{
		Value: model.CrawlProgress{
			TaskID:     "t1",
			Source:     "edgar",
			PagesDone:  3,
			PagesTotal: 10,
			ItemsFound: 120,
			Status:     "running",
			UpdatedTS:  1755700000000000,
		},
		ReceivedAt: now,
	}
	input <- feed.Update[model.CrawlProgress]{Err: errors.New("decode failed"), ReceivedAt: now}
	input <- feed.Update[model.CrawlProgress]{
		Value:      model.CrawlProgress{TaskID: "t1", Status: "done"},
		ReceivedAt: now,
	}
	close(input)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if w.Stats().Archived == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	stats := w.Stats()
	if stats.Archived != 2 {
		t.Errorf("Archived = %d, want 2", stats.Archived)
	}
	if stats.StreamErrors != 1 {
		t.Errorf("StreamErrors = %d, want 1", stats.StreamErrors)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}

	lines := readArchiveLines(t, dir)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	for _, line := range lines {
		if line.Type != model.TypeCrawlProgress {
			t.Errorf("Type = %q, want %q", line.Type, model.TypeCrawlProgress)
		}
	}
}

func TestCrawlWriter_ArchiveClosed(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir, 64<<20, nil)
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	input := make(chan feed.Update[model.CrawlProgress], 1)
	w := NewCrawlWriter(input, archive, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	input <- feed.Update[model.CrawlProgress]{
		Value:      model.CrawlProgress{TaskID: "t1", Status: "running"},
		ReceivedAt: time.Now(),
	}
	close(input)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if w.Stats().Errors == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	stats := w.Stats()
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Archived != 0 {
		t.Errorf("Archived = %d, want 0", stats.Archived)
	}
}

func TestCrawlWriter_StopsWhenInputCloses(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir, 64<<20, nil)
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	defer archive.Close()

	input := make(chan feed.Update[model.CrawlProgress])
	w := NewCrawlWriter(input, archive, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	close(input)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
