package recorder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/model"
)

// CrawlWriter consumes crawl progress updates and appends them to the
// archive. Progress reports have no database table, so the archive is
// the only destination and there is no batching.
type CrawlWriter struct {
	logger *slog.Logger

	// Input, typically the merged channel from a tracker
	input <-chan feed.Update[model.CrawlProgress]

	archive *Archive

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	mu      sync.Mutex
	metrics CrawlMetrics
}

// CrawlMetrics counts CrawlWriter activity.
type CrawlMetrics struct {
	Archived     int64 // Progress reports written to the archive
	Errors       int64 // Archive write failures
	StreamErrors int64 // Error events received from the stream
}

// NewCrawlWriter creates a new CrawlWriter.
func NewCrawlWriter(
	input <-chan feed.Update[model.CrawlProgress],
	archive *Archive,
	logger *slog.Logger,
) *CrawlWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlWriter{
		logger:  logger,
		input:   input,
		archive: archive,
	}
}

// Start begins consuming updates.
func (w *CrawlWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.logger.Info("crawl writer started")
	return nil
}

// Stop gracefully shuts down the writer.
func (w *CrawlWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping crawl writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("crawl writer stopped")
	case <-ctx.Done():
		w.logger.Warn("crawl writer stop timed out")
	}

	return nil
}

// Stats returns current metrics.
func (w *CrawlWriter) Stats() CrawlMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input channel until it closes.
func (w *CrawlWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case up, ok := <-w.input:
			if !ok {
				return
			}
			w.handleUpdate(up)
		}
	}
}

// handleUpdate archives one update.
func (w *CrawlWriter) handleUpdate(up feed.Update[model.CrawlProgress]) {
	if up.Err != nil {
		w.mu.Lock()
		w.metrics.StreamErrors++
		w.mu.Unlock()
		w.logger.Warn("crawl stream error", "error", up.Err)
		return
	}

	if err := w.archive.Write(model.TypeCrawlProgress, up.ReceivedAt, up.Value); err != nil {
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		w.logger.Error("archive write failed", "error", err)
		return
	}

	w.mu.Lock()
	w.metrics.Archived++
	w.mu.Unlock()
}
