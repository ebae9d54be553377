package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/model"
)

// AlertWriter consumes alerts and writes to the alerts table.
type AlertWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the feed
	input <-chan feed.Update[model.Alert]

	// Destinations; either may be nil
	db      *pgxpool.Pool
	archive *Archive

	// Batching
	batch       []alertRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewAlertWriter creates a new AlertWriter.
func NewAlertWriter(
	cfg WriterConfig,
	input <-chan feed.Update[model.Alert],
	db *pgxpool.Pool,
	archive *Archive,
	logger *slog.Logger,
) *AlertWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		archive: archive,
		logger:  logger,
		batch:   make([]alertRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming updates and writing them out.
func (w *AlertWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("alert writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *AlertWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping alert writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("alert writer stopped")
	case <-ctx.Done():
		w.logger.Warn("alert writer stop timed out")
	}

	// Final flush runs on the stop context, not the canceled run context
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *AlertWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input channel until it closes.
func (w *AlertWriter) consumeLoop() {
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

// flushLoop periodically flushes the batch.
func (w *AlertWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleUpdate archives and batches one update.
func (w *AlertWriter) handleUpdate(up feed.Update[model.Alert]) {
	if up.Err != nil {
		w.batchMu.Lock()
		w.metrics.StreamErrors++
		w.batchMu.Unlock()
		w.logger.Warn("alert stream error", "error", up.Err)
		return
	}

	if w.archive != nil {
		if err := w.archive.Write(model.TypeAlert, up.ReceivedAt, up.Value); err != nil {
			w.logger.Error("archive write failed", "error", err)
		}
	}

	if w.db == nil {
		return
	}

	row := w.transform(up)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts an update to an alertRow.
func (w *AlertWriter) transform(up feed.Update[model.Alert]) alertRow {
	v := up.Value
	return alertRow{
		ID:         v.ID.String(),
		Severity:   v.Severity,
		Code:       v.Code,
		Message:    v.Message,
		Symbol:     v.Symbol,
		RaisedTS:   v.RaisedTS,
		Acked:      v.Acked,
		ReceivedAt: up.ReceivedAt.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (w *AlertWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]alertRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed alerts",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *AlertWriter) batchInsert(ctx context.Context, rows []alertRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO alerts (id, severity, code, message, symbol, raised_ts, acked, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Severity, r.Code, r.Message, r.Symbol, r.RaisedTS, r.Acked, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
