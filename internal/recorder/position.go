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

// PositionWriter consumes position updates and writes to the position_updates table.
type PositionWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the feed
	input <-chan feed.Update[model.PositionUpdate]

	// Destinations; either may be nil
	db      *pgxpool.Pool
	archive *Archive

	// Batching
	batch       []positionRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewPositionWriter creates a new PositionWriter.
func NewPositionWriter(
	cfg WriterConfig,
	input <-chan feed.Update[model.PositionUpdate],
	db *pgxpool.Pool,
	archive *Archive,
	logger *slog.Logger,
) *PositionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		archive: archive,
		logger:  logger,
		batch:   make([]positionRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming updates and writing them out.
func (w *PositionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("position writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *PositionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping position writer")

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
		w.logger.Info("position writer stopped")
	case <-ctx.Done():
		w.logger.Warn("position writer stop timed out")
	}

	// Final flush runs on the stop context, not the canceled run context
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *PositionWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input channel until it closes.
func (w *PositionWriter) consumeLoop() {
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
func (w *PositionWriter) flushLoop() {
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
func (w *PositionWriter) handleUpdate(up feed.Update[model.PositionUpdate]) {
	if up.Err != nil {
		w.batchMu.Lock()
		w.metrics.StreamErrors++
		w.batchMu.Unlock()
		w.logger.Warn("position stream error", "error", up.Err)
		return
	}

	if w.archive != nil {
		if err := w.archive.Write(model.TypePosition, up.ReceivedAt, up.Value); err != nil {
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

// transform converts an update to a positionRow.
func (w *PositionWriter) transform(up feed.Update[model.PositionUpdate]) positionRow {
	v := up.Value
	return positionRow{
		Symbol:        v.Symbol,
		Account:       v.Account,
		Quantity:      v.Quantity,
		AvgPrice:      v.AvgPrice,
		MarkPrice:     v.MarkPrice,
		UnrealizedPnL: v.UnrealizedPnL,
		UpdatedTS:     v.UpdatedTS,
		ReceivedAt:    up.ReceivedAt.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (w *PositionWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]positionRow, 0, w.cfg.BatchSize)
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

	w.logger.Debug("flushed positions",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *PositionWriter) batchInsert(ctx context.Context, rows []positionRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO position_updates (symbol, account, quantity, avg_price, mark_price, unrealized_pnl, updated_ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, account, updated_ts) DO NOTHING
		`, r.Symbol, r.Account, r.Quantity, r.AvgPrice, r.MarkPrice, r.UnrealizedPnL, r.UpdatedTS, r.ReceivedAt)
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
