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

// FillWriter consumes trade fills and writes to the trade_fills table.
type FillWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the feed
	input <-chan feed.Update[model.TradeFill]

	// Destinations; either may be nil
	db      *pgxpool.Pool
	archive *Archive

	// Batching
	batch       []fillRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewFillWriter creates a new FillWriter.
func NewFillWriter(
	cfg WriterConfig,
	input <-chan feed.Update[model.TradeFill],
	db *pgxpool.Pool,
	archive *Archive,
	logger *slog.Logger,
) *FillWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FillWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		archive: archive,
		logger:  logger,
		batch:   make([]fillRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming updates and writing them out.
func (w *FillWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("fill writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *FillWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping fill writer")

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
		w.logger.Info("fill writer stopped")
	case <-ctx.Done():
		w.logger.Warn("fill writer stop timed out")
	}

	// Final flush runs on the stop context, not the canceled run context
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *FillWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input channel until it closes.
func (w *FillWriter) consumeLoop() {
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
func (w *FillWriter) flushLoop() {
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
func (w *FillWriter) handleUpdate(up feed.Update[model.TradeFill]) {
	if up.Err != nil {
		w.batchMu.Lock()
		w.metrics.StreamErrors++
		w.batchMu.Unlock()
		w.logger.Warn("fill stream error", "error", up.Err)
		return
	}

	if w.archive != nil {
		if err := w.archive.Write(model.TypeFill, up.ReceivedAt, up.Value); err != nil {
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

// transform converts an update to a fillRow.
func (w *FillWriter) transform(up feed.Update[model.TradeFill]) fillRow {
	v := up.Value
	return fillRow{
		ID:         v.ID.String(),
		Symbol:     v.Symbol,
		Account:    v.Account,
		Side:       v.Side,
		Price:      v.Price,
		Quantity:   v.Quantity,
		Venue:      v.Venue,
		ExecutedTS: v.ExecutedTS,
		ReceivedAt: up.ReceivedAt.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (w *FillWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]fillRow, 0, w.cfg.BatchSize)
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

	w.logger.Debug("flushed fills",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *FillWriter) batchInsert(ctx context.Context, rows []fillRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO trade_fills (id, symbol, account, side, price, quantity, venue, executed_ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Symbol, r.Account, r.Side, r.Price, r.Quantity, r.Venue, r.ExecutedTS, r.ReceivedAt)
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
