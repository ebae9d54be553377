package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/stream"
)

// Recorder subscribes to the position, fill, and alert streams and runs one
// batch writer per stream. db and archive are each optional, but at least
// one must be set.
type Recorder struct {
	cfg     WriterConfig
	logger  *slog.Logger
	feed    feed.Feed
	db      *pgxpool.Pool
	archive *Archive

	positions *PositionWriter
	fills     *FillWriter
	alerts    *AlertWriter
	cancels   []stream.CancelFunc
}

// New creates a Recorder. Pass a nil db for archive-only recording.
func New(f feed.Feed, db *pgxpool.Pool, archive *Archive, cfg WriterConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:     cfg,
		logger:  logger,
		feed:    f,
		db:      db,
		archive: archive,
	}
}

// Start subscribes to all recorded streams and starts the writers.
func (r *Recorder) Start(ctx context.Context) error {
	if r.db == nil && r.archive == nil {
		return errors.New("recorder needs a database or an archive")
	}

	positions, err := r.feed.Positions()
	if err != nil {
		return fmt.Errorf("subscribe positions: %w", err)
	}
	r.cancels = append(r.cancels, positions.Cancel)

	fills, err := r.feed.Trades()
	if err != nil {
		r.cancelAll()
		return fmt.Errorf("subscribe trades: %w", err)
	}
	r.cancels = append(r.cancels, fills.Cancel)

	alerts, err := r.feed.Alerts()
	if err != nil {
		r.cancelAll()
		return fmt.Errorf("subscribe alerts: %w", err)
	}
	r.cancels = append(r.cancels, alerts.Cancel)

	r.positions = NewPositionWriter(r.cfg, positions.Updates, r.db, r.archive, r.logger)
	r.fills = NewFillWriter(r.cfg, fills.Updates, r.db, r.archive, r.logger)
	r.alerts = NewAlertWriter(r.cfg, alerts.Updates, r.db, r.archive, r.logger)

	if err := r.positions.Start(ctx); err != nil {
		return fmt.Errorf("start position writer: %w", err)
	}
	if err := r.fills.Start(ctx); err != nil {
		return fmt.Errorf("start fill writer: %w", err)
	}
	if err := r.alerts.Start(ctx); err != nil {
		return fmt.Errorf("start alert writer: %w", err)
	}

	r.logger.Info("recorder started",
		"database", r.db != nil,
		"archive", r.archive != nil,
	)
	return nil
}

// Stop cancels the subscriptions, stops the writers, and closes the archive.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	// Cancel subscriptions first so writer inputs drain and close.
	r.cancelAll()

	if r.positions != nil {
		if err := r.positions.Stop(ctx); err != nil {
			r.logger.Error("stop position writer", "error", err)
		}
	}
	if r.fills != nil {
		if err := r.fills.Stop(ctx); err != nil {
			r.logger.Error("stop fill writer", "error", err)
		}
	}
	if r.alerts != nil {
		if err := r.alerts.Stop(ctx); err != nil {
			r.logger.Error("stop alert writer", "error", err)
		}
	}

	if r.archive != nil {
		if err := r.archive.Close(); err != nil {
			return fmt.Errorf("close archive: %w", err)
		}
	}

	r.logger.Info("recorder stopped")
	return nil
}

// Stats returns per-stream writer metrics.
func (r *Recorder) Stats() map[string]WriterMetrics {
	stats := make(map[string]WriterMetrics, 3)
	if r.positions != nil {
		stats["positions"] = r.positions.Stats()
	}
	if r.fills != nil {
		stats["fills"] = r.fills.Stats()
	}
	if r.alerts != nil {
		stats["alerts"] = r.alerts.Stats()
	}
	return stats
}

func (r *Recorder) cancelAll() {
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = nil
}
