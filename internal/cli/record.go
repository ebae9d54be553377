package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/stratvault/deskfeed/internal/database"
	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/recorder"
	"github.com/stratvault/deskfeed/internal/stream"
	"github.com/stratvault/deskfeed/internal/tracker"
	"github.com/stratvault/deskfeed/internal/version"
)

// NewRecordCommand constructs the `record` daemon command.
func NewRecordCommand() *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Record console streams to Postgres and archive segments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			archiveDir, _ := cmd.Flags().GetString("archive-dir")
			statsInterval, _ := cmd.Flags().GetDuration("stats-interval")
			trackCrawl, _ := cmd.Flags().GetBool("track-crawl")
			crawlPoll, _ := cmd.Flags().GetDuration("crawl-poll")

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if archiveDir == "" {
				archiveDir = cfg.Recorder.ArchiveDir
			}

			logger := slog.Default()
			logger.Info("starting recorder",
				"version", version.Version,
				"commit", version.Commit,
				"instance_id", cfg.Instance.ID,
				"ws_url", cfg.Console.WSURL,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var db *pgxpool.Pool
			if cfg.HasDatabase() {
				logger.Info("connecting to database",
					"host", cfg.Database.Host,
					"port", cfg.Database.Port,
					"database", cfg.Database.Name,
				)
				db, err = database.Connect(ctx, cfg.Database)
				if err != nil {
					return fmt.Errorf("connect database: %w", err)
				}
				defer db.Close()
				logger.Info("database connected")
			}

			var archive *recorder.Archive
			if archiveDir != "" {
				archive, err = recorder.NewArchive(archiveDir, cfg.Recorder.ArchiveMaxBytes, logger)
				if err != nil {
					return fmt.Errorf("open archive: %w", err)
				}
			}

			f, err := feed.New(streamConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer f.Close()

			rec := recorder.New(f, db, archive, recorder.WriterConfig{
				BatchSize:     cfg.Recorder.BatchSize,
				FlushInterval: cfg.Recorder.FlushInterval,
			}, logger)

			// Crawl progress is archived only, so tracking needs an archive.
			var tr *tracker.Tracker
			var crawlWriter *recorder.CrawlWriter
			if trackCrawl && archive != nil {
				tr = tracker.New(tracker.Config{
					PollInterval: crawlPoll,
					QueueSize:    cfg.Stream.QueueSize,
				}, newAPIClient(cfg), f, logger)
				crawlWriter = recorder.NewCrawlWriter(tr.Updates(), archive, logger)
			}

			// Health server comes up before the blocking task sync so the
			// endpoint answers while the daemon warms up.
			healthServer := &http.Server{
				Addr: fmt.Sprintf(":%d", cfg.Health.Port),
				Handler: newHealthHandler(healthState{
					feed:    f,
					rec:     rec,
					tracker: tr,
					db:      db,
					archive: archive,
				}),
			}
			go func() {
				logger.Info("starting health server", "port", cfg.Health.Port)
				if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
					logger.Error("health server error", "error", err)
				}
			}()

			if err := rec.Start(ctx); err != nil {
				return fmt.Errorf("start recorder: %w", err)
			}

			if tr != nil {
				if err := tr.Start(ctx); err != nil {
					return fmt.Errorf("start crawl tracker: %w", err)
				}
				if err := crawlWriter.Start(ctx); err != nil {
					return fmt.Errorf("start crawl writer: %w", err)
				}
			}

			logger.Info("recording",
				"database", db != nil,
				"archive_dir", archiveDir,
				"track_crawl", tr != nil,
			)

			statsTicker := time.NewTicker(statsInterval)
			defer statsTicker.Stop()

			for {
				select {
				case <-ctx.Done():
					logger.Info("shutting down...")
					stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()

					if tr != nil {
						if err := tr.Stop(stopCtx); err != nil {
							logger.Error("stop crawl tracker", "error", err)
						}
						if err := crawlWriter.Stop(stopCtx); err != nil {
							logger.Error("stop crawl writer", "error", err)
						}
					}

					err := rec.Stop(stopCtx)
					healthServer.Shutdown(stopCtx)
					return err
				case <-statsTicker.C:
					for name, m := range rec.Stats() {
						logger.Info("writer stats",
							"stream", name,
							"inserts", m.Inserts,
							"conflicts", m.Conflicts,
							"errors", m.Errors,
							"stream_errors", m.StreamErrors,
						)
					}
					if archive != nil {
						logger.Info("archive stats", "lines", archive.Lines())
					}
					if tr != nil {
						cs := crawlWriter.Stats()
						logger.Info("crawl stats",
							"active_tasks", tr.TaskCount(),
							"archived", cs.Archived,
							"errors", cs.Errors,
							"stream_errors", cs.StreamErrors,
						)
					}
				}
			}
		},
	}
	recordCmd.Flags().String("archive-dir", "", "Write zstd NDJSON segments here (overrides config)")
	recordCmd.Flags().Duration("stats-interval", time.Minute, "How often to log writer stats")
	recordCmd.Flags().Bool("track-crawl", true, "Follow crawl tasks and archive their progress")
	recordCmd.Flags().Duration("crawl-poll", 30*time.Second, "How often to poll the crawl task list")
	return recordCmd
}

// healthState holds the live components the health endpoint reports on.
// tracker, db, and archive may be nil.
type healthState struct {
	feed    feed.Feed
	rec     *recorder.Recorder
	tracker *tracker.Tracker
	db      *pgxpool.Pool
	archive *recorder.Archive
}

// newHealthHandler creates the HTTP handler for health checks.
func newHealthHandler(hs healthState) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if hs.db != nil {
			if err := hs.db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		states := make(map[string]string)
		for path, st := range hs.feed.States() {
			states[path] = st.String()
			if st == stream.StateFailed && health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
		health.Components["streams"] = states

		health.Components["writers"] = hs.rec.Stats()

		if hs.archive != nil {
			health.Components["archive"] = map[string]int64{"lines": hs.archive.Lines()}
		}
		if hs.tracker != nil {
			health.Components["crawl_tasks"] = hs.tracker.ActiveTasks()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
