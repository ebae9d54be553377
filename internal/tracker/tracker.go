package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/model"
	"github.com/stratvault/deskfeed/internal/stream"
)

// TasksClient is the console API surface the tracker polls.
type TasksClient interface {
	GetCrawlTasks(ctx context.Context) ([]model.CrawlTask, error)
}

// Config holds tracker configuration.
type Config struct {
	PollInterval time.Duration // Task list poll cadence (default: 30s)
	QueueSize    int           // Merged update channel capacity (default: 64)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		QueueSize:    64,
	}
}

// Tracker discovers crawl tasks over REST and follows their progress
// streams through the feed. Updates from every tracked task are merged
// onto the Updates channel.
type Tracker struct {
	cfg    Config
	client TasksClient
	feed   feed.Feed
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]stream.CancelFunc
	closed bool

	out chan feed.Update[model.CrawlProgress]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Tracker. Zero config fields fall back to defaults.
func New(cfg Config, client TasksClient, f feed.Feed, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Tracker{
		cfg:    cfg,
		client: client,
		feed:   f,
		logger: logger,
		active: make(map[string]stream.CancelFunc),
		out:    make(chan feed.Update[model.CrawlProgress], cfg.QueueSize),
	}
}

// Updates returns the merged progress stream. It closes after Stop.
func (t *Tracker) Updates() <-chan feed.Update[model.CrawlProgress] {
	return t.out
}

// Start performs a blocking initial task sync, then begins background
// reconciliation.
func (t *Tracker) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	if err := t.reconcile(t.ctx); err != nil {
		t.cancel()
		return fmt.Errorf("initial task sync: %w", err)
	}

	t.wg.Add(1)
	go t.run()

	t.logger.Info("crawl tracker started",
		"active_tasks", t.TaskCount(),
		"poll_interval", t.cfg.PollInterval,
	)
	return nil
}

// Stop cancels every task subscription and closes the merged channel.
// Safe to call more than once.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	// Cancel subscriptions so forwarders drain and exit.
	t.mu.Lock()
	for id, cancel := range t.active {
		cancel()
		delete(t.active, id)
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(t.out)
		t.logger.Info("crawl tracker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveTasks returns the IDs of the tasks currently being followed,
// sorted.
func (t *Tracker) ActiveTasks() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TaskCount returns the number of tasks currently being followed.
func (t *Tracker) TaskCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// run is the background reconciliation loop.
func (t *Tracker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if err := t.reconcile(t.ctx); err != nil {
				t.logger.Error("task reconciliation failed", "error", err)
			}
		}
	}
}

// reconcile fetches the task list and diffs it against the tracked set.
func (t *Tracker) reconcile(ctx context.Context) error {
	start := time.Now()

	tasks, err := t.client.GetCrawlTasks(ctx)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		if isActive(task.Status) {
			want[task.TaskID] = true
		}
	}

	var added, removed int

	// Drop tasks that finished or disappeared.
	t.mu.Lock()
	for id, cancel := range t.active {
		if want[id] {
			continue
		}
		cancel()
		delete(t.active, id)
		removed++
	}
	t.mu.Unlock()

	// Follow tasks that appeared.
	for id := range want {
		if t.tracked(id) {
			continue
		}

		sub, err := t.feed.CrawlProgress(id)
		if err != nil {
			t.logger.Warn("subscribe crawl task failed", "task_id", id, "error", err)
			continue
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			sub.Cancel()
			continue
		}
		t.active[id] = sub.Cancel
		t.wg.Add(1)
		t.mu.Unlock()

		go t.forward(id, sub)
		added++
	}

	if added > 0 || removed > 0 {
		t.logger.Info("task reconciliation found changes",
			"added", added,
			"removed", removed,
			"tracked", t.TaskCount(),
			"duration", time.Since(start),
		)
	} else {
		t.logger.Debug("task reconciliation complete",
			"tasks", len(tasks),
			"tracked", t.TaskCount(),
			"duration", time.Since(start),
		)
	}

	return nil
}

// tracked reports whether a task already has a live subscription.
func (t *Tracker) tracked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[id]
	return ok
}

// forward pumps one task's updates onto the merged channel until the
// subscription ends.
func (t *Tracker) forward(id string, sub feed.Subscription[model.CrawlProgress]) {
	defer t.wg.Done()

	for up := range sub.Updates {
		select {
		case t.out <- up:
		case <-t.ctx.Done():
			return
		}
	}
	t.logger.Debug("task stream ended", "task_id", id)
}

// isActive reports whether a task status means progress is still flowing.
func isActive(status string) bool {
	return status == "pending" || status == "running"
}
