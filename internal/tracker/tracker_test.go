package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stratvault/deskfeed/internal/api"
	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/stream"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockConsole serves the crawl task list over REST and one progress
// stream per task over WebSocket.
type mockConsole struct {
	server *httptest.Server

	mu    sync.Mutex
	tasks []map[string]any
}

func newMockConsole(t *testing.T) *mockConsole {
	t.Helper()

	mc := &mockConsole{}
	mc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/crawl/tasks":
			mc.mu.Lock()
			tasks := mc.tasks
			mc.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{"tasks": tasks})

		case strings.HasPrefix(r.URL.Path, feed.PathCrawl):
			taskID := strings.TrimPrefix(r.URL.Path, feed.PathCrawl)
			conn, err := testUpgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			frame := fmt.Sprintf(`{"type":"crawl_progress","data":{"task_id":%q,"source":"edgar","pages_done":1,"pages_total":10,"items_found":25,"status":"running","message":"","ts":1755700000000}}`, taskID)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}

			// Hold the connection open until the client goes away.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(mc.server.Close)
	return mc
}

func (mc *mockConsole) setTasks(tasks ...map[string]any) {
	mc.mu.Lock()
	mc.tasks = tasks
	mc.mu.Unlock()
}

func (mc *mockConsole) wsURL() string {
	return "ws" + strings.TrimPrefix(mc.server.URL, "http")
}

func task(id, status string) map[string]any {
	return map[string]any{
		"task_id":    id,
		"source":     "edgar",
		"status":     status,
		"started_ts": 1755690000000,
		"ts":         1755700000000,
	}
}

func newTestTracker(t *testing.T, mc *mockConsole, pollInterval time.Duration) (*Tracker, feed.Feed) {
	t.Helper()

	cfg := stream.DefaultConfig()
	cfg.BaseURL = mc.wsURL()
	f, err := feed.New(cfg, nil)
	if err != nil {
		t.Fatalf("feed.New: %v", err)
	}
	t.Cleanup(f.Close)

	client := api.NewClient(mc.server.URL, "test-key")
	tr := New(Config{PollInterval: pollInterval, QueueSize: 16}, client, f, nil)
	return tr, f
}

func stopTracker(t *testing.T, tr *Tracker) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestTracker_FollowsActiveTasks(t *testing.T) {
	mc := newMockConsole(t)
	mc.setTasks(task("t1", "running"), task("t2", "done"))

	tr, _ := newTestTracker(t, mc, time.Hour)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopTracker(t, tr)

	got := tr.ActiveTasks()
	if len(got) != 1 || got[0] != "t1" {
		t.Fatalf("ActiveTasks = %v, want [t1]", got)
	}

	select {
	case up := <-tr.Updates():
		if up.Err != nil {
			t.Fatalf("update error: %v", up.Err)
		}
		if up.Value.TaskID != "t1" {
			t.Errorf("TaskID = %q, want %q", up.Value.TaskID, "t1")
		}
		if up.Value.ItemsFound != 25 {
			t.Errorf("ItemsFound = %d, want 25", up.Value.ItemsFound)
		}
		if up.ReceivedAt.IsZero() {
			t.Error("ReceivedAt is zero")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for progress update")
	}
}

func TestTracker_ReconcileAddsAndRemoves(t *testing.T) {
	mc := newMockConsole(t)
	mc.setTasks(task("t1", "running"))

	tr, f := newTestTracker(t, mc, 50*time.Millisecond)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopTracker(t, tr)

	// Drain merged updates so forwarders never block.
	go func() {
		for range tr.Updates() {
		}
	}()

	if got := tr.ActiveTasks(); len(got) != 1 || got[0] != "t1" {
		t.Fatalf("ActiveTasks = %v, want [t1]", got)
	}

	// t1 finishes, t2 starts.
	mc.setTasks(task("t1", "done"), task("t2", "pending"))

	waitFor(t, func() bool {
		got := tr.ActiveTasks()
		return len(got) == 1 && got[0] == "t2"
	}, "tracker did not switch to t2")

	// The finished task's endpoint must be fully torn down.
	waitFor(t, func() bool {
		return f.State(feed.PathCrawl+"t1") == stream.StateDisconnected
	}, "t1 connection not torn down")
}

func TestTracker_InitialSyncFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := stream.DefaultConfig()
	cfg.BaseURL = "ws" + strings.TrimPrefix(server.URL, "http")
	f, err := feed.New(cfg, nil)
	if err != nil {
		t.Fatalf("feed.New: %v", err)
	}
	defer f.Close()

	client := api.NewClient(server.URL, "test-key", api.WithRetries(0, time.Millisecond))
	tr := New(DefaultConfig(), client, f, nil)

	if err := tr.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail")
	}
}

func TestTracker_SkipsUnsubscribableTask(t *testing.T) {
	mc := newMockConsole(t)
	mc.setTasks(task("", "running"))

	tr, _ := newTestTracker(t, mc, time.Hour)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopTracker(t, tr)

	if got := tr.ActiveTasks(); len(got) != 0 {
		t.Errorf("ActiveTasks = %v, want none", got)
	}
}

func TestTracker_StopClosesUpdates(t *testing.T) {
	mc := newMockConsole(t)
	mc.setTasks(task("t1", "running"))

	tr, _ := newTestTracker(t, mc, time.Hour)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx := context.Background()
	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	// Drain; the channel must close.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-tr.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel not closed")
		}
	}
}

func TestTracker_StopWithoutStart(t *testing.T) {
	mc := newMockConsole(t)
	tr, _ := newTestTracker(t, mc, time.Hour)

	if err := tr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"pending", true},
		{"running", true},
		{"done", false},
		{"failed", false},
		{"", false},
		{"Running", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := isActive(tt.status); got != tt.want {
				t.Errorf("isActive(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
