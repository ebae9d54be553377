package recorder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/model"
	"github.com/stratvault/deskfeed/internal/stream"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockConsole serves the position, trade, and alert stream paths. Each
// connection gets its frames once, then holds until the test ends.
func mockConsole(t *testing.T) *httptest.Server {
	t.Helper()

	fillID := uuid.New()
	alertID1, alertID2 := uuid.New(), uuid.New()

	frames := map[string][]string{
		feed.PathPositions: {
			`{"type":"position","data":{"symbol":"AAPL","account":"desk-1","quantity":100,"avg_price":189.25,"mark_price":190.10,"unrealized_pnl":85.00,"ts":1755700000123}}`,
		},
		feed.PathTrades: {
			`{"type":"fill","data":{"id":"` + fillID.String() + `","symbol":"AAPL","account":"desk-1","side":"buy","price":189.25,"quantity":100,"venue":"XNAS","executed_ts":1755700001000}}`,
		},
		feed.PathAlerts: {
			`{"type":"alert","data":{"id":"` + alertID1.String() + `","severity":"warning","code":"PRICE_GAP","message":"gap on open","symbol":"AAPL","raised_ts":1755700002000,"acked":false}}`,
			`{"type":"alert","data":{"id":"` + alertID2.String() + `","severity":"critical","code":"FEED_LAG","message":"quotes stale","symbol":"","raised_ts":1755700003000,"acked":false}}`,
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, frame := range frames[r.URL.Path] {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}

		// Hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestRecorder_ArchiveOnly(t *testing.T) {
	server := mockConsole(t)

	cfg := stream.DefaultConfig()
	cfg.BaseURL = wsURL(server)
	f, err := feed.New(cfg, nil)
	if err != nil {
		t.Fatalf("feed.New failed: %v", err)
	}
	defer f.Close()

	dir := t.TempDir()
	archive, err := NewArchive(dir, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}

	rec := New(f, nil, archive, DefaultWriterConfig(), nil)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 1 position + 1 fill + 2 alerts
	deadline := time.Now().Add(5 * time.Second)
	for archive.Lines() < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out, archived %d of 4 lines", archive.Lines())
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	lines := readArchiveLines(t, dir)
	if len(lines) != 4 {
		t.Fatalf("got %d archived lines, want 4", len(lines))
	}

	byType := map[string]int{}
	for _, line := range lines {
		byType[line.Type]++
		if line.ReceivedAt == 0 {
			t.Errorf("line type %s has zero received_at", line.Type)
		}
	}
	if byType[model.TypePosition] != 1 {
		t.Errorf("position lines = %d, want 1", byType[model.TypePosition])
	}
	if byType[model.TypeFill] != 1 {
		t.Errorf("fill lines = %d, want 1", byType[model.TypeFill])
	}
	if byType[model.TypeAlert] != 2 {
		t.Errorf("alert lines = %d, want 2", byType[model.TypeAlert])
	}

	stats := rec.Stats()
	if len(stats) != 3 {
		t.Errorf("Stats() has %d writers, want 3", len(stats))
	}
}

func TestRecorder_RequiresDestination(t *testing.T) {
	server := mockConsole(t)

	cfg := stream.DefaultConfig()
	cfg.BaseURL = wsURL(server)
	f, err := feed.New(cfg, nil)
	if err != nil {
		t.Fatalf("feed.New failed: %v", err)
	}
	defer f.Close()

	rec := New(f, nil, nil, DefaultWriterConfig(), nil)
	if err := rec.Start(context.Background()); err == nil {
		t.Error("Start with no database and no archive should fail")
	}
}

func TestRecorder_StartAfterFeedClosed(t *testing.T) {
	server := mockConsole(t)

	cfg := stream.DefaultConfig()
	cfg.BaseURL = wsURL(server)
	f, err := feed.New(cfg, nil)
	if err != nil {
		t.Fatalf("feed.New failed: %v", err)
	}
	f.Close()

	archive, err := NewArchive(t.TempDir(), 1<<20, nil)
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}

	rec := New(f, nil, archive, DefaultWriterConfig(), nil)
	if err := rec.Start(context.Background()); err == nil {
		t.Error("Start on a closed feed should fail")
	}
}
