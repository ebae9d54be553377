package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockAlertServer serves /ws/alerts: one malformed frame, then two alerts.
func mockAlertServer(t *testing.T) *httptest.Server {
	t.Helper()

	frames := []string{
		`{"type":"alert","data":`,
		`{"type":"alert","data":{"id":"` + uuid.NewString() + `","severity":"warning","code":"PRICE_GAP","message":"gap on open","symbol":"AAPL","raised_ts":1755700002000,"acked":false}}`,
		`{"type":"alert","data":{"id":"` + uuid.NewString() + `","severity":"critical","code":"FEED_LAG","message":"quotes stale","symbol":"","raised_ts":1755700003000,"acked":false}}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/alerts" {
			http.NotFound(w, r)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
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

func TestTail_AlertsWithLimit(t *testing.T) {
	server := mockAlertServer(t)

	cmd := NewTailCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--ws-url", wsURL(server), "--streams", "alerts", "--limit", "3"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 output lines, got %d: %s", len(lines), buf.String())
	}

	var first tailLine
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first.Type != "alert" {
		t.Errorf("first line type = %q, want alert", first.Type)
	}
	if first.Error == "" {
		t.Error("first line should carry the decode error")
	}

	for i, raw := range lines[1:] {
		var line tailLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("unmarshal line %d: %v", i+1, err)
		}
		if line.Error != "" {
			t.Errorf("line %d unexpected error: %s", i+1, line.Error)
		}
		if line.Data == nil {
			t.Errorf("line %d has no data", i+1)
		}
		if line.ReceivedAt == 0 {
			t.Errorf("line %d has zero received_at", i+1)
		}
	}
}

func TestTail_UnknownStream(t *testing.T) {
	cmd := NewTailCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--streams", "orders"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown stream, got nil")
	}
}

func TestSpecFor(t *testing.T) {
	tests := []struct {
		name     string
		wantPath string
		wantErr  bool
	}{
		{"positions", "/ws/positions", false},
		{"trades", "/ws/trades", false},
		{"alerts", "/ws/alerts", false},
		{"orders", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := specFor(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("specFor(%q) expected error", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("specFor(%q) error: %v", tt.name, err)
			}
			if spec.path != tt.wantPath {
				t.Errorf("path = %q, want %q", spec.path, tt.wantPath)
			}
		})
	}
}

func TestTail_Raw(t *testing.T) {
	server := mockAlertServer(t)

	cmd := NewTailCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--ws-url", wsURL(server), "--streams", "alerts", "--raw", "--limit", "3"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 output lines, got %d: %s", len(lines), buf.String())
	}

	// The truncated frame is not valid JSON, so it surfaces as an error
	// line even in raw mode.
	var first tailLine
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first.Error == "" {
		t.Error("first line should carry the invalid frame error")
	}

	// Valid frames pass through with the envelope intact.
	for i, raw := range lines[1:] {
		var line struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("unmarshal line %d: %v", i+1, err)
		}
		if line.Data["type"] != "alert" {
			t.Errorf("line %d envelope type = %v, want alert", i+1, line.Data["type"])
		}
		if _, ok := line.Data["data"]; !ok {
			t.Errorf("line %d envelope has no data field", i+1)
		}
	}
}
