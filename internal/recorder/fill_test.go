package recorder

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/model"
)

func TestFillWriter_Transform(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := make(chan feed.Update[model.TradeFill])
	w := NewFillWriter(cfg, input, nil, nil, nil)

	id := uuid.New()
	receivedAt := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	up := feed.Update[model.TradeFill]{
		Value: model.TradeFill{
			ID:         id,
			Symbol:     "MSFT",
			Account:    "desk-2",
			Side:       "sell",
			Price:      41050000,
			Quantity:   25,
			Venue:      "XNAS",
			ExecutedTS: 1755700001000000,
		},
		ReceivedAt: receivedAt,
	}

	row := w.transform(up)

	if row.ID != id.String() {
		t.Errorf("ID = %s, want %s", row.ID, id.String())
	}
	if row.Symbol != "MSFT" {
		t.Errorf("Symbol = %s, want MSFT", row.Symbol)
	}
	if row.Side != "sell" {
		t.Errorf("Side = %s, want sell", row.Side)
	}
	if row.Price != 41050000 {
		t.Errorf("Price = %d, want 41050000", row.Price)
	}
	if row.Quantity != 25 {
		t.Errorf("Quantity = %d, want 25", row.Quantity)
	}
	if row.Venue != "XNAS" {
		t.Errorf("Venue = %s, want XNAS", row.Venue)
	}
	if row.ExecutedTS != 1755700001000000 {
		t.Errorf("ExecutedTS = %d, want 1755700001000000", row.ExecutedTS)
	}
	if row.ReceivedAt != receivedAt.UnixMicro() {
		t.Errorf("ReceivedAt = %d, want %d", row.ReceivedAt, receivedAt.UnixMicro())
	}
}
