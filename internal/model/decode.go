package model

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Envelope is the wire wrapper every stream frame arrives in.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// positionWire is the console's JSON shape for a position update.
// Prices arrive as decimal dollars, timestamps as epoch milliseconds.
type positionWire struct {
	Symbol        string  `json:"symbol"`
	Account       string  `json:"account"`
	Quantity      int64   `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TS            int64   `json:"ts"`
}

type tradeFillWire struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Account    string  `json:"account"`
	Side       string  `json:"side"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	Venue      string  `json:"venue"`
	ExecutedTS int64   `json:"executed_ts"`
}

type crawlProgressWire struct {
	TaskID     string `json:"task_id"`
	Source     string `json:"source"`
	PagesDone  int    `json:"pages_done"`
	PagesTotal int    `json:"pages_total"`
	ItemsFound int64  `json:"items_found"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	TS         int64  `json:"ts"`
}

type alertWire struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Symbol   string `json:"symbol"`
	RaisedTS int64  `json:"raised_ts"`
	Acked    bool   `json:"acked"`
}

// DecodePositionUpdate decodes one position frame.
func DecodePositionUpdate(data []byte) (any, error) {
	var w positionWire
	if err := unwrap(data, TypePosition, &w); err != nil {
		return nil, err
	}

	return PositionUpdate{
		Symbol:        w.Symbol,
		Account:       w.Account,
		Quantity:      w.Quantity,
		AvgPrice:      DollarsToInternal(w.AvgPrice),
		MarkPrice:     DollarsToInternal(w.MarkPrice),
		UnrealizedPnL: DollarsToInternal(w.UnrealizedPnL),
		UpdatedTS:     MsToMicros(w.TS),
	}, nil
}

// DecodeTradeFill decodes one fill frame.
func DecodeTradeFill(data []byte) (any, error) {
	var w tradeFillWire
	if err := unwrap(data, TypeFill, &w); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(w.ID)
	if err != nil {
		return nil, fmt.Errorf("fill id %q: %w", w.ID, err)
	}
	if w.Side != "buy" && w.Side != "sell" {
		return nil, fmt.Errorf("fill side %q: must be buy or sell", w.Side)
	}

	return TradeFill{
		ID:         id,
		Symbol:     w.Symbol,
		Account:    w.Account,
		Side:       w.Side,
		Price:      DollarsToInternal(w.Price),
		Quantity:   w.Quantity,
		Venue:      w.Venue,
		ExecutedTS: MsToMicros(w.ExecutedTS),
	}, nil
}

// DecodeCrawlProgress decodes one crawl progress frame.
func DecodeCrawlProgress(data []byte) (any, error) {
	var w crawlProgressWire
	if err := unwrap(data, TypeCrawlProgress, &w); err != nil {
		return nil, err
	}

	return CrawlProgress{
		TaskID:     w.TaskID,
		Source:     w.Source,
		PagesDone:  w.PagesDone,
		PagesTotal: w.PagesTotal,
		ItemsFound: w.ItemsFound,
		Status:     w.Status,
		Message:    w.Message,
		UpdatedTS:  MsToMicros(w.TS),
	}, nil
}

// DecodeAlert decodes one alert frame.
func DecodeAlert(data []byte) (any, error) {
	var w alertWire
	if err := unwrap(data, TypeAlert, &w); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(w.ID)
	if err != nil {
		return nil, fmt.Errorf("alert id %q: %w", w.ID, err)
	}

	return Alert{
		ID:       id,
		Severity: w.Severity,
		Code:     w.Code,
		Message:  w.Message,
		Symbol:   w.Symbol,
		RaisedTS: MsToMicros(w.RaisedTS),
		Acked:    w.Acked,
	}, nil
}

// unwrap parses the envelope, checks the type tag, and decodes the
// payload into v.
func unwrap(data []byte, wantType string, v any) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	if env.Type != wantType {
		return fmt.Errorf("message type %q, want %q", env.Type, wantType)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", wantType, err)
	}
	return nil
}

// DollarsToInternal converts decimal dollars to integer
// hundred-thousandths, rounding half away from zero.
func DollarsToInternal(dollars float64) int64 {
	return int64(math.Round(dollars * 100000))
}

// InternalToDollars converts integer hundred-thousandths back to
// decimal dollars for display.
func InternalToDollars(price int64) float64 {
	return float64(price) / 100000
}

// MsToMicros converts epoch milliseconds to epoch microseconds.
func MsToMicros(ms int64) int64 {
	return ms * 1000
}
