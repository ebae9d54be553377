package api

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/stratvault/deskfeed/internal/model"
)

// PositionsResponse from GET /api/v1/positions
type PositionsResponse struct {
	Positions []APIPosition `json:"positions"`
}

// APIPosition represents a position from the console API.
// Prices arrive as decimal dollars, timestamps as epoch milliseconds.
type APIPosition struct {
	Symbol        string  `json:"symbol"`
	Account       string  `json:"account"`
	Quantity      int64   `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TS            int64   `json:"ts"`
}

// ToModel converts an APIPosition to model.PositionUpdate.
func (p *APIPosition) ToModel() model.PositionUpdate {
	return model.PositionUpdate{
		Symbol:        p.Symbol,
		Account:       p.Account,
		Quantity:      p.Quantity,
		AvgPrice:      model.DollarsToInternal(p.AvgPrice),
		MarkPrice:     model.DollarsToInternal(p.MarkPrice),
		UnrealizedPnL: model.DollarsToInternal(p.UnrealizedPnL),
		UpdatedTS:     model.MsToMicros(p.TS),
	}
}

// TradesResponse from GET /api/v1/trades
type TradesResponse struct {
	Fills  []APIFill `json:"fills"`
	Cursor string    `json:"cursor"`
}

// APIFill represents an executed fill from the console API.
type APIFill struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Account    string  `json:"account"`
	Side       string  `json:"side"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	Venue      string  `json:"venue"`
	ExecutedTS int64   `json:"executed_ts"`
}

// ToModel converts an APIFill to model.TradeFill.
func (f *APIFill) ToModel() (model.TradeFill, error) {
	id, err := uuid.Parse(f.ID)
	if err != nil {
		return model.TradeFill{}, fmt.Errorf("fill id %q: %w", f.ID, err)
	}

	return model.TradeFill{
		ID:         id,
		Symbol:     f.Symbol,
		Account:    f.Account,
		Side:       f.Side,
		Price:      model.DollarsToInternal(f.Price),
		Quantity:   f.Quantity,
		Venue:      f.Venue,
		ExecutedTS: model.MsToMicros(f.ExecutedTS),
	}, nil
}

// CrawlTasksResponse from GET /api/v1/crawl/tasks
type CrawlTasksResponse struct {
	Tasks []APICrawlTask `json:"tasks"`
}

// APICrawlTask represents a crawl task from the console API.
type APICrawlTask struct {
	TaskID    string `json:"task_id"`
	Source    string `json:"source"`
	Status    string `json:"status"`
	StartedTS int64  `json:"started_ts"`
	TS        int64  `json:"ts"`
}

// ToModel converts an APICrawlTask to model.CrawlTask.
func (c *APICrawlTask) ToModel() model.CrawlTask {
	return model.CrawlTask{
		TaskID:    c.TaskID,
		Source:    c.Source,
		Status:    c.Status,
		StartedTS: model.MsToMicros(c.StartedTS),
		UpdatedTS: model.MsToMicros(c.TS),
	}
}

// AlertsResponse from GET /api/v1/alerts
type AlertsResponse struct {
	Alerts []APIAlert `json:"alerts"`
}

// APIAlert represents an alert from the console API.
type APIAlert struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Symbol   string `json:"symbol"`
	RaisedTS int64  `json:"raised_ts"`
	Acked    bool   `json:"acked"`
}

// ToModel converts an APIAlert to model.Alert.
func (a *APIAlert) ToModel() (model.Alert, error) {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return model.Alert{}, fmt.Errorf("alert id %q: %w", a.ID, err)
	}

	return model.Alert{
		ID:       id,
		Severity: a.Severity,
		Code:     a.Code,
		Message:  a.Message,
		Symbol:   a.Symbol,
		RaisedTS: model.MsToMicros(a.RaisedTS),
		Acked:    a.Acked,
	}, nil
}

// HealthResponse from GET /api/v1/health
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
