package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/stratvault/deskfeed/internal/model"
)

// GetPositionsOptions filters a positions request.
type GetPositionsOptions struct {
	Account string // Only positions for this account
	Symbol  string // Only positions in this symbol
}

// GetPositions fetches current positions.
func (c *Client) GetPositions(ctx context.Context, opts GetPositionsOptions) ([]model.PositionUpdate, error) {
	query := url.Values{}
	if opts.Account != "" {
		query.Set("account", opts.Account)
	}
	if opts.Symbol != "" {
		query.Set("symbol", opts.Symbol)
	}

	var resp PositionsResponse
	if err := c.get(ctx, "/api/v1/positions", query, &resp); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	positions := make([]model.PositionUpdate, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		positions = append(positions, p.ToModel())
	}
	return positions, nil
}

// GetTradesOptions filters a trades request.
type GetTradesOptions struct {
	Account string // Only fills for this account
	Symbol  string // Only fills in this symbol
	Limit   int    // Page size, server default when 0
	Cursor  string // Pagination cursor from a previous page
}

// GetTrades fetches a page of fills. The returned cursor is empty on
// the last page.
func (c *Client) GetTrades(ctx context.Context, opts GetTradesOptions) ([]model.TradeFill, string, error) {
	query := url.Values{}
	if opts.Account != "" {
		query.Set("account", opts.Account)
	}
	if opts.Symbol != "" {
		query.Set("symbol", opts.Symbol)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var resp TradesResponse
	if err := c.get(ctx, "/api/v1/trades", query, &resp); err != nil {
		return nil, "", fmt.Errorf("get trades: %w", err)
	}

	fills := make([]model.TradeFill, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		fill, err := f.ToModel()
		if err != nil {
			return nil, "", fmt.Errorf("get trades: %w", err)
		}
		fills = append(fills, fill)
	}
	return fills, resp.Cursor, nil
}

// GetAllTrades fetches all fills matching the options by paginating
// through results.
func (c *Client) GetAllTrades(ctx context.Context, opts GetTradesOptions) ([]model.TradeFill, error) {
	var all []model.TradeFill
	opts.Limit = 1000 // Max page size

	for {
		fills, cursor, err := c.GetTrades(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, fills...)

		if cursor == "" {
			break
		}
		opts.Cursor = cursor
	}

	return all, nil
}

// GetCrawlTasks fetches the crawl jobs known to the console.
func (c *Client) GetCrawlTasks(ctx context.Context) ([]model.CrawlTask, error) {
	var resp CrawlTasksResponse
	if err := c.get(ctx, "/api/v1/crawl/tasks", nil, &resp); err != nil {
		return nil, fmt.Errorf("get crawl tasks: %w", err)
	}

	tasks := make([]model.CrawlTask, 0, len(resp.Tasks))
	for _, task := range resp.Tasks {
		tasks = append(tasks, task.ToModel())
	}
	return tasks, nil
}

// GetAlertsOptions filters an alerts request.
type GetAlertsOptions struct {
	Severity string // Only alerts of this severity
	Unacked  bool   // Only alerts not yet acknowledged
	Limit    int    // Page size, server default when 0
}

// GetAlerts fetches alerts.
func (c *Client) GetAlerts(ctx context.Context, opts GetAlertsOptions) ([]model.Alert, error) {
	query := url.Values{}
	if opts.Severity != "" {
		query.Set("severity", opts.Severity)
	}
	if opts.Unacked {
		query.Set("unacked", "true")
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var resp AlertsResponse
	if err := c.get(ctx, "/api/v1/alerts", query, &resp); err != nil {
		return nil, fmt.Errorf("get alerts: %w", err)
	}

	alerts := make([]model.Alert, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		alert, err := a.ToModel()
		if err != nil {
			return nil, fmt.Errorf("get alerts: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// AckAlert acknowledges one alert.
func (c *Client) AckAlert(ctx context.Context, id uuid.UUID) error {
	if err := c.post(ctx, "/api/v1/alerts/"+id.String()+"/ack", nil, nil); err != nil {
		return fmt.Errorf("ack alert %s: %w", id, err)
	}
	return nil
}

// GetHealth fetches console liveness and version information.
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/api/v1/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("get health: %w", err)
	}
	return &resp, nil
}
