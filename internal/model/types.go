package model

import "github.com/google/uuid"

// Message type tags carried in the wire envelope.
const (
	TypePosition      = "position"
	TypeFill          = "fill"
	TypeCrawlProgress = "crawl_progress"
	TypeAlert         = "alert"
)

// PositionUpdate is the current state of one position on one account.
type PositionUpdate struct {
	Symbol        string // Instrument symbol (e.g., "AAPL")
	Account       string // Owning account (e.g., "desk-1")
	Quantity      int64  // Signed position size (negative = short)
	AvgPrice      int64  // Average entry price (hundred-thousandths)
	MarkPrice     int64  // Current mark price (hundred-thousandths)
	UnrealizedPnL int64  // Mark-to-market PnL (hundred-thousandths, signed)
	UpdatedTS     int64  // Console timestamp (µs since epoch)
}

// TradeFill is one executed fill.
type TradeFill struct {
	ID         uuid.UUID // Fill ID assigned by the console
	Symbol     string    // Instrument symbol
	Account    string    // Account the fill belongs to
	Side       string    // "buy" or "sell"
	Price      int64     // Execution price (hundred-thousandths)
	Quantity   int64     // Number of units filled
	Venue      string    // Execution venue (e.g., "XNAS")
	ExecutedTS int64     // Execution time (µs since epoch)
}

// CrawlProgress is a progress report from one crawl task.
type CrawlProgress struct {
	TaskID     string // Crawl task ID
	Source     string // Data source being crawled (e.g., "edgar")
	PagesDone  int    // Pages fetched so far
	PagesTotal int    // Total pages expected, 0 if unknown
	ItemsFound int64  // Records extracted so far
	Status     string // "running", "done", "failed"
	Message    string // Optional status detail, set on failure
	UpdatedTS  int64  // Console timestamp (µs since epoch)
}

// CrawlTask is a crawl job known to the console.
type CrawlTask struct {
	TaskID    string // Crawl task ID
	Source    string // Data source being crawled
	Status    string // "pending", "running", "done", "failed"
	StartedTS int64  // Start time (µs since epoch), 0 if not started
	UpdatedTS int64  // Last update (µs since epoch)
}

// Alert is a console alert.
type Alert struct {
	ID       uuid.UUID // Alert ID assigned by the console
	Severity string    // "info", "warning", "critical"
	Code     string    // Machine-readable alert code (e.g., "PRICE_GAP")
	Message  string    // Human-readable description
	Symbol   string    // Related symbol, empty when not symbol-scoped
	RaisedTS int64     // Time the alert was raised (µs since epoch)
	Acked    bool      // Whether the alert has been acknowledged
}
