package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stratvault/deskfeed/internal/model"
	"github.com/stratvault/deskfeed/internal/stream"
)

// Streaming endpoint paths on the console. Crawl streams live under the
// PathCrawl prefix, one endpoint per task ID.
const (
	PathPositions = "/ws/positions"
	PathTrades    = "/ws/trades"
	PathAlerts    = "/ws/alerts"
	PathCrawl     = "/ws/crawl/"
)

// Update is one typed item from a stream. Exactly one of Value and Err
// is meaningful: Err carries decode and transport failures published on
// the shared connection.
type Update[T any] struct {
	Value      T
	Err        error
	ReceivedAt time.Time
}

// Subscription is a live typed subscription. After Cancel, drain
// Updates until it closes.
type Subscription[T any] struct {
	Updates <-chan Update[T]
	Cancel  stream.CancelFunc
}

// Feed is the typed client facade for the console's streaming
// endpoints. All subscribers of one endpoint share a single WebSocket
// connection.
type Feed interface {
	// Positions streams position updates for the desk.
	Positions() (Subscription[model.PositionUpdate], error)

	// Trades streams executed fills.
	Trades() (Subscription[model.TradeFill], error)

	// Alerts streams console alerts.
	Alerts() (Subscription[model.Alert], error)

	// CrawlProgress streams progress for one crawl task.
	CrawlProgress(taskID string) (Subscription[model.CrawlProgress], error)

	// Raw subscribes to an arbitrary endpoint path with a caller
	// supplied decoder.
	Raw(path string, decode stream.DecodeFunc) (<-chan stream.Event, stream.CancelFunc, error)

	// State reports the connection state for an endpoint path.
	State(path string) stream.State

	// States returns the state of every live endpoint connection.
	States() map[string]stream.State

	// Close tears down every connection. The feed is unusable
	// afterwards.
	Close()
}

// feed implements the Feed interface.
type feed struct {
	reg    stream.Registry
	logger *slog.Logger
}

// New creates a feed talking to the console at cfg.BaseURL.
func New(cfg stream.Config, logger *slog.Logger) (Feed, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &feed{
		reg:    stream.NewRegistry(cfg, logger),
		logger: logger,
	}, nil
}

// Positions streams position updates for the desk.
func (f *feed) Positions() (Subscription[model.PositionUpdate], error) {
	return subscribeAs[model.PositionUpdate](f, PathPositions, model.DecodePositionUpdate)
}

// Trades streams executed fills.
func (f *feed) Trades() (Subscription[model.TradeFill], error) {
	return subscribeAs[model.TradeFill](f, PathTrades, model.DecodeTradeFill)
}

// Alerts streams console alerts.
func (f *feed) Alerts() (Subscription[model.Alert], error) {
	return subscribeAs[model.Alert](f, PathAlerts, model.DecodeAlert)
}

// CrawlProgress streams progress for one crawl task.
func (f *feed) CrawlProgress(taskID string) (Subscription[model.CrawlProgress], error) {
	if taskID == "" {
		return Subscription[model.CrawlProgress]{}, errors.New("task ID required")
	}
	return subscribeAs[model.CrawlProgress](f, PathCrawl+taskID, model.DecodeCrawlProgress)
}

// Raw subscribes to an arbitrary endpoint path.
func (f *feed) Raw(path string, decode stream.DecodeFunc) (<-chan stream.Event, stream.CancelFunc, error) {
	return f.reg.Subscribe(path, decode)
}

// State reports the connection state for an endpoint path.
func (f *feed) State(path string) stream.State {
	return f.reg.State(path)
}

// States returns the state of every live endpoint connection.
func (f *feed) States() map[string]stream.State {
	return f.reg.States()
}

// Close tears down every connection.
func (f *feed) Close() {
	f.reg.DisposeAll()
}

// subscribeAs subscribes to path and converts the event stream into
// typed updates. The conversion preserves order and never drops items;
// the updates channel closes when the subscription ends.
func subscribeAs[T any](f *feed, path string, decode stream.DecodeFunc) (Subscription[T], error) {
	ch, cancel, err := f.reg.Subscribe(path, decode)
	if err != nil {
		return Subscription[T]{}, err
	}

	out := make(chan Update[T])
	go func() {
		defer close(out)
		for ev := range ch {
			up := Update[T]{ReceivedAt: ev.ReceivedAt}
			if ev.Err != nil {
				up.Err = ev.Err
			} else if v, ok := ev.Data.(T); ok {
				up.Value = v
			} else {
				up.Err = fmt.Errorf("unexpected payload type %T on %s", ev.Data, path)
			}
			out <- up
		}
	}()

	return Subscription[T]{Updates: out, Cancel: cancel}, nil
}
