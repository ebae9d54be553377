package cli

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/stratvault/deskfeed/internal/feed"
	"github.com/stratvault/deskfeed/internal/model"
	"github.com/stratvault/deskfeed/internal/stream"
)

// tailLine is one NDJSON record on stdout. Data and Error are mutually
// exclusive: transport and decode failures arrive as error lines on the
// stream they occurred on.
type tailLine struct {
	Type       string `json:"type"`
	ReceivedAt int64  `json:"received_at"` // Microseconds
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

// streamSpec binds a CLI stream name to its endpoint and decoder.
type streamSpec struct {
	eventType string
	path      string
	decode    stream.DecodeFunc
}

func specFor(name string) (streamSpec, error) {
	switch name {
	case "positions":
		return streamSpec{model.TypePosition, feed.PathPositions, model.DecodePositionUpdate}, nil
	case "trades":
		return streamSpec{model.TypeFill, feed.PathTrades, model.DecodeTradeFill}, nil
	case "alerts":
		return streamSpec{model.TypeAlert, feed.PathAlerts, model.DecodeAlert}, nil
	default:
		return streamSpec{}, fmt.Errorf("unknown stream %q (want positions, trades, or alerts)", name)
	}
}

// decodeRaw passes frames through undecoded, envelope and all. The
// frame must still be valid JSON so it can be embedded in an NDJSON
// output line.
func decodeRaw(data []byte) (any, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid json frame (%d bytes)", len(data))
	}
	return json.RawMessage(data), nil
}

// NewTailCommand constructs the `tail` command.
func NewTailCommand() *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail live console streams as NDJSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			streams, _ := cmd.Flags().GetStringSlice("streams")
			tasks, _ := cmd.Flags().GetStringSlice("task")
			limit, _ := cmd.Flags().GetInt("limit")
			wsURL, _ := cmd.Flags().GetString("ws-url")
			raw, _ := cmd.Flags().GetBool("raw")

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if wsURL != "" {
				cfg.Console.WSURL = wsURL
			}

			var specs []streamSpec
			for _, name := range streams {
				spec, err := specFor(name)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}
			for _, taskID := range tasks {
				specs = append(specs, streamSpec{
					eventType: model.TypeCrawlProgress,
					path:      feed.PathCrawl + taskID,
					decode:    model.DecodeCrawlProgress,
				})
			}
			if len(specs) == 0 {
				return fmt.Errorf("nothing to tail")
			}
			if raw {
				for i := range specs {
					specs[i].decode = decodeRaw
				}
			}

			f, err := feed.New(streamConfig(cfg), nil)
			if err != nil {
				return err
			}

			var wg sync.WaitGroup
			defer wg.Wait()
			defer f.Close()

			done := make(chan struct{})
			defer close(done)

			merged := make(chan tailLine)
			for _, spec := range specs {
				ch, _, err := f.Raw(spec.path, spec.decode)
				if err != nil {
					return fmt.Errorf("subscribe %s: %w", spec.path, err)
				}
				wg.Add(1)
				go func(eventType string, ch <-chan stream.Event) {
					defer wg.Done()
					for ev := range ch {
						line := tailLine{
							Type:       eventType,
							ReceivedAt: ev.ReceivedAt.UnixMicro(),
						}
						if ev.Err != nil {
							line.Error = ev.Err.Error()
						} else {
							line.Data = ev.Data
						}
						select {
						case merged <- line:
						case <-done:
							return
						}
					}
				}(spec.eventType, ch)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			count := 0
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case line := <-merged:
					if err := enc.Encode(line); err != nil {
						return fmt.Errorf("encode update: %w", err)
					}
					count++
					if limit > 0 && count >= limit {
						return nil
					}
				}
			}
		},
	}
	tailCmd.Flags().StringSlice("streams", []string{"positions", "trades", "alerts"}, "Streams to tail: positions, trades, alerts")
	tailCmd.Flags().StringSlice("task", nil, "Crawl task IDs to follow")
	tailCmd.Flags().Int("limit", 0, "Stop after N updates (0 = run until interrupted)")
	tailCmd.Flags().String("ws-url", "", "Override the console WebSocket URL")
	tailCmd.Flags().Bool("raw", false, "Print frames undecoded")
	return tailCmd
}
