package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/stratvault/deskfeed/internal/api"
	"github.com/stratvault/deskfeed/internal/config"
	"github.com/stratvault/deskfeed/internal/stream"
)

// NewRootCommand assembles the deskfeed command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "deskfeed",
		Short:         "StratVault trading console feed CLI",
		Long:          "deskfeed tails, records, and queries live data from the StratVault trading console.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	rootCmd.AddCommand(
		NewTailCommand(),
		NewRecordCommand(),
		NewStateCommand(),
		NewAckCommand(),
		NewVersionCommand(),
	)
	return rootCmd
}

// resolveConfig loads the file named by --config, or built-in defaults
// when the flag is unset.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(path)
}

// streamConfig maps file config onto the stream layer's config.
func streamConfig(cfg *config.Config) stream.Config {
	return stream.Config{
		BaseURL:      cfg.Console.WSURL,
		DialTimeout:  cfg.Stream.DialTimeout,
		WriteTimeout: cfg.Stream.WriteTimeout,
		PingInterval: cfg.Stream.PingInterval,
		PongTimeout:  cfg.Stream.PongTimeout,
		QueueSize:    cfg.Stream.QueueSize,
	}
}

// newAPIClient builds a console REST client from config.
func newAPIClient(cfg *config.Config) *api.Client {
	return api.NewClient(
		cfg.Console.RestURL,
		cfg.Console.APIKey,
		api.WithTimeout(cfg.Console.Timeout),
		api.WithRetries(cfg.Console.MaxRetries, time.Second),
		api.WithRateLimit(cfg.Console.RateLimit, cfg.Console.RateBurst),
	)
}
