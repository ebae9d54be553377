package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stratvault/deskfeed/internal/api"
	"github.com/stratvault/deskfeed/internal/config"
)

// NewStateCommand constructs the `state` command group: point-in-time
// REST snapshots of what the streams carry live.
func NewStateCommand() *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Query console REST snapshots",
	}
	stateCmd.PersistentFlags().String("rest-url", "", "Override the console REST URL")
	stateCmd.PersistentFlags().String("api-key", "", "Override the console API key")

	stateCmd.AddCommand(
		newStatePositionsCommand(),
		newStateTradesCommand(),
		newStateAlertsCommand(),
		newStateCrawlCommand(),
		newStateHealthCommand(),
	)
	return stateCmd
}

// stateClient resolves config plus the state group's override flags.
func stateClient(cmd *cobra.Command) (*api.Client, *config.Config, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if restURL, _ := cmd.Flags().GetString("rest-url"); restURL != "" {
		cfg.Console.RestURL = restURL
	}
	if apiKey, _ := cmd.Flags().GetString("api-key"); apiKey != "" {
		cfg.Console.APIKey = apiKey
	}
	return newAPIClient(cfg), cfg, nil
}

// encodeEach writes one JSON line per item.
func encodeEach[T any](cmd *cobra.Command, items []T) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func newStatePositionsCommand() *cobra.Command {
	positionsCmd := &cobra.Command{
		Use:   "positions",
		Short: "List current positions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, _ := cmd.Flags().GetString("account")
			symbol, _ := cmd.Flags().GetString("symbol")

			client, _, err := stateClient(cmd)
			if err != nil {
				return err
			}

			positions, err := client.GetPositions(cmd.Context(), api.GetPositionsOptions{
				Account: account,
				Symbol:  symbol,
			})
			if err != nil {
				return err
			}
			return encodeEach(cmd, positions)
		},
	}
	positionsCmd.Flags().String("account", "", "Filter by account")
	positionsCmd.Flags().String("symbol", "", "Filter by symbol")
	return positionsCmd
}

func newStateTradesCommand() *cobra.Command {
	tradesCmd := &cobra.Command{
		Use:   "trades",
		Short: "List recent fills",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, _ := cmd.Flags().GetString("account")
			symbol, _ := cmd.Flags().GetString("symbol")
			all, _ := cmd.Flags().GetBool("all")
			limit, _ := cmd.Flags().GetInt("limit")

			client, _, err := stateClient(cmd)
			if err != nil {
				return err
			}

			opts := api.GetTradesOptions{Account: account, Symbol: symbol, Limit: limit}
			if all {
				fills, err := client.GetAllTrades(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return encodeEach(cmd, fills)
			}

			fills, _, err := client.GetTrades(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return encodeEach(cmd, fills)
		},
	}
	tradesCmd.Flags().String("account", "", "Filter by account")
	tradesCmd.Flags().String("symbol", "", "Filter by symbol")
	tradesCmd.Flags().Int("limit", 100, "Page size")
	tradesCmd.Flags().Bool("all", false, "Follow pagination to the end")
	return tradesCmd
}

func newStateAlertsCommand() *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			severity, _ := cmd.Flags().GetString("severity")
			unacked, _ := cmd.Flags().GetBool("unacked")
			limit, _ := cmd.Flags().GetInt("limit")

			client, _, err := stateClient(cmd)
			if err != nil {
				return err
			}

			alerts, err := client.GetAlerts(cmd.Context(), api.GetAlertsOptions{
				Severity: severity,
				Unacked:  unacked,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			return encodeEach(cmd, alerts)
		},
	}
	alertsCmd.Flags().String("severity", "", "Filter by severity: info, warning, critical")
	alertsCmd.Flags().Bool("unacked", false, "Only unacknowledged alerts")
	alertsCmd.Flags().Int("limit", 100, "Maximum alerts to return")
	return alertsCmd
}

func newStateCrawlCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "List crawl tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := stateClient(cmd)
			if err != nil {
				return err
			}

			tasks, err := client.GetCrawlTasks(cmd.Context())
			if err != nil {
				return err
			}
			return encodeEach(cmd, tasks)
		},
	}
}

func newStateHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show console health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := stateClient(cmd)
			if err != nil {
				return err
			}

			health, err := client.GetHealth(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(health)
		},
	}
}

// NewAckCommand constructs the `ack` command.
func NewAckCommand() *cobra.Command {
	ackCmd := &cobra.Command{
		Use:   "ack <alert-id>",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("alert id %q: %w", args[0], err)
			}

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if restURL, _ := cmd.Flags().GetString("rest-url"); restURL != "" {
				cfg.Console.RestURL = restURL
			}
			if apiKey, _ := cmd.Flags().GetString("api-key"); apiKey != "" {
				cfg.Console.APIKey = apiKey
			}

			if err := newAPIClient(cfg).AckAlert(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "acked", id)
			return nil
		},
	}
	ackCmd.Flags().String("rest-url", "", "Override the console REST URL")
	ackCmd.Flags().String("api-key", "", "Override the console API key")
	return ackCmd
}
