package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhishekslab/growwbot/internal/config"
	"github.com/abhishekslab/growwbot/pkg/utils"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			masked := maskedConfig(app.Config)
			if output.IsJSON() {
				return output.JSON(masked)
			}
			showConfig(output, masked)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := app.Config.Dir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir, "config_file": filepath.Join(dir, "config.toml")})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				if output.IsJSON() {
					_ = output.JSON(map[string]any{"valid": false, "error": err.Error()})
				} else {
					output.Error("Configuration validation failed: %v", err)
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

// maskedConfig returns a copy of cfg with credentials obscured.
func maskedConfig(cfg *config.Config) config.Config {
	c := *cfg
	c.Credentials.Kite.APIKey = mask(c.Credentials.Kite.APIKey)
	c.Credentials.Kite.AccessToken = mask(c.Credentials.Kite.AccessToken)
	c.Credentials.Telegram.BotToken = mask(c.Credentials.Telegram.BotToken)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func showConfig(output *Output, cfg config.Config) {
	output.Bold("Broker")
	output.Printf("  Provider:          %s\n", cfg.Broker.Provider)
	if cfg.Broker.Provider == "replay" {
		output.Printf("  Replay dir:        %s\n", cfg.Broker.ReplayDir)
	}
	output.Printf("  Requests/sec:      %.1f\n", cfg.Broker.RequestsPerSecond)
	output.Printf("  Breaker:           %d failures, %s cooldown\n", cfg.Broker.BreakerTripAfter, cfg.Broker.BreakerCooldown)
	output.Printf("  Kite API key:      %s\n", orDash(cfg.Credentials.Kite.APIKey))
	output.Println()

	output.Bold("Backtest")
	output.Printf("  Exchange/segment:  %s/%s\n", cfg.Backtest.Exchange, cfg.Backtest.Segment)
	output.Printf("  Interval:          %s\n", cfg.Backtest.Interval)
	output.Printf("  Initial capital:   %s\n", utils.FormatIndianCurrency(cfg.Backtest.InitialCapital))
	output.Printf("  Risk per trade:    %.2f%%\n", cfg.Backtest.RiskPercent)
	output.Printf("  Tie policy:        %s\n", cfg.Backtest.TiePolicy)
	output.Printf("  Holidays:          %d\n", len(cfg.Backtest.Holidays))
	output.Println()

	output.Bold("Daily picks")
	output.Printf("  Source:            %s\n", cfg.DailyPicks.Source)
	output.Printf("  Max positions/day: %d\n", cfg.DailyPicks.MaxPositionsPerDay)
	output.Printf("  Max duration:      %d min\n", cfg.DailyPicks.MaxTradeDurationMinutes)
	output.Printf("  Workers:           %d\n", cfg.DailyPicks.Workers)
	output.Printf("  Cached snapshots:  %v\n", cfg.DailyPicks.UseCachedSnapshots)
	output.Println()

	output.Bold("Monitor")
	output.Printf("  Interval:          %s\n", cfg.Monitor.Interval)
	output.Printf("  Backoff:           %s to %s\n", cfg.Monitor.BaseBackoff, cfg.Monitor.MaxBackoff)
	output.Printf("  Paper mode:        %v\n", cfg.Monitor.PaperMode)
	output.Printf("  Market hours only: %v\n", cfg.Monitor.MarketHoursOnly)
	output.Printf("  Notify level:      %s\n", cfg.Notify.Level)
	output.Printf("  Webhook:           %s\n", orDash(cfg.Notify.WebhookURL))
	output.Printf("  Telegram chat:     %s\n", orDash(cfg.Notify.TelegramChatID))
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:          %s\n", cfg.Database.Path)
	output.Printf("  Log file:          %s\n", cfg.Logging.Path)
	output.Printf("  Server address:    %s\n", cfg.Server.Addr)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
