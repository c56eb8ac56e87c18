// Package cli provides the command-line interface for growwbot.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abhishekslab/growwbot/internal/config"
)

// Set with -ldflags "-X github.com/abhishekslab/growwbot/internal/cli.Version=..." at release.
var (
	Version   = "0.1.0-dev"
	BuildDate = "unknown"
)

// NewRootCmd creates the root command for the CLI. The --config flag is read
// by the caller before cfg is loaded; it is declared here so help shows it.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := NewApp(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "growwbot",
		Short: "Intraday strategy backtester and position monitor for NSE",
		Long: `growwbot replays intraday strategies over historical candles and watches
open positions until their stop-loss or target is hit.

Backtests run either on a single symbol or over each day's screened picks with
compounding capital. Candle data is cached locally in SQLite.

Use 'growwbot <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/growwbot)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "research", Title: "Research:"},
		&cobra.Group{ID: "live", Title: "Live positions:"},
	)
	for _, c := range []*cobra.Command{newBacktestCmd(app), newCacheCmd(app), newPicksCmd(app)} {
		c.GroupID = "research"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{newTradeCmd(app), newMonitorCmd(app), newServeCmd(app)} {
		c.GroupID = "live"
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(newVersionCmd(), newConfigCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("growwbot v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}
