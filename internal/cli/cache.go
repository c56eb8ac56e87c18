package cli

import (
	"fmt"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/abhishekslab/growwbot/internal/candlecache"
	"github.com/abhishekslab/growwbot/internal/picks"
	"github.com/abhishekslab/growwbot/internal/trading"
	"github.com/abhishekslab/growwbot/pkg/utils"
)

func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local candle cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show candle cache size and date span",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			stats, err := st.CacheStats(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(stats)
			}
			output.Bold("Candle cache")
			output.Printf("  Day buckets:  %d\n", stats.TotalEntries)
			output.Printf("  Size:         %.1f KB\n", float64(stats.SizeBytes)/1024)
			if stats.OldestDate != "" {
				output.Printf("  Span:         %s to %s\n", stats.OldestDate, stats.NewestDate)
			}
			return nil
		},
	})

	var symbol string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached candles, for one symbol or all",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			n, err := st.ClearCandles(cmd.Context(), symbol)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{"symbol": symbol, "deleted": n})
			}
			output.Success("Deleted %d cached day buckets", n)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&symbol, "symbol", "", "only clear this symbol")
	cmd.AddCommand(clearCmd)

	cmd.AddCommand(newWarmupCmd(app))
	return cmd
}

func newWarmupCmd(app *App) *cobra.Command {
	var (
		symbols    []string
		start, end string
		interval   string
	)
	cmd := &cobra.Command{
		Use:     "warmup",
		Short:   "Fetch and cache candles ahead of a backtest",
		Example: `  growwbot cache warmup --symbol NSE-RELIANCE --symbol NSE-TCS --start 2025-01-01 --end 2025-03-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cache, err := app.Cache()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var bar *progressbar.ProgressBar
			if !output.IsJSON() {
				bar = newBar(len(symbols), "warming cache")
			}
			results := make(map[string]candlecache.FillResult, len(symbols))
			var failed int
			for _, sym := range symbols {
				if bar != nil {
					bar.Describe(sym)
				}
				res, err := cache.Warmup(ctx, candlecache.Request{
					Symbol:    sym,
					Exchange:  app.Config.Backtest.Exchange,
					Segment:   app.Config.Backtest.Segment,
					Interval:  interval,
					StartDate: start,
					EndDate:   end,
				})
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed++
					app.Logger.Warn().Err(err).Str("symbol", sym).Msg("warmup failed")
				}
				results[sym] = res
				if bar != nil {
					_ = bar.Add(1)
				}
			}
			if bar != nil {
				_ = bar.Finish()
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			table := NewTable(output, "SYMBOL", "DAYS", "CACHED", "FETCHED", "CHUNKS", "CANDLES")
			for _, sym := range symbols {
				r := results[sym]
				table.AddRow(sym, strconv.Itoa(r.Days), strconv.Itoa(r.Cached), strconv.Itoa(r.Fetched), strconv.Itoa(r.Chunks), strconv.Itoa(r.Candles))
			}
			table.Render()
			if failed > 0 {
				return fmt.Errorf("%d of %d symbols failed to warm", failed, len(symbols))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&symbols, "symbol", nil, "symbol to warm (repeatable)")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", utils.TodayIST(), "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&interval, "interval", app.Config.Backtest.Interval, "candle interval")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newPicksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "picks",
		Short: "Manage daily-picks snapshots",
	}

	var (
		start, end string
		refresh    bool
	)
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Compute and store picks for every trading day in a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			inner, err := app.Provider()
			if err != nil {
				return err
			}
			days, err := trading.NewCalendar(app.Config.Backtest.Holidays...).TradingDays(start, end)
			if err != nil {
				return err
			}
			provider := picks.NewCachedProvider(inner, st, !refresh, app.Logger)

			ctx := cmd.Context()
			bar := newBar(len(days), "caching picks")
			counts := make(map[string]int, len(days))
			for _, date := range days {
				bar.Describe(date)
				snap, err := provider.Candidates(ctx, date)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					app.Logger.Warn().Err(err).Str("date", date).Msg("picks unavailable")
				}
				if snap != nil {
					counts[date] = len(snap.Candidates)
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			if output.IsJSON() {
				return output.JSON(counts)
			}
			table := NewTable(output, "DATE", "CANDIDATES")
			for _, date := range days {
				table.AddRow(date, strconv.Itoa(counts[date]))
			}
			table.Render()
			return nil
		},
	}
	cacheCmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cacheCmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cacheCmd.Flags().BoolVar(&refresh, "refresh", false, "recompute days that already have a snapshot")
	_ = cacheCmd.MarkFlagRequired("start")
	_ = cacheCmd.MarkFlagRequired("end")
	cmd.AddCommand(cacheCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every stored daily-picks snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			n, err := st.ClearSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": n})
			}
			output.Success("Deleted %d snapshots", n)
			return nil
		},
	})

	var date string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the picks for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			inner, err := app.Provider()
			if err != nil {
				return err
			}
			snap, err := picks.NewCachedProvider(inner, st, true, app.Logger).Candidates(cmd.Context(), date)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(snap)
			}
			if snap == nil || len(snap.Candidates) == 0 {
				output.Dim("No picks for %s", date)
				return nil
			}
			table := NewTable(output, "SYMBOL", "LTP", "CHANGE", "VOLUME", "TURNOVER", "HC")
			for _, c := range picks.Select(snap.Candidates, 0) {
				hc := ""
				if c.HighConviction {
					hc = "yes"
				}
				table.AddRow(c.Symbol, fmt.Sprintf("%.2f", c.LTP), output.FormatPercent(c.DayChangePct),
					utils.FormatCompact(float64(c.Volume)), utils.FormatCompact(c.Turnover), hc)
			}
			table.Render()
			return nil
		},
	}
	showCmd.Flags().StringVar(&date, "date", "", "trading date (YYYY-MM-DD)")
	_ = showCmd.MarkFlagRequired("date")
	cmd.AddCommand(showCmd)

	return cmd
}
