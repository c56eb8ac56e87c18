package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/abhishekslab/growwbot/internal/backtest"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/pkg/utils"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run and inspect strategy backtests",
	}
	cmd.AddCommand(newBacktestRunCmd(app))
	cmd.AddCommand(newDailyPicksCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	return cmd
}

func newBacktestRunCmd(app *App) *cobra.Command {
	var (
		cfg    backtest.RunConfig
		noSave bool
	)
	defaults := app.Config.Backtest

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk one symbol's candles through a strategy",
		Example: `  growwbot backtest run --algo momentum_scalp --symbol NSE-RELIANCE --start 2025-01-06 --end 2025-01-10
  growwbot backtest run --algo mean_reversion --symbol NSE-TCS --start 2025-01-01 --end 2025-01-31 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			engine, err := app.Engine()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var bar *progressbar.ProgressBar
			if !output.IsJSON() {
				bar = newBar(100, fmt.Sprintf("%s %s", cfg.AlgoID, cfg.Symbol))
			}
			last, ok := backtest.Collect(engine.Run(ctx, cfg), func(ev backtest.Event) {
				if output.IsJSON() {
					_ = output.JSONLine(ev)
					return
				}
				if p, isProgress := ev.Data.(backtest.Progress); isProgress {
					_ = bar.Set(int(p.Percent))
				}
			})
			if bar != nil {
				_ = bar.Finish()
			}
			if !ok {
				return ctx.Err()
			}
			if failure, isFailure := last.Data.(backtest.Failure); isFailure {
				return errors.New(failure.Error)
			}

			result := last.Data.(backtest.Complete)
			var runID int64
			if !noSave {
				rec, err := app.Recorder()
				if err != nil {
					return err
				}
				if runID, err = rec.SaveRun(ctx, cfg, result); err != nil {
					return err
				}
			}
			if output.IsJSON() {
				return nil
			}
			printTrades(output, result.Trades)
			printMetrics(output, result.Metrics)
			printSignalAnalysis(output, result.SignalAnalysis)
			if runID > 0 {
				output.Dim("Saved as run %d", runID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.AlgoID, "algo", "", "strategy id")
	cmd.Flags().StringVar(&cfg.Symbol, "symbol", "", "symbol, e.g. NSE-RELIANCE")
	cmd.Flags().StringVar(&cfg.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.EndDate, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.Exchange, "exchange", defaults.Exchange, "exchange")
	cmd.Flags().StringVar(&cfg.Segment, "segment", defaults.Segment, "segment")
	cmd.Flags().StringVar(&cfg.Interval, "interval", defaults.Interval, "candle interval")
	cmd.Flags().Float64Var(&cfg.InitialCapital, "capital", defaults.InitialCapital, "initial capital")
	cmd.Flags().Float64Var(&cfg.RiskPercent, "risk", defaults.RiskPercent, "risk per trade in percent")
	cmd.Flags().IntVar(&cfg.MaxPositions, "max-positions", defaults.MaxPositions, "maximum concurrent positions")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the run in history")
	for _, f := range []string{"algo", "symbol", "start", "end"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newDailyPicksCmd(app *App) *cobra.Command {
	var (
		cfg     backtest.DailyPicksConfig
		refresh bool
		noSave  bool
	)
	defaults := app.Config

	cmd := &cobra.Command{
		Use:   "daily-picks",
		Short: "Trade each day's screened picks with compounding capital",
		Example: `  growwbot backtest daily-picks --algo momentum_scalp --start 2025-01-06 --end 2025-01-31
  growwbot backtest daily-picks --algo mean_reversion --start 2025-02-03 --end 2025-02-07 --max-positions 5 --refresh-picks`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			engine, err := app.DailyPicksEngine()
			if err != nil {
				return err
			}
			useCache := defaults.DailyPicks.UseCachedSnapshots && !refresh
			cfg.UseCachedSnapshots = &useCache
			cfg.Workers = defaults.DailyPicks.Workers

			ctx := cmd.Context()
			var bar *progressbar.ProgressBar
			last, ok := backtest.Collect(engine.Run(ctx, cfg), func(ev backtest.Event) {
				if output.IsJSON() {
					_ = output.JSONLine(ev)
					return
				}
				switch d := ev.Data.(type) {
				case backtest.DayStart:
					if bar == nil {
						bar = newBar(d.TotalDays, cfg.AlgoID+" daily picks")
					}
					bar.Describe(fmt.Sprintf("%s (%d picks)", d.Date, d.CandidatesCount))
				case backtest.DayComplete:
					_ = bar.Set(d.Day)
				}
			})
			if bar != nil {
				_ = bar.Finish()
			}
			if !ok {
				return ctx.Err()
			}
			if failure, isFailure := last.Data.(backtest.Failure); isFailure {
				return errors.New(failure.Error)
			}

			result := last.Data.(backtest.Complete)
			var runID int64
			if !noSave {
				rec, err := app.Recorder()
				if err != nil {
					return err
				}
				if runID, err = rec.SaveDailyPicks(ctx, cfg, result); err != nil {
					return err
				}
			}
			if output.IsJSON() {
				return nil
			}
			printDailySummary(output, result.Trades)
			printMetrics(output, result.Metrics)
			if runID > 0 {
				output.Dim("Saved as run %d", runID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.AlgoID, "algo", "", "strategy id")
	cmd.Flags().StringVar(&cfg.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.EndDate, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.Interval, "interval", defaults.Backtest.Interval, "candle interval")
	cmd.Flags().Float64Var(&cfg.InitialCapital, "capital", defaults.Backtest.InitialCapital, "initial capital")
	cmd.Flags().Float64Var(&cfg.RiskPercent, "risk", defaults.Backtest.RiskPercent, "risk per trade in percent")
	cmd.Flags().IntVar(&cfg.MaxPositionsPerDay, "max-positions", defaults.DailyPicks.MaxPositionsPerDay, "maximum symbols traded per day")
	cmd.Flags().IntVar(&cfg.MaxTradeDurationMinutes, "max-duration", defaults.DailyPicks.MaxTradeDurationMinutes, "minutes before a position is time-exited")
	cmd.Flags().BoolVar(&refresh, "refresh-picks", false, "recompute picks instead of using cached snapshots")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the run in history")
	for _, f := range []string{"algo", "start", "end"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded backtest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Dim("No backtest runs recorded")
				return nil
			}

			table := NewTable(output, "ID", "ALGO", "SYMBOL", "RANGE", "TRADES", "WIN%", "NET P&L", "RETURN", "CREATED")
			for _, r := range runs {
				trades, winRate, pnl, ret := "-", "-", "-", "-"
				if m := r.Metrics; m != nil {
					trades = strconv.Itoa(m.TradeCount)
					winRate = fmt.Sprintf("%.1f", m.WinRatePct)
					pnl = output.FormatPnL(m.NetPnL)
					ret = output.FormatPercent(m.TotalReturnPct)
				}
				table.AddRow(
					strconv.FormatInt(r.ID, 10), r.AlgoID, r.Symbol,
					r.StartDate+" to "+r.EndDate, trades, winRate, pnl, ret,
					r.CreatedAt.In(utils.IndiaLocation).Format("02-Jan 15:04"),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum runs to list")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded run with its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			run, err := st.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(run)
			}

			output.Bold("Run %d: %s on %s", run.ID, run.AlgoID, run.Symbol)
			output.Dim("%s to %s, %s candles", run.StartDate, run.EndDate, run.Interval)
			output.Println()
			if run.Symbol == backtest.DailyPicksSymbol {
				printDailySummary(output, run.Trades)
			} else {
				printTrades(output, run.Trades)
			}
			if run.Metrics != nil {
				printMetrics(output, *run.Metrics)
			}
			return nil
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			deleted, err := st.DeleteRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{"id": id, "deleted": deleted})
			}
			if !deleted {
				output.Warning("Run %d not found", id)
				return nil
			}
			output.Success("Deleted run %d", id)
			return nil
		},
	}
}

func newBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func printTrades(output *Output, trades []models.ClosedTrade) {
	if len(trades) == 0 {
		output.Dim("No trades")
		output.Println()
		return
	}
	table := NewTable(output, "ENTRY", "EXIT", "QTY", "ENTRY PX", "EXIT PX", "TRIGGER", "FEES", "P&L")
	for _, t := range trades {
		table.AddRow(
			formatBarTime(t.EntryTime), formatBarTime(t.ExitTime),
			strconv.Itoa(t.Quantity),
			fmt.Sprintf("%.2f", t.EntryPrice), fmt.Sprintf("%.2f", t.ExitPrice),
			string(t.ExitTrigger),
			fmt.Sprintf("%.2f", t.Fees),
			output.FormatPnL(t.PnL),
		)
	}
	table.Render()
	output.Println()
}

// printDailySummary groups trades by trading day.
func printDailySummary(output *Output, trades []models.ClosedTrade) {
	type day struct {
		trades int
		wins   int
		pnl    float64
		fees   float64
	}
	days := map[string]*day{}
	for _, t := range trades {
		d := days[t.Date]
		if d == nil {
			d = &day{}
			days[t.Date] = d
		}
		d.trades++
		if t.PnL > 0 {
			d.wins++
		}
		d.pnl += t.PnL
		d.fees += t.Fees
	}
	if len(days) == 0 {
		output.Dim("No trades")
		output.Println()
		return
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	table := NewTable(output, "DATE", "TRADES", "WINS", "FEES", "P&L")
	for _, date := range dates {
		d := days[date]
		table.AddRow(date, strconv.Itoa(d.trades), strconv.Itoa(d.wins), fmt.Sprintf("%.2f", d.fees), output.FormatPnL(d.pnl))
	}
	table.Render()
	output.Println()
}

func printMetrics(output *Output, m models.Metrics) {
	output.Bold("Summary")
	output.Printf("  Trades:          %d (%d won, %d lost)\n", m.TradeCount, m.Wins, m.Losses)
	output.Printf("  Win rate:        %.2f%%\n", m.WinRatePct)
	output.Printf("  Net P&L:         %s\n", output.FormatPnL(m.NetPnL))
	output.Printf("  Expectancy:      %s\n", utils.FormatPnL(m.Expectancy))
	output.Printf("  Fees:            %s\n", utils.FormatIndianCurrency(m.TotalFees))
	output.Printf("  Return:          %s\n", output.FormatPercent(m.TotalReturnPct))
	output.Printf("  Final equity:    %s\n", utils.FormatIndianCurrency(m.FinalEquity))
	output.Printf("  Profit factor:   %s\n", utils.FormatRatio(m.ProfitFactor))
	output.Printf("  Max drawdown:    %s (%.2f%%)\n", utils.FormatIndianCurrency(m.MaxDrawdown), m.MaxDrawdownPct)
	output.Printf("  Sharpe/Sortino:  %.2f / %.2f\n", m.SharpeRatio, m.SortinoRatio)
	output.Printf("  Avg hold:        %s\n", utils.FormatSeconds(m.AvgDurationSeconds))
	if m.TotalDays > 0 {
		output.Printf("  Trading days:    %d of %d\n", len(m.TradingDays), m.TotalDays)
	}
}

func printSignalAnalysis(output *Output, analysis map[string]int) {
	if len(analysis) == 0 {
		return
	}
	reasons := make([]string, 0, len(analysis))
	for r := range analysis {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return analysis[reasons[i]] > analysis[reasons[j]] })

	output.Println()
	output.Bold("Rejected signals")
	for _, r := range reasons {
		output.Printf("  %-28s %d\n", r, analysis[r])
	}
}

func formatBarTime(unix int64) string {
	return time.Unix(unix, 0).In(utils.IndiaLocation).Format("2006-01-02 15:04")
}
