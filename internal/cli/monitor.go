package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/logging"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/store"
)

func newMonitorCmd(app *App) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch open trades and exit them at stop-loss or target",
		Long: `Polls last traded prices for every OPEN trade and closes a trade once the
price crosses its stop-loss or target. Paper trades are closed by simulation;
live trades place a market sell. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			m, err := app.Monitor()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), app.Logger)
			if once {
				return m.Pass(ctx)
			}
			if !output.IsJSON() {
				mode := "live"
				if app.Config.IsPaperMode() {
					mode = "paper"
				}
				output.Info("Monitoring open trades every %s (%s mode). Ctrl+C to stop.", app.Config.Monitor.Interval, mode)
			}
			return m.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}

func newServeCmd(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backtest HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := app.Server()
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", app.Config.Server.Addr, "listen address")
	return cmd
}

func newTradeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Record and list trades watched by the monitor",
	}
	cmd.AddCommand(newTradeAddCmd(app))
	cmd.AddCommand(newTradeListCmd(app))
	return cmd
}

func newTradeAddCmd(app *App) *cobra.Command {
	var (
		t        models.Trade
		delivery bool
		live     bool
	)
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Record a long trade with its stop-loss and target",
		Example: `  growwbot trade add --symbol NSE-RELIANCE --entry 2450 --sl 2430 --target 2490 --qty 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if t.StopLoss >= t.EntryPrice || t.Target <= t.EntryPrice {
				return fmt.Errorf("stop-loss must be below entry and target above it")
			}
			if t.Quantity <= 0 {
				return fmt.Errorf("quantity must be positive")
			}
			t.TradeType = models.TradeTypeIntraday
			if delivery {
				t.TradeType = models.TradeTypeDelivery
			}
			t.IsPaper = !live || app.Config.IsPaperMode()
			t.CapitalUsed = fees.Round2(t.EntryPrice * float64(t.Quantity))
			t.RiskAmount = fees.Round2((t.EntryPrice - t.StopLoss) * float64(t.Quantity))

			st, err := app.Store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if t.IsPaper {
				t.OrderStatus = models.OrderSimulated
			} else {
				b, err := app.Broker()
				if err != nil {
					return err
				}
				res, err := b.PlaceOrder(ctx, models.EntryOrder(t))
				if err != nil {
					return fmt.Errorf("entry order failed: %w", err)
				}
				t.OrderID = res.OrderID
				t.OrderStatus = models.OrderPlaced
				logging.Order(app.Logger, string(models.OrderSideBuy), t.Symbol, t.Quantity, t.EntryPrice, res.OrderID)
			}

			id, err := st.CreateTrade(ctx, &t)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(t)
			}
			output.Success("Recorded trade %d: %s x%d @ %.2f (SL %.2f, target %.2f)", id, t.Symbol, t.Quantity, t.EntryPrice, t.StopLoss, t.Target)
			output.Dim("Fee breakeven exit: %.2f", fees.FeeBreakeven(t.EntryPrice, t.Quantity, t.TradeType))
			return nil
		},
	}
	cmd.Flags().StringVar(&t.Symbol, "symbol", "", "symbol, e.g. NSE-RELIANCE")
	cmd.Flags().Float64Var(&t.EntryPrice, "entry", 0, "entry price")
	cmd.Flags().Float64Var(&t.StopLoss, "sl", 0, "stop-loss price")
	cmd.Flags().Float64Var(&t.Target, "target", 0, "target price")
	cmd.Flags().IntVar(&t.Quantity, "qty", 0, "quantity")
	cmd.Flags().StringVar(&t.AlgoID, "algo", "", "strategy that produced the trade")
	cmd.Flags().StringVar(&t.Notes, "notes", "", "free-form notes")
	cmd.Flags().BoolVar(&delivery, "delivery", false, "delivery (CNC) instead of intraday")
	cmd.Flags().BoolVar(&live, "live", false, "place a real entry order (ignored in paper mode)")
	for _, f := range []string{"symbol", "entry", "sl", "target", "qty"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newTradeListCmd(app *App) *cobra.Command {
	var (
		statuses []string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			filter := store.TradeFilter{Limit: limit}
			for _, s := range statuses {
				filter.Status = append(filter.Status, models.TradeStatus(strings.ToUpper(s)))
			}
			trades, err := st.ListTrades(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No trades")
				return nil
			}

			table := NewTable(output, "ID", "SYMBOL", "QTY", "ENTRY", "SL", "TARGET", "STATUS", "EXIT", "P&L", "MODE")
			for _, t := range trades {
				exit, pnl := "-", "-"
				if t.ExitPrice != nil {
					exit = fmt.Sprintf("%.2f %s", *t.ExitPrice, t.ExitTrigger)
				}
				if t.ActualPnL != nil {
					pnl = output.FormatPnL(*t.ActualPnL)
				}
				mode := "live"
				if t.IsPaper {
					mode = "paper"
				}
				table.AddRow(strconv.FormatInt(t.ID, 10), t.Symbol, strconv.Itoa(t.Quantity),
					fmt.Sprintf("%.2f", t.EntryPrice), fmt.Sprintf("%.2f", t.StopLoss), fmt.Sprintf("%.2f", t.Target),
					string(t.Status), exit, pnl, mode)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (OPEN, WON, LOST, CLOSED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum trades to list")
	return cmd
}
