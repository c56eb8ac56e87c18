package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/api"
	"github.com/abhishekslab/growwbot/internal/backtest"
	"github.com/abhishekslab/growwbot/internal/broker"
	"github.com/abhishekslab/growwbot/internal/candlecache"
	"github.com/abhishekslab/growwbot/internal/config"
	apperrors "github.com/abhishekslab/growwbot/internal/errors"
	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/monitor"
	"github.com/abhishekslab/growwbot/internal/notify"
	"github.com/abhishekslab/growwbot/internal/picks"
	"github.com/abhishekslab/growwbot/internal/resilience"
	"github.com/abhishekslab/growwbot/internal/store"
	"github.com/abhishekslab/growwbot/internal/strategy"
	"github.com/abhishekslab/growwbot/internal/trading"
)

// App holds the application dependencies. Components are built on first use
// so commands that need no broker or database never touch them.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	mu       sync.Mutex
	store    *store.SQLiteStore
	broker   broker.Broker
	cache    *candlecache.Cache
	registry *strategy.Registry
}

// NewApp creates an App and applies the configured fee schedule.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	fees.SetSchedule(cfg.Fees)
	return &App{Config: cfg, Logger: logger}
}

// Store opens the SQLite database.
func (a *App) Store() (*store.SQLiteStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.Config.Database.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := store.NewSQLiteStore(a.Config.Database.Path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Database.Path).Msg("SQLite store initialized")
	a.store = st
	return st, nil
}

// Broker returns the configured broker wrapped in circuit breakers.
func (a *App) Broker() (broker.Broker, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.broker != nil {
		return a.broker, nil
	}

	var inner broker.Broker
	switch a.Config.Broker.Provider {
	case "replay":
		inner = broker.NewReplayBroker(a.Config.Broker.ReplayDir)
		a.Logger.Debug().Str("dir", a.Config.Broker.ReplayDir).Msg("replay broker initialized")
	case "kite":
		creds := a.Config.Credentials.Kite
		if creds.APIKey == "" || creds.AccessToken == "" {
			return nil, fmt.Errorf("%w: set KITE_API_KEY and KITE_ACCESS_TOKEN or use the replay provider", apperrors.ErrNotAuthenticated)
		}
		inner = broker.NewKiteBroker(broker.KiteConfig{
			APIKey:      creds.APIKey,
			AccessToken: creds.AccessToken,
			Logger:      a.Logger,
		})
		a.Logger.Debug().Msg("Kite broker initialized")
	default:
		return nil, fmt.Errorf("unknown broker provider %q", a.Config.Broker.Provider)
	}

	breakers := resilience.NewRegistry(resilience.Settings{
		TripAfter: a.Config.Broker.BreakerTripAfter,
		Trials:    2,
		Cooldown:  a.Config.Broker.BreakerCooldown,
	}, a.Logger)
	a.broker = broker.NewGuarded(inner, breakers)
	return a.broker, nil
}

// Cache returns the candle cache over the store and broker.
func (a *App) Cache() (*candlecache.Cache, error) {
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	b, err := a.Broker()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache == nil {
		a.cache = candlecache.New(st, b,
			candlecache.WithRateLimit(a.Config.Broker.RequestsPerSecond),
			candlecache.WithLogger(a.Logger),
		)
	}
	return a.cache, nil
}

// Registry returns the strategy registry with configured thresholds.
func (a *App) Registry() *strategy.Registry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.registry == nil {
		a.registry = a.Config.Registry()
	}
	return a.registry
}

// Provider returns the configured daily-picks source, without snapshot caching.
func (a *App) Provider() (picks.Provider, error) {
	switch a.Config.DailyPicks.Source {
	case "file":
		if a.Config.DailyPicks.PicksFile == "" {
			return nil, fmt.Errorf("daily_picks.picks_file is required for the file source")
		}
		return picks.NewFileProvider(a.Config.DailyPicks.PicksFile), nil
	default:
		cache, err := a.Cache()
		if err != nil {
			return nil, err
		}
		universe := a.Config.DailyPicks.Universe
		if len(universe) == 0 {
			universe = picks.DefaultFnoSymbols
		}
		cfg := picks.DefaultScreenerConfig(universe)
		if len(a.Config.DailyPicks.FnoSymbols) > 0 {
			cfg.FnoSymbols = a.Config.DailyPicks.FnoSymbols
		}
		return picks.NewHistoricalScreener(cache, cfg, a.Logger), nil
	}
}

func (a *App) engineOptions() ([]backtest.Option, error) {
	policy, err := trading.ParseTiePolicy(a.Config.Backtest.TiePolicy)
	if err != nil {
		return nil, err
	}
	return []backtest.Option{
		backtest.WithTiePolicy(policy),
		backtest.WithCalendar(trading.NewCalendar(a.Config.Backtest.Holidays...)),
		backtest.WithLogger(a.Logger),
	}, nil
}

// Engine builds the single-symbol backtest engine.
func (a *App) Engine() (*backtest.Engine, error) {
	cache, err := a.Cache()
	if err != nil {
		return nil, err
	}
	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	return backtest.NewEngine(cache, a.Registry(), opts...), nil
}

// DailyPicksEngine builds the portfolio engine with snapshot caching.
func (a *App) DailyPicksEngine() (*backtest.DailyPicksEngine, error) {
	cache, err := a.Cache()
	if err != nil {
		return nil, err
	}
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	provider, err := a.Provider()
	if err != nil {
		return nil, err
	}
	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, backtest.WithSnapshotStore(st))
	return backtest.NewDailyPicksEngine(cache, provider, a.Registry(), opts...), nil
}

// Recorder returns a run recorder over the store.
func (a *App) Recorder() (*backtest.Recorder, error) {
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	return backtest.NewRecorder(st, a.Logger), nil
}

// Monitor builds the live position monitor.
func (a *App) Monitor() (*monitor.Monitor, error) {
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	b, err := a.Broker()
	if err != nil {
		return nil, err
	}
	mc := a.Config.Monitor
	cfg := monitor.DefaultConfig()
	cfg.Interval = mc.Interval
	cfg.BatchSize = mc.BatchSize
	cfg.BaseBackoff = mc.BaseBackoff
	cfg.MaxBackoff = mc.MaxBackoff
	cfg.PaperMode = a.Config.IsPaperMode()
	cfg.MarketHoursOnly = mc.MarketHoursOnly
	m := monitor.New(st, b, cfg, a.Logger)
	m.SetNotifier(notify.FromConfig(a.Config.Notify, a.Config.Credentials.Telegram))
	return m, nil
}

// Server builds the HTTP server over every engine.
func (a *App) Server() (*api.Server, error) {
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	cache, err := a.Cache()
	if err != nil {
		return nil, err
	}
	engine, err := a.Engine()
	if err != nil {
		return nil, err
	}
	daily, err := a.DailyPicksEngine()
	if err != nil {
		return nil, err
	}
	deps := api.Deps{
		Backtest:   engine,
		DailyPicks: daily,
		Recorder:   backtest.NewRecorder(st, a.Logger),
		Runs:       st,
		Snapshots:  st,
		Cache:      cache,
		Registry:   a.Registry(),
		Workers:    a.Config.DailyPicks.Workers,
		Logger:     a.Logger,
	}
	if b, err := a.Broker(); err == nil {
		if breakers, ok := b.(api.Breakers); ok {
			deps.Breakers = breakers
		}
	}
	return api.NewServer(deps), nil
}

// Close releases the database.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
