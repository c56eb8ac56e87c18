// Package api exposes the backtest engines and run history over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/backtest"
	"github.com/abhishekslab/growwbot/internal/logging"
	"github.com/abhishekslab/growwbot/internal/resilience"
	"github.com/abhishekslab/growwbot/internal/store"
	"github.com/abhishekslab/growwbot/internal/strategy"
	"github.com/abhishekslab/growwbot/pkg/utils"
)

// CandleCache is the cache administration the server exposes.
type CandleCache interface {
	Stats(ctx context.Context) (*store.CacheStats, error)
	Clear(ctx context.Context, symbol string) (int64, error)
}

// Breakers reports and resets the broker circuit breakers.
type Breakers interface {
	Stats() []resilience.Snapshot
	Reset()
}

// Deps are the components the server routes to.
type Deps struct {
	Backtest   *backtest.Engine
	DailyPicks *backtest.DailyPicksEngine
	Recorder   *backtest.Recorder
	Runs       store.RunStore
	Snapshots  store.SnapshotStore
	Cache      CandleCache
	Registry   *strategy.Registry
	Breakers   Breakers
	// Workers is the per-day worker count for daily-picks runs.
	Workers int
	Logger  zerolog.Logger
}

// Server wires HTTP endpoints around the backtest engines.
type Server struct {
	Router *gin.Engine
	deps   Deps
	logger zerolog.Logger
}

// NewServer builds the router and registers every route.
func NewServer(deps Deps) *Server {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware(deps.Logger))
	r.Use(RequestLogger())

	s := &Server{
		Router: r,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "api").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.GET("/algos", s.listAlgos)
		api.POST("/breakers/reset", s.resetBreakers)

		bt := api.Group("/backtest")
		bt.POST("/run", s.runBacktest)
		bt.POST("/daily-picks", s.runDailyPicks)
		bt.GET("/history", s.history)
		bt.GET("/cache/status", s.cacheStatus)
		bt.POST("/cache/clear", s.clearCache)
		bt.DELETE("/cache-daily-picks", s.clearDailyPicksCache)
		bt.GET("/:id", s.getRun)
		bt.DELETE("/:id", s.deleteRun)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

type breakerStatus struct {
	resilience.Snapshot
	FailureRatePct float64 `json:"failure_rate_pct"`
}

// health reports "degraded" while any broker breaker is not closed.
func (s *Server) health(c *gin.Context) {
	now := time.Now().In(utils.IndiaLocation)
	body := gin.H{
		"status":   "ok",
		"market":   utils.MarketStatusAt(now),
		"time_ist": now.Format("15:04"),
	}
	if s.deps.Breakers != nil {
		stats := s.deps.Breakers.Stats()
		breakers := make([]breakerStatus, 0, len(stats))
		for _, st := range stats {
			if st.State != resilience.StateClosed {
				body["status"] = "degraded"
			}
			breakers = append(breakers, breakerStatus{Snapshot: st, FailureRatePct: st.FailureRate()})
		}
		body["breakers"] = breakers
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) resetBreakers(c *gin.Context) {
	if s.deps.Breakers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "broker not configured"})
		return
	}
	s.deps.Breakers.Reset()
	logger := logging.FromContext(c.Request.Context())
	logger.Info().Msg("circuit breakers reset")
	c.JSON(http.StatusOK, gin.H{"reset": true})
}
