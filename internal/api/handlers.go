package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/abhishekslab/growwbot/internal/backtest"
	apperrors "github.com/abhishekslab/growwbot/internal/errors"
	"github.com/abhishekslab/growwbot/internal/logging"
	"github.com/abhishekslab/growwbot/internal/store"
)

func (s *Server) listAlgos(c *gin.Context) {
	if s.deps.Registry == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, s.deps.Registry.List())
}

func (s *Server) runBacktest(c *gin.Context) {
	var cfg backtest.RunConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}
	if cfg.AlgoID == "" || cfg.Symbol == "" || cfg.StartDate == "" || cfg.EndDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "algo_id, groww_symbol, start_date and end_date are required"})
		return
	}
	if s.deps.Backtest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest engine not configured"})
		return
	}

	ctx := c.Request.Context()
	s.stream(c, s.deps.Backtest.Run(ctx, cfg), func(ctx context.Context, result backtest.Complete) (int64, error) {
		return s.deps.Recorder.SaveRun(ctx, cfg, result)
	})
}

func (s *Server) runDailyPicks(c *gin.Context) {
	var cfg backtest.DailyPicksConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}
	if cfg.AlgoID == "" || cfg.StartDate == "" || cfg.EndDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "algo_id, start_date and end_date are required"})
		return
	}
	if s.deps.DailyPicks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "daily-picks engine not configured"})
		return
	}
	cfg.Workers = s.deps.Workers

	ctx := c.Request.Context()
	s.stream(c, s.deps.DailyPicks.Run(ctx, cfg), func(ctx context.Context, result backtest.Complete) (int64, error) {
		return s.deps.Recorder.SaveDailyPicks(ctx, cfg, result)
	})
}

// stream writes each event as an SSE data frame and records the run when the
// complete event arrives. The channel is always drained.
func (s *Server) stream(c *gin.Context, events <-chan backtest.Event, save func(context.Context, backtest.Complete) (int64, error)) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	logger := logging.FromContext(c.Request.Context())
	writable := true
	for ev := range events {
		if writable {
			if err := writeEvent(c.Writer, ev); err != nil {
				logger.Debug().Err(err).Msg("client went away, draining stream")
				writable = false
			}
		}
		if ev.Type != backtest.EventComplete || save == nil || s.deps.Recorder == nil {
			continue
		}
		result, ok := ev.Data.(backtest.Complete)
		if !ok {
			continue
		}
		// the run is kept even if the client disconnected after complete
		if _, err := save(context.WithoutCancel(c.Request.Context()), result); err != nil {
			logger.Error().Err(err).Msg("failed to save backtest run")
		}
	}
}

func writeEvent(w gin.ResponseWriter, ev backtest.Event) error {
	data, err := ev.MarshalJSON()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func (s *Server) history(c *gin.Context) {
	limit := store.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.deps.Runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	run, err := s.deps.Runs.GetRun(c.Request.Context(), id)
	if errors.Is(err, apperrors.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backtest run not found"})
		return
	}
	if err != nil {
		s.internalError(c, "failed to load run", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) deleteRun(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	deleted, err := s.deps.Runs.DeleteRun(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, "failed to delete run", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Backtest run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "id": id})
}

func (s *Server) cacheStatus(c *gin.Context) {
	if s.deps.Cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "candle cache not configured"})
		return
	}
	stats, err := s.deps.Cache.Stats(c.Request.Context())
	if err != nil {
		s.internalError(c, "failed to read cache stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) clearCache(c *gin.Context) {
	if s.deps.Cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "candle cache not configured"})
		return
	}
	symbol := c.Query("groww_symbol")
	n, err := s.deps.Cache.Clear(c.Request.Context(), symbol)
	if err != nil {
		s.internalError(c, "failed to clear cache", err)
		return
	}
	logger := logging.FromContext(c.Request.Context())
	logger.Info().Str("symbol", symbol).Int64("deleted", n).Msg("candle cache cleared")
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) clearDailyPicksCache(c *gin.Context) {
	if s.deps.Snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store not configured"})
		return
	}
	n, err := s.deps.Snapshots.ClearSnapshots(c.Request.Context())
	if err != nil {
		s.internalError(c, "failed to clear daily-picks snapshots", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func runID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return 0, false
	}
	return id, true
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	logger := logging.FromContext(c.Request.Context())
	logger.Error().Err(err).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
