package picks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/abhishekslab/growwbot/internal/candlecache"
	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/models"
)

// CandleGetter is the read side of the candle cache.
type CandleGetter interface {
	GetCandles(ctx context.Context, req candlecache.Request) ([]models.Candle, error)
}

// ScreenerConfig tunes the historical screener.
type ScreenerConfig struct {
	Universe    []string
	FnoSymbols  []string
	MinPrice    float64
	MaxPrice    float64
	MinTurnover float64
	TopFno      int
	TopOthers   int
	Workers     int
}

// DefaultScreenerConfig returns the screener's standard filters over universe.
func DefaultScreenerConfig(universe []string) ScreenerConfig {
	return ScreenerConfig{
		Universe:    universe,
		FnoSymbols:  DefaultFnoSymbols,
		MinPrice:    50,
		MaxPrice:    50000,
		MinTurnover: 5_000_000,
		TopFno:      30,
		TopOthers:   100,
		Workers:     5,
	}
}

const (
	gainerMinVolume       = 100_000
	volumeLeaderMinVolume = 500_000
)

// HistoricalScreener rebuilds what the live screener would have picked on a
// past date from that day's daily candle.
type HistoricalScreener struct {
	candles CandleGetter
	cfg     ScreenerConfig
	fno     map[string]bool
	logger  zerolog.Logger
}

// NewHistoricalScreener creates a screener reading daily candles through candles.
func NewHistoricalScreener(candles CandleGetter, cfg ScreenerConfig, logger zerolog.Logger) *HistoricalScreener {
	if cfg.Workers < 1 {
		cfg.Workers = 5
	}
	fno := make(map[string]bool, len(cfg.FnoSymbols))
	for _, s := range cfg.FnoSymbols {
		fno[bareSymbol(s)] = true
	}
	return &HistoricalScreener{
		candles: candles,
		cfg:     cfg,
		fno:     fno,
		logger:  logger.With().Str("component", "screener").Logger(),
	}
}

type dailyBar struct {
	symbol string
	bar    models.Candle
}

// Candidates implements Provider.
func (s *HistoricalScreener) Candidates(ctx context.Context, date string) (*Snapshot, error) {
	start := time.Now()

	var mu sync.Mutex
	var bars []dailyBar

	p := pool.New().WithMaxGoroutines(s.cfg.Workers).WithContext(ctx)
	for _, sym := range s.cfg.Universe {
		sym := sym
		p.Go(func(ctx context.Context) error {
			candles, err := s.candles.GetCandles(ctx, candlecache.Request{
				Symbol:    sym,
				Exchange:  string(models.NSE),
				Segment:   string(models.SegmentCash),
				Interval:  "1day",
				StartDate: date,
				EndDate:   date,
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Debug().Err(err).Str("symbol", sym).Str("date", date).Msg("daily candle unavailable")
				return nil
			}
			if len(candles) == 0 {
				return nil
			}
			mu.Lock()
			bars = append(bars, dailyBar{symbol: sym, bar: candles[len(candles)-1]})
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].symbol < bars[j].symbol })

	var fnoRows, otherRows []models.Candidate
	for _, b := range bars {
		c, ok := s.candidate(b)
		if !ok {
			continue
		}
		if c.FnoEligible {
			fnoRows = append(fnoRows, c)
		} else {
			otherRows = append(otherRows, c)
		}
	}
	afterPrice := len(fnoRows) + len(otherRows)

	candidates := append(top(otherRows, s.cfg.TopOthers), top(fnoRows, s.cfg.TopFno)...)

	snap := &Snapshot{
		Candidates: candidates,
		Meta: Meta{
			Date:                       date,
			Source:                     "screener",
			Historical:                 true,
			TotalInstrumentsScanned:    len(s.cfg.Universe),
			CandidatesAfterPriceFilter: afterPrice,
			ScanTimeSeconds:            fees.Round2(time.Since(start).Seconds()),
		},
	}
	snap.Count()

	s.logger.Info().
		Str("date", date).
		Int("candidates", len(candidates)).
		Int("high_conviction", snap.Meta.HighConvictionCount).
		Msg("daily picks screened")

	return snap, nil
}

// candidate applies the price filter and tags criteria flags.
func (s *HistoricalScreener) candidate(b dailyBar) (models.Candidate, bool) {
	bar := b.bar
	if bar.Close < s.cfg.MinPrice || bar.Close > s.cfg.MaxPrice || bar.Open <= 0 {
		return models.Candidate{}, false
	}

	turnover := fees.Round2(float64(bar.Volume) * bar.Close)
	meetsTurnover := turnover >= s.cfg.MinTurnover
	fno := s.fno[bareSymbol(b.symbol)]

	c := models.Candidate{
		Symbol:       b.symbol,
		Name:         bareSymbol(b.symbol),
		LTP:          fees.Round2(bar.Close),
		Open:         fees.Round2(bar.Open),
		High:         bar.High,
		Low:          bar.Low,
		Close:        bar.Close,
		Volume:       bar.Volume,
		DayChangePct: fees.Round2((bar.Close - bar.Open) / bar.Open * 100),
		Turnover:     turnover,
		FnoEligible:  fno,
	}
	c.MeetsGainerCriteria = meetsTurnover && bar.Volume >= gainerMinVolume
	c.MeetsVolumeLeaderCriteria = meetsTurnover && bar.Volume >= volumeLeaderMinVolume
	c.HighConviction = c.MeetsGainerCriteria && fno
	return c, true
}

func top(cs []models.Candidate, n int) []models.Candidate {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].DayChangePct > cs[j].DayChangePct })
	if n >= 0 && len(cs) > n {
		return cs[:n]
	}
	return cs
}

func bareSymbol(s string) string {
	if i := strings.Index(s, "-"); i > 0 {
		switch s[:i] {
		case "NSE", "BSE":
			return s[i+1:]
		}
	}
	return s
}
