// Package picks supplies the daily candidate lists the portfolio backtest trades.
package picks

import (
	"context"
	"sort"

	"github.com/abhishekslab/growwbot/internal/models"
)

// Provider returns the candidate snapshot for a trading date. A nil snapshot
// or an empty candidate list means nothing to trade that day.
type Provider interface {
	Candidates(ctx context.Context, date string) (*Snapshot, error)
}

// Snapshot is one day's screened candidates.
type Snapshot struct {
	Candidates []models.Candidate `json:"candidates" yaml:"candidates"`
	Meta       Meta               `json:"meta" yaml:"meta"`
}

// Meta describes how a snapshot was produced.
type Meta struct {
	Date                       string  `json:"date,omitempty" yaml:"date"`
	Source                     string  `json:"source,omitempty" yaml:"source"`
	Historical                 bool    `json:"historical,omitempty" yaml:"historical"`
	TotalInstrumentsScanned    int     `json:"total_instruments_scanned,omitempty" yaml:"total_instruments_scanned"`
	CandidatesAfterPriceFilter int     `json:"candidates_after_price_filter,omitempty" yaml:"candidates_after_price_filter"`
	CandidatesSelected         int     `json:"candidates_selected" yaml:"candidates_selected"`
	PassesGainerCriteria       int     `json:"passes_gainer_criteria" yaml:"passes_gainer_criteria"`
	PassesVolumeLeaderCriteria int     `json:"passes_volume_leader_criteria" yaml:"passes_volume_leader_criteria"`
	HighConvictionCount        int     `json:"high_conviction_count" yaml:"high_conviction_count"`
	ScanTimeSeconds            float64 `json:"scan_time_seconds,omitempty" yaml:"scan_time_seconds"`
}

// Count fills the per-criteria counters from the candidates.
func (s *Snapshot) Count() {
	s.Meta.CandidatesSelected = len(s.Candidates)
	s.Meta.PassesGainerCriteria = 0
	s.Meta.PassesVolumeLeaderCriteria = 0
	s.Meta.HighConvictionCount = 0
	for _, c := range s.Candidates {
		if c.MeetsGainerCriteria {
			s.Meta.PassesGainerCriteria++
		}
		if c.MeetsVolumeLeaderCriteria {
			s.Meta.PassesVolumeLeaderCriteria++
		}
		if c.HighConviction {
			s.Meta.HighConvictionCount++
		}
	}
}

// Select orders high-conviction candidates first, then the rest, each group by
// day_change_pct descending, and keeps at most limit. A limit <= 0 keeps all.
func Select(candidates []models.Candidate, limit int) []models.Candidate {
	var hc, rest []models.Candidate
	for _, c := range candidates {
		if c.HighConviction {
			hc = append(hc, c)
		} else {
			rest = append(rest, c)
		}
	}

	byChange := func(cs []models.Candidate) {
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].DayChangePct > cs[j].DayChangePct })
	}
	byChange(hc)
	byChange(rest)

	out := append(hc, rest...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
