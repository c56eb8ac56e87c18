package candlecache

import (
	"strings"
	"time"

	"github.com/abhishekslab/growwbot/internal/models"
)

const defaultMaxDays = 30

// maxDays is the broker's largest request window per interval.
var maxDays = map[string]int{
	"1minute":  30,
	"2minute":  30,
	"3minute":  30,
	"5minute":  30,
	"10minute": 90,
	"15minute": 90,
	"30minute": 90,
	"1hour":    180,
	"4hours":   180,
	"1day":     180,
	"1week":    180,
	"1month":   180,
}

// aliases maps spaced or short interval names to canonical ones.
var aliases = map[string]string{
	"1min":   "1minute",
	"2min":   "2minute",
	"3min":   "3minute",
	"5min":   "5minute",
	"10min":  "10minute",
	"15min":  "15minute",
	"30min":  "30minute",
	"60min":  "1hour",
	"1h":     "1hour",
	"4hour":  "4hours",
	"4h":     "4hours",
	"day":    "1day",
	"1d":     "1day",
	"week":   "1week",
	"1w":     "1week",
	"month":  "1month",
	"1mon":   "1month",
	"minute": "1minute",
}

// NormalizeInterval returns the canonical name of interval, e.g. "5 min" -> "5minute".
func NormalizeInterval(interval string) string {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(interval), " ", ""))
	if canon, ok := aliases[s]; ok {
		return canon
	}
	return s
}

// MaxDaysForInterval returns the largest number of calendar days fetched in one request.
func MaxDaysForInterval(interval string) int {
	if n, ok := maxDays[NormalizeInterval(interval)]; ok {
		return n
	}
	return defaultMaxDays
}

// chunk is a contiguous run of dates fetched with one request.
type chunk struct {
	dates []string
}

func (c chunk) first() string { return c.dates[0] }
func (c chunk) last() string  { return c.dates[len(c.dates)-1] }

// planChunks groups sorted missing dates into contiguous runs, each at most maxLen days.
func planChunks(missing []string, maxLen int) []chunk {
	if maxLen < 1 {
		maxLen = 1
	}

	var chunks []chunk
	var cur []string
	var prev time.Time

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, chunk{dates: cur})
			cur = nil
		}
	}

	for _, d := range missing {
		t, err := time.Parse(models.DateLayout, d)
		if err != nil {
			continue
		}
		if len(cur) > 0 && (t.Sub(prev) != 24*time.Hour || len(cur) >= maxLen) {
			flush()
		}
		cur = append(cur, d)
		prev = t
	}
	flush()

	return chunks
}
