package trading

import (
	"fmt"
	"time"

	"github.com/abhishekslab/growwbot/internal/models"
)

// Regular NSE cash session bounds in IST, as used in historical data requests.
const (
	SessionOpen  = "09:15:00"
	SessionClose = "15:30:00"
)

// Calendar enumerates trading days. Weekends are always closed; holidays are
// whatever the caller registers.
type Calendar struct {
	holidays map[string]bool // Date string -> is holiday
}

// NewCalendar creates a calendar with the given YYYY-MM-DD holidays.
func NewCalendar(holidays ...string) *Calendar {
	c := &Calendar{holidays: make(map[string]bool, len(holidays))}
	for _, h := range holidays {
		c.holidays[h] = true
	}
	return c
}

// AddHoliday adds a market holiday.
func (c *Calendar) AddHoliday(date time.Time) {
	c.holidays[date.Format(models.DateLayout)] = true
}

// IsHoliday checks if a date is a market holiday.
func (c *Calendar) IsHoliday(date time.Time) bool {
	return c.holidays[date.Format(models.DateLayout)]
}

// IsTradingDay reports whether the exchange trades on date.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false
	}
	return !c.IsHoliday(date)
}

// TradingDays returns the trading days in [start, end] as YYYY-MM-DD strings.
func (c *Calendar) TradingDays(start, end string) ([]string, error) {
	days, err := DateRange(start, end)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		t, _ := time.Parse(models.DateLayout, d)
		if c.IsTradingDay(t) {
			out = append(out, d)
		}
	}
	return out, nil
}

// NextTradingDay returns the first trading day strictly after date.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	next := date.AddDate(0, 0, 1)
	for !c.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// DateRange returns every calendar date in [start, end] inclusive.
func DateRange(start, end string) ([]string, error) {
	s, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(models.DateLayout))
	}
	return out, nil
}

// SessionStart returns the session open timestamp string for a date.
func SessionStart(date string) string {
	return date + " " + SessionOpen
}

// SessionEnd returns the session close timestamp string for a date.
func SessionEnd(date string) string {
	return date + " " + SessionClose
}
