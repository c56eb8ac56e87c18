package utils

import "time"

// IndiaLocation is Asia/Kolkata, or a fixed +05:30 zone when tzdata is missing.
var IndiaLocation = loadIndia()

func loadIndia() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+1800)
}

// MarketStatus is the state of the NSE cash session.
type MarketStatus string

const (
	MarketClosed  MarketStatus = "CLOSED"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketOpen    MarketStatus = "OPEN"
	// MarketSquareOff is the last quarter hour before brokers square off MIS positions.
	MarketSquareOff MarketStatus = "SQUARE_OFF"
)

// session boundaries in minutes after midnight IST
const (
	preOpenAt   = 9 * 60
	openAt      = 9*60 + 15
	squareOffAt = 15 * 60
	misCloseAt  = 15*60 + 15
	closeAt     = 15*60 + 30
)

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// MarketStatusAt returns the session state at t. Exchange holidays are not
// known here.
func MarketStatusAt(t time.Time) MarketStatus {
	ist := t.In(IndiaLocation)
	if isWeekend(ist) {
		return MarketClosed
	}
	switch m := ist.Hour()*60 + ist.Minute(); {
	case m >= preOpenAt && m < openAt:
		return MarketPreOpen
	case m >= squareOffAt && m < misCloseAt:
		return MarketSquareOff
	case m >= openAt && m < closeAt:
		return MarketOpen
	default:
		return MarketClosed
	}
}

// IsMarketOpenAt reports whether orders trade at t.
func IsMarketOpenAt(t time.Time) bool {
	s := MarketStatusAt(t)
	return s == MarketOpen || s == MarketSquareOff
}

// TodayIST returns today's Indian calendar date as YYYY-MM-DD.
func TodayIST() string {
	return time.Now().In(IndiaLocation).Format("2006-01-02")
}

// GetNextMarketOpen returns the first 09:15 IST on a weekday after t.
func GetNextMarketOpen(t time.Time) time.Time {
	ist := t.In(IndiaLocation)
	next := time.Date(ist.Year(), ist.Month(), ist.Day(), openAt/60, openAt%60, 0, 0, IndiaLocation)
	if !next.After(ist) {
		next = next.AddDate(0, 0, 1)
	}
	for isWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
