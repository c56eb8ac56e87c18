// Package utils holds IST market-session helpers, rupee formatting and retries.
package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	lakh  = 1e5
	crore = 1e7
)

// FormatIndianCurrency renders amount in rupees with lakh/crore grouping,
// e.g. ₹12,34,567.89.
func FormatIndianCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	whole, frac, _ := strings.Cut(fmt.Sprintf("%.2f", amount), ".")
	return sign + "₹" + groupIndian(whole) + "." + frac
}

// groupIndian puts a comma before the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	groups := []string{tail}
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	return strings.Join(append([]string{head}, groups...), ",")
}

// FormatPercent renders value with two decimals and a leading + when positive.
func FormatPercent(value float64) string {
	if value > 0 {
		return fmt.Sprintf("+%.2f%%", value)
	}
	return fmt.Sprintf("%.2f%%", value)
}

// FormatPnL is FormatIndianCurrency with a leading + for profits.
func FormatPnL(pnl float64) string {
	if pnl > 0 {
		return "+" + FormatIndianCurrency(pnl)
	}
	return FormatIndianCurrency(pnl)
}

// FormatRatio renders an optional ratio. Nil means no losses, shown as ∞.
func FormatRatio(v *float64) string {
	if v == nil {
		return "∞"
	}
	return fmt.Sprintf("%.2f", *v)
}

// FormatSeconds renders a holding time such as "1h05m" or "12m30s".
func FormatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatCompact renders large amounts in lakhs or crores ("1.25 Cr", "-25.00 L").
func FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= crore:
		return fmt.Sprintf("%.2f Cr", amount/crore)
	case abs >= lakh:
		return fmt.Sprintf("%.2f L", amount/lakh)
	default:
		return FormatIndianCurrency(amount)
	}
}
