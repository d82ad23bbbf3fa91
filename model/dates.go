package model

import (
	"fmt"
	"time"
)

// Trade date keys are fixed-width digit strings, daily (YYYYMMDD) or
// intraday (YYYYMMDDHHMM). Because they are zero-padded, range filters
// compare the raw strings lexicographically; parsing to a timestamp
// happens only when building the final result.
const (
	dailyDateLayout    = "20060102"
	intradayDateLayout = "200601021504"
)

// ParseTradeDate parses a daily or intraday trade date key.
func ParseTradeDate(s string) (time.Time, error) {
	switch len(s) {
	case len(dailyDateLayout):
		return time.Parse(dailyDateLayout, s)
	case len(intradayDateLayout):
		return time.Parse(intradayDateLayout, s)
	default:
		return time.Time{}, fmt.Errorf("unrecognized trade date %q", s)
	}
}
