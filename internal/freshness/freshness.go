package freshness

import (
	"fmt"
	"time"
)

// Level is the staleness band of a data set.
type Level string

const (
	Fresh Level = "fresh"
	Aging Level = "aging"
	Stale Level = "stale"
)

const (
	agingAfterDays = 30
	staleAfterDays = 60
)

// Color is the display color for the level.
func (l Level) Color() string {
	switch l {
	case Fresh:
		return "green"
	case Aging:
		return "yellow"
	default:
		return "red"
	}
}

// AgeDays returns whole days between last and now, or -1 when last is the zero time.
func AgeDays(last, now time.Time) int {
	if last.IsZero() {
		return -1
	}
	if now.Before(last) {
		return 0
	}
	return int(now.Sub(last) / (24 * time.Hour))
}

// Classify maps the time since the last successful refresh to a level. Data that was
// never refreshed is stale.
func Classify(last, now time.Time) Level {
	age := AgeDays(last, now)
	switch {
	case age < 0:
		return Stale
	case age < agingAfterDays:
		return Fresh
	case age <= staleAfterDays:
		return Aging
	default:
		return Stale
	}
}

// Message is a human readable summary for the level.
func Message(dataType string, last, now time.Time) string {
	age := AgeDays(last, now)
	if age < 0 {
		return fmt.Sprintf("%s have never been refreshed", dataType)
	}

	switch Classify(last, now) {
	case Fresh:
		return fmt.Sprintf("%s are up to date (%d days old)", dataType, age)
	case Aging:
		return fmt.Sprintf("%s are %d days old and due for a refresh", dataType, age)
	default:
		return fmt.Sprintf("%s are %d days old and may be outdated", dataType, age)
	}
}
