// Package calendar decides which dates are forecast cycles.
//
// A date is a cycle when its whole-day offset from January 1 of the same
// year is a multiple of the cycle period. The count restarts every year, so
// January 1 is always a cycle regardless of where the previous year ended.
package calendar

import (
	"fmt"
	"time"

	"github.com/me/cyclelaunch/pkg/model"
)

// DefaultPeriod is the cycle spacing in days used by the operational setup.
const DefaultPeriod = 5

// DaysSinceJan1 returns the whole-day offset of date from January 1 of its year.
func DaysSinceJan1(date time.Time) int {
	return date.YearDay() - 1
}

// IsEligible reports whether date is a forecast cycle for the given period.
// Non-positive periods are never eligible.
func IsEligible(date time.Time, period int) bool {
	if period <= 0 {
		return false
	}
	return DaysSinceJan1(date)%period == 0
}

// Gate is an IsEligible bound to a validated period.
type Gate struct {
	period int
}

// NewGate returns a Gate for period days.
func NewGate(period int) (Gate, error) {
	if period <= 0 {
		return Gate{}, fmt.Errorf("cycle period must be positive, got %d", period)
	}
	return Gate{period: period}, nil
}

// Period returns the configured cycle spacing in days.
func (g Gate) Period() int {
	return g.period
}

// Cycle evaluates date against the gate.
func (g Gate) Cycle(date time.Time) model.ForecastCycle {
	return model.ForecastCycle{Date: date, Eligible: IsEligible(date, g.period)}
}

// Cycles lists every eligible date of year in order.
func (g Gate) Cycles(year int) []time.Time {
	var out []time.Time
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d.Year() == year {
		out = append(out, d)
		d = d.AddDate(0, 0, g.period)
	}
	return out
}
