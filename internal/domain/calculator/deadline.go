// Package calculator holds the pure deadline and money arithmetic used by
// cases and the public calculator endpoints. Nothing here performs I/O or
// reads the clock; callers pass "now" explicitly.
package calculator

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Urgency is the display band for the days remaining before a due date.
type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"
	UrgencyCritical Urgency = "critical"
	UrgencyWarning  Urgency = "warning"
	UrgencyNormal   Urgency = "normal"
)

// CalculateDeadline returns moveOut advanced by deadlineDays calendar days.
// Month, year and leap-day rollover come from time.AddDate.
func CalculateDeadline(moveOut time.Time, deadlineDays int) time.Time {
	return moveOut.AddDate(0, 0, deadlineDays)
}

// CalculateDaysUntilDeadline returns ceil((due - from) / 24h). Any part of a
// day left counts as a whole day, so four hours before the due instant
// yields 1. Equal instants yield 0.
func CalculateDaysUntilDeadline(due, from time.Time) int {
	days := math.Ceil(float64(due.Sub(from)) / float64(day))
	if days == 0 {
		// Normalise -0 from ceil of a small negative fraction.
		return 0
	}
	return int(days)
}

// IsOverdue reports whether the due date is at least a full day behind from.
func IsOverdue(due, from time.Time) bool {
	return CalculateDaysUntilDeadline(due, from) < 0
}

// GetDeadlineUrgency maps days remaining to a band. Boundaries belong to the
// tighter band: 3 is critical, 7 is warning.
func GetDeadlineUrgency(daysLeft int) Urgency {
	switch {
	case daysLeft < 0:
		return UrgencyOverdue
	case daysLeft <= 3:
		return UrgencyCritical
	case daysLeft <= 7:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// DeadlineSummary bundles the values shown next to a due date.
type DeadlineSummary struct {
	DueDate   time.Time `json:"due_date"`
	DaysLeft  int       `json:"days_left"`
	IsOverdue bool      `json:"is_overdue"`
	Urgency   Urgency   `json:"urgency"`
}

// Summarize computes a DeadlineSummary for due as seen from now.
func Summarize(due, now time.Time) DeadlineSummary {
	left := CalculateDaysUntilDeadline(due, now)
	return DeadlineSummary{
		DueDate:   due,
		DaysLeft:  left,
		IsOverdue: left < 0,
		Urgency:   GetDeadlineUrgency(left),
	}
}
