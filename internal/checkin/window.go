package checkin

import (
	"fmt"
	"time"
)

// WindowPolicy decides whether an instant falls inside a session's allowed
// check-in window and classifies on-time vs late. All comparisons happen in
// the deployment timezone. Stored dates are calendar days; only their
// year/month/day components are meaningful.
type WindowPolicy struct {
	Location  *time.Location
	EarlyOpen time.Duration // window opens this long before start
	LateAfter time.Duration // check-ins after start + LateAfter are late
}

// Evaluate runs the window checks in order; the first failing check wins.
func (p WindowPolicy) Evaluate(class *ClassInfo, sess *ClassSession, now time.Time) (AttendanceStatus, error) {
	now = now.In(p.Location)

	today := p.day(now.Year(), now.Month(), now.Day())
	if today.Before(p.dateOf(class.StartDate)) {
		return "", failf(KindBeforeClassStart, "This class has not started yet. Classes begin on %s.",
			class.StartDate.Format("Jan 2, 2006"))
	}
	if today.After(p.dateOf(class.EndDate)) {
		return "", failf(KindClassEnded, "This class ended on %s.",
			class.EndDate.Format("Jan 2, 2006"))
	}

	start, err := p.at(sess.SessionDate, sess.StartTime)
	if err != nil {
		return "", fmt.Errorf("session start time: %w", err)
	}
	end, err := p.at(sess.SessionDate, sess.EndTime)
	if err != nil {
		return "", fmt.Errorf("session end time: %w", err)
	}

	open := start.Add(-p.EarlyOpen)
	if now.Before(open) || now.After(end) {
		return "", failf(KindOutsideTimeWindow, "Check-in is only open from %s to %s.",
			open.Format("15:04"), end.Format("15:04"))
	}

	// Strict comparison: exactly start + LateAfter still counts as present.
	if now.After(start.Add(p.LateAfter)) {
		return StatusLate, nil
	}
	return StatusPresent, nil
}

// at combines a session date with an HH:MM time of day in the policy timezone.
func (p WindowPolicy) at(date time.Time, hhmm string) (time.Time, error) {
	tod, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", hhmm, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), 0, 0, p.Location), nil
}

func (p WindowPolicy) dateOf(t time.Time) time.Time {
	return p.day(t.Year(), t.Month(), t.Day())
}

func (p WindowPolicy) day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, p.Location)
}
