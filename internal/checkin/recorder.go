// Package checkin implements the attendance check-in validation engine: it
// takes a scanned QR token, an authenticated user, and a GPS coordinate, and
// decides whether to accept the check-in, classify it on-time or late, and
// record it exactly once per (session, user) pair.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classtrack/internal/geo"
)

const minTokenLength = 10

// Request carries the caller-supplied check-in input. At overrides the clock
// for simulated check-ins; nil means evaluate against the current time.
type Request struct {
	QRToken   string
	Latitude  *float64
	Longitude *float64
	At        *time.Time
}

// Result is a successful outcome. Duplicate marks an already-recorded pair:
// the returned attendance is the original row, untouched.
type Result struct {
	Attendance Attendance
	Session    *ClassSession
	Duplicate  bool
}

// Recorder orchestrates the validation pipeline and persists the attendance
// row. Safe for concurrent use; the storage uniqueness constraint is what
// guarantees at-most-once recording when identical requests race.
type Recorder struct {
	sessions     SessionStore
	enrollments  EnrollmentStore
	attendance   AttendanceStore
	policy       WindowPolicy
	radiusMeters float64
	now          func() time.Time
	log          *zap.Logger
}

// RecorderOption tweaks Recorder construction.
type RecorderOption func(*Recorder)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder wires the check-in pipeline.
func NewRecorder(sessions SessionStore, enrollments EnrollmentStore, attendance AttendanceStore,
	policy WindowPolicy, radiusMeters float64, log *zap.Logger, opts ...RecorderOption) *Recorder {
	if radiusMeters <= 0 {
		radiusMeters = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		sessions:     sessions,
		enrollments:  enrollments,
		attendance:   attendance,
		policy:       policy,
		radiusMeters: radiusMeters,
		now:          time.Now,
		log:          log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckIn runs the full validation pipeline. Each step short-circuits on
// failure and exactly one message reaches the caller. Rejections are *Error
// values; anything else is an unexpected internal failure.
func (r *Recorder) CheckIn(ctx context.Context, user User, req Request) (*Result, error) {
	if user.ID == "" {
		return nil, failf(KindUnauthorized, "You must be signed in to check in.")
	}
	if user.Role != RoleStudent {
		return nil, failf(KindForbidden, "Only students can check in to class sessions.")
	}
	if len(req.QRToken) < minTokenLength {
		return nil, failf(KindMalformedToken, "Scan a valid QR code to check in.")
	}

	now := r.now()
	if req.At != nil {
		now = *req.At
	}
	now = now.In(r.policy.Location)

	sess, err := resolveSession(ctx, r.sessions, req.QRToken, now)
	if err != nil {
		return nil, err
	}

	enrolled, err := r.enrollments.IsEnrolled(ctx, sess.ClassID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("enrollment lookup: %w", err)
	}
	if !enrolled {
		return nil, failf(KindNotEnrolled, "You are not enrolled in this class.")
	}

	// Friendly fast path; the insert below is what actually guarantees
	// at-most-once under concurrent requests.
	if existing, err := r.attendance.FindAttendance(ctx, sess.ID, user.ID); err != nil {
		return nil, fmt.Errorf("attendance lookup: %w", err)
	} else if existing != nil {
		return &Result{Attendance: *existing, Session: sess, Duplicate: true}, nil
	}

	status, err := r.policy.Evaluate(sess.Class, sess, now)
	if err != nil {
		return nil, err
	}

	if req.Latitude == nil || req.Longitude == nil ||
		math.IsNaN(*req.Latitude) || math.IsNaN(*req.Longitude) {
		return nil, failf(KindLocationRequired, "Location access is required to check in. Please enable GPS and try again.")
	}
	// A zero in either coordinate means the location was never set up, not a
	// class at the equator or prime meridian.
	loc := sess.Class.Location
	if loc.Latitude == 0 || loc.Longitude == 0 {
		return nil, failf(KindLocationNotConfigured, "This class has no location configured. Please contact your teacher.")
	}

	dist := geo.DistanceMeters(*req.Latitude, *req.Longitude, loc.Latitude, loc.Longitude)
	if !(dist <= r.radiusMeters) {
		r.log.Info("check-in rejected by geofence",
			zap.String("session_id", sess.ID),
			zap.String("user_id", user.ID),
			zap.Float64("distance_m", dist))
		return nil, failf(KindTooFar, "You are too far from the class location to check in.")
	}

	rec := Attendance{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		UserID:      user.ID,
		Status:      status,
		CheckedInAt: &now,
	}
	inserted, err := r.attendance.InsertAttendance(ctx, rec)
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with a concurrent identical request; report the
		// winner's row exactly as the fast path would have.
		winner, ferr := r.attendance.FindAttendance(ctx, sess.ID, user.ID)
		if ferr != nil {
			return nil, fmt.Errorf("attendance conflict refetch: %w", ferr)
		}
		if winner == nil {
			return nil, errors.New("attendance conflict but no row found")
		}
		return &Result{Attendance: *winner, Session: sess, Duplicate: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	r.log.Info("check-in recorded",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID),
		zap.String("status", string(status)))
	return &Result{Attendance: inserted, Session: sess}, nil
}
