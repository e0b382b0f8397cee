package checkin

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a check-in was rejected. Exactly one kind is
// reported per attempt; validation order in the recorder decides which.
type FailureKind string

const (
	KindUnauthorized          FailureKind = "unauthorized"
	KindForbidden             FailureKind = "forbidden"
	KindMalformedToken        FailureKind = "malformed_token"
	KindTokenInvalid          FailureKind = "token_invalid"
	KindTokenExpired          FailureKind = "token_expired"
	KindDataIncomplete        FailureKind = "data_incomplete"
	KindNotEnrolled           FailureKind = "not_enrolled"
	KindBeforeClassStart      FailureKind = "before_class_start"
	KindClassEnded            FailureKind = "class_ended"
	KindOutsideTimeWindow     FailureKind = "outside_time_window"
	KindLocationRequired      FailureKind = "location_required"
	KindLocationNotConfigured FailureKind = "location_not_configured"
	KindTooFar                FailureKind = "too_far"
)

// Error is a rejected check-in with a user-facing message.
type Error struct {
	Kind    FailureKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func failf(kind FailureKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsFailure unwraps a check-in rejection. Errors that are not an *Error are
// unexpected (storage failure, defect) and must map to a generic response.
func AsFailure(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ErrDuplicate is returned by AttendanceStore.InsertAttendance when the
// storage uniqueness constraint on (session, user) rejects the row.
var ErrDuplicate = errors.New("attendance already recorded")
