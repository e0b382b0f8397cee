package checkin

import "context"

// SessionStore resolves QR tokens to sessions with their class projection
// eagerly loaded. A miss returns (nil, nil).
type SessionStore interface {
	FindSessionByToken(ctx context.Context, token string) (*ClassSession, error)
}

// EnrollmentStore answers whether a user may check in to a class's sessions.
type EnrollmentStore interface {
	IsEnrolled(ctx context.Context, classID, userID string) (bool, error)
}

// AttendanceStore owns the attendance rows this core writes. InsertAttendance
// must rely on a storage-level uniqueness constraint for (session, user) and
// return ErrDuplicate when it fires; an application-side existence check is
// not a substitute under concurrent requests.
type AttendanceStore interface {
	FindAttendance(ctx context.Context, sessionID, userID string) (*Attendance, error)
	InsertAttendance(ctx context.Context, rec Attendance) (Attendance, error)
}
