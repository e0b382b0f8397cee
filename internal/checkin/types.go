package checkin

import "time"

// Role of an authenticated user.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// User is the authenticated identity attempting a check-in.
type User struct {
	ID   string
	Name string
	Role Role
}

// SessionStatus is the lifecycle state of a class session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// AttendanceStatus is the recorded outcome for a (session, student) pair.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
)

// Valid reports whether s is a supported attendance status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	default:
		return false
	}
}

// Location is a configured class location.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// ClassInfo is the read-only class projection the check-in path needs,
// eagerly loaded alongside the session.
type ClassInfo struct {
	ID        string
	Name      string
	Subject   string
	Teacher   string
	StartDate time.Time // date only, deployment timezone
	EndDate   time.Time
	Location  *Location
}

// ClassSession is one dated occurrence of a class.
type ClassSession struct {
	ID          string
	ClassID     string
	SessionDate time.Time // date only, deployment timezone
	StartTime   string    // HH:MM, 24-hour
	EndTime     string
	Status      SessionStatus
	QRToken     string
	ExpiresAt   *time.Time
	Class       *ClassInfo
}

// Attendance is the record produced by a successful check-in. CheckedInAt is
// nil only for absent rows created by the completion worker.
type Attendance struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"class_session_id"`
	UserID      string           `json:"user_id"`
	Status      AttendanceStatus `json:"status"`
	CheckedInAt *time.Time       `json:"checked_in_at"`
	CreatedAt   time.Time        `json:"-"`
}
