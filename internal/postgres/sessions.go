package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"classtrack/internal/checkin"
)

// FindSessionByToken resolves a QR token to its session with the class,
// subject, teacher, and location projection eagerly loaded. Left joins keep
// broken references visible to the core's integrity checks instead of hiding
// the row.
func (r *Repository) FindSessionByToken(ctx context.Context, token string) (*checkin.ClassSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT cs.id, cs.class_id, to_char(cs.session_date, 'YYYY-MM-DD'),
		       to_char(cs.start_time, 'HH24:MI'), to_char(cs.end_time, 'HH24:MI'),
		       cs.status, COALESCE(cs.qr_token, ''), cs.expires_at,
		       c.id, c.name, s.name, u.name,
		       to_char(c.start_date, 'YYYY-MM-DD'), to_char(c.end_date, 'YYYY-MM-DD'),
		       l.name, l.latitude, l.longitude
		FROM class_sessions cs
		LEFT JOIN classes c ON c.id = cs.class_id
		LEFT JOIN subjects s ON s.id = c.subject_id
		LEFT JOIN users u ON u.id = c.teacher_id
		LEFT JOIN locations l ON l.id = c.location_id
		WHERE cs.qr_token = $1
	`, token)

	var (
		sess                checkin.ClassSession
		sessDate            string
		expiresAt           sql.NullTime
		classID, className  sql.NullString
		subject, teacher    sql.NullString
		startDate, endDate  sql.NullString
		locName             sql.NullString
		latitude, longitude sql.NullFloat64
	)
	err := row.Scan(&sess.ID, &sess.ClassID, &sessDate,
		&sess.StartTime, &sess.EndTime,
		&sess.Status, &sess.QRToken, &expiresAt,
		&classID, &className, &subject, &teacher,
		&startDate, &endDate,
		&locName, &latitude, &longitude)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if sess.SessionDate, err = r.parseDate(sessDate); err != nil {
		return nil, fmt.Errorf("session date: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		sess.ExpiresAt = &t
	}

	if classID.Valid {
		class := checkin.ClassInfo{
			ID:      classID.String,
			Name:    className.String,
			Subject: subject.String,
			Teacher: teacher.String,
		}
		if class.StartDate, err = r.parseDate(startDate.String); err != nil {
			return nil, fmt.Errorf("class start date: %w", err)
		}
		if class.EndDate, err = r.parseDate(endDate.String); err != nil {
			return nil, fmt.Errorf("class end date: %w", err)
		}
		if latitude.Valid && longitude.Valid {
			class.Location = &checkin.Location{
				Name:      locName.String,
				Latitude:  latitude.Float64,
				Longitude: longitude.Float64,
			}
		}
		sess.Class = &class
	}
	return &sess, nil
}

// ClassSchedule is what QR issuance needs to know about a class.
type ClassSchedule struct {
	ID        string
	Name      string
	TeacherID string
	StartTime string
	EndTime   string
}

// GetClassSchedule returns the class's owner and default session times, or
// nil when the class does not exist.
func (r *Repository) GetClassSchedule(ctx context.Context, classID string) (*ClassSchedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(teacher_id::text, ''),
		       to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')
		FROM classes WHERE id = $1
	`, classID)
	var cs ClassSchedule
	if err := row.Scan(&cs.ID, &cs.Name, &cs.TeacherID, &cs.StartTime, &cs.EndTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cs, nil
}

// UpsertActiveSession creates the session for (class, date) or refreshes its
// token and expiry on regeneration, flipping it back to active.
func (r *Repository) UpsertActiveSession(ctx context.Context, id, classID string, date time.Time,
	startTime, endTime, token string, expiresAt time.Time) (string, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO class_sessions (id, class_id, session_date, start_time, end_time, status, qr_token, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'active', $6, $7)
		ON CONFLICT (class_id, session_date) DO UPDATE SET
			qr_token = EXCLUDED.qr_token,
			expires_at = EXCLUDED.expires_at,
			status = 'active'
		RETURNING id
	`, id, classID, date.Format("2006-01-02"), startTime, endTime, token, expiresAt)
	var sessionID string
	if err := row.Scan(&sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

// SessionOwner returns the teacher owning a session's class and the session
// status, for authorization before completion.
func (r *Repository) SessionOwner(ctx context.Context, sessionID string) (teacherID, status string, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(c.teacher_id::text, ''), cs.status
		FROM class_sessions cs
		LEFT JOIN classes c ON c.id = cs.class_id
		WHERE cs.id = $1
	`, sessionID)
	if err := row.Scan(&teacherID, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", nil
		}
		return "", "", err
	}
	return teacherID, status, nil
}

// CompleteSession transitions an active session to completed. Returns false
// when the session was not active.
func (r *Repository) CompleteSession(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE class_sessions SET status = 'completed' WHERE id = $1 AND status = 'active'
	`, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
