package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"classtrack/internal/checkin"
)

const uniqueViolation = "23505"

// FindAttendance returns the attendance row for (session, user), or nil.
func (r *Repository) FindAttendance(ctx context.Context, sessionID, userID string) (*checkin.Attendance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_session_id, user_id, status, checked_in_at, created_at
		FROM attendances
		WHERE class_session_id = $1 AND user_id = $2
	`, sessionID, userID)
	var rec checkin.Attendance
	var checkedInAt sql.NullTime
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.Status, &checkedInAt, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if checkedInAt.Valid {
		t := checkedInAt.Time.In(r.loc)
		rec.CheckedInAt = &t
	}
	return &rec, nil
}

// InsertAttendance writes a new row. The UNIQUE(class_session_id, user_id)
// constraint is the at-most-once guarantee; a violation surfaces as
// checkin.ErrDuplicate so the recorder can report the winning row.
func (r *Repository) InsertAttendance(ctx context.Context, rec checkin.Attendance) (checkin.Attendance, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendances (id, class_session_id, user_id, status, checked_in_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, rec.ID, rec.SessionID, rec.UserID, rec.Status, rec.CheckedInAt)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return checkin.Attendance{}, checkin.ErrDuplicate
		}
		return checkin.Attendance{}, err
	}
	return rec, nil
}

// MarkAbsentees inserts absent rows for every enrolled student without an
// attendance row for the session. ON CONFLICT keeps it safe to re-run and to
// race with straggler check-ins.
func (r *Repository) MarkAbsentees(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendances (id, class_session_id, user_id, status)
		SELECT gen_random_uuid(), cs.id, e.user_id, 'absent'
		FROM class_sessions cs
		JOIN enrollments e ON e.class_id = cs.class_id
		WHERE cs.id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM attendances a
			WHERE a.class_session_id = cs.id AND a.user_id = e.user_id
		  )
		ON CONFLICT (class_session_id, user_id) DO NOTHING
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReportRow is one line of the class attendance export.
type ReportRow struct {
	StudentName string
	Email       string
	Status      string
	CheckedInAt *time.Time
}

// AttendanceReport lists attendance for a class on a given date, enrolled
// students without a row included as blanks.
func (r *Repository) AttendanceReport(ctx context.Context, classID string, date time.Time) ([]ReportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.name, u.email, COALESCE(a.status, ''), a.checked_in_at
		FROM enrollments e
		JOIN users u ON u.id = e.user_id
		LEFT JOIN class_sessions cs ON cs.class_id = e.class_id AND cs.session_date = $2
		LEFT JOIN attendances a ON a.class_session_id = cs.id AND a.user_id = e.user_id
		WHERE e.class_id = $1
		ORDER BY u.name
	`, classID, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var row ReportRow
		var checkedInAt sql.NullTime
		if err := rows.Scan(&row.StudentName, &row.Email, &row.Status, &checkedInAt); err != nil {
			return nil, err
		}
		if checkedInAt.Valid {
			t := checkedInAt.Time.In(r.loc)
			row.CheckedInAt = &t
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
