//go:build testutil
// +build testutil

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/checkin"
	"classtrack/internal/postgres"
	"classtrack/internal/testutil/testdb"
)

type seeded struct {
	repo      *postgres.Repository
	sessionID string
	students  []string
}

func seed(t *testing.T, db *sql.DB) seeded {
	t.Helper()
	ctx := context.Background()
	loc := time.FixedZone("UTC+6:30", 6*3600+1800)

	teacherID := mustExec(t, db, `INSERT INTO users (id, name, email, password_hash, role) VALUES ($1, 'Daw Mya', 'mya@example.com', 'x', 'teacher') RETURNING id`)
	subjectID := mustExec(t, db, `INSERT INTO subjects (id, name) VALUES ($1, 'Physics') RETURNING id`)
	locationID := mustExec(t, db, `INSERT INTO locations (id, name, latitude, longitude) VALUES ($1, 'Room A', 16.8409, 96.1735) RETURNING id`)
	classID := mustExec(t, db, `
		INSERT INTO classes (id, name, subject_id, teacher_id, location_id, start_date, end_date, start_time, end_time)
		VALUES ($1, 'Physics 101', '`+subjectID+`', '`+teacherID+`', '`+locationID+`', '2025-01-01', '2025-02-01', '09:00', '11:00')
		RETURNING id`)
	sessionID := mustExec(t, db, `
		INSERT INTO class_sessions (id, class_id, session_date, start_time, end_time, status, qr_token, expires_at)
		VALUES ($1, '`+classID+`', '2025-01-10', '09:00', '11:00', 'active', 'tok-abcdef1234', NOW() + interval '10 minutes')
		RETURNING id`)

	var students []string
	for _, name := range []string{"Aye Chan", "Min Thu", "Su Su"} {
		id := mustExec(t, db, `INSERT INTO users (id, name, email, password_hash, role) VALUES ($1, '`+name+`', '`+uuid.NewString()+`@example.com', 'x', 'student') RETURNING id`)
		if _, err := db.ExecContext(ctx, `INSERT INTO enrollments (class_id, user_id) VALUES ($1, $2)`, classID, id); err != nil {
			t.Fatal(err)
		}
		students = append(students, id)
	}

	return seeded{
		repo:      postgres.NewRepository(db, loc),
		sessionID: sessionID,
		students:  students,
	}
}

func mustExec(t *testing.T, db *sql.DB, query string) string {
	t.Helper()
	var id string
	if err := db.QueryRow(query, uuid.NewString()).Scan(&id); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestInsertAttendanceUniqueConstraint(t *testing.T) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	s := seed(t, h.DB)
	ctx := context.Background()
	now := time.Now()

	rec := checkin.Attendance{
		ID:          uuid.NewString(),
		SessionID:   s.sessionID,
		UserID:      s.students[0],
		Status:      checkin.StatusPresent,
		CheckedInAt: &now,
	}
	if _, err := s.repo.InsertAttendance(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.ID = uuid.NewString()
	if _, err := s.repo.InsertAttendance(ctx, rec); !errors.Is(err, checkin.ErrDuplicate) {
		t.Fatalf("second insert error = %v, want ErrDuplicate", err)
	}
}

func TestInsertAttendanceParallel(t *testing.T) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	s := seed(t, h.DB)
	ctx := context.Background()
	now := time.Now()

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var inserted, duplicates int

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.repo.InsertAttendance(ctx, checkin.Attendance{
				ID:          uuid.NewString(),
				SessionID:   s.sessionID,
				UserID:      s.students[0],
				Status:      checkin.StatusPresent,
				CheckedInAt: &now,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, checkin.ErrDuplicate):
				duplicates++
			default:
				t.Errorf("insert: %v", err)
			}
		}()
	}
	wg.Wait()

	if inserted != 1 || duplicates != n-1 {
		t.Fatalf("inserted = %d, duplicates = %d, want 1 and %d", inserted, duplicates, n-1)
	}

	var count int
	if err := h.DB.QueryRow(`SELECT COUNT(*) FROM attendances`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}

func TestFindSessionByTokenProjection(t *testing.T) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	s := seed(t, h.DB)
	ctx := context.Background()

	sess, err := s.repo.FindSessionByToken(ctx, "tok-abcdef1234")
	if err != nil {
		t.Fatal(err)
	}
	if sess == nil {
		t.Fatal("session not found")
	}
	if sess.Status != checkin.SessionActive || sess.StartTime != "09:00" || sess.EndTime != "11:00" {
		t.Fatalf("session = %+v", sess)
	}
	if sess.Class == nil || sess.Class.Name != "Physics 101" || sess.Class.Subject != "Physics" {
		t.Fatalf("class projection = %+v", sess.Class)
	}
	if sess.Class.Location == nil || sess.Class.Location.Latitude != 16.8409 {
		t.Fatalf("location projection = %+v", sess.Class.Location)
	}

	if missing, err := s.repo.FindSessionByToken(ctx, "no-such-token"); err != nil || missing != nil {
		t.Fatalf("unknown token: %v, %v", missing, err)
	}
}

func TestMarkAbsentees(t *testing.T) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	s := seed(t, h.DB)
	ctx := context.Background()
	now := time.Now()

	// One student checked in; the other two should be marked absent.
	if _, err := s.repo.InsertAttendance(ctx, checkin.Attendance{
		ID:          uuid.NewString(),
		SessionID:   s.sessionID,
		UserID:      s.students[0],
		Status:      checkin.StatusPresent,
		CheckedInAt: &now,
	}); err != nil {
		t.Fatal(err)
	}

	marked, err := s.repo.MarkAbsentees(ctx, s.sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if marked != 2 {
		t.Fatalf("marked = %d, want 2", marked)
	}

	// Re-running is a no-op.
	marked, err = s.repo.MarkAbsentees(ctx, s.sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if marked != 0 {
		t.Fatalf("second run marked = %d, want 0", marked)
	}

	var absent int
	if err := h.DB.QueryRow(`SELECT COUNT(*) FROM attendances WHERE status = 'absent' AND checked_in_at IS NULL`).Scan(&absent); err != nil {
		t.Fatal(err)
	}
	if absent != 2 {
		t.Fatalf("absent rows = %d, want 2", absent)
	}
}
