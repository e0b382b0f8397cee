package checkin

import (
	"strings"
	"testing"
	"time"
)

var testLoc = time.FixedZone("UTC+6:30", 6*3600+1800)

func testPolicy() WindowPolicy {
	return WindowPolicy{
		Location:  testLoc,
		EarlyOpen: 15 * time.Minute,
		LateAfter: 30 * time.Minute,
	}
}

func testClass() *ClassInfo {
	return &ClassInfo{
		ID:        "class-1",
		Name:      "Physics 101",
		Subject:   "Physics",
		Teacher:   "Daw Mya",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc),
		EndDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, testLoc),
		Location:  &Location{Name: "Room A", Latitude: 16.8409, Longitude: 96.1735},
	}
}

func testSession() *ClassSession {
	return &ClassSession{
		ID:          "sess-1",
		ClassID:     "class-1",
		SessionDate: time.Date(2025, 1, 10, 0, 0, 0, 0, testLoc),
		StartTime:   "09:00",
		EndTime:     "11:00",
		Status:      SessionActive,
	}
}

func at(hour, min int) time.Time {
	return time.Date(2025, 1, 10, hour, min, 0, 0, testLoc)
}

func TestWindowClassification(t *testing.T) {
	policy := testPolicy()
	class := testClass()
	sess := testSession()

	tests := []struct {
		name     string
		now      time.Time
		want     AttendanceStatus
		wantKind FailureKind
	}{
		{name: "early open boundary", now: at(8, 45), want: StatusPresent},
		{name: "one minute before open", now: at(8, 44), wantKind: KindOutsideTimeWindow},
		{name: "well before open", now: at(8, 30), wantKind: KindOutsideTimeWindow},
		{name: "on time", now: at(9, 25), want: StatusPresent},
		{name: "one minute before late threshold", now: at(9, 29), want: StatusPresent},
		{name: "exactly late threshold is present", now: at(9, 30), want: StatusPresent},
		{name: "one minute past late threshold", now: at(9, 31), want: StatusLate},
		{name: "late near close", now: at(10, 59), want: StatusLate},
		{name: "close boundary", now: at(11, 0), want: StatusLate},
		{name: "after close", now: at(11, 1), wantKind: KindOutsideTimeWindow},
		{name: "before class range", now: time.Date(2024, 12, 31, 9, 25, 0, 0, testLoc), wantKind: KindBeforeClassStart},
		{name: "after class range", now: time.Date(2025, 2, 2, 9, 25, 0, 0, testLoc), wantKind: KindClassEnded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, err := policy.Evaluate(class, sess, tc.now)
			if tc.wantKind != "" {
				failure, ok := AsFailure(err)
				if !ok {
					t.Fatalf("want %s failure, got status=%q err=%v", tc.wantKind, status, err)
				}
				if failure.Kind != tc.wantKind {
					t.Fatalf("kind = %s, want %s", failure.Kind, tc.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status != tc.want {
				t.Fatalf("status = %s, want %s", status, tc.want)
			}
		})
	}
}

func TestWindowRangePrecedesTimeOfDay(t *testing.T) {
	policy := testPolicy()
	class := testClass()
	sess := testSession()

	// Outside both the class range and the daily window: the range check
	// must win.
	now := time.Date(2025, 3, 1, 3, 0, 0, 0, testLoc)
	_, err := policy.Evaluate(class, sess, now)
	failure, ok := AsFailure(err)
	if !ok || failure.Kind != KindClassEnded {
		t.Fatalf("got %v, want ClassEnded", err)
	}
}

func TestWindowMessagesIncludeTimes(t *testing.T) {
	policy := testPolicy()
	_, err := policy.Evaluate(testClass(), testSession(), at(8, 30))
	failure, ok := AsFailure(err)
	if !ok {
		t.Fatalf("want failure, got %v", err)
	}
	for _, want := range []string{"08:45", "11:00"} {
		if !strings.Contains(failure.Message, want) {
			t.Fatalf("message %q missing %q", failure.Message, want)
		}
	}
}

func TestWindowOnClassEndDate(t *testing.T) {
	policy := testPolicy()
	class := testClass()
	sess := testSession()
	sess.SessionDate = class.EndDate

	now := time.Date(2025, 2, 1, 9, 25, 0, 0, testLoc)
	status, err := policy.Evaluate(class, sess, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusPresent {
		t.Fatalf("status = %s, want present", status)
	}
}
