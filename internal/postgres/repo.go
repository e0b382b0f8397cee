// Package postgres implements the storage interfaces of the check-in core
// plus the session, user, and reporting queries around it.
package postgres

import (
	"database/sql"
	"time"
)

// Repository persists classtrack data in Postgres. Dates are stored as
// calendar days and materialized in the deployment timezone.
type Repository struct {
	db  *sql.DB
	loc *time.Location
}

// NewRepository creates a repo bound to the deployment timezone.
func NewRepository(db *sql.DB, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{db: db, loc: loc}
}

func (r *Repository) parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, r.loc)
}
