// Package sessions issues and rotates the QR tokens bound to class sessions
// and drives the session lifecycle around check-in.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classtrack/internal/postgres"
	"classtrack/internal/queue"
)

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrNotOwner        = errors.New("not the class teacher")
	ErrSessionNotFound = errors.New("session not found")
	ErrNotActive       = errors.New("session is not active")
)

// MsgSessionCompleted is consumed by the worker to mark absentees.
const MsgSessionCompleted = "session.completed"

// QRIssue is a freshly issued or rotated session token.
type QRIssue struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"qr_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service coordinates QR issuance and session completion.
type Service struct {
	repo     *postgres.Repository
	q        queue.Queue
	tokenTTL time.Duration
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

// New creates a service. tokenTTL bounds how long a scanned code stays valid.
func New(repo *postgres.Repository, q queue.Queue, tokenTTL time.Duration, loc *time.Location, log *zap.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, q: q, tokenTTL: tokenTTL, loc: loc, log: log, now: time.Now}
}

// IssueQR creates or refreshes the session for (class, date) with a fresh
// opaque token. Regeneration invalidates the previous token for that session.
// Empty startTime/endTime fall back to the class schedule.
func (s *Service) IssueQR(ctx context.Context, classID, teacherID string, date time.Time, startTime, endTime string) (*QRIssue, error) {
	class, err := s.repo.GetClassSchedule(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("class lookup: %w", err)
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	if class.TeacherID != teacherID {
		return nil, ErrNotOwner
	}
	if startTime == "" {
		startTime = class.StartTime
	}
	if endTime == "" {
		endTime = class.EndTime
	}

	token := uuid.NewString()
	expiresAt := s.now().In(s.loc).Add(s.tokenTTL)
	sessionID, err := s.repo.UpsertActiveSession(ctx, uuid.NewString(), classID, date.In(s.loc), startTime, endTime, token, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}

	s.log.Info("qr issued",
		zap.String("class_id", classID),
		zap.String("session_id", sessionID),
		zap.Time("expires_at", expiresAt))
	return &QRIssue{SessionID: sessionID, Token: token, ExpiresAt: expiresAt}, nil
}

// Complete transitions a session to completed and queues absentee marking.
func (s *Service) Complete(ctx context.Context, sessionID, teacherID string) error {
	owner, status, err := s.repo.SessionOwner(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session lookup: %w", err)
	}
	if status == "" {
		return ErrSessionNotFound
	}
	if owner != teacherID {
		return ErrNotOwner
	}

	done, err := s.repo.CompleteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if !done {
		return ErrNotActive
	}

	// Completion is already committed; don't fail the request on a
	// publish error.
	if err := s.q.Publish(ctx, queue.Message{Type: MsgSessionCompleted, Body: []byte(sessionID)}); err != nil {
		s.log.Warn("publish session.completed failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return nil
}
