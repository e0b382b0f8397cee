package checkin

import (
	"context"
	"fmt"
	"time"
)

const (
	msgBadToken       = "This QR code is not valid. Please ask your teacher to generate a new one."
	msgDataIncomplete = "This session is missing class or location details. Please contact your teacher or admin."
)

// resolveSession turns a scanned token into a usable session. A token with no
// active session and a token that never existed produce the same failure so
// callers cannot probe which tokens exist.
func resolveSession(ctx context.Context, store SessionStore, token string, now time.Time) (*ClassSession, error) {
	sess, err := store.FindSessionByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find session by token: %w", err)
	}
	if sess == nil || sess.Status != SessionActive {
		return nil, failf(KindTokenInvalid, msgBadToken)
	}
	if sess.ExpiresAt == nil || now.After(*sess.ExpiresAt) {
		return nil, failf(KindTokenExpired, msgBadToken)
	}
	if sess.Class == nil || sess.Class.Location == nil ||
		sess.Class.Subject == "" || sess.Class.Teacher == "" {
		return nil, failf(KindDataIncomplete, msgDataIncomplete)
	}
	return sess, nil
}
