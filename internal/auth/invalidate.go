package auth

import (
	"context"

	"go.uber.org/zap"
)

// Invalidator pairs durable mutations with best-effort cache drops.
// Every method is fire-and-forget: failures are logged inside the
// session cache and never surface, because the durable write already
// decided the outcome. Callers invalidate after the durable write
// commits, never before.
type Invalidator struct {
	sessions *SessionCache
	log      *zap.Logger
}

// NewInvalidator wires the invalidation helper.
func NewInvalidator(sessions *SessionCache, log *zap.Logger) *Invalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invalidator{sessions: sessions, log: log}
}

// UserCaches drops everything cached for a user: the refresh record
// and the user-info record plus its email index. Used on logout,
// suspension, deletion and password change.
func (inv *Invalidator) UserCaches(ctx context.Context, userID int64, email string) {
	inv.sessions.DeleteRefresh(ctx, userID)
	inv.sessions.DeleteUser(ctx, userID, email)
	inv.log.Debug("invalidated user caches", zap.Int64("userId", userID))
}

// RefreshToken drops only the cached refresh record.
func (inv *Invalidator) RefreshToken(ctx context.Context, userID int64) {
	inv.sessions.DeleteRefresh(ctx, userID)
}

// UserInfo drops only the cached user-info record. Used on profile
// updates that do not touch credentials.
func (inv *Invalidator) UserInfo(ctx context.Context, userID int64, email string) {
	inv.sessions.DeleteUser(ctx, userID, email)
}

// TokenValidation drops the memo for a single access token, forcing
// the next bearer of that token through full verification.
func (inv *Invalidator) TokenValidation(ctx context.Context, token string) {
	inv.sessions.DeleteValidation(ctx, token)
}
