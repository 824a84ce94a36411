package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jchoi-dev/account-service/internal/cache"
	"github.com/jchoi-dev/account-service/internal/models"
)

// Cache lifetimes. Validation records are additionally clamped to the
// token's remaining life so a memo never outlives its token.
const (
	refreshRecordTTL    = 7 * 24 * time.Hour
	validationRecordTTL = 5 * time.Minute
	userRecordTTL       = 30 * time.Minute
)

// RefreshRecord memoizes the currently active refresh token for a
// user. When present it is authoritative for reads; the durable user
// row remains the fallback and the sole source of truth when the
// record is absent.
type RefreshRecord struct {
	UserID    int64     `json:"userId"`
	Token     string    `json:"token"`
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidationRecord memoizes a successful access-token verification so
// subsequent requests carrying the same token skip signature checks.
type ValidationRecord struct {
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionCache is the cache-aside layer over the token lifecycle. It
// absorbs every cache failure: reads degrade to a miss, writes and
// deletes degrade to a logged no-op. No method ever returns a cache
// error to its caller.
type SessionCache struct {
	store         cache.Store
	log           *zap.Logger
	validationTTL time.Duration
}

// NewSessionCache wires the cache layer. A nil logger falls back to
// zap.NewNop.
func NewSessionCache(store cache.Store, log *zap.Logger) *SessionCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionCache{store: store, log: log, validationTTL: validationRecordTTL}
}

// SetValidationTTL overrides the default validation-memo lifetime.
// Intended for configuration at startup, before the cache is shared.
func (s *SessionCache) SetValidationTTL(ttl time.Duration) {
	if ttl > 0 {
		s.validationTTL = ttl
	}
}

// GetRefresh looks up the cached refresh record for a user. ok is
// false on miss, decode failure, or cache unavailability.
func (s *SessionCache) GetRefresh(ctx context.Context, userID int64) (*RefreshRecord, bool) {
	var rec RefreshRecord
	if !s.get(ctx, RefreshKey(userID), &rec) {
		return nil, false
	}
	if rec.UserID != userID || rec.Token == "" || !rec.Valid {
		return nil, false
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		return nil, false
	}
	return &rec, true
}

// PutRefresh stores the active refresh token for a user. The TTL is
// the token's remaining life, capped at the full refresh window.
func (s *SessionCache) PutRefresh(ctx context.Context, userID int64, token string, expiresAt time.Time) {
	ttl := refreshRecordTTL
	if remaining := time.Until(expiresAt); remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	rec := RefreshRecord{UserID: userID, Token: token, Valid: true, ExpiresAt: expiresAt}
	s.put(ctx, RefreshKey(userID), rec, ttl)
}

// DeleteRefresh drops the cached refresh record for a user.
func (s *SessionCache) DeleteRefresh(ctx context.Context, userID int64) {
	s.delete(ctx, RefreshKey(userID))
}

// GetValidation looks up the memoized verification for a token.
// Records past their recorded expiry are treated as a miss even if the
// cache has not evicted them yet.
func (s *SessionCache) GetValidation(ctx context.Context, token string) (*ValidationRecord, bool) {
	var rec ValidationRecord
	if !s.get(ctx, TokenKey(token), &rec) {
		return nil, false
	}
	if rec.UserID <= 0 || time.Now().After(rec.ExpiresAt) {
		return nil, false
	}
	return &rec, true
}

// PutValidation memoizes a successful verification. The TTL is the
// memo lifetime clamped to the token's remaining life; a token with
// nothing left is not memoized at all.
func (s *SessionCache) PutValidation(ctx context.Context, token string, rec ValidationRecord) {
	ttl := s.validationTTL
	if remaining := time.Until(rec.ExpiresAt); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	s.put(ctx, TokenKey(token), rec, ttl)
}

// DeleteValidation drops the memo for a single token.
func (s *SessionCache) DeleteValidation(ctx context.Context, token string) {
	s.delete(ctx, TokenKey(token))
}

// GetUser looks up the cached user-info record by id.
func (s *SessionCache) GetUser(ctx context.Context, userID int64) (*models.User, bool) {
	var u models.User
	if !s.get(ctx, UserKey(userID), &u) {
		return nil, false
	}
	if u.ID != userID {
		return nil, false
	}
	return &u, true
}

// PutUser stores a user-info record under both the id key and the
// email-to-id index.
func (s *SessionCache) PutUser(ctx context.Context, u *models.User) {
	s.put(ctx, UserKey(u.ID), u, userRecordTTL)
	if u.Email != "" {
		s.put(ctx, UserEmailKey(u.Email), u.ID, userRecordTTL)
	}
}

// DeleteUser drops the user-info record and its email index entry.
func (s *SessionCache) DeleteUser(ctx context.Context, userID int64, email string) {
	keys := []string{UserKey(userID)}
	if email != "" {
		keys = append(keys, UserEmailKey(email))
	}
	s.delete(ctx, keys...)
}

func (s *SessionCache) get(ctx context.Context, key string, out interface{}) bool {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("cache read failed, degrading to miss", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn("cache entry undecodable, degrading to miss", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *SessionCache) put(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, key, raw, ttl); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *SessionCache) delete(ctx context.Context, keys ...string) {
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.log.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
