// Package user implements account management: profile reads with a
// lookaside cache, profile and role updates, status transitions, and
// password operations. Every durable mutation is paired with the
// matching cache invalidation.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jchoi-dev/account-service/internal/auth"
	"github.com/jchoi-dev/account-service/internal/models"
	"github.com/jchoi-dev/account-service/internal/store"
)

// Service manages user accounts. Reads go cache-first; writes go
// durable-first, then invalidate.
type Service struct {
	users      store.UserStore
	activities store.ActivityStore
	sessions   *auth.SessionCache
	inv        *auth.Invalidator
	log        *zap.Logger
	bcryptCost int
}

// NewService wires the user management service. Logger may be nil.
func NewService(users store.UserStore, activities store.ActivityStore, sessions *auth.SessionCache, inv *auth.Invalidator, log *zap.Logger, bcryptCost int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:      users,
		activities: activities,
		sessions:   sessions,
		inv:        inv,
		log:        log,
		bcryptCost: bcryptCost,
	}
}

// Get returns a user by id, serving from the user-info cache when
// possible and repairing it on a durable hit.
func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := s.sessions.GetUser(ctx, id); ok {
		return u, nil
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.sessions.PutUser(ctx, u)
	return u, nil
}

// UpdateInput carries optional profile fields; nil means unchanged.
type UpdateInput struct {
	Name            *string
	Nickname        *string
	Phone           *string
	ProfileImageURL *string
}

// Update applies a profile change and invalidates the user-info cache.
// Sessions stay valid; only denormalized user data went stale.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*models.User, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Nickname != nil && *in.Nickname != u.Nickname {
		if taken, err := s.users.ExistsByNickname(ctx, *in.Nickname); err != nil {
			return nil, fmt.Errorf("nickname check: %w", err)
		} else if taken {
			return nil, auth.ErrNicknameTaken
		}
		u.Nickname = *in.Nickname
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.ProfileImageURL != nil {
		u.ProfileImageURL = *in.ProfileImageURL
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.inv.UserInfo(ctx, u.ID, u.Email)
	return u, nil
}

// UpdateRole changes a user's role. Existing sessions stay valid;
// their cached claims age out with the short validation TTL.
func (s *Service) UpdateRole(ctx context.Context, id int64, role models.Role) (*models.User, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = role
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	s.inv.UserInfo(ctx, u.ID, u.Email)
	s.log.Info("role updated", zap.Int64("userId", id), zap.String("role", string(role)))
	return u, nil
}

// Suspend marks the account SUSPENDED and drops all of its caches so
// refreshes fail immediately.
func (s *Service) Suspend(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, models.StatusSuspended)
}

// Activate restores a suspended account to ACTIVE.
func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, models.StatusActive)
}

// Delete soft-deletes the account: status DELETED, deletion timestamp,
// refresh token cleared, all caches dropped. The row remains.
func (s *Service) Delete(ctx context.Context, id int64) error {
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	u.Status = models.StatusDeleted
	u.DeletedAt = &now
	u.RefreshToken = ""
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	s.inv.UserCaches(ctx, u.ID, u.Email)
	s.log.Info("user soft-deleted", zap.Int64("userId", id))
	return nil
}

// HardDelete removes the row and everything cached for it.
func (s *Service) HardDelete(ctx context.Context, id int64) error {
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("hard delete: %w", err)
	}
	s.inv.UserCaches(ctx, u.ID, u.Email)
	s.log.Info("user hard-deleted", zap.Int64("userId", id))
	return nil
}

// ChangePassword verifies the current password, stores the new hash,
// clears the durable refresh token, and drops the refresh cache. The
// clear forces re-login everywhere; a previously cached access-token
// validation may linger for its short TTL, which is accepted bounded
// staleness.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return auth.ErrPasswordMismatch
	}
	return s.setPassword(ctx, u, next)
}

// SetPassword sets an initial password on a social-login account that
// has none. Regular accounts must use ChangePassword.
func (s *Service) SetPassword(ctx context.Context, id int64, next string) error {
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if u.Provider == "" || u.PasswordHash != "" {
		return auth.ErrNotSocialAccount
	}
	return s.setPassword(ctx, u, next)
}

// VerifyPassword checks a password against the stored hash without
// changing anything.
func (s *Service) VerifyPassword(ctx context.Context, id int64, password string) error {
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return auth.ErrPasswordMismatch
	}
	return nil
}

// Activities lists a user's recent activity, newest first.
func (s *Service) Activities(ctx context.Context, id int64, limit int) ([]models.Activity, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	return s.activities.ListByUser(ctx, id, limit)
}

func (s *Service) setPassword(ctx context.Context, u *models.User, next string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	// Clearing the stored refresh token in the same write makes every
	// outstanding refresh token unusable at once.
	u.RefreshToken = ""
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.inv.RefreshToken(ctx, u.ID)
	s.recordActivity(ctx, u.ID, models.ActivityPasswordChange)
	s.log.Info("password changed", zap.Int64("userId", u.ID))
	return nil
}

func (s *Service) setStatus(ctx context.Context, id int64, status models.Status) error {
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	u.Status = status
	if status == models.StatusActive {
		u.DeletedAt = nil
	}
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	s.inv.UserCaches(ctx, u.ID, u.Email)
	s.log.Info("status updated", zap.Int64("userId", id), zap.String("status", string(status)))
	return nil
}

// load always reads the durable store, bypassing the cache. Mutation
// paths use it so they never act on stale data.
func (s *Service) load(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *Service) recordActivity(ctx context.Context, userID int64, kind models.ActivityKind) {
	if s.activities == nil {
		return
	}
	if err := s.activities.Record(ctx, &models.Activity{UserID: userID, Kind: kind}); err != nil {
		s.log.Warn("activity record failed", zap.Int64("userId", userID), zap.Error(err))
	}
}
