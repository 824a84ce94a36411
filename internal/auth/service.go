package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jchoi-dev/account-service/internal/models"
	"github.com/jchoi-dev/account-service/internal/store"
)

// TokenPair is the result of a successful login or refresh. Refresh
// never rotates the refresh token, so RefreshToken echoes the
// presented one there.
type TokenPair struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// Service owns the token lifecycle: signup, login, refresh, logout and
// request authentication. All dependencies are injected; the service
// holds no global state.
type Service struct {
	users      store.UserStore
	activities store.ActivityStore
	codec      *Codec
	sessions   *SessionCache
	inv        *Invalidator
	verifier   *Verifier
	metrics    *Metrics
	log        *zap.Logger
	bcryptCost int
}

// ServiceConfig carries the collaborators for NewService. A nil
// Metrics registers on a throwaway registry; a nil Logger discards.
// Verifier may be nil when signup verification is disabled.
type ServiceConfig struct {
	Users      store.UserStore
	Activities store.ActivityStore
	Codec      *Codec
	Sessions   *SessionCache
	Inv        *Invalidator
	Verifier   *Verifier
	Metrics    *Metrics
	Logger     *zap.Logger
	BcryptCost int
}

// NewService wires the session lifecycle service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:      cfg.Users,
		activities: cfg.Activities,
		codec:      cfg.Codec,
		sessions:   cfg.Sessions,
		inv:        cfg.Inv,
		verifier:   cfg.Verifier,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// SignUpInput is the validated signup request.
type SignUpInput struct {
	Email    string
	Password string
	Name     string
	Nickname string
	Phone    string
}

// SignUp registers a new account with the default USER role and ACTIVE
// status. The email must have completed verification first.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if s.verifier != nil {
		verified, err := s.verifier.Verified(ctx, email)
		if err != nil {
			return nil, err
		}
		if !verified {
			return nil, ErrVerificationCode
		}
	}

	if taken, err := s.users.ExistsByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("signup email check: %w", err)
	} else if taken {
		return nil, ErrEmailTaken
	}
	if in.Nickname != "" {
		if taken, err := s.users.ExistsByNickname(ctx, in.Nickname); err != nil {
			return nil, fmt.Errorf("signup nickname check: %w", err)
		} else if taken {
			return nil, ErrNicknameTaken
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	u := &models.User{
		Email:           email,
		PasswordHash:    string(hash),
		Name:            in.Name,
		Nickname:        in.Nickname,
		Phone:           in.Phone,
		Role:            models.RoleUser,
		Status:          models.StatusActive,
		EmailVerified:   s.verifier != nil,
		EmailVerifiedAt: &now,
	}
	if s.verifier == nil {
		u.EmailVerifiedAt = nil
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.verifier != nil {
		s.verifier.Consume(ctx, email)
	}
	s.record(ctx, u.ID, models.ActivitySignup, "")
	s.log.Info("user signed up", zap.Int64("userId", u.ID))
	return u, nil
}

// Login authenticates credentials and establishes a new session. A new
// refresh token overwrites the durable one, structurally revoking any
// prior session; the cache record is written only after the durable
// write commits.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.LoginFailure.Inc()
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("login lookup: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.metrics.LoginFailure.Inc()
		return nil, nil, ErrInvalidCredentials
	}
	if err := statusError(u.Status); err != nil {
		s.metrics.LoginFailure.Inc()
		return nil, nil, err
	}

	pair, err := s.establish(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	s.record(ctx, u.ID, models.ActivityLogin, "")
	s.metrics.LoginSuccess.Inc()
	s.log.Info("login", zap.Int64("userId", u.ID))
	return pair, u, nil
}

// establish issues both tokens and writes them out: durable first,
// cache second.
func (s *Service) establish(ctx context.Context, u *models.User) (*TokenPair, error) {
	access, err := s.codec.IssueAccess(u)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := time.Now()
	u.RefreshToken = refresh
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	s.sessions.PutRefresh(ctx, u.ID, refresh, now.Add(s.codec.RefreshTTL()))

	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: now.Add(s.codec.AccessTTL()),
	}, nil
}

// Refresh mints a new access token off a presented refresh token. The
// refresh token itself is never rotated. The cached RefreshRecord is
// authoritative when present; an absent record falls back to the
// durable field and repairs the cache on success.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		s.metrics.RefreshFailure.Inc()
		return nil, ErrTokenInvalid
	}
	userID, err := claims.SubjectID()
	if err != nil {
		s.metrics.RefreshFailure.Inc()
		return nil, ErrTokenInvalid
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.metrics.RefreshFailure.Inc()
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("refresh lookup: %w", err)
	}
	if err := statusError(u.Status); err != nil {
		s.metrics.RefreshFailure.Inc()
		return nil, err
	}

	if rec, ok := s.sessions.GetRefresh(ctx, userID); ok {
		s.metrics.RefreshHit.Inc()
		if rec.Token != refreshToken {
			s.metrics.RefreshFailure.Inc()
			return nil, ErrTokenInvalid
		}
	} else {
		s.metrics.RefreshMiss.Inc()
		if u.RefreshToken != refreshToken {
			s.metrics.RefreshFailure.Inc()
			return nil, ErrTokenInvalid
		}
		// Cold cache with a matching durable token: repair it so the
		// next refresh takes the fast path.
		s.sessions.PutRefresh(ctx, userID, refreshToken, claims.ExpiresAt.Time)
	}

	access, err := s.codec.IssueAccess(u)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	s.metrics.RefreshSuccess.Inc()
	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    refreshToken,
		AccessExpiresAt: time.Now().Add(s.codec.AccessTTL()),
	}, nil
}

// Logout clears the durable refresh token and drops the cached
// session state. Idempotent while the user exists. The access token,
// when supplied, has its validation memo dropped as well so the next
// request re-verifies.
func (s *Service) Logout(ctx context.Context, userID int64, accessToken string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("logout lookup: %w", err)
	}
	u.RefreshToken = ""
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.inv.RefreshToken(ctx, userID)
	if accessToken != "" {
		s.inv.TokenValidation(ctx, accessToken)
	}
	s.record(ctx, userID, models.ActivityLogout, "")
	s.metrics.Logout.Inc()
	s.log.Info("logout", zap.Int64("userId", userID))
	return nil
}

// Authenticate resolves a bearer token to a principal, serving from
// the validation cache when possible. A cached record is trusted
// without re-verifying the signature.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	if rec, ok := s.sessions.GetValidation(ctx, token); ok {
		s.metrics.ValidationHit.Inc()
		return &Principal{UserID: rec.UserID, Email: rec.Email, Role: models.Role(rec.Role)}, nil
	}
	s.metrics.ValidationMiss.Inc()

	claims, err := s.codec.VerifyAccess(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	userID, err := claims.SubjectID()
	if err != nil {
		return nil, ErrTokenInvalid
	}
	s.sessions.PutValidation(ctx, token, ValidationRecord{
		UserID:    userID,
		Email:     claims.Email,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	})
	return &Principal{UserID: userID, Email: claims.Email, Role: models.Role(claims.Role)}, nil
}

func (s *Service) record(ctx context.Context, userID int64, kind models.ActivityKind, detail string) {
	if s.activities == nil {
		return
	}
	if err := s.activities.Record(ctx, &models.Activity{UserID: userID, Kind: kind, Detail: detail}); err != nil {
		s.log.Warn("activity record failed", zap.Int64("userId", userID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

func statusError(st models.Status) error {
	switch st {
	case models.StatusSuspended:
		return ErrAccountSuspended
	case models.StatusDeleted:
		return ErrAccountDeleted
	default:
		return nil
	}
}
