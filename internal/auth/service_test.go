package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jchoi-dev/account-service/internal/cache"
	"github.com/jchoi-dev/account-service/internal/models"
	"github.com/jchoi-dev/account-service/internal/store"
)

type fixture struct {
	svc      *Service
	users    *store.Memory
	sessions *SessionCache
	codec    *Codec
	store    cache.Store
	mr       *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cacheStore := cache.NewRedis(client, time.Second)
	sessions := NewSessionCache(cacheStore, nil)
	codec := testCodec(t)
	users := store.NewMemory()

	svc := NewService(ServiceConfig{
		Users:      users,
		Activities: users,
		Codec:      codec,
		Sessions:   sessions,
		Inv:        NewInvalidator(sessions, nil),
		BcryptCost: bcrypt.MinCost,
	})

	return &fixture{
		svc:      svc,
		users:    users,
		sessions: sessions,
		codec:    codec,
		store:    cacheStore,
		mr:       mr,
	}
}

func (f *fixture) seedUser(t *testing.T, email, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         "Test User",
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "P@ssw0rd1")

	pair, u, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.True(t, pair.AccessExpiresAt.After(time.Now()))

	// Durable copy holds the new refresh token and last-login time.
	stored, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored.RefreshToken)
	require.NotNil(t, stored.LastLoginAt)

	// Cache copy agrees with the durable one.
	rec, ok := f.sessions.GetRefresh(ctx, u.ID)
	require.True(t, ok)
	require.Equal(t, pair.RefreshToken, rec.Token)
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "P@ssw0rd1")

	_, _, errWrong := f.svc.Login(ctx, "a@x.com", "nope12345")
	_, _, errUnknown := f.svc.Login(ctx, "ghost@x.com", "nope12345")
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
}

func TestLoginRejectsInactiveAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	suspended := f.seedUser(t, "s@x.com", "P@ssw0rd1")
	suspended.Status = models.StatusSuspended
	require.NoError(t, f.users.Update(ctx, suspended))

	deleted := f.seedUser(t, "d@x.com", "P@ssw0rd1")
	deleted.Status = models.StatusDeleted
	require.NoError(t, f.users.Update(ctx, deleted))

	_, _, err := f.svc.Login(ctx, "s@x.com", "P@ssw0rd1")
	require.ErrorIs(t, err, ErrAccountSuspended)

	_, _, err = f.svc.Login(ctx, "d@x.com", "P@ssw0rd1")
	require.ErrorIs(t, err, ErrAccountDeleted)
}

func TestRefreshFastPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "P@ssw0rd1")

	pair, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	got, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, got.AccessToken)
	// The refresh token is never rotated on refresh.
	require.Equal(t, pair.RefreshToken, got.RefreshToken)
}

func TestRefreshColdCacheFallbackRepairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "a@x.com", "P@ssw0rd1")

	pair, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	// Simulate eviction: the durable copy is now the sole source of
	// truth.
	f.mr.FlushAll()
	_, ok := f.sessions.GetRefresh(ctx, u.ID)
	require.False(t, ok)

	got, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, got.RefreshToken)

	// Write-through repair: the record is back.
	rec, ok := f.sessions.GetRefresh(ctx, u.ID)
	require.True(t, ok)
	require.Equal(t, pair.RefreshToken, rec.Token)
}

func TestRefreshSupersededTokenFailsAfterEviction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "P@ssw0rd1")

	first, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)
	second, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	f.mr.FlushAll()

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = f.svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshCachedMismatchFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "P@ssw0rd1")

	first, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)
	// The second login overwrote both copies; the cached record now
	// disagrees with the first token.
	_, _, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshGarbageTokenFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Refresh(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshRejectsInactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "a@x.com", "P@ssw0rd1")

	pair, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	stored, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	stored.Status = models.StatusSuspended
	require.NoError(t, f.users.Update(ctx, stored))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrAccountSuspended)
}

func TestLogoutInvalidatesRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "a@x.com", "P@ssw0rd1")

	pair, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, u.ID, pair.AccessToken))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// Logging out twice is not an error.
	require.NoError(t, f.svc.Logout(ctx, u.ID, ""))
}

func TestLogoutUnknownUser(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.svc.Logout(context.Background(), 999, ""), ErrUserNotFound)
}

func TestLifecycleSurvivesCacheOutage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "a@x.com", "P@ssw0rd1")

	f.mr.Close()

	pair, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	got, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, got.RefreshToken)

	require.NoError(t, f.svc.Logout(ctx, u.ID, pair.AccessToken))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestConcurrentRefreshesConverge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "P@ssw0rd1")

	pair, _, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestAuthenticateMissThenHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "P@ssw0rd1")

	pair, u, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	p, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, p.UserID)
	require.Equal(t, "a@x.com", p.Email)

	// The verification outcome is memoized now.
	rec, ok := f.sessions.GetValidation(ctx, pair.AccessToken)
	require.True(t, ok)
	require.Equal(t, u.ID, rec.UserID)

	p2, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, p.UserID, p2.UserID)
}

func TestAuthenticateTrustsCachedRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A cached record short-circuits signature verification entirely,
	// so even a token the codec would reject is admitted while the
	// memo lives.
	f.sessions.PutValidation(ctx, "opaque-token", ValidationRecord{
		UserID:    7,
		Email:     "cached@x.com",
		Role:      "ADMIN",
		ExpiresAt: time.Now().Add(time.Hour),
	})

	p, err := f.svc.Authenticate(ctx, "opaque-token")
	require.NoError(t, err)
	require.Equal(t, int64(7), p.UserID)
	require.Equal(t, models.RoleAdmin, p.Role)
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = f.svc.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSignUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.SignUp(ctx, SignUpInput{
		Email:    "New@X.com",
		Password: "P@ssw0rd1",
		Name:     "New User",
		Nickname: "newbie",
	})
	require.NoError(t, err)
	require.Equal(t, "new@x.com", u.Email)
	require.Equal(t, models.RoleUser, u.Role)
	require.Equal(t, models.StatusActive, u.Status)
	require.NotEqual(t, "P@ssw0rd1", u.PasswordHash)

	_, _, err = f.svc.Login(ctx, "new@x.com", "P@ssw0rd1")
	require.NoError(t, err)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "P@ssw0rd1")

	_, err := f.svc.SignUp(ctx, SignUpInput{Email: "A@x.com", Password: "P@ssw0rd1", Name: "Dup"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignUpDuplicateNickname(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignUp(ctx, SignUpInput{Email: "a@x.com", Password: "P@ssw0rd1", Name: "A", Nickname: "taken"})
	require.NoError(t, err)

	_, err = f.svc.SignUp(ctx, SignUpInput{Email: "b@x.com", Password: "P@ssw0rd1", Name: "B", Nickname: "taken"})
	require.ErrorIs(t, err, ErrNicknameTaken)
}
