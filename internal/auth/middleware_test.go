package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newGateRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.Use(Gate(f.svc, []string{"/public/"}, nil))
	r.GET("/public/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.GET("/whoami", RequireAuth(), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"userId": p.UserID, "email": p.Email})
	})
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r, f
}

func doGet(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGatePublicPrefixBypasses(t *testing.T) {
	r, _ := newGateRouter(t)
	w := doGet(r, "/public/ping", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGateAdmitsValidBearer(t *testing.T) {
	r, f := newGateRouter(t)
	f.seedUser(t, "a@x.com", "P@ssw0rd1")
	pair, _, err := f.svc.Login(context.Background(), "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	w := doGet(r, "/whoami", pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "a@x.com")
}

func TestGateInvalidTokenProceedsUnauthenticated(t *testing.T) {
	r, _ := newGateRouter(t)

	w := doGet(r, "/whoami", "garbage")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "/whoami", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateServesFromValidationCache(t *testing.T) {
	r, f := newGateRouter(t)
	f.seedUser(t, "a@x.com", "P@ssw0rd1")
	pair, _, err := f.svc.Login(context.Background(), "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	// Warm the memo, then take the cache path on the second request.
	require.Equal(t, http.StatusOK, doGet(r, "/whoami", pair.AccessToken).Code)
	require.Equal(t, http.StatusOK, doGet(r, "/whoami", pair.AccessToken).Code)
}

func TestGateSurvivesCacheOutage(t *testing.T) {
	r, f := newGateRouter(t)
	f.seedUser(t, "a@x.com", "P@ssw0rd1")
	pair, _, err := f.svc.Login(context.Background(), "a@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	f.mr.Close()
	// Verification still happens against the signature; the dead
	// cache only costs the memo.
	w := doGet(r, "/whoami", pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	r, f := newGateRouter(t)
	ctx := context.Background()

	f.seedUser(t, "user@x.com", "P@ssw0rd1")
	userPair, _, err := f.svc.Login(ctx, "user@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	admin := f.seedUser(t, "admin@x.com", "P@ssw0rd1")
	stored, err := f.users.FindByID(ctx, admin.ID)
	require.NoError(t, err)
	stored.Role = "ADMIN"
	require.NoError(t, f.users.Update(ctx, stored))
	adminPair, _, err := f.svc.Login(ctx, "admin@x.com", "P@ssw0rd1")
	require.NoError(t, err)

	require.Equal(t, http.StatusUnauthorized, doGet(r, "/admin", "").Code)
	require.Equal(t, http.StatusForbidden, doGet(r, "/admin", userPair.AccessToken).Code)
	require.Equal(t, http.StatusOK, doGet(r, "/admin", adminPair.AccessToken).Code)
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("Bearer abc")
	require.True(t, ok)
	require.Equal(t, "abc", token)

	_, ok = bearerToken("")
	require.False(t, ok)
	_, ok = bearerToken("Basic abc")
	require.False(t, ok)
	_, ok = bearerToken("Bearer ")
	require.False(t, ok)
}
