package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jchoi-dev/account-service/internal/auth"
)

// PublicPrefixes is the default set of route prefixes that bypass the
// authentication gate.
var PublicPrefixes = []string{
	"/api/auth/",
	"/api/email/",
	"/healthz",
	"/metrics",
}

// Deps bundles everything the router needs.
type Deps struct {
	Auth    *AuthHandlers
	Users   *UserHandlers
	AuthSvc *auth.Service
	Health  func(ctx context.Context) error
	Logger  *zap.Logger
	Release bool

	// Public overrides PublicPrefixes when non-empty.
	Public []string
}

// NewRouter builds the gin engine: request id, gzip, structured
// request logging, then the authentication gate in front of every
// route group.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	binding.Validator = new(FormValidator)

	public := d.Public
	if len(public) == 0 {
		public = PublicPrefixes
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(requestLogger(d.Logger))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(auth.Gate(d.AuthSvc, public, d.Logger))

	r.GET("/healthz", healthHandler(d.Health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	a := api.Group("/auth")
	a.POST("/signup", d.Auth.Signup)
	a.POST("/login", d.Auth.Login)
	a.POST("/refresh", d.Auth.Refresh)
	// Logout carries a bearer token, so it sits outside the public
	// group even though it lives under /api/auth in spirit.

	e := api.Group("/email")
	e.POST("/request", d.Auth.RequestVerification)
	e.POST("/verify", d.Auth.ConfirmVerification)

	session := api.Group("/session", auth.RequireAuth())
	session.POST("/logout", d.Auth.Logout)

	me := api.Group("/users/me", auth.RequireAuth())
	me.GET("", d.Users.Me)
	me.PATCH("", d.Users.UpdateMe)
	me.DELETE("", d.Users.DeleteMe)
	me.POST("/password", d.Users.ChangePassword)
	me.POST("/password/set", d.Users.SetPassword)
	me.POST("/password/verify", d.Users.VerifyPassword)
	me.GET("/activities", d.Users.Activities)

	admin := api.Group("/admin/users", auth.RequireAdmin())
	admin.GET("/:id", d.Users.Get)
	admin.PUT("/:id/role", d.Users.UpdateRole)
	admin.POST("/:id/suspend", d.Users.Suspend)
	admin.POST("/:id/activate", d.Users.Activate)
	admin.DELETE("/:id", d.Users.HardDelete)

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestId", requestid.Get(c)),
			zap.String("clientIp", c.ClientIP()),
		)
	}
}

func healthHandler(health func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
