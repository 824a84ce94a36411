package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gate returns the authentication middleware. Requests matching a
// public prefix bypass it entirely. For everything else it extracts
// the bearer token and resolves it to a principal; failure to do so is
// not itself an error — the request proceeds unauthenticated and the
// route's own requirements decide. A panic inside the gate is
// recovered and treated the same way, so an auth-layer fault degrades
// to denied access rather than a dead service.
func Gate(svc *Service, publicPrefixes []string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("authentication gate panic, proceeding unauthenticated",
						zap.Any("panic", r), zap.String("path", path))
				}
			}()
			token, ok := bearerToken(c.GetHeader("Authorization"))
			if !ok {
				return
			}
			p, err := svc.Authenticate(c.Request.Context(), token)
			if err != nil {
				return
			}
			SetPrincipal(c, p)
		}()

		c.Next()
	}
}

// RequireAuth aborts with 401 when the gate attached no principal.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 401 for unauthenticated callers and 403 for
// authenticated non-admins.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !p.Admin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
