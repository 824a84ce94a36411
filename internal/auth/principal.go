package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jchoi-dev/account-service/internal/models"
)

const principalContextKey = "auth.principal"

// Principal is the authenticated caller attached to a request after
// the gate admits it.
type Principal struct {
	UserID int64
	Email  string
	Role   models.Role
}

// Admin reports whether the principal carries the admin role.
func (p *Principal) Admin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

// SetPrincipal attaches the principal to the request context.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalContextKey, p)
}

// PrincipalFrom returns the request's principal, if the gate attached
// one.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}
