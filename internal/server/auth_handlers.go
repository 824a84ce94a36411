package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jchoi-dev/account-service/internal/auth"
)

// AuthHandlers serves the authentication endpoints.
type AuthHandlers struct {
	svc      *auth.Service
	verifier *auth.Verifier
	log      *zap.Logger
}

// NewAuthHandlers wires the authentication endpoints.
func NewAuthHandlers(svc *auth.Service, verifier *auth.Verifier, log *zap.Logger) *AuthHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandlers{svc: svc, verifier: verifier, log: log}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandlers) Signup(c *gin.Context) {
	var form SignupForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.SignUp(c.Request.Context(), auth.SignUpInput{
		Email:    form.Email,
		Password: form.Password,
		Name:     form.Name,
		Nickname: form.Nickname,
		Phone:    form.Phone,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse(u))
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	pair, u, err := h.svc.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":     pair.AccessToken,
		"refreshToken":    pair.RefreshToken,
		"accessExpiresAt": pair.AccessExpiresAt,
		"user":            userResponse(u),
	})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var form RefreshForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), form.RefreshToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout handles POST /api/auth/logout. Requires authentication; the
// bearer token's validation memo is dropped along with the session.
func (h *AuthHandlers) Logout(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	token, _ := bearerFromHeader(c.GetHeader("Authorization"))
	if err := h.svc.Logout(c.Request.Context(), p.UserID, token); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// RequestVerification handles POST /api/email/request.
func (h *AuthHandlers) RequestVerification(c *gin.Context) {
	var form EmailForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.verifier.Request(c.Request.Context(), form.Email); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

// ConfirmVerification handles POST /api/email/verify.
func (h *AuthHandlers) ConfirmVerification(c *gin.Context) {
	var form VerifyForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.verifier.Confirm(c.Request.Context(), form.Email, form.Code); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

func bearerFromHeader(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) <= len(bearer) || value[:len(bearer)] != bearer {
		return "", false
	}
	return value[len(bearer):], true
}
