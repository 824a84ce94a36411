package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jchoi-dev/account-service/internal/auth"
	"github.com/jchoi-dev/account-service/internal/models"
	"github.com/jchoi-dev/account-service/internal/user"
)

// UserHandlers serves profile, password, status and activity
// endpoints. Self-service routes act on the authenticated principal;
// admin routes take an explicit id.
type UserHandlers struct {
	svc *user.Service
	log *zap.Logger
}

// NewUserHandlers wires the user endpoints.
func NewUserHandlers(svc *user.Service, log *zap.Logger) *UserHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandlers{svc: svc, log: log}
}

// Me handles GET /api/users/me.
func (h *UserHandlers) Me(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	u, err := h.svc.Get(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(u))
}

// UpdateMe handles PATCH /api/users/me.
func (h *UserHandlers) UpdateMe(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var form UpdateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.Update(c.Request.Context(), p.UserID, user.UpdateInput{
		Name:            form.Name,
		Nickname:        form.Nickname,
		Phone:           form.Phone,
		ProfileImageURL: form.ProfileImageURL,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(u))
}

// DeleteMe handles DELETE /api/users/me (soft delete).
func (h *UserHandlers) DeleteMe(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	if err := h.svc.Delete(c.Request.Context(), p.UserID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

// ChangePassword handles POST /api/users/me/password.
func (h *UserHandlers) ChangePassword(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var form ChangePasswordForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), p.UserID, form.CurrentPassword, form.NewPassword); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// SetPassword handles POST /api/users/me/password/set for social
// accounts without one.
func (h *UserHandlers) SetPassword(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var form SetPasswordForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.SetPassword(c.Request.Context(), p.UserID, form.NewPassword); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password set"})
}

// VerifyPassword handles POST /api/users/me/password/verify.
func (h *UserHandlers) VerifyPassword(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	var form PasswordForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.VerifyPassword(c.Request.Context(), p.UserID, form.Password); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password verified"})
}

// Activities handles GET /api/users/me/activities.
func (h *UserHandlers) Activities(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	acts, err := h.svc.Activities(c.Request.Context(), p.UserID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activityResponses(acts)})
}

// Get handles GET /api/admin/users/:id.
func (h *UserHandlers) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(u))
}

// UpdateRole handles PUT /api/admin/users/:id/role.
func (h *UserHandlers) UpdateRole(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var form RoleForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.UpdateRole(c.Request.Context(), id, models.Role(form.Role))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(u))
}

// Suspend handles POST /api/admin/users/:id/suspend.
func (h *UserHandlers) Suspend(c *gin.Context) {
	h.statusChange(c, h.svc.Suspend, "account suspended")
}

// Activate handles POST /api/admin/users/:id/activate.
func (h *UserHandlers) Activate(c *gin.Context) {
	h.statusChange(c, h.svc.Activate, "account activated")
}

// HardDelete handles DELETE /api/admin/users/:id.
func (h *UserHandlers) HardDelete(c *gin.Context) {
	h.statusChange(c, h.svc.HardDelete, "account removed")
}

func (h *UserHandlers) statusChange(c *gin.Context, op func(ctx context.Context, id int64) error, msg string) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

type userPayload struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Nickname        string     `json:"nickname,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	ProfileImageURL string     `json:"profileImageUrl,omitempty"`
	Role            string     `json:"role"`
	Status          string     `json:"status"`
	Provider        string     `json:"provider,omitempty"`
	EmailVerified   bool       `json:"emailVerified"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// userResponse strips credentials and session state from the durable
// record before it leaves the service.
func userResponse(u *models.User) userPayload {
	return userPayload{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Nickname:        u.Nickname,
		Phone:           u.Phone,
		ProfileImageURL: u.ProfileImageURL,
		Role:            string(u.Role),
		Status:          string(u.Status),
		Provider:        string(u.Provider),
		EmailVerified:   u.EmailVerified,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
	}
}

type activityPayload struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func activityResponses(acts []models.Activity) []activityPayload {
	out := make([]activityPayload, 0, len(acts))
	for _, a := range acts {
		out = append(out, activityPayload{
			ID:        a.ID,
			Kind:      string(a.Kind),
			Detail:    a.Detail,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}
