package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"estate/internal/guard"
	"estate/internal/marketapi"
	"estate/internal/session"

	"github.com/gin-gonic/gin"
)

// MarketAPI is the part of the marketplace API the handlers call
type MarketAPI interface {
	Login(ctx context.Context, email, password string) (session.User, error)
	Register(ctx context.Context, req marketapi.RegisterRequest) (session.User, error)
	SwitchRole(ctx context.Context, email string, role session.Role) error
	UpdateProfile(ctx context.Context, email string, update marketapi.ProfileUpdate) error
}

// Handler serves pages and session actions
type Handler struct {
	market MarketAPI
}

// NewHandler creates a handler backed by market
func NewHandler(market MarketAPI) *Handler {
	return &Handler{market: market}
}

// LoginRequest is the payload of POST /login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignupRequest is the payload of POST /signup
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=buyer seller"`
}

// SwitchRoleRequest is the payload of POST /switch-role. An email in the
// body is ignored; the session's account is the one switched.
type SwitchRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateProfileRequest is the payload of POST /api/update-profile. As with
// role switching, any email in the body is ignored.
type UpdateProfileRequest struct {
	Username string `json:"username" binding:"omitempty,min=3,max=50"`
	Password string `json:"password"`
}

// Page renders the descriptor of view for the current visitor
func (h *Handler) Page(view string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{
			"view":   view,
			"user":   user,
			"nav":    navigation(user),
			"params": paramsOf(c),
		})
	}
}

func paramsOf(c *gin.Context) map[string]string {
	if len(c.Params) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		out[p.Key] = p.Value
	}
	return out
}

// Login handles POST /login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.market.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, marketapi.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		slog.Error("Login against marketplace failed",
			"email", req.Email,
			"error", err,
			"request_id", c.GetString("request_id"),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "login failed"})
		return
	}

	if err := StoreFrom(c).Login(c.Request.Context(), user); err != nil {
		slog.Error("Marketplace returned an unusable user record",
			"email", req.Email,
			"error", err,
			"request_id", c.GetString("request_id"),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "login successful",
		"user":     user,
		"redirect": guard.HomePath,
	})
}

// Signup handles POST /signup. It creates the account but does not sign in.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.market.Register(c.Request.Context(), marketapi.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     session.Role(req.Role),
	})
	if err != nil {
		if errors.Is(err, marketapi.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "email_taken",
				"message": "This email is already registered",
				"field":   "email",
			})
			return
		}
		slog.Error("Registration against marketplace failed",
			"email", req.Email,
			"error", err,
			"request_id", c.GetString("request_id"),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "registration successful",
		"redirect": guard.LoginPath,
	})
}

// Logout handles POST /logout
func (h *Handler) Logout(c *gin.Context) {
	store := StoreFrom(c)
	_, wasLoggedIn := store.Current()
	store.Logout(c.Request.Context())

	msg := "logged out successfully"
	if !wasLoggedIn {
		msg = "already logged out"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "redirect": guard.HomePath})
}

// SwitchRole handles POST /switch-role and /api/switch-role. The marketplace is updated first;
// the local session only changes once it agrees.
func (h *Handler) SwitchRole(c *gin.Context) {
	var req SwitchRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, err := session.ParseRole(req.Role)
	if err != nil || !role.SelfService() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be buyer or seller"})
		return
	}

	store := StoreFrom(c)
	user, ok := store.Current()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": guard.LoginPath})
		return
	}

	if err := h.market.SwitchRole(c.Request.Context(), user.Email, role); err != nil {
		slog.Error("Role switch against marketplace failed",
			"email", user.Email,
			"role", role,
			"error", err,
			"request_id", c.GetString("request_id"),
		)
		if errors.Is(err, marketapi.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update role"})
		return
	}

	if err := store.SwitchRole(c.Request.Context(), role); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrRoleSwitchForbidden) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	updated, _ := store.Current()
	c.JSON(http.StatusOK, gin.H{"message": "role updated", "user": updated})
}

// UpdateProfile handles POST /api/update-profile. The snapshot keeps the
// old username until the next login, as the marketplace does not echo the
// record back.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username == "" && req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	user, ok := StoreFrom(c).Current()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": guard.LoginPath})
		return
	}

	err := h.market.UpdateProfile(c.Request.Context(), user.Email, marketapi.ProfileUpdate{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		slog.Error("Profile update against marketplace failed",
			"email", user.Email,
			"error", err,
			"request_id", c.GetString("request_id"),
		)
		if errors.Is(err, marketapi.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}

// Session handles GET /session
func (h *Handler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": CurrentUser(c)})
}

// Nav handles GET /nav
func (h *Handler) Nav(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"links": navigation(CurrentUser(c))})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "estate-web",
	})
}
