package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/digital-library-api/internal/dto"
	"github.com/noah-isme/digital-library-api/internal/middleware"
	"github.com/noah-isme/digital-library-api/internal/models"
	"github.com/noah-isme/digital-library-api/internal/session"
	appErrors "github.com/noah-isme/digital-library-api/pkg/errors"
	"github.com/noah-isme/digital-library-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*models.Principal, error)
	Register(ctx context.Context, req dto.RegisterRequest) (*models.Principal, error)
}

// AuthHandler serves the public entry points: landing redirect, login,
// registration, and logout.
type AuthHandler struct {
	service  authService
	sessions *session.Manager
	logger   *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service authService, sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{service: service, sessions: sessions, logger: logger}
}

// Home godoc
// @Summary Landing redirect
// @Tags Auth
// @Success 302
// @Router / [get]
func (h *AuthHandler) Home(c *gin.Context) {
	if p := middleware.CurrentPrincipal(c); p != nil {
		response.Redirect(c, dashboardPath(p.Role))
		return
	}
	response.Redirect(c, middleware.LoginPath)
}

// LoginPage godoc
// @Summary Login view data with pending flash messages
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /login [get]
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if p := middleware.CurrentPrincipal(c); p != nil {
		response.Redirect(c, dashboardPath(p.Role))
		return
	}
	response.JSON(c, http.StatusOK, nil, popFlashMeta(c))
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags Auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	if p := middleware.CurrentPrincipal(c); p != nil {
		response.Redirect(c, dashboardPath(p.Role))
		return
	}

	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid login payload"))
		return
	}

	principal, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	sess, err := h.rotateSession(c, *principal)
	if err != nil {
		h.logger.Error("session rotation failed", zap.Error(err))
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "An error occurred. Please try again."))
		return
	}
	_ = sess.FlashSuccess(c.Request.Context(), fmt.Sprintf("Welcome back, %s!", principal.Name))

	response.JSON(c, http.StatusOK, authPayload(principal))
}

// RegisterPage godoc
// @Summary Registration view data with pending flash messages
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /register [get]
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	if p := middleware.CurrentPrincipal(c); p != nil {
		response.Redirect(c, dashboardPath(p.Role))
		return
	}
	response.JSON(c, http.StatusOK, nil, popFlashMeta(c))
}

// Register godoc
// @Summary Create a student account and log it in
// @Tags Auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param name formData string true "Full name"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param confirm_password formData string true "Password confirmation"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	if p := middleware.CurrentPrincipal(c); p != nil {
		response.Redirect(c, dashboardPath(p.Role))
		return
	}

	var req dto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration payload"))
		return
	}

	principal, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	sess, err := h.rotateSession(c, *principal)
	if err != nil {
		h.logger.Error("session rotation failed", zap.Error(err))
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Registration failed. Please try again."))
		return
	}
	_ = sess.FlashSuccess(c.Request.Context(), fmt.Sprintf("Registration successful! Welcome to Digital Library, %s!", principal.Name))

	response.JSON(c, http.StatusCreated, authPayload(principal))
}

// Logout godoc
// @Summary Destroy the session and return to login
// @Tags Auth
// @Success 302
// @Router /logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	if sess := middleware.CurrentSession(c); sess != nil {
		if err := h.sessions.Destroy(c.Request.Context(), sess.ID); err != nil {
			h.logger.Warn("session destroy failed", zap.Error(err))
		}
	}

	fresh, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		h.logger.Error("session create failed", zap.Error(err))
		response.Redirect(c, middleware.LoginPath)
		return
	}
	_ = fresh.FlashSuccess(c.Request.Context(), "You have been logged out successfully.")
	middleware.WriteCookie(c, h.sessions, fresh.ID)
	response.Redirect(c, middleware.LoginPath)
}

// rotateSession discards the request's session id and binds the principal to
// a brand new one, so a pre-login id never carries an authenticated identity.
func (h *AuthHandler) rotateSession(c *gin.Context, principal models.Principal) (*session.Session, error) {
	if old := middleware.CurrentSession(c); old != nil {
		_ = h.sessions.Destroy(c.Request.Context(), old.ID)
	}
	sess, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		return nil, err
	}
	if err := sess.Login(c.Request.Context(), principal); err != nil {
		return nil, err
	}
	middleware.WriteCookie(c, h.sessions, sess.ID)
	c.Set(middleware.ContextSessionKey, sess)
	return sess, nil
}

func authPayload(p *models.Principal) dto.AuthResponse {
	return dto.AuthResponse{
		UserID:   p.UserID,
		Name:     p.Name,
		Email:    p.Email,
		Role:     string(p.Role),
		Redirect: dashboardPath(p.Role),
	}
}

func dashboardPath(role models.Role) string {
	if role == models.RoleAdmin {
		return "/admin/dashboard"
	}
	return "/student/dashboard"
}

// popFlashMeta consumes the session's pending flash messages into response
// metadata. Returns nil when there is nothing to show.
func popFlashMeta(c *gin.Context) map[string]interface{} {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return nil
	}
	success, errMsg, err := sess.PopFlashes(c.Request.Context())
	if err != nil || (success == "" && errMsg == "") {
		return nil
	}
	meta := make(map[string]interface{}, 2)
	if success != "" {
		meta["success"] = success
	}
	if errMsg != "" {
		meta["error"] = errMsg
	}
	return meta
}
