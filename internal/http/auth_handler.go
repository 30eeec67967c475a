package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	Refresh(ctx context.Context, refreshToken string) (application.AuthenticateResult, error)
}

type AuthHandler struct {
	service   authService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

// Login exchanges an email and password for an access and refresh token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Login", "error_kind", "bad_request").WarnContext(ctx, "failed to bind login request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	logger := h.log(ctx, "Login", "email", email)

	result, err := h.service.Authenticate(ctx, application.AuthenticateParams{Email: email, Password: req.Password})
	if err != nil {
		logger.DebugContext(ctx, "authentication failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "user authenticated", "user_id", result.User.ID)
	h.responder.writeJSON(c, http.StatusOK, toTokenResponse(result))
}

// Refresh issues a new token pair from a valid refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Refresh", "error_kind", "bad_request").WarnContext(ctx, "failed to bind refresh request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Refresh")
	result, err := h.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		logger.DebugContext(ctx, "token refresh failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "tokens refreshed", "user_id", result.User.ID)
	h.responder.writeJSON(c, http.StatusOK, toTokenResponse(result))
}
