package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

type userService interface {
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
	GetUserFor(ctx context.Context, principal application.Principal, id string) (application.User, error)
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

func (h *UserHandler) Create(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)

	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind user request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Create", "principal_id", principal.UserID)
	user, err := h.service.CreateUser(ctx, application.CreateUserParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		logger.DebugContext(ctx, "user creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "user created", "user_id", user.ID)
	h.responder.writeJSON(c, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Update(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	userID := c.Param("id")

	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Update", "principal_id", principal.UserID, "user_id", userID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind user update", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Update", "principal_id", principal.UserID, "user_id", userID)
	user, err := h.service.UpdateUser(ctx, application.UpdateUserParams{Principal: principal, UserID: userID, Input: req.toInput()})
	if err != nil {
		logger.DebugContext(ctx, "user update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "user updated")
	h.responder.writeJSON(c, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Delete(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	userID := c.Param("id")

	logger := h.log(ctx, "Delete", "principal_id", principal.UserID, "user_id", userID)
	if err := h.service.DeleteUser(ctx, principal, userID); err != nil {
		logger.DebugContext(ctx, "user delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "user deleted")
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *UserHandler) Get(c *gin.Context) {
	h.get(c, "Get", c.Param("id"))
}

// Me returns the authenticated user's own profile.
func (h *UserHandler) Me(c *gin.Context) {
	h.get(c, "Me", principalOf(c).UserID)
}

func (h *UserHandler) get(c *gin.Context, operation, userID string) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)

	user, err := h.service.GetUserFor(ctx, principal, userID)
	if err != nil {
		h.log(ctx, operation, "principal_id", principal.UserID, "user_id", userID).
			DebugContext(ctx, "user lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) List(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	logger := h.log(ctx, "List", "principal_id", principal.UserID)

	users, err := h.service.ListUsers(ctx, principal)
	if err != nil {
		logger.DebugContext(ctx, "user list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	dtos := make([]userDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, toUserDTO(u))
	}
	logger.InfoContext(ctx, "users listed", "result_count", len(dtos))
	h.responder.writeJSON(c, http.StatusOK, listUsersResponse{Users: dtos})
}
