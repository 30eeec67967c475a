package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
	GetRoom(ctx context.Context, id string) (application.Room, error)
	ListRooms(ctx context.Context, principal application.Principal, blockID string) ([]application.Room, error)
}

type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

func (h *RoomHandler) Create(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)

	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind room request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Create", "principal_id", principal.UserID)
	room, err := h.service.CreateRoom(ctx, application.CreateRoomParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		logger.DebugContext(ctx, "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	h.responder.writeJSON(c, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	roomID := c.Param("id")

	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Update", "principal_id", principal.UserID, "room_id", roomID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind room update", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Update", "principal_id", principal.UserID, "room_id", roomID)
	room, err := h.service.UpdateRoom(ctx, application.UpdateRoomParams{Principal: principal, RoomID: roomID, Input: req.toInput()})
	if err != nil {
		logger.DebugContext(ctx, "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "room updated")
	h.responder.writeJSON(c, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Delete(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	roomID := c.Param("id")

	logger := h.log(ctx, "Delete", "principal_id", principal.UserID, "room_id", roomID)
	if err := h.service.DeleteRoom(ctx, principal, roomID); err != nil {
		logger.DebugContext(ctx, "room delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "room deleted")
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *RoomHandler) Get(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	roomID := c.Param("id")

	room, err := h.service.GetRoom(ctx, roomID)
	if err != nil {
		h.log(ctx, "Get", "room_id", roomID).DebugContext(ctx, "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) List(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	blockID := c.Query("block_id")

	logger := h.log(ctx, "List", "principal_id", principal.UserID)
	rooms, err := h.service.ListRooms(ctx, principal, blockID)
	if err != nil {
		logger.DebugContext(ctx, "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	dtos := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		dtos = append(dtos, toRoomDTO(room))
	}
	logger.With("result_count", len(dtos)).InfoContext(ctx, "rooms listed")
	h.responder.writeJSON(c, http.StatusOK, listRoomsResponse{Rooms: dtos})
}
