package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	UpdateReservation(ctx context.Context, params application.UpdateReservationParams) (application.Reservation, error)
	CancelReservation(ctx context.Context, params application.CancelReservationParams) error
	GetReservation(ctx context.Context, id string) (application.Reservation, error)
	ListReservations(ctx context.Context, filter application.ReservationFilter) (application.Page[application.Reservation], error)
}

type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

func (h *ReservationHandler) Create(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)

	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind reservation request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Create", "principal_id", principal.UserID, "room_id", req.RoomID)
	reservation, err := h.service.CreateReservation(ctx, application.CreateReservationParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		logger.DebugContext(ctx, "reservation creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "reservation created", "reservation_id", reservation.ID)
	h.responder.writeJSON(c, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Update(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	reservationID := c.Param("id")

	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Update", "principal_id", principal.UserID, "reservation_id", reservationID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind reservation update", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Update", "principal_id", principal.UserID, "reservation_id", reservationID)
	reservation, err := h.service.UpdateReservation(ctx, application.UpdateReservationParams{
		Principal:     principal,
		ReservationID: reservationID,
		Input:         req.toInput(),
	})
	if err != nil {
		logger.DebugContext(ctx, "reservation update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "reservation updated")
	h.responder.writeJSON(c, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

// Cancel soft-deletes a reservation. An optional reason is read from the
// reason query parameter.
func (h *ReservationHandler) Cancel(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	reservationID := c.Param("id")

	logger := h.log(ctx, "Cancel", "principal_id", principal.UserID, "reservation_id", reservationID)
	err := h.service.CancelReservation(ctx, application.CancelReservationParams{
		Principal:     principal,
		ReservationID: reservationID,
		Reason:        optionalReason(c),
	})
	if err != nil {
		logger.DebugContext(ctx, "reservation cancel failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "reservation cancelled")
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *ReservationHandler) Get(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	reservationID := c.Param("id")

	reservation, err := h.service.GetReservation(ctx, reservationID)
	if err != nil {
		h.log(ctx, "Get", "reservation_id", reservationID).DebugContext(ctx, "reservation lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) List(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()

	var query reservationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.log(ctx, "List", "error_kind", "bad_request").WarnContext(ctx, "failed to bind reservation query", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	page, err := h.service.ListReservations(ctx, query.toFilter())
	if err != nil {
		h.log(ctx, "List").DebugContext(ctx, "reservation list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toPageResponse(page, toReservationDTO))
}
