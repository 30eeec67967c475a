package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/calendar"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// exportPageSize matches the largest page the services accept.
const exportPageSize = 100

type calendarRooms interface {
	GetRoom(ctx context.Context, id string) (application.Room, error)
}

type calendarReservations interface {
	ListReservations(ctx context.Context, filter application.ReservationFilter) (application.Page[application.Reservation], error)
}

type calendarRules interface {
	GetRule(ctx context.Context, id string) (recurrence.Rule, error)
	ListOccurrences(ctx context.Context, ruleID string, filter application.ReservationFilter) (application.Page[application.Reservation], error)
}

// CalendarHandler exports room schedules and rule occurrences as iCalendar.
type CalendarHandler struct {
	rooms        calendarRooms
	reservations calendarReservations
	rules        calendarRules
	now          func() time.Time
	responder    responder
	logger       *slog.Logger
}

func NewCalendarHandler(rooms calendarRooms, reservations calendarReservations, rules calendarRules, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{
		rooms:        rooms,
		reservations: reservations,
		rules:        rules,
		now:          now,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Room exports every active reservation of a room.
func (h *CalendarHandler) Room(c *gin.Context) {
	if h == nil || h.rooms == nil || h.reservations == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	roomID := c.Param("id")
	logger := h.log(ctx, "Room", "room_id", roomID)

	room, err := h.rooms.GetRoom(ctx, roomID)
	if err != nil {
		logger.DebugContext(ctx, "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	reservations, err := collectPages(ctx, func(ctx context.Context, p application.Pagination) (application.Page[application.Reservation], error) {
		return h.reservations.ListReservations(ctx, application.ReservationFilter{RoomID: room.ID, Pagination: p})
	})
	if err != nil {
		logger.DebugContext(ctx, "reservation export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	h.write(c, logger, "room-"+room.Code, reservations, calendar.Options{
		Name:  "Sala " + room.Code,
		Rooms: map[string]application.Room{room.ID: room},
	})
}

// Rule exports the active occurrences of a recurring rule.
func (h *CalendarHandler) Rule(c *gin.Context) {
	if h == nil || h.rules == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	ruleID := c.Param("id")
	logger := h.log(ctx, "Rule", "rule_id", ruleID)

	rule, err := h.rules.GetRule(ctx, ruleID)
	if err != nil {
		logger.DebugContext(ctx, "rule lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	occurrences, err := collectPages(ctx, func(ctx context.Context, p application.Pagination) (application.Page[application.Reservation], error) {
		return h.rules.ListOccurrences(ctx, rule.ID, application.ReservationFilter{Pagination: p})
	})
	if err != nil {
		logger.DebugContext(ctx, "occurrence export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	opts := calendar.Options{Name: rule.Identification}
	if h.rooms != nil {
		if room, err := h.rooms.GetRoom(ctx, rule.RoomID); err == nil {
			opts.Rooms = map[string]application.Room{room.ID: room}
		}
	}
	h.write(c, logger, "rule-"+rule.ID, occurrences, opts)
}

func (h *CalendarHandler) write(c *gin.Context, logger *slog.Logger, filename string, reservations []application.Reservation, opts calendar.Options) {
	ctx := c.Request.Context()
	opts.Stamp = h.now()

	var buf bytes.Buffer
	if err := calendar.Write(&buf, reservations, opts); err != nil {
		if errors.Is(err, calendar.ErrEmpty) {
			h.responder.writeError(c, http.StatusNotFound, "not_found", err)
			return
		}
		logger.ErrorContext(ctx, "calendar encoding failed", "error", err)
		h.responder.writeError(c, http.StatusInternalServerError, "unexpected", errors.New(http.StatusText(http.StatusInternalServerError)))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".ics"))
	logger.InfoContext(ctx, "calendar exported", "events", len(reservations))
	c.Data(http.StatusOK, calendar.ContentType, buf.Bytes())
}

// collectPages walks every page of a listing.
func collectPages[T any](ctx context.Context, list func(context.Context, application.Pagination) (application.Page[T], error)) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		res, err := list(ctx, application.Pagination{Page: page, Size: exportPageSize})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if len(res.Items) == 0 || len(out) >= res.Total {
			return out, nil
		}
	}
}
