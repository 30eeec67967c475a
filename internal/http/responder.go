package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/scheduler"
)

var (
	errBadRequestBody = errors.New("request body is malformed")
	errMissingToken   = errors.New("authentication required")
	errAdminOnly      = errors.New("administrator privileges required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(c *gin.Context, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

// writeError aborts the request with a body built from status and err.
func (r responder) writeError(c *gin.Context, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	r.loggerFor(c.Request.Context()).WarnContext(c.Request.Context(), "request rejected", "status", status, "error_code", code, "error", err)
	c.AbortWithStatusJSON(status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError maps the application error taxonomy to a status and body.
func (r responder) handleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	if err == nil {
		err = errors.New("unknown error")
	}

	kind := application.ErrorKind(err)
	status := statusForKind(kind)
	body := errorResponse{ErrorCode: kind, Message: err.Error()}

	switch kind {
	case "validation":
		var vErr *application.ValidationError
		errors.As(err, &vErr)
		body.Message = "validation failed"
		body.Errors = vErr.FieldErrors
		body.Codes = vErr.FieldCodes
	case "conflict":
		var cErr *application.ConflictError
		if errors.As(err, &cErr) {
			body.Conflicts = toConflictDTOs(cErr.Conflicts)
		}
		var gErr *application.GenerationError
		if errors.As(err, &gErr) {
			body.Persisted = &gErr.Persisted
		}
	case "business_rule":
		var gErr *application.GenerationError
		if errors.As(err, &gErr) {
			body.Persisted = &gErr.Persisted
		}
	case "unexpected", "canceled":
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
		body.Message = http.StatusText(status)
	}

	c.AbortWithStatusJSON(status, body)
}

// handleBindError reports a body or query that could not be decoded or failed
// struct validation.
func (r responder) handleBindError(c *gin.Context, err error) {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		body := errorResponse{
			ErrorCode: "validation",
			Message:   "validation failed",
			Errors:    make(map[string]string, len(ves)),
			Codes:     make(map[string]string, len(ves)),
		}
		for _, fe := range ves {
			field := fe.Field()
			if _, seen := body.Errors[field]; seen {
				continue
			}
			body.Errors[field] = validationMessage(fe)
			body.Codes[field] = validationCode(fe.Tag())
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, body)
		return
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var timeErr *time.ParseError
	switch {
	case errors.Is(err, io.EOF), errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.As(err, &timeErr):
		r.writeError(c, http.StatusBadRequest, "bad_request", errBadRequestBody)
	default:
		r.writeError(c, http.StatusBadRequest, "bad_request", err)
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusForKind(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "validation":
		return http.StatusUnprocessableEntity
	case "conflict", "already_exists":
		return http.StatusConflict
	case "business_rule":
		return http.StatusBadRequest
	case "unauthorized", "invalid_credentials", "token_invalid":
		return http.StatusUnauthorized
	case "forbidden", "account_disabled":
		return http.StatusForbidden
	case "canceled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Codes     map[string]string `json:"codes,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
	Persisted *int              `json:"persisted,omitempty"`
}

type conflictDTO struct {
	WithID string `json:"with_id"`
	Type   string `json:"type"`
	Day    string `json:"day,omitempty"`
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		dto := conflictDTO{WithID: c.WithID, Type: string(c.Type)}
		if !c.Day.IsZero() {
			dto.Day = c.Day.Format(time.DateOnly)
		}
		out = append(out, dto)
	}
	return out
}
