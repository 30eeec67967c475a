package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

type semesterService interface {
	CreateSemester(ctx context.Context, principal application.Principal, input application.SemesterInput) (application.Semester, error)
	GetSemesterByIdentifier(ctx context.Context, identifier string) (application.Semester, error)
	ListSemesters(ctx context.Context) ([]application.Semester, error)
}

type SemesterHandler struct {
	service   semesterService
	responder responder
	logger    *slog.Logger
}

func NewSemesterHandler(service semesterService, logger *slog.Logger) *SemesterHandler {
	base := defaultLogger(logger)
	return &SemesterHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SemesterHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SemesterHandler", operation, attrs...)
}

type semesterResponse struct {
	Semester semesterDTO `json:"semester"`
}

type listSemestersResponse struct {
	Semesters []semesterDTO `json:"semesters"`
}

func (h *SemesterHandler) Create(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)

	var req semesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind semester request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	vErr := &application.ValidationError{}
	input := application.SemesterInput{
		Identifier: req.Identifier,
		StartDate:  parseDate("start_date", req.StartDate, vErr),
		EndDate:    parseDate("end_date", req.EndDate, vErr),
		Active:     req.Active,
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(c, vErr)
		return
	}

	logger := h.log(ctx, "Create", "principal_id", principal.UserID, "identifier", req.Identifier)
	semester, err := h.service.CreateSemester(ctx, principal, input)
	if err != nil {
		logger.DebugContext(ctx, "semester creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "semester created", "semester_id", semester.ID)
	h.responder.writeJSON(c, http.StatusCreated, semesterResponse{Semester: toSemesterDTO(semester)})
}

func (h *SemesterHandler) Get(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	identifier := c.Param("identifier")

	semester, err := h.service.GetSemesterByIdentifier(ctx, identifier)
	if err != nil {
		h.log(ctx, "Get", "identifier", identifier).DebugContext(ctx, "semester lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, semesterResponse{Semester: toSemesterDTO(semester)})
}

func (h *SemesterHandler) List(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()

	semesters, err := h.service.ListSemesters(ctx)
	if err != nil {
		h.log(ctx, "List").DebugContext(ctx, "semester list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	dtos := make([]semesterDTO, 0, len(semesters))
	for _, s := range semesters {
		dtos = append(dtos, toSemesterDTO(s))
	}
	h.responder.writeJSON(c, http.StatusOK, listSemestersResponse{Semesters: dtos})
}
