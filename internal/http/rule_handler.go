package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

type ruleService interface {
	CreateRegular(ctx context.Context, params application.CreateRegularRuleParams) (application.RuleResult, error)
	CreateFromSemester(ctx context.Context, params application.CreateSemesterRuleParams) (application.RuleResult, error)
	GetRule(ctx context.Context, id string) (recurrence.Rule, error)
	ListRules(ctx context.Context, filter application.RuleFilter) (application.Page[recurrence.Rule], error)
	ListOccurrences(ctx context.Context, ruleID string, filter application.ReservationFilter) (application.Page[application.Reservation], error)
	UpdateRule(ctx context.Context, params application.UpdateRuleParams) (recurrence.Rule, error)
	DeleteRule(ctx context.Context, params application.DeleteRuleParams) (recurrence.Rule, error)
	RegenerateRule(ctx context.Context, params application.RegenerateRuleParams) (application.RuleResult, error)
}

// RuleHandler serves recurring reservation rules and their occurrences.
type RuleHandler struct {
	service   ruleService
	responder responder
	logger    *slog.Logger
}

func NewRuleHandler(service ruleService, logger *slog.Logger) *RuleHandler {
	base := defaultLogger(logger)
	return &RuleHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RuleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RuleHandler", operation, attrs...)
}

type ruleResponse struct {
	Rule ruleDTO `json:"rule"`
}

// Create registers a rule with explicit start and end dates and generates its
// occurrences.
func (h *RuleHandler) Create(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind rule request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	logger := h.log(ctx, "Create", "principal_id", principal.UserID, "room_id", input.RoomID)
	result, err := h.service.CreateRegular(ctx, application.CreateRegularRuleParams{Principal: principal, Input: input})
	if err != nil {
		logger.DebugContext(ctx, "rule creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "rule created", "rule_id", result.Rule.ID, "persisted", result.Generation.Persisted)
	h.responder.writeJSON(c, http.StatusCreated, toRuleResultResponse(result))
}

// CreateFromSemester registers a rule whose date range is taken from a semester.
func (h *RuleHandler) CreateFromSemester(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)

	var req semesterRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "CreateFromSemester", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind semester rule request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}
	vErr := &application.ValidationError{}
	input := req.ruleFields.toInput(vErr)
	if vErr.HasErrors() {
		h.responder.handleServiceError(c, vErr)
		return
	}

	logger := h.log(ctx, "CreateFromSemester", "principal_id", principal.UserID, "semester", req.Semester, "room_id", input.RoomID)
	result, err := h.service.CreateFromSemester(ctx, application.CreateSemesterRuleParams{
		Principal: principal,
		Semester:  req.Semester,
		Input:     input,
	})
	if err != nil {
		logger.DebugContext(ctx, "semester rule creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "semester rule created", "rule_id", result.Rule.ID, "persisted", result.Generation.Persisted)
	h.responder.writeJSON(c, http.StatusCreated, toRuleResultResponse(result))
}

func (h *RuleHandler) Get(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	ruleID := c.Param("id")

	rule, err := h.service.GetRule(ctx, ruleID)
	if err != nil {
		h.log(ctx, "Get", "rule_id", ruleID).DebugContext(ctx, "rule lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, ruleResponse{Rule: toRuleDTO(rule)})
}

func (h *RuleHandler) List(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()

	var query ruleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.log(ctx, "List", "error_kind", "bad_request").WarnContext(ctx, "failed to bind rule query", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	page, err := h.service.ListRules(ctx, query.toFilter())
	if err != nil {
		h.log(ctx, "List").DebugContext(ctx, "rule list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toPageResponse(page, toRuleDTO))
}

// Occurrences lists the reservations generated by a rule.
func (h *RuleHandler) Occurrences(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	ruleID := c.Param("id")

	var query reservationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.log(ctx, "Occurrences", "rule_id", ruleID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind occurrence query", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	page, err := h.service.ListOccurrences(ctx, ruleID, query.toFilter())
	if err != nil {
		h.log(ctx, "Occurrences", "rule_id", ruleID).DebugContext(ctx, "occurrence list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toPageResponse(page, toReservationDTO))
}

// Update applies a partial change to a rule. Only fields present in the body
// are modified.
func (h *RuleHandler) Update(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	ruleID := c.Param("id")

	var req rulePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Update", "principal_id", principal.UserID, "rule_id", ruleID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind rule patch", "error", err)
		h.responder.handleBindError(c, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	logger := h.log(ctx, "Update", "principal_id", principal.UserID, "rule_id", ruleID)
	rule, err := h.service.UpdateRule(ctx, application.UpdateRuleParams{Principal: principal, RuleID: ruleID, Patch: patch})
	if err != nil {
		logger.DebugContext(ctx, "rule update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "rule updated")
	h.responder.writeJSON(c, http.StatusOK, ruleResponse{Rule: toRuleDTO(rule)})
}

func (h *RuleHandler) Delete(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	ruleID := c.Param("id")

	logger := h.log(ctx, "Delete", "principal_id", principal.UserID, "rule_id", ruleID)
	rule, err := h.service.DeleteRule(ctx, application.DeleteRuleParams{
		Principal: principal,
		RuleID:    ruleID,
		Reason:    optionalReason(c),
	})
	if err != nil {
		logger.DebugContext(ctx, "rule delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "rule deleted")
	h.responder.writeJSON(c, http.StatusOK, ruleResponse{Rule: toRuleDTO(rule)})
}

// Regenerate replaces the rule's active occurrences with a freshly generated set.
func (h *RuleHandler) Regenerate(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	ruleID := c.Param("id")

	logger := h.log(ctx, "Regenerate", "principal_id", principal.UserID, "rule_id", ruleID)
	result, err := h.service.RegenerateRule(ctx, application.RegenerateRuleParams{Principal: principal, RuleID: ruleID})
	if err != nil {
		logger.DebugContext(ctx, "rule regeneration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "rule regenerated", "persisted", result.Generation.Persisted)
	h.responder.writeJSON(c, http.StatusOK, toRuleResultResponse(result))
}
