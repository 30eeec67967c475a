package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

type blockService interface {
	CreateBlock(ctx context.Context, principal application.Principal, input application.BlockInput) (application.Block, error)
	UpdateBlock(ctx context.Context, principal application.Principal, id string, input application.BlockInput) (application.Block, error)
	DeleteBlock(ctx context.Context, principal application.Principal, id string) error
	GetBlock(ctx context.Context, id string) (application.Block, error)
	ListBlocks(ctx context.Context) ([]application.Block, error)
}

type BlockHandler struct {
	service   blockService
	responder responder
	logger    *slog.Logger
}

func NewBlockHandler(service blockService, logger *slog.Logger) *BlockHandler {
	base := defaultLogger(logger)
	return &BlockHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BlockHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BlockHandler", operation, attrs...)
}

type blockResponse struct {
	Block blockDTO `json:"block"`
}

type listBlocksResponse struct {
	Blocks []blockDTO `json:"blocks"`
}

func (h *BlockHandler) Create(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)

	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind block request", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Create", "principal_id", principal.UserID)
	block, err := h.service.CreateBlock(ctx, principal, application.BlockInput{Name: req.Name, Code: req.Code})
	if err != nil {
		logger.DebugContext(ctx, "block creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "block created", "block_id", block.ID)
	h.responder.writeJSON(c, http.StatusCreated, blockResponse{Block: toBlockDTO(block)})
}

func (h *BlockHandler) Update(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	blockID := c.Param("id")

	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Update", "principal_id", principal.UserID, "block_id", blockID, "error_kind", "bad_request").WarnContext(ctx, "failed to bind block update", "error", err)
		h.responder.handleBindError(c, err)
		return
	}

	logger := h.log(ctx, "Update", "principal_id", principal.UserID, "block_id", blockID)
	block, err := h.service.UpdateBlock(ctx, principal, blockID, application.BlockInput{Name: req.Name, Code: req.Code})
	if err != nil {
		logger.DebugContext(ctx, "block update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "block updated")
	h.responder.writeJSON(c, http.StatusOK, blockResponse{Block: toBlockDTO(block)})
}

func (h *BlockHandler) Delete(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	principal := principalOf(c)
	blockID := c.Param("id")

	logger := h.log(ctx, "Delete", "principal_id", principal.UserID, "block_id", blockID)
	if err := h.service.DeleteBlock(ctx, principal, blockID); err != nil {
		logger.DebugContext(ctx, "block delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "block deleted")
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *BlockHandler) Get(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()
	blockID := c.Param("id")

	block, err := h.service.GetBlock(ctx, blockID)
	if err != nil {
		h.log(ctx, "Get", "block_id", blockID).DebugContext(ctx, "block lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, blockResponse{Block: toBlockDTO(block)})
}

func (h *BlockHandler) List(c *gin.Context) {
	if h == nil || h.service == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	ctx := c.Request.Context()

	blocks, err := h.service.ListBlocks(ctx)
	if err != nil {
		h.log(ctx, "List").DebugContext(ctx, "block list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	dtos := make([]blockDTO, 0, len(blocks))
	for _, b := range blocks {
		dtos = append(dtos, toBlockDTO(b))
	}
	h.responder.writeJSON(c, http.StatusOK, listBlocksResponse{Blocks: dtos})
}
