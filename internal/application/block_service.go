package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// BlockRepository captures the persistence operations needed for blocks.
type BlockRepository interface {
	CreateBlock(ctx context.Context, block Block) (Block, error)
	GetBlock(ctx context.Context, id string) (Block, error)
	UpdateBlock(ctx context.Context, block Block) (Block, error)
	DeleteBlock(ctx context.Context, id string) error
	ListBlocks(ctx context.Context) ([]Block, error)
}

// BlockInput captures caller provided block fields.
type BlockInput struct {
	Name string
	Code string
}

// BlockService manages the buildings that group rooms.
type BlockService struct {
	blocks      BlockRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBlockService constructs a block service.
func NewBlockService(blocks BlockRepository, idGenerator func() string, now func() time.Time) *BlockService {
	return NewBlockServiceWithLogger(blocks, idGenerator, now, nil)
}

// NewBlockServiceWithLogger constructs a block service with a specified logger.
func NewBlockServiceWithLogger(blocks BlockRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BlockService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BlockService{blocks: blocks, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *BlockService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BlockService", operation, attrs...)
}

// CreateBlock persists a new block for administrators.
func (s *BlockService) CreateBlock(ctx context.Context, principal Principal, input BlockInput) (block Block, err error) {
	if s == nil || s.blocks == nil {
		err = fmt.Errorf("BlockService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateBlock", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create block", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("block_id", block.ID).InfoContext(ctx, "block created")
	}()

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}

	input = normalizeBlockInput(input)
	if vErr := validateBlockInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	block, err = s.blocks.CreateBlock(ctx, Block{
		ID:        s.idGenerator(),
		Name:      input.Name,
		Code:      input.Code,
		CreatedAt: now,
		UpdatedAt: now,
	})
	err = mapBlockRepoError(err)
	return
}

// UpdateBlock renames a block for administrators.
func (s *BlockService) UpdateBlock(ctx context.Context, principal Principal, id string, input BlockInput) (block Block, err error) {
	if s == nil || s.blocks == nil {
		err = fmt.Errorf("BlockService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBlock", "principal_id", principal.UserID, "block_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update block", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "block updated")
	}()

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}

	existing, err := s.blocks.GetBlock(ctx, id)
	if err != nil {
		err = mapBlockRepoError(err)
		return
	}

	input = normalizeBlockInput(input)
	if vErr := validateBlockInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = input.Name
	existing.Code = input.Code
	existing.UpdatedAt = s.now()
	block, err = s.blocks.UpdateBlock(ctx, existing)
	err = mapBlockRepoError(err)
	return
}

// DeleteBlock removes an empty block for administrators.
func (s *BlockService) DeleteBlock(ctx context.Context, principal Principal, id string) error {
	if s == nil || s.blocks == nil {
		return fmt.Errorf("BlockService is not configured")
	}
	if !principal.IsAdmin {
		return ErrForbidden
	}

	logger := s.loggerWith(ctx, "DeleteBlock", "principal_id", principal.UserID, "block_id", id)
	if err := s.blocks.DeleteBlock(ctx, id); err != nil {
		err = mapBlockRepoError(err)
		logger.ErrorContext(ctx, "failed to delete block", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "block deleted")
	return nil
}

// GetBlock returns one block.
func (s *BlockService) GetBlock(ctx context.Context, id string) (Block, error) {
	if s == nil || s.blocks == nil {
		return Block{}, fmt.Errorf("BlockService is not configured")
	}
	block, err := s.blocks.GetBlock(ctx, id)
	if err != nil {
		return Block{}, mapBlockRepoError(err)
	}
	return block, nil
}

// ListBlocks returns every block ordered by code.
func (s *BlockService) ListBlocks(ctx context.Context) ([]Block, error) {
	if s == nil || s.blocks == nil {
		return nil, fmt.Errorf("BlockService is not configured")
	}
	blocks, err := s.blocks.ListBlocks(ctx)
	if err != nil {
		return nil, mapBlockRepoError(err)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Code < blocks[j].Code })
	return blocks, nil
}

func normalizeBlockInput(input BlockInput) BlockInput {
	return BlockInput{
		Name: strings.TrimSpace(input.Name),
		Code: strings.ToUpper(strings.TrimSpace(input.Code)),
	}
}

func validateBlockInput(input BlockInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", CodeRequired, "name is required")
	}
	if input.Code == "" {
		vErr.add("code", CodeRequired, "code is required")
	}
	return vErr
}

func mapBlockRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: block", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: block code is taken", ErrAlreadyExists)
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return businessError("block still has rooms")
	}
	return err
}
