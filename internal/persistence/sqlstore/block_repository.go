package sqlstore

import (
	"context"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// BlockRepository implements persistence.BlockRepository.
type BlockRepository struct {
	store *Store
}

// NewBlockRepository creates a block repository on store.
func NewBlockRepository(store *Store) *BlockRepository {
	return &BlockRepository{store: store}
}

var _ persistence.BlockRepository = (*BlockRepository)(nil)

type blockRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Code      string `db:"code"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r blockRow) model() (persistence.Block, error) {
	block := persistence.Block{ID: r.ID, Name: r.Name, Code: r.Code}
	var err error
	if block.CreatedAt, err = parseTimestamp("created_at", r.CreatedAt); err != nil {
		return persistence.Block{}, err
	}
	if block.UpdatedAt, err = parseTimestamp("updated_at", r.UpdatedAt); err != nil {
		return persistence.Block{}, err
	}
	return block, nil
}

func toBlockRow(block persistence.Block) blockRow {
	return blockRow{
		ID:        block.ID,
		Name:      block.Name,
		Code:      block.Code,
		CreatedAt: formatTimestamp(block.CreatedAt),
		UpdatedAt: formatTimestamp(block.UpdatedAt),
	}
}

// CreateBlock stores a new block.
func (r *BlockRepository) CreateBlock(ctx context.Context, block persistence.Block) error {
	_, err := r.store.db.NamedExecContext(ctx,
		`INSERT INTO blocks (id, name, code, created_at, updated_at) VALUES (:id, :name, :code, :created_at, :updated_at)`,
		toBlockRow(block))
	return r.store.mapper.MapError(err)
}

// UpdateBlock replaces the name and code of a block.
func (r *BlockRepository) UpdateBlock(ctx context.Context, block persistence.Block) error {
	result, err := r.store.db.NamedExecContext(ctx,
		`UPDATE blocks SET name = :name, code = :code, updated_at = :updated_at WHERE id = :id`,
		toBlockRow(block))
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// GetBlock retrieves a block by ID.
func (r *BlockRepository) GetBlock(ctx context.Context, id string) (persistence.Block, error) {
	var row blockRow
	if err := r.store.db.GetContext(ctx, &row, r.store.db.Rebind(`SELECT id, name, code, created_at, updated_at FROM blocks WHERE id = ?`), id); err != nil {
		return persistence.Block{}, r.store.mapper.MapError(err)
	}
	return row.model()
}

// ListBlocks returns all blocks ordered by code.
func (r *BlockRepository) ListBlocks(ctx context.Context) ([]persistence.Block, error) {
	var rows []blockRow
	if err := r.store.db.SelectContext(ctx, &rows, `SELECT id, name, code, created_at, updated_at FROM blocks ORDER BY code ASC`); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	blocks := make([]persistence.Block, 0, len(rows))
	for _, row := range rows {
		block, err := row.model()
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// DeleteBlock removes a block. Blocks that still hold rooms cannot be removed.
func (r *BlockRepository) DeleteBlock(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, r.store.db.Rebind(`DELETE FROM blocks WHERE id = ?`), id)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}
