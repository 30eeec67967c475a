package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx/types"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository.
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates an audit repository on store.
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

var _ persistence.AuditRepository = (*AuditRepository)(nil)

type auditRow struct {
	ID          string         `db:"id"`
	Action      string         `db:"action"`
	Entity      string         `db:"entity"`
	EntityID    string         `db:"entity_id"`
	ActorID     string         `db:"actor_id"`
	Reason      sql.NullString `db:"reason"`
	BeforeState jsonColumn     `db:"before_state"`
	AfterState  jsonColumn     `db:"after_state"`
	CreatedAt   string         `db:"created_at"`
}

func snapshot(raw json.RawMessage) jsonColumn {
	return jsonColumn{JSONText: types.JSONText(raw)}
}

func rawSnapshot(column jsonColumn) json.RawMessage {
	if len(column.JSONText) == 0 {
		return nil
	}
	return json.RawMessage(column.JSONText)
}

// AppendAudit stores an audit entry.
func (r *AuditRepository) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	_, err := r.store.db.NamedExecContext(ctx,
		`INSERT INTO audit_log (id, action, entity, entity_id, actor_id, reason, before_state, after_state, created_at)
			VALUES (:id, :action, :entity, :entity_id, :actor_id, :reason, :before_state, :after_state, :created_at)`,
		auditRow{
			ID:          entry.ID,
			Action:      entry.Action,
			Entity:      entry.Entity,
			EntityID:    entry.EntityID,
			ActorID:     entry.ActorID,
			Reason:      nullString(entry.Reason),
			BeforeState: snapshot(entry.Before),
			AfterState:  snapshot(entry.After),
			CreatedAt:   formatTimestamp(entry.CreatedAt),
		})
	return r.store.mapper.MapError(err)
}

// ListAudit returns the audit trail of one entity, oldest first.
func (r *AuditRepository) ListAudit(ctx context.Context, entity, entityID string) ([]persistence.AuditEntry, error) {
	var rows []auditRow
	err := r.store.db.SelectContext(ctx, &rows, r.store.db.Rebind(
		`SELECT id, action, entity, entity_id, actor_id, reason, before_state, after_state, created_at
			FROM audit_log WHERE entity = ? AND entity_id = ? ORDER BY created_at ASC, id ASC`),
		entity, entityID)
	if err != nil {
		return nil, r.store.mapper.MapError(err)
	}

	entries := make([]persistence.AuditEntry, 0, len(rows))
	for _, row := range rows {
		at, err := parseTimestamp("created_at", row.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, persistence.AuditEntry{
			ID:        row.ID,
			Action:    row.Action,
			Entity:    row.Entity,
			EntityID:  row.EntityID,
			ActorID:   row.ActorID,
			Reason:    stringPtr(row.Reason),
			Before:    rawSnapshot(row.BeforeState),
			After:     rawSnapshot(row.AfterState),
			CreatedAt: at,
		})
	}
	return entries, nil
}
