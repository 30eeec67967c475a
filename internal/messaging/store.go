package messaging

import (
	"context"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// AuditWriter appends entries to the audit table.
type AuditWriter interface {
	AppendAudit(ctx context.Context, entry persistence.AuditEntry) error
}

// StoreAuditSink persists audit records through an AuditWriter.
type StoreAuditSink struct {
	writer      AuditWriter
	idGenerator func() string
}

// NewStoreAuditSink constructs a sink that stamps each entry with an id from idGenerator.
func NewStoreAuditSink(writer AuditWriter, idGenerator func() string) *StoreAuditSink {
	return &StoreAuditSink{writer: writer, idGenerator: idGenerator}
}

var _ application.AuditSink = (*StoreAuditSink)(nil)

// Record encodes the snapshots and appends the entry.
func (s *StoreAuditSink) Record(ctx context.Context, record application.AuditRecord) error {
	before, err := encodeSnapshot(record.Before)
	if err != nil {
		return err
	}
	after, err := encodeSnapshot(record.After)
	if err != nil {
		return err
	}
	return s.writer.AppendAudit(ctx, persistence.AuditEntry{
		ID:        s.idGenerator(),
		Action:    record.Action,
		Entity:    record.Entity,
		EntityID:  record.EntityID,
		ActorID:   record.ActorID,
		Reason:    record.Reason,
		Before:    before,
		After:     after,
		CreatedAt: record.At,
	})
}
