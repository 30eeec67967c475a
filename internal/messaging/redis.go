package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

const (
	defaultStreamMaxLen  = 100_000
	defaultRecordTimeout = 2 * time.Second
)

// StreamAdder is the subset of redis.Cmdable used by RedisAuditSink.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// NewRedisClient builds a client for addr. The connection is established
// lazily; dials and retries are kept short so an unreachable server fails fast.
func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   1,
	})
}

// RedisAuditSink appends audit records to a capped Redis stream.
type RedisAuditSink struct {
	client  StreamAdder
	stream  string
	maxLen  int64
	timeout time.Duration
}

// RedisSinkOption customises a RedisAuditSink.
type RedisSinkOption func(*RedisAuditSink)

// WithRecordTimeout bounds how long Record waits for Redis.
func WithRecordTimeout(d time.Duration) RedisSinkOption {
	return func(s *RedisAuditSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedisAuditSink constructs a sink writing to stream.
func NewRedisAuditSink(client StreamAdder, stream string, opts ...RedisSinkOption) *RedisAuditSink {
	s := &RedisAuditSink{client: client, stream: stream, maxLen: defaultStreamMaxLen, timeout: defaultRecordTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ application.AuditSink = (*RedisAuditSink)(nil)

// Record adds one stream entry per audit record. The write is detached from
// the caller's cancellation and bounded by the sink's timeout.
func (s *RedisAuditSink) Record(ctx context.Context, record application.AuditRecord) error {
	before, err := encodeSnapshot(record.Before)
	if err != nil {
		return err
	}
	after, err := encodeSnapshot(record.After)
	if err != nil {
		return err
	}

	values := map[string]any{
		"action":    record.Action,
		"entity":    record.Entity,
		"entity_id": record.EntityID,
		"actor_id":  record.ActorID,
		"at":        record.At.UTC().Format(time.RFC3339Nano),
	}
	if record.Reason != nil {
		values["reason"] = *record.Reason
	}
	if before != nil {
		values["before"] = string(before)
	}
	if after != nil {
		values["after"] = string(after)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("append to stream %s: %w", s.stream, err)
	}
	return nil
}
