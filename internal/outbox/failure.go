package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter persists events that could not be delivered.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records a failed outbox message in the DLQ alongside the supplied reason.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, reason)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Topic, msg.PartitionKey, msg.Payload, reason,
	)
	return err
}
