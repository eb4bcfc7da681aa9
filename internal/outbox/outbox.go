// Package outbox stores integration events in the same transaction as the
// state change that produced them and relays them to Kafka afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Event struct {
	ID      uuid.UUID
	Topic   string
	Key     string
	Payload json.RawMessage
}

// NewEvent marshals payload and assigns a fresh event id.
func NewEvent(topic, key string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("outbox: failed to marshal payload: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return Event{}, fmt.Errorf("outbox: failed to generate event ID: %w", err)
	}
	return Event{ID: id, Topic: topic, Key: key, Payload: data}, nil
}

type Record struct {
	ID        int64
	Event     Event
	CreatedAt time.Time
}

// Execer is satisfied by pgx.Tx, pgxpool.Pool and pgx.Conn.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func Insert(ctx context.Context, db Execer, e Event) error {
	_, err := db.Exec(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Topic, e.Key, []byte(e.Payload),
	)
	if err != nil {
		return fmt.Errorf("outbox: failed to insert event %s: %w", e.ID, err)
	}
	return nil
}

type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

type postgresStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, event_id, topic, key, payload, created_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: failed to query pending events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.Event.ID, &rec.Event.Topic, &rec.Event.Key, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: failed to scan pending event: %w", err)
		}
		rec.Event.Payload = payload
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: failed iterating pending events: %w", err)
	}
	return out, nil
}

func (s *postgresStore) MarkSent(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("outbox: failed to mark event %d sent: %w", id, err)
	}
	return nil
}
