// Package eventlog is an append-only, per-aggregate versioned log of
// circulation events. It is bound to a DBTX so appends commit or roll back
// with the transition that produced them.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shelfkeeper/internal/dbx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrConcurrencyConflict = errors.New("concurrency conflict: version already taken")

// Event is one recorded transition.
type Event struct {
	ID            int64               `json:"id"`
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	AggregateType string              `json:"aggregate_type"`
	EventType     string              `json:"event_type"`
	Data          jsoniter.RawMessage `json:"data"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Store reads and appends events.
type Store struct {
	db     dbx.DBTX
	tracer trace.Tracer
}

func New(db dbx.DBTX) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("shelfkeeper/eventlog"),
	}
}

// Append records an event at the aggregate's next version. Callers
// serialise appends per aggregate (the circulation engine holds the book
// row lock); a lost race surfaces as ErrConcurrencyConflict.
func (s *Store) Append(ctx context.Context, aggregateID uuid.UUID, aggregateType, eventType string, data any) error {
	ctx, span := s.tracer.Start(ctx, "eventlog.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("aggregate.type", aggregateType),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	var (
		id      int64
		version int
	)
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO circulation_events (aggregate_id, aggregate_type, event_type, event_data, version)
		SELECT $1::uuid, $2::text, $3::text, $4::jsonb, COALESCE(MAX(version), 0) + 1
		FROM circulation_events
		WHERE aggregate_id = $1
		RETURNING id, version`,
		aggregateID, aggregateType, eventType, string(payload),
	).Scan(&id, &version)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			span.SetAttributes(attribute.Bool("conflict.detected", true))
			return ErrConcurrencyConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("event.id", id),
		attribute.Int("event.version", version),
	)
	return nil
}

// Load returns an aggregate's events from fromVersion on, oldest first. A
// positive toVersion bounds the range.
func (s *Store) Load(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := s.tracer.Start(ctx, "eventlog.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, version, created_at
		FROM circulation_events
		WHERE aggregate_id = $1
		AND version >= $2`
	args := []any{aggregateID, fromVersion}

	if toVersion > 0 {
		query += " AND version <= $3"
		args = append(args, toVersion)
	}
	query += " ORDER BY version ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e    Event
			data []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &data, &e.Version, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Data = data
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}
