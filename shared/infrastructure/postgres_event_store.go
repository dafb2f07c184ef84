package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kaif91/order-services/shared/messaging"
	"github.com/kaif91/order-services/shared/models"
)

// PostgresEventStore implements messaging.EventStore using PostgreSQL.
// Streams are append-only, keyed by aggregate id, with optimistic
// concurrency on the stream version.
type PostgresEventStore struct {
	db *sqlx.DB
}

var _ messaging.EventStore = (*PostgresEventStore)(nil)

// NewPostgresEventStore creates a new PostgresEventStore
func NewPostgresEventStore(db *sqlx.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

// postgresEvent represents event in database
type postgresEvent struct {
	ID            string    `db:"id"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Version       string    `db:"version"`
	Data          []byte    `db:"data"`
	Metadata      []byte    `db:"metadata"`
	Timestamp     time.Time `db:"timestamp"`
	CorrelationID string    `db:"correlation_id"`
	StreamVersion int       `db:"stream_version"`
}

// SaveEvents appends events to the aggregate's stream
func (es *PostgresEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, events []*messaging.Event, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := es.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.GetContext(ctx, &currentVersion,
		"SELECT COALESCE(MAX(stream_version), 0) FROM event_stream WHERE aggregate_id = $1",
		aggregateID.String())
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrap(err, "failed to get current version")
	}

	if currentVersion != expectedVersion {
		return errors.Errorf("concurrency conflict: expected version %d, got %d", expectedVersion, currentVersion)
	}

	for i, event := range events {
		pgEvent, err := es.toPostgres(event, currentVersion+i+1)
		if err != nil {
			return errors.Wrap(err, "failed to convert event")
		}

		query := `
			INSERT INTO event_stream (
				id, aggregate_id, event_type, version, data, metadata,
				timestamp, correlation_id, stream_version
			) VALUES (
				:id, :aggregate_id, :event_type, :version, :data, :metadata,
				:timestamp, :correlation_id, :stream_version
			)`

		_, err = tx.NamedExecContext(ctx, query, pgEvent)
		if err != nil {
			return errors.Wrap(err, "failed to insert event")
		}
	}

	return tx.Commit()
}

// GetEvents retrieves all events for an aggregate
func (es *PostgresEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*messaging.Event, error) {
	query := `
		SELECT id, aggregate_id, event_type, version, data, metadata,
			   timestamp, correlation_id, stream_version
		FROM event_stream
		WHERE aggregate_id = $1
		ORDER BY stream_version ASC`

	var pgEvents []postgresEvent
	err := es.db.SelectContext(ctx, &pgEvents, query, aggregateID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}

	return es.toDomainSlice(pgEvents)
}

// GetEventsByType retrieves events by type with pagination
func (es *PostgresEventStore) GetEventsByType(ctx context.Context, eventType string, offset, limit int) ([]*messaging.Event, error) {
	query := `
		SELECT id, aggregate_id, event_type, version, data, metadata,
			   timestamp, correlation_id, stream_version
		FROM event_stream
		WHERE event_type = $1
		ORDER BY timestamp ASC
		LIMIT $2 OFFSET $3`

	var pgEvents []postgresEvent
	err := es.db.SelectContext(ctx, &pgEvents, query, eventType, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events by type")
	}

	return es.toDomainSlice(pgEvents)
}

func (es *PostgresEventStore) toDomainSlice(pgEvents []postgresEvent) ([]*messaging.Event, error) {
	events := make([]*messaging.Event, len(pgEvents))
	for i, pgEvent := range pgEvents {
		event, err := es.toDomain(&pgEvent)
		if err != nil {
			return nil, err
		}
		events[i] = event
	}
	return events, nil
}

// toPostgres converts domain event to postgres model
func (es *PostgresEventStore) toPostgres(event *messaging.Event, streamVersion int) (*postgresEvent, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event data")
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event metadata")
	}

	return &postgresEvent{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		EventType:     event.EventType,
		Version:       event.Version,
		Data:          data,
		Metadata:      metadata,
		Timestamp:     event.Timestamp,
		CorrelationID: event.CorrelationID.String(),
		StreamVersion: streamVersion,
	}, nil
}

// toDomain converts postgres model to domain event
func (es *PostgresEventStore) toDomain(pgEvent *postgresEvent) (*messaging.Event, error) {
	id, err := models.NewID(pgEvent.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid event ID")
	}

	aggregateID, err := models.NewID(pgEvent.AggregateID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid aggregate ID")
	}

	var data interface{}
	if err := json.Unmarshal(pgEvent.Data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal event data")
	}

	var rawMetadata map[string]interface{}
	if err := json.Unmarshal(pgEvent.Metadata, &rawMetadata); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal event metadata")
	}

	metadata := make(messaging.Metadata)
	for k, v := range rawMetadata {
		if str, ok := v.(string); ok {
			metadata.Set(k, str)
		} else {
			metadata.Set(k, fmt.Sprintf("%v", v))
		}
	}

	var correlationID models.ID
	if pgEvent.CorrelationID != "" {
		correlationID, err = models.NewID(pgEvent.CorrelationID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid correlation ID")
		}
	}

	topic, _ := messaging.NewTopic(pgEvent.EventType)

	return &messaging.Event{
		ID:            id,
		AggregateID:   aggregateID,
		Topic:         topic,
		EventType:     pgEvent.EventType,
		Version:       pgEvent.Version,
		Data:          data,
		Metadata:      metadata,
		Timestamp:     pgEvent.Timestamp,
		CorrelationID: correlationID,
	}, nil
}
