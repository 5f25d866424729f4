package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"remote-finder/internal/models"
)

const eventPageSize = 100

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type LogEventParams struct {
	SessionID uuid.UUID
	Host      string
	Username  string
	EventType string
	Payload   interface{}
}

func (q *Queries) LogEvent(ctx context.Context, arg LogEventParams) (int64, error) {
	payload := arg.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO event_journal (session_id, host, username, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err = q.db.QueryRow(ctx, query, arg.SessionID, arg.Host, arg.Username, arg.EventType, payloadBytes).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetEventsSince returns up to one page of events for a remote account with
// an id greater than sinceID, oldest first.
func (q *Queries) GetEventsSince(ctx context.Context, host, username string, sinceID int64) ([]models.Event, error) {
	query := `
		SELECT id, session_id, host, username, event_type, event_time, payload
		FROM event_journal
		WHERE host = $1 AND username = $2 AND id > $3
		ORDER BY id ASC
		LIMIT $4
	`
	rows, err := q.db.Query(ctx, query, host, username, sinceID, eventPageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.Host,
			&event.Username,
			&event.EventType,
			&event.EventTime,
			&event.Payload,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if events == nil {
		return []models.Event{}, nil
	}

	return events, nil
}

// DeleteEventsBefore prunes journal entries older than cutoff.
func (q *Queries) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM event_journal WHERE event_time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
