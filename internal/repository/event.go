package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, location, start_time, capacity, status, waitlist_enabled`

// EventRepository reads events owned by the event registry. This service
// never writes them.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// GetByID returns a single event or ErrEventNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// GetForUpdate returns the event and, inside a transaction, holds an exclusive
// row lock on it until commit or rollback.
//
// Every admission and promotion for an event starts here, so only one of them
// at a time can run its count-then-insert sequence. Two concurrent
// "read count, then insert" sequences without the lock would both see the
// last free seat and over-book the event.
func (r *EventRepository) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
}

func (r *EventRepository) get(ctx context.Context, query, id string) (*model.Event, error) {
	var (
		e     model.Event
		start *time.Time
	)
	err := conn(ctx, r.db).QueryRow(ctx, query, id).
		Scan(&e.ID, &e.Title, &e.Location, &start, &e.Capacity, &e.Status, &e.WaitlistEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if start != nil {
		e.StartTime = start.UTC()
	}
	return &e, nil
}
