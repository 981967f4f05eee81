package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const waitlistColumns = `id, participant_id, event_id, added_at, seq`

// WaitlistRepository owns the FIFO queue of pending entrants per event.
// Order is the database-assigned seq, never the writer's clock.
type WaitlistRepository struct {
	db *pgxpool.Pool
}

// NewWaitlistRepository constructs a WaitlistRepository.
func NewWaitlistRepository(db *pgxpool.Pool) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Create appends an entry and stores the assigned sequence number in
// entry.Seq. A second entry for the same participant and event is reported as
// ErrAlreadyWaitlisted.
func (r *WaitlistRepository) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	err := conn(ctx, r.db).QueryRow(ctx,
		`INSERT INTO waitlist_entries (id, participant_id, event_id, added_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING seq`,
		entry.ID, entry.ParticipantID, entry.EventID, entry.AddedAt,
	).Scan(&entry.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyWaitlisted
		}
		if isForeignKeyViolation(err) {
			return ErrEventNotFound
		}
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

// FindByParticipant returns the participant's entry for the event, or nil.
func (r *WaitlistRepository) FindByParticipant(ctx context.Context, participantID, eventID string) (*model.WaitlistEntry, error) {
	entry, err := scanWaitlistEntry(conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE participant_id = $1 AND event_id = $2`,
		participantID, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find waitlist entry: %w", err)
	}
	return entry, nil
}

// Position returns the 1-indexed FIFO rank of the entry within its event.
func (r *WaitlistRepository) Position(ctx context.Context, entryID string) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM waitlist_entries w
		 JOIN waitlist_entries me ON me.id = $1
		 WHERE w.event_id = me.event_id AND w.seq <= me.seq`,
		entryID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("waitlist position: %w", err)
	}
	if n == 0 {
		return 0, ErrWaitlistNotFound
	}
	return n, nil
}

// PopOldest removes and returns the earliest entry for the event, or nil when
// the queue is empty.
func (r *WaitlistRepository) PopOldest(ctx context.Context, eventID string) (*model.WaitlistEntry, error) {
	entry, err := scanWaitlistEntry(conn(ctx, r.db).QueryRow(ctx,
		`DELETE FROM waitlist_entries
		 WHERE id = (
		     SELECT id FROM waitlist_entries
		     WHERE event_id = $1
		     ORDER BY seq ASC
		     LIMIT 1
		     FOR UPDATE
		 )
		 RETURNING `+waitlistColumns,
		eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("pop waitlist entry: %w", err)
	}
	return entry, nil
}

// ListByEvent returns the queue for the event in FIFO order with positions.
func (r *WaitlistRepository) ListByEvent(ctx context.Context, eventID string) ([]model.QueuedEntry, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE event_id = $1 ORDER BY seq ASC`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	defer rows.Close()

	var entries []model.QueuedEntry
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		entries = append(entries, model.QueuedEntry{WaitlistEntry: *entry, Position: len(entries) + 1})
	}
	return entries, rows.Err()
}

// ListByParticipant returns every entry the participant holds, each with its
// current rank in its event's queue.
func (r *WaitlistRepository) ListByParticipant(ctx context.Context, participantID string) ([]model.QueuedEntry, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT w.id, w.participant_id, w.event_id, w.added_at, w.seq,
		        (SELECT COUNT(*) FROM waitlist_entries o
		         WHERE o.event_id = w.event_id AND o.seq <= w.seq)
		 FROM waitlist_entries w
		 WHERE w.participant_id = $1
		 ORDER BY w.seq ASC`,
		participantID)
	if err != nil {
		return nil, fmt.Errorf("list participant waitlist: %w", err)
	}
	defer rows.Close()

	var entries []model.QueuedEntry
	for rows.Next() {
		var q model.QueuedEntry
		if err := rows.Scan(&q.ID, &q.ParticipantID, &q.EventID, &q.AddedAt, &q.Seq, &q.Position); err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		q.AddedAt = q.AddedAt.UTC()
		entries = append(entries, q)
	}
	return entries, rows.Err()
}

// Withdraw removes one entry and returns it. An entry that is already gone,
// including one just promoted, is reported as ErrWaitlistNotFound.
func (r *WaitlistRepository) Withdraw(ctx context.Context, entryID string) (*model.WaitlistEntry, error) {
	entry, err := scanWaitlistEntry(conn(ctx, r.db).QueryRow(ctx,
		`DELETE FROM waitlist_entries WHERE id = $1 RETURNING `+waitlistColumns,
		entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWaitlistNotFound
		}
		return nil, fmt.Errorf("withdraw waitlist entry: %w", err)
	}
	return entry, nil
}

// DeleteByEvent empties the queue for the event and returns what was removed.
func (r *WaitlistRepository) DeleteByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`DELETE FROM waitlist_entries WHERE event_id = $1 RETURNING `+waitlistColumns,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("clear waitlist: %w", err)
	}
	defer rows.Close()

	var entries []model.WaitlistEntry
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanWaitlistEntry(row pgx.Row) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	if err := row.Scan(&e.ID, &e.ParticipantID, &e.EventID, &e.AddedAt, &e.Seq); err != nil {
		return nil, err
	}
	e.AddedAt = e.AddedAt.UTC()
	return &e, nil
}
