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

const registrationColumns = `id, participant_id, event_id, status, created_at, updated_at`

// RegistrationRepository is the registration ledger. Rows are never deleted;
// status changes go through Transition.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration. A second active registration for the same
// participant and event violates registrations_active_uniq and is reported as
// ErrAlreadyRegistered.
func (r *RegistrationRepository) Create(ctx context.Context, reg model.Registration) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO registrations (id, participant_id, event_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reg.ID, reg.ParticipantID, reg.EventID, reg.Status, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyRegistered
		}
		if isForeignKeyViolation(err) {
			return ErrEventNotFound
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// GetByID returns a registration or ErrRegistrationNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := scanRegistration(conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// FindActive returns the participant's confirmed or attended registration for
// the event, or nil when there is none.
func (r *RegistrationRepository) FindActive(ctx context.Context, participantID, eventID string) (*model.Registration, error) {
	reg, err := scanRegistration(conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE participant_id = $1 AND event_id = $2 AND status IN ('confirmed', 'attended')`,
		participantID, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active registration: %w", err)
	}
	return reg, nil
}

// CountConfirmed returns the number of seats held for the event. Attended
// registrations still hold their seat.
func (r *RegistrationRepository) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status IN ('confirmed', 'attended')`,
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return n, nil
}

// Transition moves a registration from one status to another, conditioned on
// the stored status still being from. It returns ErrStaleState when another
// writer got there first.
func (r *RegistrationRepository) Transition(ctx context.Context, id string, from, to model.RegistrationStatus, at time.Time) (*model.Registration, error) {
	if !model.CanTransition(from, to) {
		return nil, ErrInvalidState
	}
	reg, err := scanRegistration(conn(ctx, r.db).QueryRow(ctx,
		`UPDATE registrations
		 SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2
		 RETURNING `+registrationColumns,
		id, from, to, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("transition registration: %w", err)
	}
	return reg, nil
}

// ListByEvent returns every registration for the event, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	return r.list(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at ASC, id ASC`,
		eventID)
}

// ListByParticipant returns every registration held by the participant, oldest first.
func (r *RegistrationRepository) ListByParticipant(ctx context.Context, participantID string) ([]model.Registration, error) {
	return r.list(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE participant_id = $1 ORDER BY created_at ASC, id ASC`,
		participantID)
}

func (r *RegistrationRepository) list(ctx context.Context, query string, arg string) ([]model.Registration, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	if err := row.Scan(&reg.ID, &reg.ParticipantID, &reg.EventID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return nil, err
	}
	reg.CreatedAt = reg.CreatedAt.UTC()
	reg.UpdatedAt = reg.UpdatedAt.UTC()
	return &reg, nil
}
