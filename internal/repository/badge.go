package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const badgeColumns = `id, participant_id, event_id, event_name, earned_at`

// BadgeRepository stores passport badges, at most one per participant and event.
type BadgeRepository struct {
	db *pgxpool.Pool
}

// NewBadgeRepository constructs a BadgeRepository.
func NewBadgeRepository(db *pgxpool.Pool) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Award inserts the badge unless the participant already holds one for the
// event, in which case the stored badge is returned and created is false.
func (r *BadgeRepository) Award(ctx context.Context, badge model.Badge) (model.Badge, bool, error) {
	q := conn(ctx, r.db)
	stored, err := scanBadge(q.QueryRow(ctx,
		`INSERT INTO badges (id, participant_id, event_id, event_name, earned_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (participant_id, event_id) DO NOTHING
		 RETURNING `+badgeColumns,
		badge.ID, badge.ParticipantID, badge.EventID, badge.EventName, badge.EarnedAt))
	if err == nil {
		return *stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Badge{}, false, fmt.Errorf("insert badge: %w", err)
	}

	existing, err := scanBadge(q.QueryRow(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE participant_id = $1 AND event_id = $2`,
		badge.ParticipantID, badge.EventID))
	if err != nil {
		return model.Badge{}, false, fmt.Errorf("get badge: %w", err)
	}
	return *existing, false, nil
}

// ListByParticipant returns the participant's badges, newest first.
func (r *BadgeRepository) ListByParticipant(ctx context.Context, participantID string) ([]model.Badge, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE participant_id = $1 ORDER BY earned_at DESC, id ASC`,
		participantID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

func scanBadge(row pgx.Row) (*model.Badge, error) {
	var b model.Badge
	if err := row.Scan(&b.ID, &b.ParticipantID, &b.EventID, &b.EventName, &b.EarnedAt); err != nil {
		return nil, err
	}
	b.EarnedAt = b.EarnedAt.UTC()
	return &b, nil
}
