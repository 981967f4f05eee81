package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-admission/internal/clock"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
	"github.com/Shivanand-hulikatti/event-admission/internal/service"
	"github.com/Shivanand-hulikatti/event-admission/internal/testutil"
)

type nopNotifier struct{}

func (nopNotifier) RegistrationConfirmed(model.Registration) {}
func (nopNotifier) WaitlistConfirmed(model.WaitlistEntry, int) {}
func (nopNotifier) WaitlistSuccess(model.Registration) {}
func (nopNotifier) RegistrationCancelled(model.Registration) {}
func (nopNotifier) EventCancelled(string, []string) {}
func (nopNotifier) CheckInSuccess(model.Registration) {}

var t0 = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func TestPostgresRepositories(t *testing.T) {
	pool := testutil.NewTestPool(t)
	events := repository.NewEventRepository(pool)
	regs := repository.NewRegistrationRepository(pool)
	waitlist := repository.NewWaitlistRepository(pool)
	badges := repository.NewBadgeRepository(pool)
	participants := repository.NewParticipantRepository(pool)
	tx := repository.NewTransactor(pool)

	t.Run("event lookup", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertEvent(t, ctx, pool, model.Event{ID: "ev", Title: "PGConf", StartTime: t0, Capacity: 2, Status: model.EventPublished, WaitlistEnabled: true})

		err := tx.WithTx(ctx, func(ctx context.Context) error {
			e, err := events.GetForUpdate(ctx, "ev")
			require.NoError(t, err)
			assert.Equal(t, "PGConf", e.Title)
			assert.True(t, e.StartTime.Equal(t0))
			return nil
		})
		require.NoError(t, err)

		_, err = events.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrEventNotFound)
	})

	t.Run("active registration uniqueness and guarded transition", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertEvent(t, ctx, pool, model.Event{ID: "ev", Capacity: 2, Status: model.EventPublished})

		reg := model.Registration{ID: "r-1", ParticipantID: "p", EventID: "ev", Status: model.StatusConfirmed, CreatedAt: t0, UpdatedAt: t0}
		require.NoError(t, regs.Create(ctx, reg))
		dup := reg
		dup.ID = "r-2"
		assert.ErrorIs(t, regs.Create(ctx, dup), repository.ErrAlreadyRegistered)

		got, err := regs.Transition(ctx, "r-1", model.StatusConfirmed, model.StatusCancelledByUser, t0.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelledByUser, got.Status)

		_, err = regs.Transition(ctx, "r-1", model.StatusConfirmed, model.StatusAttended, t0)
		assert.ErrorIs(t, err, repository.ErrStaleState)

		require.NoError(t, regs.Create(ctx, dup), "cancelled rows do not block re-registration")
		n, err := regs.CountConfirmed(ctx, "ev")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		bad := reg
		bad.ID, bad.EventID = "r-3", "missing"
		assert.ErrorIs(t, regs.Create(ctx, bad), repository.ErrEventNotFound)
	})

	t.Run("waitlist FIFO follows insertion, not timestamps", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertEvent(t, ctx, pool, model.Event{ID: "ev", Capacity: 1, Status: model.EventPublished, WaitlistEnabled: true})
		testutil.InsertEvent(t, ctx, pool, model.Event{ID: "ev-2", Capacity: 1, Status: model.EventPublished, WaitlistEnabled: true})

		for i, p := range []string{"a", "b", "c"} {
			e := &model.WaitlistEntry{ID: "w-" + p, ParticipantID: p, EventID: "ev", AddedAt: t0.Add(-time.Duration(i) * time.Second)}
			require.NoError(t, waitlist.Create(ctx, e))
			assert.NotZero(t, e.Seq)
		}
		assert.ErrorIs(t, waitlist.Create(ctx, &model.WaitlistEntry{ID: "w-x", ParticipantID: "a", EventID: "ev", AddedAt: t0}), repository.ErrAlreadyWaitlisted)
		require.NoError(t, waitlist.Create(ctx, &model.WaitlistEntry{ID: "w-c2", ParticipantID: "c", EventID: "ev-2", AddedAt: t0}))

		pos, err := waitlist.Position(ctx, "w-c")
		require.NoError(t, err)
		assert.Equal(t, 3, pos)
		_, err = waitlist.Position(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrWaitlistNotFound)

		mine, err := waitlist.ListByParticipant(ctx, "c")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "w-c", mine[0].ID)
		assert.Equal(t, 3, mine[0].Position)
		assert.Equal(t, "w-c2", mine[1].ID)
		assert.Equal(t, 1, mine[1].Position)

		head, err := waitlist.PopOldest(ctx, "ev")
		require.NoError(t, err)
		assert.Equal(t, "a", head.ParticipantID)

		withdrawn, err := waitlist.Withdraw(ctx, "w-b")
		require.NoError(t, err)
		assert.Equal(t, "b", withdrawn.ParticipantID)
		_, err = waitlist.Withdraw(ctx, "w-b")
		assert.ErrorIs(t, err, repository.ErrWaitlistNotFound)

		queue, err := waitlist.ListByEvent(ctx, "ev")
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, 1, queue[0].Position)
		assert.Equal(t, "c", queue[0].ParticipantID)

		removed, err := waitlist.DeleteByEvent(ctx, "ev")
		require.NoError(t, err)
		assert.Len(t, removed, 1)
	})

	t.Run("badges and participants", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertParticipant(t, ctx, pool, model.Participant{ID: "p", Name: "Grace", Email: "grace@example.com"})

		p, err := participants.GetByID(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "Grace", p.Name)
		_, err = participants.GetByID(ctx, "nobody")
		assert.ErrorIs(t, err, repository.ErrParticipantNotFound)

		first, created, err := badges.Award(ctx, model.Badge{ID: "b-1", ParticipantID: "p", EventID: "ev", EventName: "PGConf", EarnedAt: t0})
		require.NoError(t, err)
		assert.True(t, created)
		again, created, err := badges.Award(ctx, model.Badge{ID: "b-2", ParticipantID: "p", EventID: "ev", EventName: "PGConf", EarnedAt: t0})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("rollback on error", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertEvent(t, ctx, pool, model.Event{ID: "ev", Capacity: 1, Status: model.EventPublished})

		err := tx.WithTx(ctx, func(ctx context.Context) error {
			require.NoError(t, regs.Create(ctx, model.Registration{ID: "r-1", ParticipantID: "p", EventID: "ev", Status: model.StatusConfirmed, CreatedAt: t0, UpdatedAt: t0}))
			return fmt.Errorf("abort")
		})
		require.Error(t, err)
		_, err = regs.GetByID(ctx, "r-1")
		assert.ErrorIs(t, err, repository.ErrRegistrationNotFound)
	})

	t.Run("concurrent registrations respect capacity", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertEvent(t, ctx, pool, model.Event{ID: "ev", Capacity: 3, Status: model.EventPublished, WaitlistEnabled: true})

		log, _ := test.NewNullLogger()
		store := service.Store{Tx: tx, Events: events, Registrations: regs, Waitlist: waitlist}
		admission := service.NewAdmissionService(store, nopNotifier{}, clock.NewSystem(), log)

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := admission.Register(ctx, "ev", fmt.Sprintf("p-%d", i))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		n, err := regs.CountConfirmed(ctx, "ev")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		queue, err := waitlist.ListByEvent(ctx, "ev")
		require.NoError(t, err)
		assert.Len(t, queue, 17)
	})
}
