// Package memory is an in-process implementation of the admission store.
//
// All state sits behind one mutex. WithTx holds that mutex for the whole unit
// of work and restores a snapshot when the work fails, which gives the same
// all-or-nothing and serialised-per-event guarantees the Postgres store gets
// from transactions and the event row lock.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

type txKey struct{}

// Store holds events, participants, registrations, waitlist entries and badges.
type Store struct {
	mu            sync.Mutex
	events        map[string]model.Event
	participants  map[string]model.Participant
	registrations map[string]model.Registration
	waitlist      map[string]model.WaitlistEntry
	badges        map[string]model.Badge

	// waitlistSeq is the last sequence number handed to a waitlist entry. It
	// survives rollbacks, as a Postgres sequence does.
	waitlistSeq int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		events:        make(map[string]model.Event),
		participants:  make(map[string]model.Participant),
		registrations: make(map[string]model.Registration),
		waitlist:      make(map[string]model.WaitlistEntry),
		badges:        make(map[string]model.Badge),
	}
}

// PutEvent inserts or replaces an event, standing in for the event registry.
func (s *Store) PutEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

// SetEventStatus changes an event's status as the registry would.
func (s *Store) SetEventStatus(id string, status model.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	e.Status = status
	s.events[id] = e
	return nil
}

// PutParticipant inserts or replaces a directory entry.
func (s *Store) PutParticipant(p model.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = p
}

// WithTx runs fn with the store locked. State changes made by fn are discarded
// when it returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the store mutex unless ctx already belongs to a transaction on it.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	registrations map[string]model.Registration
	waitlist      map[string]model.WaitlistEntry
	badges        map[string]model.Badge
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		registrations: maps.Clone(s.registrations),
		waitlist:      maps.Clone(s.waitlist),
		badges:        maps.Clone(s.badges),
	}
}

func (s *Store) restore(snap snapshot) {
	s.registrations = snap.registrations
	s.waitlist = snap.waitlist
	s.badges = snap.badges
}

// Events returns the event registry view of the store.
func (s *Store) Events() *Events { return &Events{s: s} }

// Registrations returns the registration ledger view of the store.
func (s *Store) Registrations() *Registrations { return &Registrations{s: s} }

// Waitlist returns the waitlist queue view of the store.
func (s *Store) Waitlist() *Waitlist { return &Waitlist{s: s} }

// Participants returns the participant directory view of the store.
func (s *Store) Participants() *Participants { return &Participants{s: s} }

// Badges returns the badge view of the store.
func (s *Store) Badges() *Badges { return &Badges{s: s} }

// Events reads events.
type Events struct{ s *Store }

// GetByID returns the event or ErrEventNotFound.
func (r *Events) GetByID(ctx context.Context, id string) (*model.Event, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return &e, nil
}

// GetForUpdate is GetByID; the transaction lock already serialises writers.
func (r *Events) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	return r.GetByID(ctx, id)
}

// Registrations is the registration ledger.
type Registrations struct{ s *Store }

// Create stores reg, rejecting a second active registration.
func (r *Registrations) Create(ctx context.Context, reg model.Registration) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.events[reg.EventID]; !ok {
		return repository.ErrEventNotFound
	}
	if reg.Status.IsActive() && r.s.findActive(reg.ParticipantID, reg.EventID) != nil {
		return repository.ErrAlreadyRegistered
	}
	r.s.registrations[reg.ID] = reg
	return nil
}

// GetByID returns the registration or ErrRegistrationNotFound.
func (r *Registrations) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	defer r.s.lock(ctx)()
	reg, ok := r.s.registrations[id]
	if !ok {
		return nil, repository.ErrRegistrationNotFound
	}
	return &reg, nil
}

// FindActive returns the active registration for the pair, or nil.
func (r *Registrations) FindActive(ctx context.Context, participantID, eventID string) (*model.Registration, error) {
	defer r.s.lock(ctx)()
	return r.s.findActive(participantID, eventID), nil
}

func (s *Store) findActive(participantID, eventID string) *model.Registration {
	for _, reg := range s.registrations {
		if reg.ParticipantID == participantID && reg.EventID == eventID && reg.Status.IsActive() {
			return &reg
		}
	}
	return nil
}

// CountConfirmed counts seats held: confirmed plus attended.
func (r *Registrations) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, reg := range r.s.registrations {
		if reg.EventID == eventID && reg.Status.IsActive() {
			n++
		}
	}
	return n, nil
}

// Transition moves id from from to to, or returns ErrStaleState.
func (r *Registrations) Transition(ctx context.Context, id string, from, to model.RegistrationStatus, at time.Time) (*model.Registration, error) {
	if !model.CanTransition(from, to) {
		return nil, repository.ErrInvalidState
	}
	defer r.s.lock(ctx)()
	reg, ok := r.s.registrations[id]
	if !ok || reg.Status != from {
		return nil, repository.ErrStaleState
	}
	reg.Status = to
	reg.UpdatedAt = at
	r.s.registrations[id] = reg
	return &reg, nil
}

// ListByEvent returns the event's registrations, oldest first.
func (r *Registrations) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	defer r.s.lock(ctx)()
	return r.s.filterRegistrations(func(reg model.Registration) bool { return reg.EventID == eventID }), nil
}

// ListByParticipant returns the participant's registrations, oldest first.
func (r *Registrations) ListByParticipant(ctx context.Context, participantID string) ([]model.Registration, error) {
	defer r.s.lock(ctx)()
	return r.s.filterRegistrations(func(reg model.Registration) bool { return reg.ParticipantID == participantID }), nil
}

func (s *Store) filterRegistrations(keep func(model.Registration) bool) []model.Registration {
	var out []model.Registration
	for _, reg := range s.registrations {
		if keep(reg) {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Waitlist is the FIFO queue of pending entrants.
type Waitlist struct{ s *Store }

// Create appends entry to its event's queue and sets entry.Seq.
func (r *Waitlist) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.events[entry.EventID]; !ok {
		return repository.ErrEventNotFound
	}
	if r.s.findEntry(entry.ParticipantID, entry.EventID) != nil {
		return repository.ErrAlreadyWaitlisted
	}
	r.s.waitlistSeq++
	entry.Seq = r.s.waitlistSeq
	r.s.waitlist[entry.ID] = *entry
	return nil
}

// FindByParticipant returns the participant's entry for the event, or nil.
func (r *Waitlist) FindByParticipant(ctx context.Context, participantID, eventID string) (*model.WaitlistEntry, error) {
	defer r.s.lock(ctx)()
	return r.s.findEntry(participantID, eventID), nil
}

func (s *Store) findEntry(participantID, eventID string) *model.WaitlistEntry {
	for _, e := range s.waitlist {
		if e.ParticipantID == participantID && e.EventID == eventID {
			return &e
		}
	}
	return nil
}

// Position returns the entry's 1-indexed rank in its queue.
func (r *Waitlist) Position(ctx context.Context, entryID string) (int, error) {
	defer r.s.lock(ctx)()
	for i, e := range r.s.queue(r.s.waitlist[entryID].EventID) {
		if e.ID == entryID {
			return i + 1, nil
		}
	}
	return 0, repository.ErrWaitlistNotFound
}

// PopOldest removes and returns the head of the queue, or nil.
func (r *Waitlist) PopOldest(ctx context.Context, eventID string) (*model.WaitlistEntry, error) {
	defer r.s.lock(ctx)()
	q := r.s.queue(eventID)
	if len(q) == 0 {
		return nil, nil
	}
	head := q[0]
	delete(r.s.waitlist, head.ID)
	return &head, nil
}

// ListByEvent returns the queue in order with positions.
func (r *Waitlist) ListByEvent(ctx context.Context, eventID string) ([]model.QueuedEntry, error) {
	defer r.s.lock(ctx)()
	var out []model.QueuedEntry
	for i, e := range r.s.queue(eventID) {
		out = append(out, model.QueuedEntry{WaitlistEntry: e, Position: i + 1})
	}
	return out, nil
}

// ListByParticipant returns the participant's entries in joining order, each
// ranked within its own event.
func (r *Waitlist) ListByParticipant(ctx context.Context, participantID string) ([]model.QueuedEntry, error) {
	defer r.s.lock(ctx)()
	var out []model.QueuedEntry
	for _, e := range r.s.waitlist {
		if e.ParticipantID != participantID {
			continue
		}
		for i, q := range r.s.queue(e.EventID) {
			if q.ID == e.ID {
				out = append(out, model.QueuedEntry{WaitlistEntry: e, Position: i + 1})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].WaitlistEntry) })
	return out, nil
}

// Withdraw removes one entry, or reports ErrWaitlistNotFound when it is gone.
func (r *Waitlist) Withdraw(ctx context.Context, entryID string) (*model.WaitlistEntry, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.waitlist[entryID]
	if !ok {
		return nil, repository.ErrWaitlistNotFound
	}
	delete(r.s.waitlist, entryID)
	return &e, nil
}

// DeleteByEvent empties the queue and returns what it held.
func (r *Waitlist) DeleteByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	defer r.s.lock(ctx)()
	q := r.s.queue(eventID)
	for _, e := range q {
		delete(r.s.waitlist, e.ID)
	}
	return q, nil
}

func (s *Store) queue(eventID string) []model.WaitlistEntry {
	var q []model.WaitlistEntry
	for _, e := range s.waitlist {
		if e.EventID == eventID {
			q = append(q, e)
		}
	}
	sort.Slice(q, func(i, j int) bool { return q[i].Before(q[j]) })
	return q
}

// Participants is the read-only contact directory.
type Participants struct{ s *Store }

// GetByID returns the participant or ErrParticipantNotFound.
func (r *Participants) GetByID(ctx context.Context, id string) (*model.Participant, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.participants[id]
	if !ok {
		return nil, repository.ErrParticipantNotFound
	}
	return &p, nil
}

// Badges stores passport badges keyed by participant and event.
type Badges struct{ s *Store }

// Award stores badge unless the pair already has one, which is returned instead.
func (r *Badges) Award(ctx context.Context, badge model.Badge) (model.Badge, bool, error) {
	defer r.s.lock(ctx)()
	key := badge.ParticipantID + "|" + badge.EventID
	if existing, ok := r.s.badges[key]; ok {
		return existing, false, nil
	}
	r.s.badges[key] = badge
	return badge, true, nil
}

// ListByParticipant returns the participant's badges, newest first.
func (r *Badges) ListByParticipant(ctx context.Context, participantID string) ([]model.Badge, error) {
	defer r.s.lock(ctx)()
	var out []model.Badge
	for _, b := range r.s.badges {
		if b.ParticipantID == participantID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EarnedAt.After(out[j].EarnedAt)
	})
	return out, nil
}
