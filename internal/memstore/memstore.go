// Package memstore is an in-process implementation of engine.Store.  It
// backs STORAGE=memory deployments and the engine tests.  Transactions
// are fully serialised: BeginTx waits for the previous transaction to
// finish, works on a private copy of the data and publishes it on Commit.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/space-reservation/internal/engine"
	"github.com/iliyamo/space-reservation/internal/model"
)

// ErrTxDone is returned by Commit on a finished transaction.
var ErrTxDone = errors.New("memstore: transaction already finished")

type state struct {
	spaces       map[uint64]model.Space
	reservations map[uint64]model.Reservation
	codes        map[string]uint64
	users        map[uint64]model.UserContact
	nextID       uint64
}

func newState() *state {
	return &state{
		spaces:       map[uint64]model.Space{},
		reservations: map[uint64]model.Reservation{},
		codes:        map[string]uint64{},
		users:        map[uint64]model.UserContact{},
	}
}

func (s *state) clone() *state {
	c := &state{
		spaces:       make(map[uint64]model.Space, len(s.spaces)),
		reservations: make(map[uint64]model.Reservation, len(s.reservations)),
		codes:        make(map[string]uint64, len(s.codes)),
		users:        s.users,
		nextID:       s.nextID,
	}
	for k, v := range s.spaces {
		c.spaces[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	return c
}

// Store keeps spaces, reservations and user contacts in memory.
type Store struct {
	// sem admits one writer at a time; it is held from BeginTx to
	// Commit/Rollback.
	sem  chan struct{}
	mu   sync.RWMutex
	data *state
}

// New returns an empty store.
func New() *Store {
	return &Store{sem: make(chan struct{}, 1), data: newState()}
}

var _ engine.Store = (*Store)(nil)

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.sem }

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// PutSpace inserts or replaces a space.
func (s *Store) PutSpace(sp model.Space) {
	s.sem <- struct{}{}
	defer s.release()
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data.clone()
	now := time.Now().UTC()
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = now
	}
	sp.UpdatedAt = now
	next.spaces[sp.ID] = sp
	s.data = next
}

// PutReservation inserts a reservation as-is.  A zero ID is assigned.
// It returns the stored copy.
func (s *Store) PutReservation(r model.Reservation) model.Reservation {
	s.sem <- struct{}{}
	defer s.release()
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data.clone()
	if r.ID == 0 {
		next.nextID++
		r.ID = next.nextID
	} else if r.ID > next.nextID {
		next.nextID = r.ID
	}
	next.reservations[r.ID] = r
	if r.ConfirmationCode != "" {
		next.codes[r.ConfirmationCode] = r.ID
	}
	s.data = next
	return r
}

// PutUser registers a user's contact details.
func (s *Store) PutUser(u model.UserContact) {
	s.sem <- struct{}{}
	defer s.release()
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make(map[uint64]model.UserContact, len(s.data.users)+1)
	for k, v := range s.data.users {
		users[k] = v
	}
	users[u.ID] = u
	next := *s.data
	next.users = users
	s.data = &next
}

// GetContact returns the contact details of a user, or nil.
func (s *Store) GetContact(_ context.Context, userID uint64) (*model.UserContact, error) {
	u, ok := s.snapshot().users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Reservations returns every stored reservation ordered by ID.
func (s *Store) Reservations() []model.Reservation {
	st := s.snapshot()
	out := make([]model.Reservation, 0, len(st.reservations))
	for _, r := range st.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) BeginTx(ctx context.Context) (engine.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	return &tx{s: s, st: s.snapshot().clone()}, nil
}

func (s *Store) GetSpace(_ context.Context, id uint64) (*model.Space, error) {
	sp, ok := s.snapshot().spaces[id]
	if !ok {
		return nil, nil
	}
	return &sp, nil
}

func (s *Store) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := s.snapshot().reservations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) ListReservations(_ context.Context, spaceID uint64, from, to time.Time) ([]model.Reservation, error) {
	return filter(s.snapshot(), func(r model.Reservation) bool {
		return r.SpaceID == spaceID && r.Blocks(from, to)
	}), nil
}

func (s *Store) FindNeedingReminder(_ context.Context, from, to time.Time) ([]model.Reservation, error) {
	return filter(s.snapshot(), func(r model.Reservation) bool {
		return r.Status == model.StatusConfirmed && !r.ReminderSent &&
			r.StartAt.After(from) && !r.StartAt.After(to)
	}), nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id uint64) (bool, error) {
	if err := s.acquire(ctx); err != nil {
		return false, err
	}
	defer s.release()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data.reservations[id]
	if !ok {
		return false, nil
	}
	if r.ReminderSent {
		return true, nil
	}
	next := s.data.clone()
	r.ReminderSent = true
	r.UpdatedAt = time.Now().UTC()
	next.reservations[id] = r
	s.data = next
	return true, nil
}

func filter(st *state, keep func(model.Reservation) bool) []model.Reservation {
	out := []model.Reservation{}
	for _, r := range st.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out
}

type tx struct {
	s    *Store
	st   *state
	done bool
}

func (t *tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.s.mu.Lock()
	t.s.data = t.st
	t.s.mu.Unlock()
	t.done = true
	t.s.release()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.release()
	return nil
}

func (t *tx) LockSpace(_ context.Context, id uint64) (*model.Space, error) {
	sp, ok := t.st.spaces[id]
	if !ok {
		return nil, nil
	}
	return &sp, nil
}

func (t *tx) UpdateSpaceStatus(_ context.Context, id uint64, status model.SpaceStatus) error {
	sp, ok := t.st.spaces[id]
	if !ok {
		return fmt.Errorf("memstore: space %d not found", id)
	}
	sp.Status = status
	sp.UpdatedAt = time.Now().UTC()
	t.st.spaces[id] = sp
	return nil
}

// LockUser is a no-op: the transaction already excludes every other
// writer.
func (t *tx) LockUser(context.Context, uint64) error { return nil }

func (t *tx) CountActiveByUser(_ context.Context, userID uint64, now time.Time) (int, error) {
	n := 0
	for _, r := range t.st.reservations {
		if r.UserID == userID && r.Status == model.StatusConfirmed && r.StartAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (t *tx) FindUserOverlaps(_ context.Context, userID uint64, start, end time.Time) ([]model.Reservation, error) {
	return filter(t.st, func(r model.Reservation) bool {
		return r.UserID == userID && r.Blocks(start, end)
	}), nil
}

func (t *tx) LockSpaceOverlaps(_ context.Context, spaceID uint64, start, end time.Time) ([]model.Reservation, error) {
	return filter(t.st, func(r model.Reservation) bool {
		return r.SpaceID == spaceID && r.Blocks(start, end)
	}), nil
}

func (t *tx) ConfirmationCodeExists(_ context.Context, code string) (bool, error) {
	_, ok := t.st.codes[code]
	return ok, nil
}

func (t *tx) InsertReservation(_ context.Context, r *model.Reservation) error {
	if _, ok := t.st.codes[r.ConfirmationCode]; ok {
		return engine.ErrDuplicateCode
	}
	now := time.Now().UTC()
	t.st.nextID++
	r.ID = t.st.nextID
	r.CreatedAt = now
	r.UpdatedAt = now
	t.st.reservations[r.ID] = *r
	t.st.codes[r.ConfirmationCode] = r.ID
	return nil
}

func (t *tx) GetReservationForUpdate(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := t.st.reservations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *tx) CancelReservation(_ context.Context, id uint64, reason model.CancellationReason, at time.Time) error {
	r, ok := t.st.reservations[id]
	if !ok {
		return fmt.Errorf("memstore: reservation %d not found", id)
	}
	rsn := reason
	ts := at
	r.Status = model.StatusCancelled
	r.CancellationReason = &rsn
	r.CancelledAt = &ts
	r.UpdatedAt = at
	t.st.reservations[id] = r
	return nil
}

func (t *tx) ListUpcomingBySpaceForUpdate(_ context.Context, spaceID uint64, now time.Time) ([]model.Reservation, error) {
	return filter(t.st, func(r model.Reservation) bool {
		return r.SpaceID == spaceID && r.Status == model.StatusConfirmed && r.StartAt.After(now)
	}), nil
}
