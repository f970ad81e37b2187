package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/space-reservation/internal/engine"
	"github.com/iliyamo/space-reservation/internal/model"
)

// Store composes the repositories into an engine.Store.
type Store struct {
	db           *sqlx.DB
	Spaces       *SpaceRepo
	Reservations *ReservationRepo
	Users        *UserRepo
}

// NewStore binds every repository to db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:           db,
		Spaces:       NewSpaceRepo(db),
		Reservations: NewReservationRepo(db),
		Users:        NewUserRepo(db),
	}
}

var _ engine.Store = (*Store)(nil)

// BeginTx opens a READ COMMITTED transaction.  Serialisation comes from
// the explicit row locks taken through the Tx, not from the isolation
// level, so gap locks are not needed.
func (s *Store) BeginTx(ctx context.Context) (engine.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, classify(err)
	}
	return &storeTx{tx: tx, s: s}, nil
}

func (s *Store) GetSpace(ctx context.Context, id uint64) (*model.Space, error) {
	sp, err := s.Spaces.GetByID(ctx, id)
	return sp, classify(err)
}

func (s *Store) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, err := s.Reservations.GetByID(ctx, id)
	return r, classify(err)
}

func (s *Store) ListReservations(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Reservation, error) {
	out, err := s.Reservations.ListBySpace(ctx, spaceID, from, to)
	return out, classify(err)
}

func (s *Store) FindNeedingReminder(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	out, err := s.Reservations.FindNeedingReminder(ctx, from, to)
	return out, classify(err)
}

func (s *Store) MarkReminderSent(ctx context.Context, id uint64) (bool, error) {
	found, err := s.Reservations.MarkReminderSent(ctx, id)
	return found, classify(err)
}

// GetContact satisfies the notification worker's contact lookup.
func (s *Store) GetContact(ctx context.Context, userID uint64) (*model.UserContact, error) {
	return s.Users.GetContact(ctx, userID)
}

type storeTx struct {
	tx *sqlx.Tx
	s  *Store
}

func (t *storeTx) Commit() error { return classify(t.tx.Commit()) }

func (t *storeTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *storeTx) LockSpace(ctx context.Context, id uint64) (*model.Space, error) {
	sp, err := t.s.Spaces.LockTx(ctx, t.tx, id)
	return sp, classify(err)
}

func (t *storeTx) UpdateSpaceStatus(ctx context.Context, id uint64, status model.SpaceStatus) error {
	return classify(t.s.Spaces.UpdateStatusTx(ctx, t.tx, id, status))
}

func (t *storeTx) LockUser(ctx context.Context, userID uint64) error {
	return classify(t.s.Users.LockTx(ctx, t.tx, userID))
}

func (t *storeTx) CountActiveByUser(ctx context.Context, userID uint64, now time.Time) (int, error) {
	n, err := t.s.Reservations.CountActiveByUserTx(ctx, t.tx, userID, now)
	return n, classify(err)
}

func (t *storeTx) FindUserOverlaps(ctx context.Context, userID uint64, start, end time.Time) ([]model.Reservation, error) {
	out, err := t.s.Reservations.FindUserOverlapsTx(ctx, t.tx, userID, start, end)
	return out, classify(err)
}

func (t *storeTx) LockSpaceOverlaps(ctx context.Context, spaceID uint64, start, end time.Time) ([]model.Reservation, error) {
	out, err := t.s.Reservations.LockSpaceOverlapsTx(ctx, t.tx, spaceID, start, end)
	return out, classify(err)
}

func (t *storeTx) ConfirmationCodeExists(ctx context.Context, code string) (bool, error) {
	ok, err := t.s.Reservations.CodeExistsTx(ctx, t.tx, code)
	return ok, classify(err)
}

func (t *storeTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return classify(t.s.Reservations.CreateTx(ctx, t.tx, r))
}

func (t *storeTx) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, err := t.s.Reservations.GetForUpdateTx(ctx, t.tx, id)
	return r, classify(err)
}

func (t *storeTx) CancelReservation(ctx context.Context, id uint64, reason model.CancellationReason, at time.Time) error {
	return classify(t.s.Reservations.CancelTx(ctx, t.tx, id, reason, at))
}

func (t *storeTx) ListUpcomingBySpaceForUpdate(ctx context.Context, spaceID uint64, now time.Time) ([]model.Reservation, error) {
	out, err := t.s.Reservations.ListUpcomingBySpaceForUpdateTx(ctx, t.tx, spaceID, now)
	return out, classify(err)
}
