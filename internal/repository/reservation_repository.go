package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/space-reservation/internal/model"
)

// ReservationRepo provides access to the reservations table.  Reservations
// are never deleted; cancellation is a status update.  All timestamps are
// stored in UTC.
type ReservationRepo struct {
	db *sqlx.DB
}

// NewReservationRepo returns a ReservationRepo bound to db.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// reservationRow mirrors the reservations table.
type reservationRow struct {
	ID                 uint64         `db:"id"`
	SpaceID            uint64         `db:"space_id"`
	UserID             uint64         `db:"user_id"`
	StartAt            time.Time      `db:"start_at"`
	EndAt              time.Time      `db:"end_at"`
	AttendeeCount      sql.NullInt64  `db:"attendee_count"`
	Status             string         `db:"status"`
	ConfirmationCode   string         `db:"confirmation_code"`
	CancellationReason sql.NullString `db:"cancellation_reason"`
	CancelledAt        sql.NullTime   `db:"cancelled_at"`
	ReminderSent       bool           `db:"reminder_sent"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

const reservationColumns = `id, space_id, user_id, start_at, end_at, attendee_count, status,
	confirmation_code, cancellation_reason, cancelled_at, reminder_sent, created_at, updated_at`

func (r reservationRow) toModel() model.Reservation {
	out := model.Reservation{
		ID:               r.ID,
		SpaceID:          r.SpaceID,
		UserID:           r.UserID,
		StartAt:          r.StartAt.UTC(),
		EndAt:            r.EndAt.UTC(),
		Status:           model.ReservationStatus(r.Status),
		ConfirmationCode: r.ConfirmationCode,
		ReminderSent:     r.ReminderSent,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.AttendeeCount.Valid {
		n := int(r.AttendeeCount.Int64)
		out.AttendeeCount = &n
	}
	if r.CancellationReason.Valid {
		reason := model.CancellationReason(r.CancellationReason.String)
		out.CancellationReason = &reason
	}
	if r.CancelledAt.Valid {
		at := r.CancelledAt.Time.UTC()
		out.CancelledAt = &at
	}
	return out
}

func selectReservations(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]model.Reservation, error) {
	var rows []reservationRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]model.Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func getReservation(ctx context.Context, q sqlx.QueryerContext, query string, id uint64) (*model.Reservation, error) {
	var row reservationRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r := row.toModel()
	return &r, nil
}

// GetByID returns the reservation or nil.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, r.db, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
}

// GetForUpdateTx loads the reservation with an exclusive row lock.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, tx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
}

// ListBySpace returns confirmed reservations of the space overlapping
// [from, to), ordered by start.
func (r *ReservationRepo) ListBySpace(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Reservation, error) {
	return selectReservations(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE space_id = ? AND status = 'CONFIRMED' AND start_at < ? AND end_at > ?
		 ORDER BY start_at, id`,
		spaceID, to.UTC(), from.UTC())
}

// FindNeedingReminder returns confirmed, unreminded reservations starting
// in (from, to].
func (r *ReservationRepo) FindNeedingReminder(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	return selectReservations(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status = 'CONFIRMED' AND reminder_sent = FALSE AND start_at > ? AND start_at <= ?
		 ORDER BY start_at, id`,
		from.UTC(), to.UTC())
}

// MarkReminderSent sets the reminder flag.  found is false when no row
// has the given ID.
func (r *ReservationRepo) MarkReminderSent(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET reminder_sent = TRUE WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountActiveByUserTx counts the user's confirmed reservations starting
// after now.
func (r *ReservationRepo) CountActiveByUserTx(ctx context.Context, tx *sqlx.Tx, userID uint64, now time.Time) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM reservations WHERE user_id = ? AND status = 'CONFIRMED' AND start_at > ?`,
		userID, now.UTC())
	return n, err
}

// FindUserOverlapsTx returns the user's confirmed reservations on any
// space that overlap [start, end).
func (r *ReservationRepo) FindUserOverlapsTx(ctx context.Context, tx *sqlx.Tx, userID uint64, start, end time.Time) ([]model.Reservation, error) {
	return selectReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE user_id = ? AND status = 'CONFIRMED' AND start_at < ? AND end_at > ?
		 ORDER BY start_at, id`,
		userID, end.UTC(), start.UTC())
}

// LockSpaceOverlapsTx returns and locks the space's confirmed reservations
// overlapping [start, end).
func (r *ReservationRepo) LockSpaceOverlapsTx(ctx context.Context, tx *sqlx.Tx, spaceID uint64, start, end time.Time) ([]model.Reservation, error) {
	return selectReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE space_id = ? AND status = 'CONFIRMED' AND start_at < ? AND end_at > ?
		 ORDER BY start_at, id
		 FOR UPDATE`,
		spaceID, end.UTC(), start.UTC())
}

// CodeExistsTx reports whether a confirmation code is already taken.
func (r *ReservationRepo) CodeExistsTx(ctx context.Context, tx *sqlx.Tx, code string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE confirmation_code = ?)`, code)
	return exists, err
}

// CreateTx inserts res inside tx and reads the row back so that the ID
// and timestamps are populated.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	var attendees sql.NullInt64
	if res.AttendeeCount != nil {
		attendees = sql.NullInt64{Int64: int64(*res.AttendeeCount), Valid: true}
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (space_id, user_id, start_at, end_at, attendee_count, status, confirmation_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.SpaceID, res.UserID, res.StartAt.UTC(), res.EndAt.UTC(), attendees, string(res.Status), res.ConfirmationCode)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := getReservation(ctx, tx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, uint64(id))
	if err != nil {
		return err
	}
	if stored == nil {
		return sql.ErrNoRows
	}
	*res = *stored
	return nil
}

// CancelTx marks the reservation cancelled.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sqlx.Tx, id uint64, reason model.CancellationReason, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations
		 SET status = 'CANCELLED', cancellation_reason = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(reason), at.UTC(), at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListUpcomingBySpaceForUpdateTx returns and locks the space's confirmed
// reservations starting after now.
func (r *ReservationRepo) ListUpcomingBySpaceForUpdateTx(ctx context.Context, tx *sqlx.Tx, spaceID uint64, now time.Time) ([]model.Reservation, error) {
	return selectReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE space_id = ? AND status = 'CONFIRMED' AND start_at > ?
		 ORDER BY start_at, id
		 FOR UPDATE`,
		spaceID, now.UTC())
}
