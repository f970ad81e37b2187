package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/space-reservation/internal/model"
)

// userRow mirrors the subset of the 'users' table this service reads.
type userRow struct {
	ID          uint64                        `db:"id"`
	Email       string                        `db:"email"`
	Name        string                        `db:"name"`
	Preferences model.NotificationPreferences `db:"notification_preferences"`
}

// UserRepo reads user contact details and owns the per-user booking lock.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// GetContact fetches a user's email and notification preferences.  It
// returns nil when the user is unknown.
func (r *UserRepo) GetContact(ctx context.Context, id uint64) (*model.UserContact, error) {
	var row userRow
	err := r.DB.GetContext(ctx, &row,
		"SELECT id,email,name,notification_preferences FROM users WHERE id=? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.UserContact{ID: row.ID, Email: row.Email, Name: row.Name, Preferences: row.Preferences}, nil
}

// LockTx takes an exclusive lock on the user's booking_locks row,
// creating it on first use.  Concurrent bookings by one user queue here
// until the holder commits, so the active-booking cap and the self-overlap
// check always see each other's writes.
func (r *UserRepo) LockTx(ctx context.Context, tx *sqlx.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO booking_locks (user_id, locked_at) VALUES (?, UTC_TIMESTAMP())
		 ON DUPLICATE KEY UPDATE locked_at = VALUES(locked_at)`, userID)
	return err
}
