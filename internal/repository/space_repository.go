package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/space-reservation/internal/model"
)

// spaceRow mirrors the spaces table.  Opening hours come back from TIME
// columns as "HH:MM:SS" strings and are parsed once in toModel.
type spaceRow struct {
	ID           uint64         `db:"id"`
	Name         string         `db:"name"`
	Capacity     uint32         `db:"capacity"`
	Status       string         `db:"status"`
	WeekdayOpen  sql.NullString `db:"weekday_open"`
	WeekdayClose sql.NullString `db:"weekday_close"`
	WeekendOpen  sql.NullString `db:"weekend_open"`
	WeekendClose sql.NullString `db:"weekend_close"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

const spaceColumns = `id, name, capacity, status, weekday_open, weekday_close,
	weekend_open, weekend_close, created_at, updated_at`

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r spaceRow) toModel() (*model.Space, error) {
	weekday, err := model.ParseClockRange(nullStringPtr(r.WeekdayOpen), nullStringPtr(r.WeekdayClose))
	if err != nil {
		return nil, fmt.Errorf("space %d weekday hours: %w", r.ID, err)
	}
	weekend, err := model.ParseClockRange(nullStringPtr(r.WeekendOpen), nullStringPtr(r.WeekendClose))
	if err != nil {
		return nil, fmt.Errorf("space %d weekend hours: %w", r.ID, err)
	}
	return &model.Space{
		ID:        r.ID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		Status:    model.SpaceStatus(r.Status),
		Hours:     model.OperatingHours{Weekday: weekday, Weekend: weekend},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// SpaceRepo provides access to the spaces table.
type SpaceRepo struct {
	db *sqlx.DB
}

// NewSpaceRepo returns a SpaceRepo bound to db.
func NewSpaceRepo(db *sqlx.DB) *SpaceRepo { return &SpaceRepo{db: db} }

// GetByID returns the space or nil when it does not exist.
func (r *SpaceRepo) GetByID(ctx context.Context, id uint64) (*model.Space, error) {
	return getSpace(ctx, r.db, `SELECT `+spaceColumns+` FROM spaces WHERE id = ?`, id)
}

// LockTx loads the space with an exclusive row lock.  Every booking and
// status change of the space serialises on this lock.
func (r *SpaceRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Space, error) {
	return getSpace(ctx, tx, `SELECT `+spaceColumns+` FROM spaces WHERE id = ? FOR UPDATE`, id)
}

// UpdateStatusTx sets the status of a space.
func (r *SpaceRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uint64, status model.SpaceStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE spaces SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no space found with ID %d", id)
	}
	return nil
}

func getSpace(ctx context.Context, q sqlx.QueryerContext, query string, id uint64) (*model.Space, error) {
	var row spaceRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel()
}
