// Package engine is the reservation engine: slot availability, the
// transactional create/cancel path, maintenance cascades and the
// reminder predicate.  It holds no reservation state between calls;
// every decision is made against the Store inside one transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/space-reservation/internal/apperror"
	"github.com/iliyamo/space-reservation/internal/eligibility"
	"github.com/iliyamo/space-reservation/internal/localtime"
	"github.com/iliyamo/space-reservation/internal/model"
	"github.com/iliyamo/space-reservation/internal/policy"
	"github.com/iliyamo/space-reservation/internal/slots"
)

// ErrDuplicateCode is returned by Tx.InsertReservation when the
// confirmation code collides with an existing row.
var ErrDuplicateCode = errors.New("confirmation code already exists")

// Notifier receives committed changes.  Implementations must not block;
// delivery is best effort and can never undo a commit.
type Notifier interface {
	ReservationCreated(r model.Reservation)
	ReservationCancelled(r model.Reservation)
}

type nopNotifier struct{}

func (nopNotifier) ReservationCreated(model.Reservation)   {}
func (nopNotifier) ReservationCancelled(model.Reservation) {}

// Config carries the business limits of the engine.
type Config struct {
	Rules             eligibility.Rules
	MaxActiveBookings int
	GracePeriod       time.Duration
	MaxRangeDays      int
	CodeAttempts      int
}

// DefaultConfig returns the standard limits: 5 active bookings per user,
// one hour cancellation grace period, 62 day availability window.
func DefaultConfig() Config {
	return Config{
		Rules:             eligibility.DefaultRules(),
		MaxActiveBookings: 5,
		GracePeriod:       time.Hour,
		MaxRangeDays:      62,
		CodeAttempts:      5,
	}
}

// Engine implements the reservation operations.  It is safe for
// concurrent use; concurrency control is delegated to Store locks.
type Engine struct {
	store     Store
	tz        *localtime.Adapter
	cfg       Config
	validator *eligibility.Validator
	slots     *slots.Calculator
	cancel    policy.Cancellation
	clock     Clock
	notifier  Notifier
	log       *zap.Logger
	newCode   func() (string, error)
}

// Option customises an Engine.
type Option func(*Engine)

func WithClock(c Clock) Option          { return func(e *Engine) { e.clock = c } }
func WithNotifier(n Notifier) Option    { return func(e *Engine) { e.notifier = n } }
func WithLogger(l *zap.Logger) Option   { return func(e *Engine) { e.log = l } }
func WithCodeGenerator(f func() (string, error)) Option {
	return func(e *Engine) { e.newCode = f }
}

// New builds an Engine over store.  store and tz must be non-nil.
func New(store Store, tz *localtime.Adapter, cfg Config, opts ...Option) *Engine {
	if store == nil || tz == nil {
		panic("engine: nil store or timezone adapter")
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = 1
	}
	e := &Engine{
		store:     store,
		tz:        tz,
		cfg:       cfg,
		validator: eligibility.NewValidator(cfg.Rules),
		slots:     slots.NewCalculator(tz),
		cancel:    policy.Cancellation{GracePeriod: cfg.GracePeriod},
		clock:     RealClock{},
		notifier:  nopNotifier{},
		log:       zap.NewNop(),
		newCode:   NewConfirmationCode,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Validate runs the structural eligibility rules against the current
// time.  It never touches storage.
func (e *Engine) Validate(req eligibility.Request) eligibility.Result {
	return e.validator.Validate(req, e.clock.Now())
}

// ComputeRange returns the slot grid of a space for every local date in
// [startDate, endDate].  Reservations are fetched once for the range.
func (e *Engine) ComputeRange(ctx context.Context, spaceID uint64, startDate, endDate string) ([]slots.DaySlots, error) {
	from, err := e.tz.ParseDate(startDate)
	if err != nil {
		return nil, apperror.Validation("start must be a YYYY-MM-DD date")
	}
	last, err := e.tz.ParseDate(endDate)
	if err != nil {
		return nil, apperror.Validation("end must be a YYYY-MM-DD date")
	}
	if last.Before(from) {
		return nil, apperror.Validation("end must not be before start")
	}
	if days := int(last.Sub(from).Hours()/24) + 1; days > e.cfg.MaxRangeDays {
		return nil, apperror.Validation(fmt.Sprintf("range cannot exceed %d days", e.cfg.MaxRangeDays))
	}

	space, err := e.store.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, storageErr("load space", err)
	}
	if space == nil || space.Status == model.SpaceDeleted {
		return nil, apperror.NotFound("Space not found")
	}

	_, to, err := e.tz.DayBounds(endDate)
	if err != nil {
		return nil, apperror.Validation("end must be a YYYY-MM-DD date")
	}
	reservations, err := e.store.ListReservations(ctx, spaceID, from, to)
	if err != nil {
		return nil, storageErr("list reservations", err)
	}
	days, err := e.slots.ComputeRange(*space, startDate, endDate, reservations)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	return days, nil
}

// CreateReservation validates req and commits a confirmed reservation
// for userID.  Space and user locks are held from the first read to the
// commit, so two overlapping requests for one space are totally ordered
// and the later one observes the earlier commit.
func (e *Engine) CreateReservation(ctx context.Context, userID uint64, req eligibility.Request) (*model.Reservation, error) {
	if userID == 0 {
		return nil, apperror.Unauthorized("Missing user identity")
	}
	now := e.clock.Now()
	result := e.validator.Validate(req, now)
	if !result.Valid {
		return nil, apperror.ValidationList(result.Errors)
	}
	b := result.Booking

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	space, err := tx.LockSpace(ctx, b.SpaceID)
	if err != nil {
		return nil, storageErr("load space", err)
	}
	if space == nil {
		return nil, apperror.NotFound("Space not found")
	}
	if space.Status != model.SpaceAvailable {
		return nil, apperror.Conflict("Space is not available")
	}
	if b.AttendeeCount != nil && space.Capacity > 0 && uint64(*b.AttendeeCount) > uint64(space.Capacity) {
		return nil, apperror.Validation(fmt.Sprintf("Attendee count exceeds the space capacity of %d", space.Capacity))
	}
	if hours := eligibility.CheckOperatingHours(e.tz, *space, b.StartAt, b.EndAt); !hours.Valid {
		return nil, apperror.Validation(hours.Message)
	}

	if err := tx.LockUser(ctx, userID); err != nil {
		return nil, storageErr("lock user", err)
	}
	active, err := tx.CountActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, storageErr("count active bookings", err)
	}
	if active >= e.cfg.MaxActiveBookings {
		return nil, apperror.LimitExceeded("Maximum active bookings reached")
	}

	own, err := tx.FindUserOverlaps(ctx, userID, b.StartAt, b.EndAt)
	if err != nil {
		return nil, storageErr("check user overlaps", err)
	}
	if len(own) > 0 {
		return nil, apperror.Conflict("You already have a booking that overlaps this time")
	}

	taken, err := tx.LockSpaceOverlaps(ctx, b.SpaceID, b.StartAt, b.EndAt)
	if err != nil {
		return nil, storageErr("check space overlaps", err)
	}
	if len(taken) > 0 {
		return nil, apperror.Conflict("Space is already booked at this time")
	}

	r := &model.Reservation{
		SpaceID:       b.SpaceID,
		UserID:        userID,
		StartAt:       b.StartAt,
		EndAt:         b.EndAt,
		AttendeeCount: b.AttendeeCount,
		Status:        model.StatusConfirmed,
	}
	if err := e.insertWithUniqueCode(ctx, tx, r); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit reservation", err)
	}
	committed = true

	e.log.Info("reservation created",
		zap.Uint64("reservation_id", r.ID),
		zap.Uint64("space_id", r.SpaceID),
		zap.Uint64("user_id", r.UserID),
		zap.String("code", r.ConfirmationCode),
	)
	e.notifier.ReservationCreated(*r)
	return r, nil
}

// insertWithUniqueCode probes for a free confirmation code before the
// insert and retries when the insert still reports a collision.
func (e *Engine) insertWithUniqueCode(ctx context.Context, tx Tx, r *model.Reservation) error {
	for attempt := 0; attempt < e.cfg.CodeAttempts; attempt++ {
		code, err := e.newCode()
		if err != nil {
			return apperror.Transient("generate confirmation code", err)
		}
		exists, err := tx.ConfirmationCodeExists(ctx, code)
		if err != nil {
			return storageErr("probe confirmation code", err)
		}
		if exists {
			e.log.Warn("confirmation code collision", zap.String("code", code), zap.Int("attempt", attempt+1))
			continue
		}
		r.ConfirmationCode = code
		err = tx.InsertReservation(ctx, r)
		if errors.Is(err, ErrDuplicateCode) {
			e.log.Warn("confirmation code collision on insert", zap.String("code", code), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return storageErr("insert reservation", err)
		}
		return nil
	}
	return apperror.Conflict("Could not allocate a unique confirmation code")
}

// CancelReservation moves a confirmed reservation to CANCELLED.  The
// reservation row is locked for the duration of the check and update.
func (e *Engine) CancelReservation(ctx context.Context, reservationID uint64, actor policy.Actor, reason model.CancellationReason) (*model.Reservation, error) {
	now := e.clock.Now()

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	r, err := tx.GetReservationForUpdate(ctx, reservationID)
	if err != nil {
		return nil, storageErr("load reservation", err)
	}
	if r == nil {
		return nil, apperror.NotFound("Reservation not found")
	}
	if err := e.cancel.Check(*r, actor, reason, now); err != nil {
		return nil, err
	}
	if err := tx.CancelReservation(ctx, r.ID, reason, now); err != nil {
		return nil, storageErr("cancel reservation", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit cancellation", err)
	}
	committed = true

	markCancelled(r, reason, now)
	e.log.Info("reservation cancelled",
		zap.Uint64("reservation_id", r.ID),
		zap.Uint64("acting_user_id", actor.UserID),
		zap.String("reason", string(reason)),
	)
	e.notifier.ReservationCancelled(*r)
	return r, nil
}

// StatusChange is the result of SetSpaceStatus.
type StatusChange struct {
	Space     model.Space         `json:"space"`
	Cancelled []model.Reservation `json:"cancelled"`
}

// SetSpaceStatus changes a space's status.  Entering MAINTENANCE or
// DELETED cancels every upcoming confirmed reservation of the space in
// the same transaction as the status change.
func (e *Engine) SetSpaceStatus(ctx context.Context, spaceID uint64, status model.SpaceStatus) (*StatusChange, error) {
	if !status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("Unknown space status %q", status))
	}
	now := e.clock.Now()

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	space, err := tx.LockSpace(ctx, spaceID)
	if err != nil {
		return nil, storageErr("load space", err)
	}
	if space == nil {
		return nil, apperror.NotFound("Space not found")
	}
	if space.Status == model.SpaceDeleted && status != model.SpaceDeleted {
		return nil, apperror.Validation("Space has been deleted")
	}

	change := &StatusChange{Cancelled: []model.Reservation{}}
	if reason, ok := policy.MassCancellationReason(status); ok {
		upcoming, err := tx.ListUpcomingBySpaceForUpdate(ctx, spaceID, now)
		if err != nil {
			return nil, storageErr("list upcoming reservations", err)
		}
		for i := range upcoming {
			r := upcoming[i]
			if err := tx.CancelReservation(ctx, r.ID, reason, now); err != nil {
				return nil, storageErr("cancel reservation", err)
			}
			markCancelled(&r, reason, now)
			change.Cancelled = append(change.Cancelled, r)
		}
	}
	if space.Status != status {
		if err := tx.UpdateSpaceStatus(ctx, spaceID, status); err != nil {
			return nil, storageErr("update space status", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit space status", err)
	}
	committed = true

	space.Status = status
	change.Space = *space
	e.log.Info("space status changed",
		zap.Uint64("space_id", spaceID),
		zap.String("status", string(status)),
		zap.Int("cancelled", len(change.Cancelled)),
	)
	for _, r := range change.Cancelled {
		e.notifier.ReservationCancelled(r)
	}
	return change, nil
}

// GetReservation loads one reservation.
func (e *Engine) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, err := e.store.GetReservation(ctx, id)
	if err != nil {
		return nil, storageErr("load reservation", err)
	}
	if r == nil {
		return nil, apperror.NotFound("Reservation not found")
	}
	return r, nil
}

// FindNeedingReminder returns confirmed reservations that start within
// the next windowMinutes and have not been reminded yet.
func (e *Engine) FindNeedingReminder(ctx context.Context, windowMinutes int) ([]model.Reservation, error) {
	if windowMinutes <= 0 {
		return nil, apperror.Validation("window must be a positive number of minutes")
	}
	now := e.clock.Now()
	out, err := e.store.FindNeedingReminder(ctx, now, now.Add(time.Duration(windowMinutes)*time.Minute))
	if err != nil {
		return nil, storageErr("find reminders", err)
	}
	return out, nil
}

// MarkReminderSent flags a reservation as reminded.  Repeating the call
// is harmless.
func (e *Engine) MarkReminderSent(ctx context.Context, id uint64) error {
	found, err := e.store.MarkReminderSent(ctx, id)
	if err != nil {
		return storageErr("mark reminder sent", err)
	}
	if !found {
		return apperror.NotFound("Reservation not found")
	}
	return nil
}

func markCancelled(r *model.Reservation, reason model.CancellationReason, at time.Time) {
	rsn := reason
	ts := at
	r.Status = model.StatusCancelled
	r.CancellationReason = &rsn
	r.CancelledAt = &ts
	r.UpdatedAt = at
}

// storageErr keeps engine errors produced by the store (e.g. a mapped
// deadlock) and wraps everything else as Transient.
func storageErr(msg string, err error) error {
	if apperror.KindOf(err) != apperror.KindUnknown {
		return err
	}
	return apperror.Transient(msg, err)
}
