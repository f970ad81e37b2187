package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/space-reservation/internal/apperror"
	"github.com/iliyamo/space-reservation/internal/eligibility"
	"github.com/iliyamo/space-reservation/internal/engine"
	"github.com/iliyamo/space-reservation/internal/localtime"
	"github.com/iliyamo/space-reservation/internal/memstore"
	"github.com/iliyamo/space-reservation/internal/model"
	"github.com/iliyamo/space-reservation/internal/policy"
)

// Monday 2026-03-02 09:00 in Seoul.
var now = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recorder struct {
	mu        sync.Mutex
	created   []model.Reservation
	cancelled []model.Reservation
}

func (r *recorder) ReservationCreated(res model.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, res)
}

func (r *recorder) ReservationCancelled(res model.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, res)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created), len(r.cancelled)
}

func testSpace(id uint64) model.Space {
	return model.Space{
		ID:       id,
		Name:     fmt.Sprintf("Room %d", id),
		Capacity: 6,
		Status:   model.SpaceAvailable,
		Hours: model.OperatingHours{
			Weekday: &model.ClockRange{StartMinute: 9 * 60, EndMinute: 22 * 60},
			Weekend: &model.ClockRange{StartMinute: 10 * 60, EndMinute: 18 * 60},
		},
	}
}

func setup(t *testing.T, opts ...engine.Option) (*engine.Engine, *memstore.Store, *recorder) {
	t.Helper()
	tz, err := localtime.Load("Asia/Seoul")
	if err != nil {
		t.Fatal(err)
	}
	store := memstore.New()
	store.PutSpace(testSpace(1))
	store.PutSpace(testSpace(2))
	rec := &recorder{}
	opts = append([]engine.Option{engine.WithClock(fixedClock{now}), engine.WithNotifier(rec)}, opts...)
	return engine.New(store, tz, engine.DefaultConfig(), opts...), store, rec
}

func request(spaceID uint64, start, end string) eligibility.Request {
	return eligibility.Request{
		SpaceID:   json.Number(strconv.FormatUint(spaceID, 10)),
		StartTime: start,
		EndTime:   end,
	}
}

// Tuesday 10:00-11:00 Seoul.
var tuesdayTen = request(1, "2026-03-03T10:00:00+09:00", "2026-03-03T11:00:00+09:00")

func TestCreateReservation(t *testing.T) {
	eng, _, rec := setup(t)

	r, err := eng.CreateReservation(context.Background(), 42, tuesdayTen)
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if r.ID == 0 || r.Status != model.StatusConfirmed || r.UserID != 42 || r.SpaceID != 1 {
		t.Errorf("unexpected reservation %+v", r)
	}
	if !strings.HasPrefix(r.ConfirmationCode, "RSV-") || len(r.ConfirmationCode) != 12 {
		t.Errorf("confirmation code %q", r.ConfirmationCode)
	}
	if want := time.Date(2026, 3, 3, 1, 0, 0, 0, time.UTC); !r.StartAt.Equal(want) {
		t.Errorf("StartAt = %v, want %v", r.StartAt, want)
	}
	if created, _ := rec.counts(); created != 1 {
		t.Errorf("created notifications = %d, want 1", created)
	}

	got, err := eng.GetReservation(context.Background(), r.ID)
	if err != nil || got.ConfirmationCode != r.ConfirmationCode {
		t.Errorf("GetReservation = %+v, %v", got, err)
	}
}

func TestCreateReservationRejections(t *testing.T) {
	tests := []struct {
		name    string
		seed    func(*memstore.Store)
		userID  uint64
		req     eligibility.Request
		want    apperror.Kind
		message string
	}{
		{
			name:    "invalid request",
			userID:  1,
			req:     request(1, "2026-03-03T10:00:00+09:00", "2026-03-03T10:30:00+09:00"),
			want:    apperror.KindValidation,
			message: "Booking must be at least 60 minutes",
		},
		{
			name:    "unknown space",
			userID:  1,
			req:     request(99, "2026-03-03T10:00:00+09:00", "2026-03-03T11:00:00+09:00"),
			want:    apperror.KindNotFound,
			message: "Space not found",
		},
		{
			name: "space in maintenance",
			seed: func(s *memstore.Store) {
				sp := testSpace(1)
				sp.Status = model.SpaceMaintenance
				s.PutSpace(sp)
			},
			userID:  1,
			req:     tuesdayTen,
			want:    apperror.KindConflict,
			message: "Space is not available",
		},
		{
			name:    "before opening",
			userID:  1,
			req:     request(1, "2026-03-03T08:00:00+09:00", "2026-03-03T09:30:00+09:00"),
			want:    apperror.KindValidation,
			message: "Space opens at 09:00",
		},
		{
			name:    "closed weekend evening",
			userID:  1,
			req:     request(1, "2026-03-07T17:00:00+09:00", "2026-03-07T19:00:00+09:00"),
			want:    apperror.KindValidation,
			message: "Space closes at 18:00",
		},
		{
			name:   "too many attendees",
			userID: 1,
			req: func() eligibility.Request {
				r := tuesdayTen
				n := json.Number("7")
				r.AttendeeCount = &n
				return r
			}(),
			want:    apperror.KindValidation,
			message: "Attendee count exceeds the space capacity of 6",
		},
		{
			name:   "attendee count beyond 32 bits",
			userID: 1,
			req: func() eligibility.Request {
				r := tuesdayTen
				n := json.Number("4294967297")
				r.AttendeeCount = &n
				return r
			}(),
			want:    apperror.KindValidation,
			message: "attendee_count must be a positive integer",
		},
		{
			name: "space already booked",
			seed: func(s *memstore.Store) {
				s.PutReservation(model.Reservation{
					SpaceID: 1, UserID: 2, Status: model.StatusConfirmed, ConfirmationCode: "RSV-TAKEN001",
					StartAt: time.Date(2026, 3, 3, 1, 30, 0, 0, time.UTC),
					EndAt:   time.Date(2026, 3, 3, 2, 30, 0, 0, time.UTC),
				})
			},
			userID:  1,
			req:     tuesdayTen,
			want:    apperror.KindConflict,
			message: "Space is already booked at this time",
		},
		{
			name: "user overlaps on another space",
			seed: func(s *memstore.Store) {
				s.PutReservation(model.Reservation{
					SpaceID: 2, UserID: 1, Status: model.StatusConfirmed, ConfirmationCode: "RSV-OTHER001",
					StartAt: time.Date(2026, 3, 3, 0, 30, 0, 0, time.UTC),
					EndAt:   time.Date(2026, 3, 3, 1, 30, 0, 0, time.UTC),
				})
			},
			userID:  1,
			req:     tuesdayTen,
			want:    apperror.KindConflict,
			message: "You already have a booking that overlaps this time",
		},
		{
			name: "active booking cap",
			seed: func(s *memstore.Store) {
				for i := 0; i < 5; i++ {
					start := time.Date(2026, 3, 4+i, 1, 0, 0, 0, time.UTC)
					s.PutReservation(model.Reservation{
						SpaceID: 2, UserID: 1, Status: model.StatusConfirmed,
						ConfirmationCode: fmt.Sprintf("RSV-CAP%05d", i),
						StartAt:          start, EndAt: start.Add(time.Hour),
					})
				}
			},
			userID:  1,
			req:     tuesdayTen,
			want:    apperror.KindLimitExceeded,
			message: "Maximum active bookings reached",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, store, rec := setup(t)
			if tt.seed != nil {
				tt.seed(store)
			}
			before := len(store.Reservations())
			_, err := eng.CreateReservation(context.Background(), tt.userID, tt.req)
			if got := apperror.KindOf(err); got != tt.want {
				t.Fatalf("kind = %v (%v), want %v", got, err, tt.want)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not mention %q", err, tt.message)
			}
			if after := len(store.Reservations()); after != before {
				t.Errorf("reservation count changed %d -> %d", before, after)
			}
			if created, _ := rec.counts(); created != 0 {
				t.Errorf("notified %d creations on failure", created)
			}
		})
	}
}

func TestCreateReservationCapIgnoresFinishedBookings(t *testing.T) {
	eng, store, _ := setup(t)
	for i := 0; i < 4; i++ {
		start := time.Date(2026, 3, 4+i, 1, 0, 0, 0, time.UTC)
		store.PutReservation(model.Reservation{
			SpaceID: 2, UserID: 1, Status: model.StatusConfirmed,
			ConfirmationCode: fmt.Sprintf("RSV-ACT%05d", i),
			StartAt:          start, EndAt: start.Add(time.Hour),
		})
	}
	start := time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC)
	store.PutReservation(model.Reservation{
		SpaceID: 2, UserID: 1, Status: model.StatusCancelled, ConfirmationCode: "RSV-CANC0001",
		StartAt: start, EndAt: start.Add(time.Hour),
	})
	past := now.Add(-48 * time.Hour)
	store.PutReservation(model.Reservation{
		SpaceID: 2, UserID: 1, Status: model.StatusConfirmed, ConfirmationCode: "RSV-PAST0001",
		StartAt: past, EndAt: past.Add(time.Hour),
	})

	if _, err := eng.CreateReservation(context.Background(), 1, tuesdayTen); err != nil {
		t.Fatalf("fifth active booking rejected: %v", err)
	}
	if _, err := eng.CreateReservation(context.Background(), 1,
		request(1, "2026-03-03T14:00:00+09:00", "2026-03-03T15:00:00+09:00")); !apperror.Is(err, apperror.KindLimitExceeded) {
		t.Errorf("sixth active booking: %v, want LimitExceeded", err)
	}
}

func TestCreateReservationAdjacentBookingsAllowed(t *testing.T) {
	eng, _, _ := setup(t)
	ctx := context.Background()
	if _, err := eng.CreateReservation(ctx, 1, tuesdayTen); err != nil {
		t.Fatal(err)
	}
	next := request(1, "2026-03-03T11:00:00+09:00", "2026-03-03T12:00:00+09:00")
	if _, err := eng.CreateReservation(ctx, 2, next); err != nil {
		t.Errorf("touching interval rejected: %v", err)
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	eng, store, _ := setup(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.CreateReservation(context.Background(), uint64(100+i), tuesdayTen)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperror.Is(err, apperror.KindConflict):
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d concurrent creates succeeded, want 1", wins)
	}
	if got := len(store.Reservations()); got != 1 {
		t.Errorf("stored %d reservations, want 1", got)
	}
}

func TestConcurrentCreateSameUserRespectsCap(t *testing.T) {
	eng, store, _ := setup(t)

	// 8 disjoint slots on Tuesday for one user; only 5 may land.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := fmt.Sprintf("2026-03-03T%02d:00:00+09:00", 9+i)
			end := fmt.Sprintf("2026-03-03T%02d:00:00+09:00", 10+i)
			_, _ = eng.CreateReservation(context.Background(), 7, request(1, start, end))
		}(i)
	}
	wg.Wait()
	if got := len(store.Reservations()); got != 5 {
		t.Errorf("stored %d reservations for one user, want 5", got)
	}
}

func TestConfirmationCodesUniqueDespiteCollisions(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	// every code is handed out twice in a row
	gen := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := fmt.Sprintf("RSV-%08d", calls/2)
		calls++
		return code, nil
	}
	eng, store, _ := setup(t, engine.WithCodeGenerator(gen))
	for id := uint64(3); id <= 10; id++ {
		store.PutSpace(testSpace(id))
	}

	var wg sync.WaitGroup
	for id := uint64(1); id <= 10; id++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			req := request(id, "2026-03-03T10:00:00+09:00", "2026-03-03T11:00:00+09:00")
			if _, err := eng.CreateReservation(context.Background(), 1000+id, req); err != nil {
				t.Errorf("space %d: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range store.Reservations() {
		if seen[r.ConfirmationCode] {
			t.Errorf("duplicate confirmation code %s", r.ConfirmationCode)
		}
		seen[r.ConfirmationCode] = true
	}
	if len(seen) != 10 {
		t.Errorf("%d reservations stored, want 10", len(seen))
	}
}

func TestConfirmationCodeExhaustion(t *testing.T) {
	gen := func() (string, error) { return "RSV-SAMECODE", nil }
	eng, _, _ := setup(t, engine.WithCodeGenerator(gen))
	ctx := context.Background()
	if _, err := eng.CreateReservation(ctx, 1, tuesdayTen); err != nil {
		t.Fatal(err)
	}
	_, err := eng.CreateReservation(ctx, 2, request(2, "2026-03-03T10:00:00+09:00", "2026-03-03T11:00:00+09:00"))
	if !apperror.Is(err, apperror.KindConflict) {
		t.Errorf("err = %v, want Conflict", err)
	}
}

func TestCancelReservation(t *testing.T) {
	ctx := context.Background()
	seed := func(store *memstore.Store, userID uint64, start time.Time, status model.ReservationStatus) uint64 {
		r := store.PutReservation(model.Reservation{
			SpaceID: 1, UserID: userID, Status: status,
			ConfirmationCode: fmt.Sprintf("RSV-C%07d", start.Unix()%10000000),
			StartAt:          start, EndAt: start.Add(time.Hour),
		})
		return r.ID
	}
	tests := []struct {
		name   string
		start  time.Time
		status model.ReservationStatus
		actor  policy.Actor
		reason model.CancellationReason
		want   apperror.Kind
	}{
		{"owner well ahead", now.Add(24 * time.Hour), model.StatusConfirmed, policy.Actor{UserID: 5}, model.ReasonUserRequested, apperror.KindUnknown},
		{"owner at grace boundary", now.Add(time.Hour), model.StatusConfirmed, policy.Actor{UserID: 5}, model.ReasonUserRequested, apperror.KindUnknown},
		{"owner inside grace", now.Add(30 * time.Minute), model.StatusConfirmed, policy.Actor{UserID: 5}, model.ReasonUserRequested, apperror.KindValidation},
		{"another user", now.Add(24 * time.Hour), model.StatusConfirmed, policy.Actor{UserID: 6}, model.ReasonUserRequested, apperror.KindUnauthorized},
		{"already cancelled", now.Add(24 * time.Hour), model.StatusCancelled, policy.Actor{UserID: 5}, model.ReasonUserRequested, apperror.KindValidation},
		{"admin inside grace", now.Add(10 * time.Minute), model.StatusConfirmed, policy.Actor{UserID: 1, Elevated: true}, model.ReasonAdministrative, apperror.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, store, rec := setup(t)
			id := seed(store, 5, tt.start, tt.status)

			r, err := eng.CancelReservation(ctx, id, tt.actor, tt.reason)
			if got := apperror.KindOf(err); got != tt.want {
				t.Fatalf("kind = %v (%v), want %v", got, err, tt.want)
			}
			stored, _ := store.GetReservation(ctx, id)
			_, cancelled := rec.counts()
			if tt.want != apperror.KindUnknown {
				if stored.Status != tt.status {
					t.Errorf("status changed to %s on rejected cancel", stored.Status)
				}
				if cancelled != 0 {
					t.Errorf("notified %d cancellations on failure", cancelled)
				}
				return
			}
			if r.Status != model.StatusCancelled || stored.Status != model.StatusCancelled {
				t.Errorf("status = %s / stored %s", r.Status, stored.Status)
			}
			if stored.CancellationReason == nil || *stored.CancellationReason != tt.reason {
				t.Errorf("reason = %v, want %s", stored.CancellationReason, tt.reason)
			}
			if stored.CancelledAt == nil || !stored.CancelledAt.Equal(now) {
				t.Errorf("cancelled_at = %v", stored.CancelledAt)
			}
			if cancelled != 1 {
				t.Errorf("cancellation notifications = %d, want 1", cancelled)
			}
		})
	}
}

func TestCancelReservationNotFound(t *testing.T) {
	eng, _, _ := setup(t)
	_, err := eng.CancelReservation(context.Background(), 404, policy.Actor{UserID: 1}, model.ReasonUserRequested)
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	eng, _, _ := setup(t)
	ctx := context.Background()
	r, err := eng.CreateReservation(ctx, 1, tuesdayTen)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.CancelReservation(ctx, r.ID, policy.Actor{UserID: 1}, model.ReasonUserRequested); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.CreateReservation(ctx, 2, tuesdayTen); err != nil {
		t.Errorf("rebooking cancelled slot: %v", err)
	}
}

func TestSetSpaceStatusMaintenanceCascade(t *testing.T) {
	eng, store, rec := setup(t)
	ctx := context.Background()

	var upcoming []uint64
	for i := 0; i < 3; i++ {
		start := now.Add(time.Duration(24*(i+1)) * time.Hour)
		r := store.PutReservation(model.Reservation{
			SpaceID: 1, UserID: uint64(10 + i), Status: model.StatusConfirmed,
			ConfirmationCode: fmt.Sprintf("RSV-MNT%05d", i),
			StartAt:          start, EndAt: start.Add(time.Hour),
		})
		upcoming = append(upcoming, r.ID)
	}
	past := store.PutReservation(model.Reservation{
		SpaceID: 1, UserID: 20, Status: model.StatusConfirmed, ConfirmationCode: "RSV-PAST0002",
		StartAt: now.Add(-3 * time.Hour), EndAt: now.Add(-2 * time.Hour),
	})
	other := store.PutReservation(model.Reservation{
		SpaceID: 2, UserID: 21, Status: model.StatusConfirmed, ConfirmationCode: "RSV-OTHR0002",
		StartAt: now.Add(24 * time.Hour), EndAt: now.Add(25 * time.Hour),
	})

	change, err := eng.SetSpaceStatus(ctx, 1, model.SpaceMaintenance)
	if err != nil {
		t.Fatalf("SetSpaceStatus: %v", err)
	}
	if change.Space.Status != model.SpaceMaintenance {
		t.Errorf("space status = %s", change.Space.Status)
	}
	if len(change.Cancelled) != 3 {
		t.Fatalf("cancelled %d reservations, want 3", len(change.Cancelled))
	}
	for _, id := range upcoming {
		r, _ := store.GetReservation(ctx, id)
		if r.Status != model.StatusCancelled || r.CancellationReason == nil || *r.CancellationReason != model.ReasonSpaceMaintenance {
			t.Errorf("reservation %d = %s/%v, want CANCELLED/SPACE_MAINTENANCE", id, r.Status, r.CancellationReason)
		}
	}
	for _, id := range []uint64{past.ID, other.ID} {
		if r, _ := store.GetReservation(ctx, id); r.Status != model.StatusConfirmed {
			t.Errorf("reservation %d should be untouched, got %s", id, r.Status)
		}
	}
	if _, cancelled := rec.counts(); cancelled != 3 {
		t.Errorf("cancellation notifications = %d, want 3", cancelled)
	}

	days, err := eng.ComputeRange(ctx, 1, "2026-03-03", "2026-03-03")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range days[0].Slots {
		if s.Available {
			t.Fatalf("slot %s-%s available during maintenance", s.Start, s.End)
		}
	}
	if _, err := eng.CreateReservation(ctx, 1, tuesdayTen); !apperror.Is(err, apperror.KindConflict) {
		t.Errorf("create during maintenance: %v, want Conflict", err)
	}
}

func TestSetSpaceStatusDelete(t *testing.T) {
	eng, store, _ := setup(t)
	ctx := context.Background()
	start := now.Add(24 * time.Hour)
	r := store.PutReservation(model.Reservation{
		SpaceID: 1, UserID: 3, Status: model.StatusConfirmed, ConfirmationCode: "RSV-DEL00001",
		StartAt: start, EndAt: start.Add(time.Hour),
	})

	if _, err := eng.SetSpaceStatus(ctx, 1, model.SpaceDeleted); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetReservation(ctx, r.ID)
	if got.CancellationReason == nil || *got.CancellationReason != model.ReasonAdministrative {
		t.Errorf("reason = %v, want ADMINISTRATIVE", got.CancellationReason)
	}
	if _, err := eng.SetSpaceStatus(ctx, 1, model.SpaceAvailable); !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("revive deleted space: %v, want Validation", err)
	}
	if _, err := eng.ComputeRange(ctx, 1, "2026-03-03", "2026-03-04"); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("slots of deleted space: %v, want NotFound", err)
	}
}

func TestSetSpaceStatusValidation(t *testing.T) {
	eng, _, _ := setup(t)
	ctx := context.Background()
	if _, err := eng.SetSpaceStatus(ctx, 1, "CLOSED"); !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("unknown status: %v", err)
	}
	if _, err := eng.SetSpaceStatus(ctx, 99, model.SpaceMaintenance); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("unknown space: %v", err)
	}
	change, err := eng.SetSpaceStatus(ctx, 1, model.SpaceAvailable)
	if err != nil || len(change.Cancelled) != 0 {
		t.Errorf("available -> available: %+v, %v", change, err)
	}
}

func TestComputeRange(t *testing.T) {
	eng, _, _ := setup(t)
	ctx := context.Background()
	if _, err := eng.CreateReservation(ctx, 1, tuesdayTen); err != nil {
		t.Fatal(err)
	}

	days, err := eng.ComputeRange(ctx, 1, "2026-03-02", "2026-03-08")
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 7 {
		t.Fatalf("got %d days, want 7", len(days))
	}
	tue := days[1]
	if tue.Date != "2026-03-03" {
		t.Fatalf("day[1] = %s", tue.Date)
	}
	busy := 0
	for _, s := range tue.Slots {
		if !s.Available {
			busy++
			if s.Start < "10:00" || s.End > "11:00" {
				t.Errorf("unexpected busy slot %s-%s", s.Start, s.End)
			}
		}
	}
	if busy != 4 {
		t.Errorf("busy slots = %d, want 4", busy)
	}
	if sat := days[5]; len(sat.Slots) != 32 {
		t.Errorf("Saturday slots = %d, want 32", len(sat.Slots))
	}

	tests := []struct {
		name       string
		start, end string
		want       apperror.Kind
	}{
		{"bad start", "03/02/2026", "2026-03-03", apperror.KindValidation},
		{"inverted", "2026-03-05", "2026-03-03", apperror.KindValidation},
		{"too long", "2026-03-01", "2026-06-01", apperror.KindValidation},
	}
	for _, tt := range tests {
		if _, err := eng.ComputeRange(ctx, 1, tt.start, tt.end); !apperror.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
	if _, err := eng.ComputeRange(ctx, 99, "2026-03-02", "2026-03-02"); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("unknown space: %v", err)
	}
}

func TestValidateUsesClock(t *testing.T) {
	eng, _, _ := setup(t)
	res := eng.Validate(request(1, "2026-03-01T10:00:00+09:00", "2026-03-01T11:00:00+09:00"))
	if res.Valid {
		t.Fatal("past booking reported valid")
	}
	if res.Errors[0] != "start_time must be in the future" {
		t.Errorf("errors = %v", res.Errors)
	}
	if res := eng.Validate(tuesdayTen); !res.Valid {
		t.Errorf("valid request rejected: %v", res.Errors)
	}
}

func TestReminders(t *testing.T) {
	eng, store, _ := setup(t)
	ctx := context.Background()

	put := func(code string, offset time.Duration, status model.ReservationStatus, reminded bool) uint64 {
		start := now.Add(offset)
		return store.PutReservation(model.Reservation{
			SpaceID: 1, UserID: 1, Status: status, ConfirmationCode: code, ReminderSent: reminded,
			StartAt: start, EndAt: start.Add(time.Hour),
		}).ID
	}
	due := put("RSV-REM00001", 30*time.Minute, model.StatusConfirmed, false)
	put("RSV-REM00002", 60*time.Minute, model.StatusCancelled, false)
	put("RSV-REM00003", 45*time.Minute, model.StatusConfirmed, true)
	edge := put("RSV-REM00004", 60*time.Minute, model.StatusConfirmed, false)
	put("RSV-REM00005", 61*time.Minute, model.StatusConfirmed, false)
	put("RSV-REM00006", -10*time.Minute, model.StatusConfirmed, false)

	if _, err := eng.FindNeedingReminder(ctx, 0); !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("zero window: %v", err)
	}

	got, err := eng.FindNeedingReminder(ctx, 60)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != due || got[1].ID != edge {
		t.Fatalf("FindNeedingReminder = %+v, want [%d %d]", got, due, edge)
	}

	for i := 0; i < 2; i++ {
		if err := eng.MarkReminderSent(ctx, due); err != nil {
			t.Fatalf("MarkReminderSent #%d: %v", i+1, err)
		}
	}
	got, _ = eng.FindNeedingReminder(ctx, 60)
	if len(got) != 1 || got[0].ID != edge {
		t.Errorf("after marking, FindNeedingReminder = %+v", got)
	}
	if err := eng.MarkReminderSent(ctx, 404); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("unknown reservation: %v", err)
	}
}

func TestNewConfirmationCode(t *testing.T) {
	const alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	for i := 0; i < 100; i++ {
		code, err := engine.NewConfirmationCode()
		if err != nil {
			t.Fatal(err)
		}
		body, ok := strings.CutPrefix(code, "RSV-")
		if !ok || len(body) != 8 {
			t.Fatalf("malformed code %q", code)
		}
		for _, c := range body {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("code %q uses ambiguous character %q", code, c)
			}
		}
	}
}
