// Package reminder runs the periodic sweep that publishes a reminder for
// every confirmed reservation about to start.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/space-reservation/internal/model"
	"github.com/iliyamo/space-reservation/internal/queue"
)

// Source is the part of the engine the sweep needs.
type Source interface {
	FindNeedingReminder(ctx context.Context, windowMinutes int) ([]model.Reservation, error)
	MarkReminderSent(ctx context.Context, id uint64) error
}

// Publisher sends one event.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Claimer grants a short exclusive claim on a key so that overlapping
// sweeps (several worker replicas, or a slow sweep overrun by the next
// tick) do not send the same reminder twice.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisClaimer implements Claimer with SET NX.
type RedisClaimer struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisClaimer(rdb redis.Cmdable, prefix string) *RedisClaimer {
	return &RedisClaimer{rdb: rdb, prefix: prefix}
}

func (c *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, c.prefix+key, time.Now().UTC().Unix(), ttl).Result()
}

func (c *RedisClaimer) Release(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}

// Sweeper finds due reservations, publishes a reminder for each and then
// flags it as reminded.  Delivery is at-least-once: a crash between
// publish and flag repeats the reminder on a later sweep once the claim
// expires.
type Sweeper struct {
	source   Source
	pub      Publisher
	claimer  Claimer // optional
	window   int
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewSweeper returns a sweeper looking windowMinutes ahead every
// interval.  claimer may be nil.
func NewSweeper(source Source, pub Publisher, claimer Claimer, windowMinutes int, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		source:   source,
		pub:      pub,
		claimer:  claimer,
		window:   windowMinutes,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func claimKey(id uint64) string { return fmt.Sprintf("reminder:%d", id) }

// Sweep runs once and returns how many reminders were published.
// Per-reservation failures are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	due, err := s.source.FindNeedingReminder(ctx, s.window)
	if err != nil {
		return 0, err
	}
	ttl := time.Duration(s.window) * time.Minute
	sent := 0
	for _, r := range due {
		key := claimKey(r.ID)
		if s.claimer != nil {
			ok, err := s.claimer.Claim(ctx, key, ttl)
			if err != nil {
				s.log.Warn("reminder claim failed, sending unclaimed", zap.Uint64("reservation_id", r.ID), zap.Error(err))
			} else if !ok {
				s.log.Debug("reminder already claimed", zap.Uint64("reservation_id", r.ID))
				continue
			}
		}

		ev := queue.NewEvent(queue.EventReminder, r, s.now())
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.log.Error("reminder publish failed", zap.Uint64("reservation_id", r.ID), zap.Error(err))
			if s.claimer != nil {
				_ = s.claimer.Release(ctx, key)
			}
			continue
		}
		if err := s.source.MarkReminderSent(ctx, r.ID); err != nil {
			// the claim outlives this sweep and prevents an immediate resend
			s.log.Error("mark reminder sent failed", zap.Uint64("reservation_id", r.ID), zap.Error(err))
		}
		sent++
	}
	return sent, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.log.Error("reminder sweep failed", zap.Error(err))
		} else if n > 0 {
			s.log.Info("reminders sent", zap.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
