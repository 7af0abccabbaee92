// Package ratelimit implements the shared quota ledger for the completion
// client. The ledger is the single arbiter of outbound quota: every request
// takes a reservation before sending and resolves it exactly once, by commit
// (with the server-reported actual usage) or by cancel. Reservation lifecycle
// is an explicit state machine so no exit path can leak capacity.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Config caps the three quota dimensions. A zero or negative limit disables
// that dimension.
type Config struct {
	RequestsPerMinute int
	TokensPerMinute   int
	TokensPerDay      int
}

// Reservation is a provisional hold against the ledger. It stays open until
// the owning request commits it with actual usage or cancels it.
type Reservation struct {
	ID              uuid.UUID
	EstimatedTokens int64
	Tag             string
	CreatedAt       time.Time
}

type window struct {
	start time.Time
	used  int64
}

// Ledger serializes reservation accounting across concurrent pipelines.
type Ledger struct {
	cfg    Config
	rpm    *rate.Limiter
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	minute      window
	day         window
	outstanding int64
	open        map[uuid.UUID]*Reservation
	freed       chan struct{}
}

func NewLedger(cfg Config, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		open:   make(map[uuid.UUID]*Reservation),
		freed:  make(chan struct{}),
	}
	if cfg.RequestsPerMinute > 0 {
		l.rpm = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	return l
}

// Reserve blocks until the estimated token cost fits within the minute and
// day windows (and a request slot frees up), or the context is done.
func (l *Ledger) Reserve(ctx context.Context, estimatedTokens int64, tag string) (*Reservation, error) {
	if estimatedTokens < 0 {
		estimatedTokens = 0
	}
	if l.rpm != nil {
		if err := l.rpm.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request slot: %w", err)
		}
	}

	waited := time.Duration(0)
	for {
		l.mu.Lock()
		l.roll()
		if l.fits(estimatedTokens) {
			res := &Reservation{
				ID:              uuid.New(),
				EstimatedTokens: estimatedTokens,
				Tag:             tag,
				CreatedAt:       l.now(),
			}
			l.open[res.ID] = res
			l.outstanding += estimatedTokens
			l.mu.Unlock()

			if waited > 0 {
				l.logger.Info("ratelimit.reserve.waited",
					"tag", tag, "estimated_tokens", estimatedTokens,
					"waited_ms", waited.Milliseconds())
			}
			return res, nil
		}
		wait := l.nextRelief(estimatedTokens)
		freed := l.freed
		l.mu.Unlock()

		l.logger.Debug("ratelimit.reserve.blocked",
			"tag", tag, "estimated_tokens", estimatedTokens, "wait_ms", wait.Milliseconds())

		start := l.now()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		case <-freed:
			timer.Stop()
		}
		waited += l.now().Sub(start)
	}
}

// Commit resolves the reservation with the actual token usage reported by
// the server, replacing the estimate in window accounting. A reservation can
// be resolved only once.
func (l *Ledger) Commit(id uuid.UUID, promptTokens, completionTokens int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.open[id]
	if !ok {
		return fmt.Errorf("reservation %s already resolved", id)
	}
	delete(l.open, id)
	l.outstanding -= res.EstimatedTokens

	l.roll()
	actual := promptTokens + completionTokens
	if actual < 0 {
		actual = 0
	}
	l.minute.used += actual
	l.day.used += actual
	l.broadcast()
	return nil
}

// Cancel resolves the reservation without charging any quota.
func (l *Ledger) Cancel(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.open[id]
	if !ok {
		return fmt.Errorf("reservation %s already resolved", id)
	}
	delete(l.open, id)
	l.outstanding -= res.EstimatedTokens
	l.broadcast()
	return nil
}

// broadcast wakes blocked Reserve calls after capacity is released. Called
// with the mutex held.
func (l *Ledger) broadcast() {
	close(l.freed)
	l.freed = make(chan struct{})
}

// Snapshot is a consistent view of the ledger for logging and tests.
type Snapshot struct {
	UsedMinute       int64
	UsedDay          int64
	Outstanding      int64
	OpenReservations int
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll()
	return Snapshot{
		UsedMinute:       l.minute.used,
		UsedDay:          l.day.used,
		Outstanding:      l.outstanding,
		OpenReservations: len(l.open),
	}
}

// fits is called with the mutex held. An estimate larger than a whole window
// is admitted only against an empty window, so oversized requests degrade to
// serialized sends instead of deadlocking.
func (l *Ledger) fits(estimate int64) bool {
	if l.cfg.TokensPerMinute > 0 {
		committed := l.minute.used + l.outstanding
		if committed+estimate > int64(l.cfg.TokensPerMinute) && committed > 0 {
			return false
		}
	}
	if l.cfg.TokensPerDay > 0 {
		committed := l.day.used + l.outstanding
		if committed+estimate > int64(l.cfg.TokensPerDay) && committed > 0 {
			return false
		}
	}
	return true
}

// roll resets expired windows. Called with the mutex held.
func (l *Ledger) roll() {
	now := l.now()
	if l.minute.start.IsZero() || now.Sub(l.minute.start) >= time.Minute {
		l.minute = window{start: now}
	}
	if l.day.start.IsZero() || now.Sub(l.day.start) >= 24*time.Hour {
		l.day = window{start: now}
	}
}

// nextRelief picks how long to sleep before re-checking capacity. Called
// with the mutex held.
func (l *Ledger) nextRelief(estimate int64) time.Duration {
	now := l.now()
	wait := time.Minute

	if l.cfg.TokensPerMinute > 0 {
		if d := l.minute.start.Add(time.Minute).Sub(now); d > 0 && d < wait {
			wait = d
		}
	}
	if l.cfg.TokensPerDay > 0 && l.day.used+l.outstanding+estimate > int64(l.cfg.TokensPerDay) {
		if d := l.day.start.Add(24 * time.Hour).Sub(now); d > 0 && d < wait {
			wait = d
		}
	}
	if wait < 50*time.Millisecond {
		wait = 50 * time.Millisecond
	}
	return wait
}
