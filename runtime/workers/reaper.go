package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"batepapo/domain"
	"batepapo/repositories"
)

const LeftTheRoom = "left the room"

// ReaperWorker periodically evicts users that stopped heartbeating and
// appends a synthetic "left the room" status message for each eviction.
//
// Each sweep works from a point-in-time snapshot and evicts with an
// optimistic lastSeen check, so a user that heartbeat-renewed between the
// snapshot and the delete survives and gets no message. Eviction is
// authoritative; the status append is best effort: if it fails the user
// stays evicted and the failure is reported, never retried.
type ReaperWorker struct {
	log        *slog.Logger
	users      repositories.IUserRepository
	messages   repositories.IMessageRepository
	tick       time.Duration
	staleAfter time.Duration
	now        func() time.Time
	report     func(error)
}

// NewReaperWorker builds a reaper. report receives every sweep failure so
// they stay observable; nil falls back to logging at error level.
func NewReaperWorker(
	log *slog.Logger,
	users repositories.IUserRepository,
	messages repositories.IMessageRepository,
	tick time.Duration,
	staleAfter time.Duration,
	report func(error),
) *ReaperWorker {
	if report == nil {
		report = func(err error) {
			log.Error("Sweep failure", "err", err)
		}
	}
	return &ReaperWorker{
		log:        log,
		users:      users,
		messages:   messages,
		tick:       tick,
		staleAfter: staleAfter,
		now:        time.Now,
		report:     report,
	}
}

// Run executes the main loop of the worker, sweeping stale users on every tick.
func (w *ReaperWorker) Run(ctx context.Context) error {
	w.log.Info("Starting presence reaper", "tick", w.tick, "staleAfter", w.staleAfter)
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *ReaperWorker) sweep() {
	users, err := w.users.Snapshot()
	if err != nil {
		w.report(fmt.Errorf("presence snapshot: %w", err))
		return
	}

	now := w.now()
	for _, user := range users {
		if !user.Stale(now, w.staleAfter) {
			continue
		}

		evicted, err := w.users.EvictIfStale(user.Name, user.LastSeen)
		if err != nil {
			w.report(fmt.Errorf("evict %s: %w", user.Name, err))
			continue
		}
		if !evicted {
			// Heartbeat renewed between the snapshot and the delete.
			continue
		}

		w.log.Info("Evicted inactive user", "name", user.Name)

		if _, err := w.messages.Append(domain.Message{
			From: user.Name,
			To:   domain.Broadcast,
			Text: LeftTheRoom,
			Type: domain.TypeStatus,
			Time: now,
		}); err != nil {
			// The user stays evicted; only the status feed loses out.
			w.report(fmt.Errorf("left status for %s: %w", user.Name, err))
		}
	}
}
