package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"batepapo/domain"
	"batepapo/errors"
	"batepapo/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestRepos(t *testing.T) (*repositories.UserRepository, *repositories.MessageRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewUserRepository(db, slog.Default()), repositories.NewMessageRepository(db, slog.Default())
}

func Test_Sweep_Evicts_Stale_User(t *testing.T) {
	req := require.New(t)
	users, messages := newTestRepos(t)

	joined := time.Now().UTC()
	_, err := users.Create("Alice", joined)
	req.NoError(err)

	reaper := NewReaperWorker(slog.Default(), users, messages, time.Second, 10*time.Second, nil)
	reaper.now = func() time.Time { return joined.Add(11 * time.Second) }

	reaper.sweep()

	_, err = users.Get("Alice")
	req.ErrorIs(err, errors.ErrUserNotFound)

	log, err := messages.Recent(10)
	req.NoError(err)
	req.Len(log, 1)
	req.Equal("Alice", log[0].From)
	req.Equal(domain.Broadcast, log[0].To)
	req.Equal(LeftTheRoom, log[0].Text)
	req.Equal(domain.TypeStatus, log[0].Type)
}

func Test_Sweep_Spares_Active_User(t *testing.T) {
	req := require.New(t)
	users, messages := newTestRepos(t)

	joined := time.Now().UTC()
	_, err := users.Create("Alice", joined)
	req.NoError(err)

	reaper := NewReaperWorker(slog.Default(), users, messages, time.Second, 10*time.Second, nil)
	reaper.now = func() time.Time { return joined.Add(9 * time.Second) }

	reaper.sweep()

	_, err = users.Get("Alice")
	req.NoError(err)

	log, err := messages.Recent(10)
	req.NoError(err)
	req.Empty(log)
}

func Test_Sweep_Evicts_Exactly_Once(t *testing.T) {
	req := require.New(t)
	users, messages := newTestRepos(t)

	joined := time.Now().UTC()
	_, err := users.Create("Alice", joined)
	req.NoError(err)

	reaper := NewReaperWorker(slog.Default(), users, messages, time.Second, 10*time.Second, nil)
	reaper.now = func() time.Time { return joined.Add(time.Minute) }

	// A second pass over an already-evicted user must not append another message.
	reaper.sweep()
	reaper.sweep()

	log, err := messages.Recent(10)
	req.NoError(err)
	req.Len(log, 1)
}

func Test_Sweep_Heartbeat_Prevents_Eviction(t *testing.T) {
	req := require.New(t)
	users, messages := newTestRepos(t)

	joined := time.Now().UTC()
	_, err := users.Create("Alice", joined)
	req.NoError(err)

	// Alice renews just before the threshold elapses.
	renewed := joined.Add(9 * time.Second)
	req.NoError(users.Touch("Alice", renewed))

	reaper := NewReaperWorker(slog.Default(), users, messages, time.Second, 10*time.Second, nil)
	reaper.now = func() time.Time { return joined.Add(11 * time.Second) }

	reaper.sweep()

	_, err = users.Get("Alice")
	req.NoError(err)
}

func Test_Reaper_Run_Loop(t *testing.T) {
	req := require.New(t)
	users, messages := newTestRepos(t)

	_, err := users.Create("Alice", time.Now().Add(-time.Minute))
	req.NoError(err)

	reaper := NewReaperWorker(slog.Default(), users, messages, 10*time.Millisecond, 10*time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = reaper.Run(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)

	remaining, err := users.Snapshot()
	req.NoError(err)
	req.Empty(remaining)
}
