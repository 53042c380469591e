package repositories

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"batepapo/domain"
	"batepapo/errors"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func publicMessage(from, text string) domain.Message {
	return domain.Message{
		From: from,
		To:   domain.Broadcast,
		Text: text,
		Type: domain.TypePublic,
		Time: time.Now().UTC(),
	}
}

func Test_Append_Assigns_Increasing_Sequences(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	for want := uint64(1); want <= 5; want++ {
		stored, err := repository.Append(publicMessage("Alice", "hi"))
		req.NoError(err)
		req.Equal(want, stored.Seq)
		req.NotEqual(stored.ID.String(), "00000000-0000-0000-0000-000000000000")
	}
}

func Test_Append_Rejects_Bad_Input(t *testing.T) {
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	tests := []struct {
		name    string
		message domain.Message
		want    error
	}{
		{"empty recipient", domain.Message{From: "Alice", Text: "hi", Type: domain.TypePublic}, errors.ErrEmptyField},
		{"empty text", domain.Message{From: "Alice", To: "Bob", Type: domain.TypePrivate}, errors.ErrEmptyField},
		{"empty sender", domain.Message{To: "Bob", Text: "hi", Type: domain.TypePublic}, errors.ErrEmptyField},
		{"unknown type", domain.Message{From: "Alice", To: "Bob", Text: "hi", Type: "shout"}, errors.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repository.Append(tt.message)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func Test_Recent_Returns_Chronological_Tail(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	texts := []string{"one", "two", "three", "four", "five"}
	for _, text := range texts {
		_, err := repository.Append(publicMessage("Alice", text))
		req.NoError(err)
	}

	messages, err := repository.Recent(3)
	req.NoError(err)
	req.Equal([]string{"three", "four", "five"}, lo.Map(messages, func(m domain.Message, _ int) string {
		return m.Text
	}))
	req.Equal([]uint64{3, 4, 5}, lo.Map(messages, func(m domain.Message, _ int) uint64 {
		return m.Seq
	}))
}

func Test_Recent_Larger_Limit_Than_Log(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repository.Append(publicMessage("Alice", "hi"))
	req.NoError(err)

	messages, err := repository.Recent(100)
	req.NoError(err)
	req.Len(messages, 1)
}

func Test_Recent_Rejects_Non_Positive_Limit(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repository.Recent(0)
	req.ErrorIs(err, errors.ErrInvalidLimit)

	_, err = repository.Recent(-3)
	req.ErrorIs(err, errors.ErrInvalidLimit)
}

func Test_Concurrent_Append_Distinct_Sequences(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	const appends = 20
	var wg sync.WaitGroup
	seqs := make(chan uint64, appends)

	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := repository.Append(publicMessage("Alice", "hi"))
			if err == nil {
				seqs <- stored.Seq
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[uint64]bool)
	for seq := range seqs {
		req.False(seen[seq], "sequence %d assigned twice", seq)
		seen[seq] = true
	}
	req.Len(seen, appends)
	// No gaps: every sequence in 1..appends was handed out exactly once.
	for want := uint64(1); want <= appends; want++ {
		req.True(seen[want], "sequence %d missing", want)
	}
}
