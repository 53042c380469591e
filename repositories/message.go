package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"batepapo/domain"
	"batepapo/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Append(message domain.Message) (domain.Message, error)
	Recent(limit int) ([]domain.Message, error)
}

// MessageRepository is the append-only, globally ordered message log.
// The key is formatted as "msg:{seq_padded}" so that 19-digit zero padding
// makes lexicographical key order equal sequence order. The sequence counter
// is the sole ordering authority; message wall-clock time is display only.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	// mu serializes Append: the counter read, its increment and the message
	// write commit as one transaction, so concurrent appends never observe
	// the same sequence and the log has no gaps.
	mu sync.Mutex
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// storedMessage is the on-disk shape. At is unix nanoseconds.
type storedMessage struct {
	ID   string `json:"id"`
	Seq  uint64 `json:"seq"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	At   int64  `json:"at"`
}

const (
	messagePrefix = "msg:"
	// seqKey sorts outside the messagePrefix range, so prefix scans skip it.
	seqKey = "msg_seq"
)

func messageKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%019d", messagePrefix, seq))
}

// Append validates the message, assigns the next sequence number and an ID,
// and persists it. Counter and message are written in the same transaction.
func (m *MessageRepository) Append(message domain.Message) (domain.Message, error) {
	if message.From == "" || message.To == "" || message.Text == "" {
		return domain.Message{}, errors.ErrEmptyField
	}
	if !message.Type.Known() {
		return domain.Message{}, errors.ErrInvalidType
	}

	message.ID = uuid.New()

	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.db.Update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn)
		if err != nil {
			return err
		}
		message.Seq = seq

		data, err := json.Marshal(fromMessage(message))
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		if err := txn.Set([]byte(seqKey), []byte(strconv.FormatUint(seq, 10))); err != nil {
			return err
		}
		return txn.Set(messageKey(seq), data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(seqKey))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	var current uint64
	if err := item.Value(func(val []byte) error {
		current, err = strconv.ParseUint(string(val), 10, 64)
		return err
	}); err != nil {
		return 0, err
	}
	return current + 1, nil
}

// Recent returns the limit most recent messages in chronological order.
// It walks the log backwards from the highest possible key, collects up to
// limit rows, then reverses them. The limit must be positive; a missing or
// defaulted limit is the transport's business, never this store's.
func (m *MessageRepository) Recent(limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, errors.ErrInvalidLimit
	}

	var rows [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		// Seek past the newest possible key, then walk backwards.
		seekKey := append([]byte(messagePrefix), []byte("9999999999999999999")...)

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(rows) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rows = append(rows, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(rows))
	// rows are newest first; fill the result oldest first.
	for i := len(rows) - 1; i >= 0; i-- {
		var stored storedMessage
		if err := json.Unmarshal(rows[i], &stored); err != nil {
			return nil, err
		}
		message, err := toMessage(stored)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func fromMessage(message domain.Message) storedMessage {
	return storedMessage{
		ID:   message.ID.String(),
		Seq:  message.Seq,
		From: message.From,
		To:   message.To,
		Text: message.Text,
		Type: string(message.Type),
		At:   message.Time.UnixNano(),
	}
}

func toMessage(stored storedMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:   parsedID,
		Seq:  stored.Seq,
		From: stored.From,
		To:   stored.To,
		Text: stored.Text,
		Type: domain.MessageType(stored.Type),
		Time: time.Unix(0, stored.At).UTC(),
	}, nil
}
