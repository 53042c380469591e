package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"batepapo/domain"
	"batepapo/errors"
	"batepapo/projection"
	"batepapo/repositories"
)

const JoinedTheRoom = "joined the room"

type IRoomService interface {
	Join(ctx context.Context, name string) (domain.User, error)
	Heartbeat(ctx context.Context, name string) error
	ListUsers(ctx context.Context) ([]domain.User, error)
	PostMessage(ctx context.Context, sender, to, text string, messageType domain.MessageType) (domain.Message, error)
	ListMessages(ctx context.Context, viewer string, limit int) ([]domain.Message, error)
}

// RoomService orchestrates presence and the message log.
// It is the only entry point for the transport layer; the reaper talks to
// the repositories directly.
type RoomService struct {
	log      *slog.Logger
	users    repositories.IUserRepository
	messages repositories.IMessageRepository
	now      func() time.Time
}

func NewRoomService(log *slog.Logger, users repositories.IUserRepository, messages repositories.IMessageRepository) *RoomService {
	return &RoomService{log: log, users: users, messages: messages, now: time.Now}
}

// Join puts name in the room and announces it with a status message.
// If the announcement cannot be recorded the user is joined anyway and the
// partial outcome is surfaced as ErrStatusFeedLost, never rolled back.
func (s *RoomService) Join(ctx context.Context, name string) (domain.User, error) {
	if name == "" {
		return domain.User{}, errors.ErrEmptyField
	}

	user, err := s.users.Create(name, s.now())
	if err != nil {
		return domain.User{}, err
	}

	if _, err := s.messages.Append(domain.Message{
		From: name,
		To:   domain.Broadcast,
		Text: JoinedTheRoom,
		Type: domain.TypeStatus,
		Time: user.LastSeen,
	}); err != nil {
		s.log.Warn("User joined without status message", "name", name, "err", err)
		return user, fmt.Errorf("%w: %w", errors.ErrStatusFeedLost, err)
	}
	return user, nil
}

// Heartbeat refreshes lastSeen. An evicted user must re-Join.
func (s *RoomService) Heartbeat(ctx context.Context, name string) error {
	if name == "" {
		return errors.ErrEmptyField
	}
	return s.users.Touch(name, s.now())
}

func (s *RoomService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.Snapshot()
}

// PostMessage appends a client message. The status type is reserved for the
// system, and the sender must currently be in the room: a formerly-present
// but evicted name cannot post.
func (s *RoomService) PostMessage(ctx context.Context, sender, to, text string, messageType domain.MessageType) (domain.Message, error) {
	if messageType == domain.TypeStatus {
		return domain.Message{}, errors.ErrReservedType
	}
	if !messageType.ClientType() {
		return domain.Message{}, errors.ErrInvalidType
	}
	if sender == "" || to == "" || text == "" {
		return domain.Message{}, errors.ErrEmptyField
	}

	if _, err := s.users.Get(sender); err != nil {
		return domain.Message{}, err
	}

	return s.messages.Append(domain.Message{
		From: sender,
		To:   to,
		Text: text,
		Type: messageType,
		Time: s.now(),
	})
}

// ListMessages returns the limit most recent messages the viewer may see,
// in chronological order. The limit must be positive; defaulting a missing
// limit is the transport's call.
func (s *RoomService) ListMessages(ctx context.Context, viewer string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, errors.ErrInvalidLimit
	}
	messages, err := s.messages.Recent(limit)
	if err != nil {
		return nil, err
	}
	return projection.ForViewer(messages, viewer), nil
}
