package domain

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast is the reserved recipient meaning "everyone in the room".
const Broadcast = "Todos"

type MessageType string

const (
	// TypePublic is a broadcast visible to every viewer.
	TypePublic MessageType = "message"
	// TypePrivate is a directed message visible to sender and recipient only.
	TypePrivate MessageType = "private_message"
	// TypeStatus is a synthetic join/leave event. Never accepted from clients;
	// only the room service and the reaper produce it.
	TypeStatus MessageType = "status"
)

// Message represents an immutable chat event.
// Seq is the ordering authority, assigned at append time.
// Time is wall-clock and informational only, never used for ordering.
type Message struct {
	ID   uuid.UUID
	Seq  uint64
	From string
	To   string
	Text string
	Type MessageType
	Time time.Time
}

// ClientType reports whether t is a type clients are allowed to submit.
func (t MessageType) ClientType() bool {
	return t == TypePublic || t == TypePrivate
}

// Known reports whether t is any of the message types the store accepts.
func (t MessageType) Known() bool {
	return t == TypePublic || t == TypePrivate || t == TypeStatus
}
