// Package domain contains the core concepts of the chat room:
// users present in the room and the immutable message log.
package domain

import "time"

// User is a participant currently present in the room.
// The name is the identity: at most one User per name exists at any instant.
type User struct {
	Name     string
	LastSeen time.Time // refreshed on join and on every heartbeat
}

// Stale reports whether the user has been silent for longer than staleAfter.
func (u User) Stale(now time.Time, staleAfter time.Duration) bool {
	return u.LastSeen.Before(now.Add(-staleAfter))
}
