package errors

import "fmt"

var (
	// ErrNameTaken is returned by Join when the name is already in the room.
	ErrNameTaken = fmt.Errorf("name already taken")
	// ErrUserNotFound covers heartbeats and posts from names not currently
	// present, including names that were evicted in the meantime.
	ErrUserNotFound = fmt.Errorf("user not found")

	ErrEmptyField   = fmt.Errorf("required field is empty")
	ErrInvalidType  = fmt.Errorf("unknown message type")
	ErrReservedType = fmt.Errorf("status type is reserved for the system")
	ErrInvalidLimit = fmt.Errorf("limit must be a positive integer")

	// ErrWorkerPanic replaces a recovered panic inside a supervised worker.
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// ErrStatusFeedLost signals a partial success: the presence change was
	// applied but its status message could not be recorded. Presence is
	// authoritative, the status feed is best effort.
	ErrStatusFeedLost = fmt.Errorf("status message not recorded")
)
