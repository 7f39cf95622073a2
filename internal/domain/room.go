package domain

import "errors"

// RoomID is the underlying lecture/meeting id owned by the platform's
// scheduling service. A live room never mints its own id.
type RoomID string

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrAlreadyRecording    = errors.New("already recording")
	ErrDuplicateConnection = errors.New("duplicate connection")
)

type Room struct {
	ID RoomID
}
