package core

import "errors"

// Error codes for domain errors.
const (
	// ErrCodeRoomNotFound covers both nonexistent rooms and DM rooms the
	// requester is not a member of. Sharing one code keeps private room
	// existence unobservable to non-members.
	ErrCodeRoomNotFound = "room_not_found"
	ErrCodeBadRequest   = "bad_request"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrBadRequest   = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
