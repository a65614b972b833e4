package session

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Session.
	ErrClosed = errors.New("session closed")
	// ErrSpeedLocked is returned by SetSpeed while a search is running.
	ErrSpeedLocked = errors.New("speed cannot change while a search is running")
)

// UnknownCommandError indicates a command name Apply does not understand.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Command)
}
