package lockbox

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSetting is returned for setting keys or values the device
	// does not accept. No request is sent.
	ErrInvalidSetting = errors.New("invalid setting key or value")

	// ErrRejected matches every CommandError.
	ErrRejected = errors.New("command rejected by lockbox")
)

// TransportError means the exchange did not complete: the device could not
// be reached, timed out, or answered outside the protocol. Whether the
// command took effect is unknown.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CommandError means the device received the command and rejected it.
type CommandError struct {
	Command string
	Detail  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s rejected by lockbox: %s", e.Command, e.Detail)
}

func (e *CommandError) Is(target error) bool {
	return target == ErrRejected
}
