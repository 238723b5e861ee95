package transport

import (
	"errors"
	"fmt"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Peer errors.
var (
	ErrPeerClosed       = errors.New("peer closed")
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")
	ErrUnknownMethod    = errors.New("unknown method")
	ErrInvalidArgs      = errors.New("invalid arguments")
	ErrUnsupported      = errors.New("unsupported")
	ErrNotConnected     = errors.New("not connected")
	ErrRemoteInternal   = errors.New("remote internal error")
)

var statusErrors = map[wire.Status]error{
	wire.StatusUnknownMethod: ErrUnknownMethod,
	wire.StatusInvalidArgs:   ErrInvalidArgs,
	wire.StatusUnsupported:   ErrUnsupported,
	wire.StatusNotConnected:  ErrNotConnected,
	wire.StatusInternal:      ErrRemoteInternal,
}

// StatusError is a non-OK reply. It unwraps to the sentinel for its status
// so callers can use errors.Is.
type StatusError struct {
	Status wire.Status
	Text   string
}

func (e *StatusError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("remote status %s", e.Status)
	}
	return fmt.Sprintf("remote status %s: %s", e.Status, e.Text)
}

func (e *StatusError) Unwrap() error {
	return statusErrors[e.Status]
}

// Errorf returns a StatusError a handler can return to pick the reply
// status.
func Errorf(status wire.Status, format string, args ...any) error {
	return &StatusError{Status: status, Text: fmt.Sprintf(format, args...)}
}

// statusOf maps a handler error to the reply status.
func statusOf(err error) wire.Status {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	for status, sentinel := range statusErrors {
		if errors.Is(err, sentinel) {
			return status
		}
	}
	return wire.StatusInternal
}
