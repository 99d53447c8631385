package network

import (
	"errors"
	"fmt"
)

// ErrTransport marks socket failures. They are fatal to a session: nothing
// in this package retries.
var ErrTransport = errors.New("transport failure")

// TransportError records which socket operation failed and where.
type TransportError struct {
	Op   string // resolve, dial, listen or send
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap exposes both ErrTransport and the underlying socket error.
func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }
