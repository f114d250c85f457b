// Package transport defines the device channel the protocol engine drives
// and a concrete TCP implementation for Ledger emulators and HID proxies.
//
// A transport is deliberately opaque: open, close and one blocking
// exchange of already-framed bytes per call. Device discovery and
// enumeration live with the caller; the engine only ever sees this
// interface.
package transport

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one exchange. It is generous because the far end
// may be waiting on a physical button press.
const DefaultTimeout = 5 * time.Minute

// Config carries the caller-tunable transport settings.
type Config struct {
	// Timeout bounds one blocking exchange. Zero keeps the previous
	// value.
	Timeout time.Duration

	// Logger receives per-exchange trace output. Nil keeps the
	// previous logger.
	Logger logrus.FieldLogger
}

// Transport is one logical device channel. Implementations must perform
// Exchange as a single synchronous round trip: write the full request
// stream, then read the full response stream. Callers guarantee only one
// exchange is in flight at a time.
type Transport interface {
	Open() error
	Close() error

	// Exchange sends a framed request and returns the framed response.
	Exchange(data []byte) ([]byte, error)

	// Configure adjusts the timeout and logger.
	Configure(cfg Config)
}

// Error wraps a transport failure with the operation that produced it.
// Timeout is set when the failure was a deadline expiry, which callers
// treat as fatal to the in-flight protocol operation.
type Error struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transport %s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
