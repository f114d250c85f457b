package ledger

import "fmt"

// UsageError reports a locally-detectable misuse of the bridge: a missing
// public key, a disallowed sighash type, a script-hash coin without its
// redeem script, or a second operation issued while one is in flight.
// Usage errors are raised before any device exchange.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("ledger usage error: %s", e.Message)
}

func usageErrf(format string, args ...interface{}) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}
