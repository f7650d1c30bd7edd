package remote

import (
	"errors"
	"fmt"
)

// ConnError marks a failure of the transport itself, as opposed to a
// command that ran and exited non-zero. Callers use it to decide
// whether a retry on a fresh session makes sense.
type ConnError struct {
	Host string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err is, or wraps, a ConnError.
func IsConnError(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce)
}
