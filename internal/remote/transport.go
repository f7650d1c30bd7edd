package remote

import (
	"context"
	"fmt"
)

// Credentials identify a remote target and how to authenticate to it.
// Password and PrivateKey are alternatives; when both are set the key
// wins.
type Credentials struct {
	TargetID   int64
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey string
	Passphrase string
}

// Addr returns the dial address, defaulting the port to 22.
func (c Credentials) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Transport executes shell commands on one connected remote host.
// Implementations multiplex commands over a single connection, so Exec
// is safe for concurrent use.
type Transport interface {
	// Exec runs command and returns its exit code, stdout and stderr.
	// A non-nil error means the transport failed, not the command; a
	// command that merely exits non-zero returns a nil error. A context
	// deadline is reported as exit 1 with a timeout message, nil error.
	Exec(ctx context.Context, command string) (int, string, string, error)

	// Alive reports whether the underlying connection is still up
	// without performing any I/O.
	Alive() bool

	Close() error
}

// Dialer establishes transports. The pool depends on this interface so
// tests can swap in fakes.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials) (Transport, error)
}
