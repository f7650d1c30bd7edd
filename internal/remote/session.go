package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/commandx/backend/internal/infrastructure/logging"
	"github.com/commandx/backend/internal/shared/types"
	"go.uber.org/zap"
)

var errSessionClosed = errors.New("session is closed")

// Session is one pooled connection to a remote target. Execution takes
// no lock; the transport multiplexes commands over independent
// channels. The mutex only guards the bookkeeping fields.
type Session struct {
	creds     Credentials
	transport Transport
	createdAt time.Time
	log       *logging.Logger

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

func newSession(creds Credentials, t Transport, log *logging.Logger) *Session {
	now := time.Now()
	return &Session{
		creds:     creds,
		transport: t,
		createdAt: now,
		lastUsed:  now,
		log:       log,
	}
}

// IsValid reports whether the session can still run commands. It never
// blocks; transport liveness is a flag flip, not a probe.
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.transport.Alive()
}

// Age is the time since the session connected.
func (s *Session) Age() time.Duration {
	return time.Since(s.createdAt)
}

// IdleFor is the time since the session last ran a command.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastUsed)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// Execute runs command with the given timeout. A command that runs and
// fails is a normal result; a transport failure closes the session and
// comes back as *ConnError so the caller can retry on a fresh one. A
// timeout is a normal result with exit 1.
func (s *Session) Execute(ctx context.Context, command string, timeout time.Duration) (types.ExecResult, error) {
	if !s.IsValid() {
		return types.ExecResult{}, &ConnError{Host: s.creds.Host, Err: errSessionClosed}
	}
	s.touch()

	cctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	code, stdout, stderr, err := s.transport.Exec(cctx, command)
	if err != nil {
		s.log.Warn("remote command failed on transport",
			zap.String("host", s.creds.Host),
			zap.Error(err))
		s.Close()
		return types.ExecResult{}, &ConnError{Host: s.creds.Host, Err: err}
	}
	return types.ExecResult{ExitCode: code, Stdout: stdout, Stderr: stderr}, nil
}

// Close marks the session unusable. It is idempotent and does not
// close the transport; the pool owns that.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
