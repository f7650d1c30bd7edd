package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/commandx/backend/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionExecute(t *testing.T) {
	transport := &fakeTransport{respond: func(string) (int, string, string, error) {
		return 0, "hello\n", "", nil
	}}
	s := newSession(testCreds(1), transport, logging.NewNop())

	res, err := s.Execute(context.Background(), "echo hello", time.Second)
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, []string{"echo hello"}, transport.execs)
}

func TestSessionClosesItselfOnTransportError(t *testing.T) {
	transport := &fakeTransport{respond: func(string) (int, string, string, error) {
		return 0, "", "", errors.New("connection reset")
	}}
	s := newSession(testCreds(1), transport, logging.NewNop())

	_, err := s.Execute(context.Background(), "uptime", time.Second)
	require.Error(t, err)
	assert.True(t, IsConnError(err))
	assert.False(t, s.IsValid(), "a transport error poisons the session")
	assert.False(t, transport.isClosed(), "the pool owns the transport")
}

func TestSessionRejectsUseAfterClose(t *testing.T) {
	s := newSession(testCreds(1), &fakeTransport{}, logging.NewNop())
	s.Close()
	s.Close() // idempotent

	_, err := s.Execute(context.Background(), "uptime", time.Second)
	require.Error(t, err)
	assert.True(t, IsConnError(err))
}

func TestSessionInvalidWhenTransportDies(t *testing.T) {
	transport := &fakeTransport{}
	s := newSession(testCreds(1), transport, logging.NewNop())
	assert.True(t, s.IsValid())

	transport.markDown()
	assert.False(t, s.IsValid())
}

func TestSessionTimeoutIsAResultNotAnError(t *testing.T) {
	transport := &fakeTransport{}
	transport.respond = func(string) (int, string, string, error) {
		return 1, "", "command timed out", nil
	}
	s := newSession(testCreds(1), transport, logging.NewNop())

	res, err := s.Execute(context.Background(), "sleep 60", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "timed out")
	assert.True(t, s.IsValid(), "a timeout does not poison the session")
}

func TestSessionIdleTracking(t *testing.T) {
	s := newSession(testCreds(1), &fakeTransport{}, logging.NewNop())
	time.Sleep(2 * time.Millisecond)
	assert.Greater(t, s.IdleFor(), time.Millisecond)

	s.touch()
	assert.Less(t, s.IdleFor(), time.Millisecond)
}
