package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/commandx/backend/internal/infrastructure/config"
	"github.com/commandx/backend/internal/infrastructure/logging"
	"github.com/commandx/backend/internal/remote"
	"github.com/commandx/backend/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	targets map[int64]Target
}

func (s *staticSource) Lookup(_ context.Context, id int64) (Target, error) {
	t, ok := s.targets[id]
	if !ok {
		return Target{}, errors.New("no such target")
	}
	return t, nil
}

// scriptTransport satisfies remote.Transport with a canned response.
type scriptTransport struct {
	mu       sync.Mutex
	commands []string
	code     int
	stdout   string
	stderr   string
}

func (t *scriptTransport) Exec(_ context.Context, command string) (int, string, string, error) {
	t.mu.Lock()
	t.commands = append(t.commands, command)
	t.mu.Unlock()
	return t.code, t.stdout, t.stderr, nil
}

func (t *scriptTransport) Alive() bool  { return true }
func (t *scriptTransport) Close() error { return nil }

func (t *scriptTransport) last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.commands) == 0 {
		return ""
	}
	return t.commands[len(t.commands)-1]
}

type scriptDialer struct{ transport *scriptTransport }

func (d *scriptDialer) Dial(_ context.Context, _ remote.Credentials) (remote.Transport, error) {
	return d.transport, nil
}

const (
	workspaceTarget = int64(1)
	remoteTarget    = int64(2)
)

func newTestRouter(t *testing.T) (*Router, *scriptTransport) {
	t.Helper()
	log := logging.NewNop()

	transport := &scriptTransport{stdout: "remote ok"}
	pool := remote.NewPool(&scriptDialer{transport: transport}, config.PoolConfig{
		MaxSessionAge:  time.Minute,
		ConnectBackoff: time.Millisecond,
		RetryBackoff:   time.Millisecond,
	}, log, nil)
	t.Cleanup(pool.CloseAll)

	local := workspace.New(t.TempDir(), log)
	source := &staticSource{targets: map[int64]Target{
		workspaceTarget: {
			Kind:      KindWorkspace,
			Workspace: workspace.Workspace{ID: 1, TenantID: 1, Name: "ws", CPUCores: 2, MemoryGB: 2, DiskGB: 10},
		},
		remoteTarget: {
			Kind:        KindRemote,
			Credentials: remote.Credentials{TargetID: 2, Host: "h", User: "u", Password: "p"},
		},
	}}

	r := New(Config{
		Source:         source,
		Local:          local,
		Remote:         remote.NewCommander(pool, time.Second),
		ExecTimeout:    5 * time.Second,
		InstallTimeout: time.Minute,
		Log:            log,
	})
	return r, transport
}

func TestExecDispatchesByKind(t *testing.T) {
	r, transport := newTestRouter(t)

	res := r.Exec(context.Background(), workspaceTarget, "echo local", 0)
	assert.Zero(t, res.ExitCode, res.Stderr)
	assert.Equal(t, "local\n", res.Stdout)
	assert.Empty(t, transport.last(), "workspace exec must not touch the transport")

	res = r.Exec(context.Background(), remoteTarget, "uptime", 0)
	assert.Zero(t, res.ExitCode)
	assert.Equal(t, "remote ok", res.Stdout)
	assert.Equal(t, "uptime", transport.last())
}

func TestExecUnknownTarget(t *testing.T) {
	r, _ := newTestRouter(t)

	res := r.Exec(context.Background(), 99, "ls", 0)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "unknown target 99")
}

func TestTimeoutSelection(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name      string
		command   string
		requested time.Duration
		want      time.Duration
	}{
		{"default", "ls -la", 0, 5 * time.Second},
		{"explicit wins", "ls -la", 2 * time.Second, 2 * time.Second},
		{"pip install", "pip install requests", 0, time.Minute},
		{"pip3 install", "pip3 install flask", 0, time.Minute},
		{"npm install", "npm install", 0, time.Minute},
		{"explicit beats install", "pip install x", 3 * time.Second, 3 * time.Second},
		{"mention mid-command is not install", "echo pip install", 0, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.timeoutFor(tt.command, tt.requested))
		})
	}
}

func TestFileOpsNormalizeAcrossBackends(t *testing.T) {
	r, transport := newTestRouter(t)
	transport.stdout = ""

	// Same call shape, both backends, same result shape.
	res := r.Write(context.Background(), workspaceTarget, "a.txt", "x")
	require.True(t, res.Success, res.Message)
	res = r.Write(context.Background(), remoteTarget, "a.txt", "x")
	require.True(t, res.Success, res.Message)
	assert.Contains(t, transport.last(), "base64 -d")

	read := r.Read(context.Background(), workspaceTarget, "a.txt")
	require.True(t, read.Success, read.Message)
	assert.Equal(t, "x", read.Content)
}

func TestListRemoteHomeFallbackChain(t *testing.T) {
	r, transport := newTestRouter(t)

	res := r.List(context.Background(), remoteTarget, "~")
	assert.Zero(t, res.ExitCode)
	assert.Contains(t, transport.last(), "cd ~ && ls -lah")
	assert.Contains(t, transport.last(), "ls -lah $HOME")
}

func TestSearchDispatch(t *testing.T) {
	r, transport := newTestRouter(t)
	transport.stdout = "/home/u/config.yaml\n"

	res := r.Search(context.Background(), remoteTarget, "~", "config", 10)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Count)
	assert.Contains(t, transport.last(), "find")

	local := r.Search(context.Background(), workspaceTarget, "~", "nothing", 10)
	require.True(t, local.Success, local.Message)
	assert.Zero(t, local.Count)
}

func TestStatsDispatch(t *testing.T) {
	r, transport := newTestRouter(t)

	res := r.Stats(context.Background(), workspaceTarget)
	assert.Zero(t, res.ExitCode)
	assert.Contains(t, res.Stdout, "=== Server Statistics ===")

	transport.stdout = "=== CPU ===\n4\n"
	res = r.Stats(context.Background(), remoteTarget)
	assert.Zero(t, res.ExitCode)
	assert.Contains(t, res.Stdout, "=== CPU ===")
}

func TestDetailedStatsDispatch(t *testing.T) {
	r, transport := newTestRouter(t)
	transport.stdout = "CPU:10\nMEM:100 200\nDISK:1 10 10\n"

	m := r.DetailedStats(context.Background(), remoteTarget)
	require.NotNil(t, m.CPUPercent)
	assert.Equal(t, 10.0, *m.CPUPercent)

	m = r.DetailedStats(context.Background(), workspaceTarget)
	require.NotNil(t, m.MemoryTotalMB)
	assert.Equal(t, 2048.0, *m.MemoryTotalMB)

	m = r.DetailedStats(context.Background(), 99)
	assert.True(t, m.Empty())
}

func TestTestConnectionDispatch(t *testing.T) {
	r, _ := newTestRouter(t)

	ok, msg := r.TestConnection(context.Background(), workspaceTarget)
	assert.True(t, ok, msg)

	ok, msg = r.TestConnection(context.Background(), remoteTarget)
	assert.True(t, ok)
	assert.Equal(t, "connection successful", msg)

	ok, msg = r.TestConnection(context.Background(), 99)
	assert.False(t, ok)
	assert.Contains(t, msg, "unknown target")
}
