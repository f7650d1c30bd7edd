package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCommand(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "home",
			path: "~",
			want: "bash -c 'cd ~ && ls -lah' 2>&1 || ls -lah $HOME 2>&1 || ls -lah ~ 2>&1 || echo 'Directory not found'",
		},
		{
			name: "empty is home",
			path: "",
			want: "bash -c 'cd ~ && ls -lah' 2>&1 || ls -lah $HOME 2>&1 || ls -lah ~ 2>&1 || echo 'Directory not found'",
		},
		{
			name: "home relative",
			path: "~/projects",
			want: "bash -c 'cd ~ && ls -lah projects' 2>&1 || ls -lah $HOME/projects 2>&1 || echo 'Directory not found'",
		},
		{
			name: "absolute",
			path: "/var/log",
			want: "ls -lah /var/log 2>&1 || echo 'Directory not found'",
		},
		{
			name: "spaces are quoted",
			path: "/tmp/my dir",
			want: "ls -lah '/tmp/my dir' 2>&1 || echo 'Directory not found'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, listCommand(tt.path))
		})
	}
}

func TestCommandBuildersQuote(t *testing.T) {
	assert.Equal(t, "cat '/tmp/a b.txt'", readCommand("/tmp/a b.txt"))
	assert.Equal(t, "mkdir -p '/tmp/x y'", createDirCommand("/tmp/x y"))
	assert.Equal(t, "rm -rf '~/a;rm *'", deleteCommand("~/a;rm *"))
	assert.Equal(t, "mv a.txt 'b c.txt'", renameCommand("a.txt", "b c.txt"))
	assert.Equal(t,
		"mkdir -p $(dirname '/tmp/n o.txt') && touch '/tmp/n o.txt'",
		createFileCommand("/tmp/n o.txt"))
	assert.Equal(t,
		"find /home -type f -name '*conf ig*' 2>/dev/null | head -n 5",
		searchCommand("/home", "conf ig", 5))
}

func TestWriteCommand(t *testing.T) {
	// "hi" is aGk= in base64.
	assert.Equal(t,
		"mkdir -p /tmp && echo aGk= | base64 -d > /tmp/f.txt",
		writeCommand("/tmp/f.txt", "hi"))
}

func TestParseDetailedStats(t *testing.T) {
	out := "CPU:42.5\nMEM:1024 4096\nDISK:12 100 12\n"
	m := parseDetailedStats(out)

	require.NotNil(t, m.CPUPercent)
	assert.Equal(t, 42.5, *m.CPUPercent)
	require.NotNil(t, m.MemoryUsedMB)
	assert.Equal(t, 1024.0, *m.MemoryUsedMB)
	require.NotNil(t, m.MemoryTotalMB)
	assert.Equal(t, 4096.0, *m.MemoryTotalMB)
	require.NotNil(t, m.MemoryPercent)
	assert.Equal(t, 25.0, *m.MemoryPercent)
	require.NotNil(t, m.DiskPercent)
	assert.Equal(t, 12.0, *m.DiskPercent)
}

func TestParseDetailedStatsTolerant(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"empty probes", "CPU:\nMEM:\nDISK:\n"},
		{"garbage", "CPU:lots\nMEM:some much\nDISK:a b c\n"},
		{"out of range cpu", "CPU:250\n"},
		{"zero totals", "MEM:100 0\nDISK:1 0 50\n"},
		{"no output", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, parseDetailedStats(tt.out).Empty())
		})
	}
}

func newTestCommander(t *testing.T, respond func(string) (int, string, string, error)) (*Commander, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{respond: respond}
	pool := newTestPool(t, dialer)
	return NewCommander(pool, time.Second), dialer
}

func TestCommanderRead(t *testing.T) {
	c, _ := newTestCommander(t, func(command string) (int, string, string, error) {
		return 0, "file body", "", nil
	})

	res := c.Read(context.Background(), testCreds(1), "/tmp/a.txt")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "file body", res.Content)
}

func TestCommanderReadBinary(t *testing.T) {
	c, _ := newTestCommander(t, func(command string) (int, string, string, error) {
		return 1, "", "cat: /bin/ls: cannot display binary content", nil
	})

	res := c.Read(context.Background(), testCreds(1), "/bin/ls")
	assert.False(t, res.Success)
	assert.Equal(t, "File is not text and cannot be edited", res.Message)
}

func TestCommanderWrite(t *testing.T) {
	var got string
	c, _ := newTestCommander(t, func(command string) (int, string, string, error) {
		got = command
		return 0, "", "", nil
	})

	res := c.Write(context.Background(), testCreds(1), "~/notes/todo.txt", "buy milk")
	require.True(t, res.Success, res.Message)
	assert.Contains(t, got, "base64 -d")
	assert.NotContains(t, got, "buy milk", "content must travel encoded")
}

func TestCommanderSearch(t *testing.T) {
	c, _ := newTestCommander(t, func(command string) (int, string, string, error) {
		return 0, "/home/u/a/config.yaml\n/home/u/conf/app.yaml\n\n", "", nil
	})

	res := c.Search(context.Background(), testCreds(1), "~", "config", 10)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"/home/u/a/config.yaml", "/home/u/conf/app.yaml"}, res.Files)
}

func TestCommanderOpFailureMessage(t *testing.T) {
	c, _ := newTestCommander(t, func(command string) (int, string, string, error) {
		return 1, "", "mv: cannot stat 'a.txt': No such file or directory", nil
	})

	res := c.Rename(context.Background(), testCreds(1), "a.txt", "b.txt")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Failed to rename")
	assert.Contains(t, res.Message, "No such file")
}

func TestCommanderDetailedStatsTransportFailure(t *testing.T) {
	dialer := &fakeDialer{failFirst: 10}
	pool := newTestPool(t, dialer)
	c := NewCommander(pool, time.Second)

	m := c.DetailedStats(context.Background(), testCreds(1))
	assert.True(t, m.Empty(), "unreachable target yields all-nil metrics")
}
