package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	e, ws := newTestExecutor(t)

	res := e.Write(ws, "notes/todo.txt", "buy milk")
	require.True(t, res.Success, res.Message)

	read := e.Read(ws, "notes/todo.txt")
	require.True(t, read.Success, read.Message)
	assert.Equal(t, "buy milk", read.Content)
}

func TestReadFailures(t *testing.T) {
	e, ws := newTestExecutor(t)
	root, err := e.Root(ws)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0o755))
	binary := append([]byte{0x7f, 'E', 'L', 'F', 0, 1, 2}, make([]byte, 64)...)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.bin"), binary, 0o644))

	tests := []struct {
		name     string
		path     string
		contains string
	}{
		{"missing", "nope.txt", "not found"},
		{"directory", "dir", "directory"},
		{"binary", "a.bin", "not text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Read(ws, tt.path)
			assert.False(t, res.Success)
			assert.Contains(t, res.Message, tt.contains)
		})
	}
}

func TestReadTraversalServedFromRoot(t *testing.T) {
	// "../../etc/passwd" must not read the host's /etc/passwd; the
	// traversal segments are dropped and the lookup happens under the root.
	e, ws := newTestExecutor(t)

	res := e.Read(ws, "../../etc/passwd")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not found")
}

func TestCreateFile(t *testing.T) {
	e, ws := newTestExecutor(t)

	res := e.CreateFile(ws, "a/b/new.txt")
	require.True(t, res.Success, res.Message)

	res = e.CreateFile(ws, "a/b/new.txt")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "already exists")
}

func TestCreateDir(t *testing.T) {
	e, ws := newTestExecutor(t)

	res := e.CreateDir(ws, "data/raw")
	require.True(t, res.Success, res.Message)

	res = e.CreateDir(ws, "data/raw")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "already exists")
}

func TestRename(t *testing.T) {
	e, ws := newTestExecutor(t)
	require.True(t, e.Write(ws, "old.txt", "x").Success)
	require.True(t, e.Write(ws, "taken.txt", "y").Success)

	tests := []struct {
		name     string
		from, to string
		ok       bool
		contains string
	}{
		{"missing source", "ghost.txt", "new.txt", false, "not found"},
		{"target exists", "old.txt", "taken.txt", false, "already exists"},
		{"success", "old.txt", "renamed.txt", true, "Renamed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Rename(ws, tt.from, tt.to)
			assert.Equal(t, tt.ok, res.Success, res.Message)
			assert.Contains(t, res.Message, tt.contains)
		})
	}
}

func TestDelete(t *testing.T) {
	e, ws := newTestExecutor(t)
	require.True(t, e.Write(ws, "dir/file.txt", "x").Success)

	res := e.Delete(ws, "dir")
	require.True(t, res.Success, res.Message)

	res = e.Delete(ws, "dir")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not found")

	// The root itself is never deletable, even via traversal input.
	res = e.Delete(ws, "../..")
	assert.False(t, res.Success)
}

func TestList(t *testing.T) {
	e, ws := newTestExecutor(t)
	require.True(t, e.Write(ws, "sub/file.txt", "x").Success)

	res := e.List(context.Background(), ws, "~")
	require.Equal(t, 0, res.ExitCode, res.Stderr)
	assert.Contains(t, res.Stdout, "sub")
	assert.NotRegexp(t, `\s\.\n`, res.Stdout, "listing must not contain the . entry")

	res = e.List(context.Background(), ws, "missing")
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "Directory not found")

	res = e.List(context.Background(), ws, "sub/file.txt")
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "Not a directory")
}

func TestSearch(t *testing.T) {
	e, ws := newTestExecutor(t)
	require.True(t, e.Write(ws, "a/config.yaml", "x").Success)
	require.True(t, e.Write(ws, "b/other.txt", "y").Success)

	res := e.Search(ws, "~", "config", 10)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"~/a/config.yaml"}, res.Files)
	assert.Equal(t, 1, res.Count)
}

func TestSearchRespectsLimit(t *testing.T) {
	e, ws := newTestExecutor(t)
	for _, name := range []string{"one", "two", "three", "four"} {
		require.True(t, e.Write(ws, "logs/"+name+".log", "x").Success)
	}

	res := e.Search(ws, "~", ".log", 2)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.Count)
	assert.Len(t, res.Files, 2)
}

func TestSearchMissingDir(t *testing.T) {
	e, ws := newTestExecutor(t)

	res := e.Search(ws, "nowhere", "x", 10)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Directory not found")
}

func TestUsageStats(t *testing.T) {
	e, ws := newTestExecutor(t)
	require.True(t, e.Write(ws, "a/file.txt", "hello").Success)

	res := e.UsageStats(ws)
	require.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "Files: 1")
	assert.Contains(t, res.Stdout, "Directories: 1")
	assert.Contains(t, res.Stdout, "CPU Cores: 2")
	assert.NotContains(t, res.Stdout, e.base, "report must not leak the host path")
}

func TestDetailedStats(t *testing.T) {
	e, ws := newTestExecutor(t)

	m := e.DetailedStats(ws)
	require.NotNil(t, m.CPUPercent)
	assert.GreaterOrEqual(t, *m.CPUPercent, 5.0)
	assert.LessOrEqual(t, *m.CPUPercent, 95.0)
	require.NotNil(t, m.MemoryTotalMB)
	assert.Equal(t, 2048.0, *m.MemoryTotalMB)
	require.NotNil(t, m.DiskTotalGB)
	assert.Equal(t, 10.0, *m.DiskTotalGB)
}

func TestCleanupToolDirs(t *testing.T) {
	e, ws := newTestExecutor(t)
	root, err := e.Root(ws)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cargo"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "venv", ".cargo"), 0o755))

	res := e.CleanupToolDirs(ws)
	require.True(t, res.Success, res.Message)
	assert.NoDirExists(t, filepath.Join(root, ".cargo"))
	assert.DirExists(t, filepath.Join(root, "venv", ".cargo"), "venv copies stay")
}

func TestExecListIntegration(t *testing.T) {
	// End to end through the real shell: list after a write shows the file.
	e, ws := newTestExecutor(t)
	require.True(t, e.Write(ws, "hello.txt", "hi").Success)

	res := e.Run(context.Background(), ws, "ls", 5*time.Second)
	require.Equal(t, 0, res.ExitCode, res.Stderr)
	assert.Contains(t, res.Stdout, "hello.txt")
}
