package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/commandx/backend/internal/shared/types"
	"github.com/kballard/go-shellquote"
)

const (
	searchTimeout = 60 * time.Second
	statsTimeout  = 8 * time.Second
)

// Commander expresses file and stat operations as shell commands run
// through the session pool. Every caller-supplied path goes through
// shell quoting before it reaches a command line.
type Commander struct {
	pool    *Pool
	timeout time.Duration
}

// NewCommander wraps pool with a default per-command timeout.
func NewCommander(pool *Pool, timeout time.Duration) *Commander {
	return &Commander{pool: pool, timeout: timeout}
}

// Run executes a raw shell command on the target.
func (c *Commander) Run(ctx context.Context, creds Credentials, command string, timeout time.Duration) types.ExecResult {
	if timeout <= 0 {
		timeout = c.timeout
	}
	res, err := c.pool.ExecuteWithRetry(ctx, creds, command, timeout)
	if err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: err.Error()}
	}
	return res
}

// List runs `ls -lah` on path. Home-relative paths go through the
// remote shell's own tilde handling, with fallbacks for shells that do
// not expand it.
func (c *Commander) List(ctx context.Context, creds Credentials, path string) types.ExecResult {
	return c.Run(ctx, creds, listCommand(path), c.timeout)
}

// Read returns the contents of a text file via cat.
func (c *Commander) Read(ctx context.Context, creds Credentials, path string) types.ReadResult {
	res, err := c.pool.ExecuteWithRetry(ctx, creds, readCommand(path), c.timeout)
	if err != nil {
		return types.ReadResult{Message: fmt.Sprintf("Failed to read file: %v", err)}
	}
	if res.ExitCode != 0 {
		lower := strings.ToLower(res.Stderr)
		if strings.Contains(lower, "binary") || strings.Contains(lower, "cannot") {
			return types.ReadResult{Message: "File is not text and cannot be edited"}
		}
		return types.ReadResult{Message: fmt.Sprintf("Failed to read file: %s", firstNonEmpty(res.Stderr, res.Stdout))}
	}
	return types.ReadResult{Success: true, Content: res.Stdout, Message: "File read successfully"}
}

// Write stores content at path. The content travels base64-encoded so
// arbitrary bytes survive the shell.
func (c *Commander) Write(ctx context.Context, creds Credentials, path, content string) types.OpResult {
	return c.op(ctx, creds, writeCommand(path, content),
		fmt.Sprintf("File %s saved", path), "Failed to write file")
}

// CreateFile creates an empty file, making parent directories as needed.
func (c *Commander) CreateFile(ctx context.Context, creds Credentials, path string) types.OpResult {
	return c.op(ctx, creds, createFileCommand(path),
		fmt.Sprintf("File %s created", path), "Failed to create file")
}

// CreateDir creates a directory.
func (c *Commander) CreateDir(ctx context.Context, creds Credentials, path string) types.OpResult {
	return c.op(ctx, creds, createDirCommand(path),
		fmt.Sprintf("Directory %s created", path), "Failed to create directory")
}

// Rename moves oldPath to newPath.
func (c *Commander) Rename(ctx context.Context, creds Credentials, oldPath, newPath string) types.OpResult {
	return c.op(ctx, creds, renameCommand(oldPath, newPath),
		fmt.Sprintf("Renamed %s to %s", oldPath, newPath), "Failed to rename")
}

// Delete removes a file or directory tree.
func (c *Commander) Delete(ctx context.Context, creds Credentials, path string) types.OpResult {
	return c.op(ctx, creds, deleteCommand(path),
		fmt.Sprintf("Deleted %s", path), "Failed to delete")
}

func (c *Commander) op(ctx context.Context, creds Credentials, command, okMsg, failMsg string) types.OpResult {
	res, err := c.pool.ExecuteWithRetry(ctx, creds, command, c.timeout)
	if err != nil {
		return types.OpResult{Message: fmt.Sprintf("%s: %v", failMsg, err)}
	}
	if res.ExitCode != 0 {
		return types.OpResult{Message: fmt.Sprintf("%s: %s", failMsg, firstNonEmpty(res.Stderr, res.Stdout))}
	}
	return types.OpResult{Success: true, Message: okMsg}
}

// Search finds files whose names contain pattern, capped at maxResults.
func (c *Commander) Search(ctx context.Context, creds Credentials, searchPath, pattern string, maxResults int) types.SearchResult {
	if maxResults < 1 {
		maxResults = 100
	}
	res, err := c.pool.ExecuteWithRetry(ctx, creds, searchCommand(searchPath, pattern, maxResults), searchTimeout)
	if err != nil {
		return types.SearchResult{Files: []string{}, Message: fmt.Sprintf("Search failed: %v", err)}
	}
	if res.ExitCode != 0 {
		return types.SearchResult{Files: []string{}, Message: fmt.Sprintf("Search failed: %s", firstNonEmpty(res.Stderr, "unknown error"))}
	}

	files := []string{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return types.SearchResult{
		Success: true,
		Files:   files,
		Count:   len(files),
		Message: fmt.Sprintf("Found %d file(s)", len(files)),
	}
}

// TestConnection dials the target and reports reachability.
func (c *Commander) TestConnection(ctx context.Context, creds Credentials) (bool, string) {
	return c.pool.TestConnection(ctx, creds)
}

// SystemStats returns a human-readable snapshot of CPU, memory, uptime
// and disk. The command degrades gracefully across Linux and macOS.
func (c *Commander) SystemStats(ctx context.Context, creds Credentials) types.ExecResult {
	return c.Run(ctx, creds, systemStatsCommand, c.timeout)
}

// DetailedStats collects numeric usage metrics in a single round trip.
// Fields the target cannot report stay nil.
func (c *Commander) DetailedStats(ctx context.Context, creds Credentials) types.Metrics {
	res, err := c.pool.ExecuteWithRetry(ctx, creds, detailedStatsCommand, statsTimeout)
	if err != nil || res.ExitCode != 0 {
		return types.Metrics{}
	}
	return parseDetailedStats(res.Stdout)
}

func listCommand(p string) string {
	switch {
	case p == "" || p == "~":
		return "bash -c 'cd ~ && ls -lah' 2>&1 || ls -lah $HOME 2>&1 || ls -lah ~ 2>&1 || echo 'Directory not found'"
	case strings.HasPrefix(p, "~/"):
		rel := shellquote.Join(strings.TrimPrefix(p, "~/"))
		return fmt.Sprintf("bash -c 'cd ~ && ls -lah %s' 2>&1 || ls -lah $HOME/%s 2>&1 || echo 'Directory not found'", rel, rel)
	default:
		return fmt.Sprintf("ls -lah %s 2>&1 || echo 'Directory not found'", shellquote.Join(p))
	}
}

func readCommand(p string) string {
	return "cat " + shellquote.Join(p)
}

func writeCommand(p, content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	dir := path.Dir(p)
	return fmt.Sprintf("mkdir -p %s && echo %s | base64 -d > %s",
		shellquote.Join(dir), shellquote.Join(encoded), shellquote.Join(p))
}

func createFileCommand(p string) string {
	quoted := shellquote.Join(p)
	return fmt.Sprintf("mkdir -p $(dirname %s) && touch %s", quoted, quoted)
}

func createDirCommand(p string) string {
	return "mkdir -p " + shellquote.Join(p)
}

func renameCommand(oldPath, newPath string) string {
	return fmt.Sprintf("mv %s %s", shellquote.Join(oldPath), shellquote.Join(newPath))
}

func deleteCommand(p string) string {
	return "rm -rf " + shellquote.Join(p)
}

func searchCommand(searchPath, pattern string, maxResults int) string {
	return fmt.Sprintf("find %s -type f -name %s 2>/dev/null | head -n %d",
		shellquote.Join(searchPath), shellquote.Join("*"+pattern+"*"), maxResults)
}

const systemStatsCommand = `echo "=== CPU ===" && ` +
	`(grep -c ^processor /proc/cpuinfo 2>/dev/null || sysctl -n hw.ncpu 2>/dev/null || echo "N/A") && ` +
	`echo "=== Memory ===" && ` +
	`(free -h 2>/dev/null | grep Mem || vm_stat 2>/dev/null | head -5 || echo "N/A") && ` +
	`echo "=== Uptime ===" && ` +
	`(uptime 2>/dev/null || echo "N/A") && ` +
	`echo "=== Disk ===" && ` +
	`(df -h / 2>/dev/null | tail -1 || echo "N/A")`

// One combined command so slow links pay a single round trip. Each
// probe tolerates absence of the underlying tool by emitting an empty
// value, which the parser leaves nil.
const detailedStatsCommand = `(
cpu=$(top -bn1 2>/dev/null | grep 'Cpu(s)' | sed 's/.*, *\([0-9.]*\)%* id.*/\1/' | awk '{print 100 - $1}' 2>/dev/null || echo '')
echo "CPU:$cpu"
mem=$(free -m 2>/dev/null | grep Mem | awk '{print $3, $2}' || echo '')
echo "MEM:$mem"
disk=$(df -BG / 2>/dev/null | tail -1 | awk '{print $3, $2, $5}' | sed 's/G//g' | sed 's/%//' || echo '')
echo "DISK:$disk"
) 2>/dev/null`

func parseDetailedStats(out string) types.Metrics {
	var m types.Metrics
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "CPU:"):
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "CPU:")), 64); err == nil && v >= 0 && v <= 100 {
				m.CPUPercent = types.Float(round2(v))
			}
		case strings.HasPrefix(line, "MEM:"):
			parts := strings.Fields(strings.TrimPrefix(line, "MEM:"))
			if len(parts) < 2 {
				continue
			}
			used, err1 := strconv.ParseFloat(parts[0], 64)
			total, err2 := strconv.ParseFloat(parts[1], 64)
			if err1 == nil && err2 == nil && total > 0 {
				m.MemoryUsedMB = types.Float(round2(used))
				m.MemoryTotalMB = types.Float(round2(total))
				m.MemoryPercent = types.Float(round2(used / total * 100))
			}
		case strings.HasPrefix(line, "DISK:"):
			parts := strings.Fields(strings.TrimPrefix(line, "DISK:"))
			if len(parts) < 3 {
				continue
			}
			used, err1 := strconv.ParseFloat(parts[0], 64)
			total, err2 := strconv.ParseFloat(parts[1], 64)
			pct, err3 := strconv.ParseFloat(parts[2], 64)
			if err1 == nil && err2 == nil && err3 == nil && total > 0 && pct >= 0 && pct <= 100 {
				m.DiskUsedGB = types.Float(round2(used))
				m.DiskTotalGB = types.Float(round2(total))
				m.DiskPercent = types.Float(round2(pct))
			}
		}
	}
	return m
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
