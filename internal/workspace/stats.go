package workspace

import (
	"fmt"
	"io/fs"
	"math/rand/v2"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/commandx/backend/internal/shared/types"
)

type treeTotals struct {
	bytes int64
	files int64
	dirs  int64
}

func (e *Executor) measure(root string) treeTotals {
	var bytes, files, dirs atomic.Int64

	conf := fastwalk.Config{Follow: false}
	_ = fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}
		if d.IsDir() {
			dirs.Add(1)
			return nil
		}
		files.Add(1)
		if info, err := d.Info(); err == nil {
			bytes.Add(info.Size())
		}
		return nil
	})

	return treeTotals{bytes: bytes.Load(), files: files.Load(), dirs: dirs.Load()}
}

// UsageStats returns a text report of the workspace's disk usage against
// its configured quotas. The report describes the virtual machine the
// workspace models, never the physical host.
func (e *Executor) UsageStats(ws Workspace) types.ExecResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: err.Error()}
	}

	t := e.measure(root)
	report := fmt.Sprintf(`=== Server Statistics ===
Server: %s
Root Directory: ~
Total Size: %.2f MB
Files: %d
Directories: %d
CPU Cores: %d
Memory: %d GB
Disk: %d GB
`, ws.Name, float64(t.bytes)/(1024*1024), t.files, t.dirs, ws.CPUCores, ws.MemoryGB, ws.DiskGB)

	return types.ExecResult{Stdout: report}
}

// DetailedStats returns numeric metrics for a workspace. Disk usage is
// real (tree size against the disk quota); CPU and memory are modeled
// from tree activity and the configured quotas, with a little jitter so
// dashboards show a live machine rather than a flat line.
func (e *Executor) DetailedStats(ws Workspace) types.Metrics {
	var m types.Metrics

	root, err := e.Root(ws)
	if err != nil {
		return m
	}
	t := e.measure(root)

	baseCPU := float64(30 + t.files%20)
	if baseCPU > 80 {
		baseCPU = 80
	}
	cpu := baseCPU + (rand.Float64()*20 - 5)
	cpu = clampRange(cpu, 5, 95)
	m.CPUPercent = types.Float(round2(cpu))

	if ws.MemoryGB > 0 {
		totalMB := float64(ws.MemoryGB) * 1024
		fromFiles := float64(t.bytes) / (1024 * 1024)
		if fromFiles > totalMB*0.8 {
			fromFiles = totalMB * 0.8
		}
		used := fromFiles + totalMB*0.3 + (rand.Float64()*150 - 50)
		used = clampRange(used, totalMB*0.1, totalMB*0.85)
		m.MemoryTotalMB = types.Float(round2(totalMB))
		m.MemoryUsedMB = types.Float(round2(used))
		m.MemoryPercent = types.Float(round2(used / totalMB * 100))
	}

	if ws.DiskGB > 0 {
		usedGB := float64(t.bytes) / (1024 * 1024 * 1024)
		m.DiskUsedGB = types.Float(round2(usedGB))
		m.DiskTotalGB = types.Float(round2(float64(ws.DiskGB)))
		m.DiskPercent = types.Float(round2(usedGB / float64(ws.DiskGB) * 100))
	}

	return m
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
