package types

// ExecResult is the outcome of a command that actually ran (or was refused
// before running, in which case ExitCode is 1 and Stderr explains why).
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Ok reports whether the command exited cleanly.
func (r ExecResult) Ok() bool { return r.ExitCode == 0 }

// OpResult is the outcome of a structured file operation.
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ReadResult carries file contents on success, a message otherwise.
type ReadResult struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Message string `json:"message"`
}

// SearchResult lists display-form paths matched by a filename search.
type SearchResult struct {
	Success bool     `json:"success"`
	Files   []string `json:"files"`
	Count   int      `json:"count"`
	Message string   `json:"message"`
}

// Metrics is a point-in-time resource snapshot. Fields are pointers because
// any of them may be unavailable on a given target; absent values marshal
// as null rather than zero.
type Metrics struct {
	CPUPercent    *float64 `json:"cpu_percent"`
	MemoryPercent *float64 `json:"memory_percent"`
	MemoryUsedMB  *float64 `json:"memory_used_mb"`
	MemoryTotalMB *float64 `json:"memory_total_mb"`
	DiskPercent   *float64 `json:"disk_percent"`
	DiskUsedGB    *float64 `json:"disk_used_gb"`
	DiskTotalGB   *float64 `json:"disk_total_gb"`
}

// Empty reports whether no metric could be collected.
func (m Metrics) Empty() bool {
	return m.CPUPercent == nil && m.MemoryPercent == nil && m.MemoryUsedMB == nil &&
		m.MemoryTotalMB == nil && m.DiskPercent == nil && m.DiskUsedGB == nil &&
		m.DiskTotalGB == nil
}

// Float returns a pointer to v, for populating optional metric fields.
func Float(v float64) *float64 { return &v }
