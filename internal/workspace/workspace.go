package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/commandx/backend/internal/infrastructure/logging"
)

// Workspace identifies one sandboxed local target and its resource quotas.
// The quotas describe the virtual machine the workspace models, not the
// host it happens to run on.
type Workspace struct {
	ID       int64
	TenantID int64
	Name     string
	CPUCores int
	MemoryGB int
	DiskGB   int
}

// Executor runs commands and file operations confined to workspace roots.
type Executor struct {
	base          string
	spawner       Spawner
	rejectEscapes bool
	log           *logging.Logger
	clamped       func() // optional hook, counts sandbox clamps
}

// Option configures an Executor.
type Option func(*Executor)

// WithSpawner replaces the process spawner, used by tests.
func WithSpawner(s Spawner) Option {
	return func(e *Executor) { e.spawner = s }
}

// WithRejectEscapes switches list/cd from clamp-to-root to hard denial
// when a caller path resolves outside the root.
func WithRejectEscapes() Option {
	return func(e *Executor) { e.rejectEscapes = true }
}

// WithClampHook installs a callback invoked whenever a path is clamped.
func WithClampHook(fn func()) Option {
	return func(e *Executor) { e.clamped = fn }
}

// New creates an Executor rooted at base.
func New(base string, log *logging.Logger, opts ...Option) *Executor {
	e := &Executor{
		base:    base,
		spawner: &shellSpawner{},
		log:     log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Root returns the workspace's directory, creating it on first access.
// Roots are derived disjointly from tenant and workspace identifiers, so
// no two workspaces can alias the same subtree.
func (e *Executor) Root(ws Workspace) (string, error) {
	root := filepath.Join(e.base,
		fmt.Sprintf("user_%d", ws.TenantID),
		fmt.Sprintf("server_%d", ws.ID))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create workspace root: %w", err)
	}
	// Canonical form, so containment checks against resolved paths hold.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return root, nil
}

// TestConnection reports whether the workspace's root exists.
func (e *Executor) TestConnection(ws Workspace) (bool, string) {
	root, err := e.Root(ws)
	if err != nil {
		return false, fmt.Sprintf("workspace unavailable: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		return false, "workspace directory not found"
	}
	return true, "workspace is active"
}

func (e *Executor) noteClamp() {
	if e.clamped != nil {
		e.clamped()
	}
}
