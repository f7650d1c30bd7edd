package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/commandx/backend/internal/infrastructure/logging"
	"github.com/commandx/backend/internal/infrastructure/monitoring"
	"github.com/commandx/backend/internal/remote"
	"github.com/commandx/backend/internal/shared/types"
	"github.com/commandx/backend/internal/workspace"
	"go.uber.org/zap"
)

// Kind selects which backend serves a target.
type Kind int

const (
	// KindWorkspace is a sandboxed directory on this host.
	KindWorkspace Kind = iota
	// KindRemote is an SSH-reachable machine.
	KindRemote
)

func (k Kind) String() string {
	if k == KindRemote {
		return "remote"
	}
	return "workspace"
}

// Target is a resolved dispatch target. Exactly one of Credentials or
// Workspace is meaningful, selected by Kind.
type Target struct {
	Kind        Kind
	Credentials remote.Credentials
	Workspace   workspace.Workspace
}

// CredentialSource resolves a target identity to its dispatch target:
// connection material for remote machines, quotas for workspaces.
type CredentialSource interface {
	Lookup(ctx context.Context, targetID int64) (Target, error)
}

// Router dispatches operations to the local executor or the remote
// commander and normalizes both into the shared result shapes, so
// upstream callers never know which backend served them.
type Router struct {
	source CredentialSource
	local  *workspace.Executor
	remote *remote.Commander

	execTimeout    time.Duration
	installTimeout time.Duration

	log     *logging.Logger
	metrics *monitoring.Metrics
}

// Config carries the router's collaborators and timeout policy.
type Config struct {
	Source         CredentialSource
	Local          *workspace.Executor
	Remote         *remote.Commander
	ExecTimeout    time.Duration
	InstallTimeout time.Duration
	Log            *logging.Logger
	Metrics        *monitoring.Metrics
}

// New creates a Router. Metrics may be nil.
func New(cfg Config) *Router {
	return &Router{
		source:         cfg.Source,
		local:          cfg.Local,
		remote:         cfg.Remote,
		execTimeout:    cfg.ExecTimeout,
		installTimeout: cfg.InstallTimeout,
		log:            cfg.Log,
		metrics:        cfg.Metrics,
	}
}

// installPrefixes mark commands allowed to run far beyond the ordinary
// exec timeout. Package installs legitimately take minutes.
var installPrefixes = []string{
	"pip install", "pip3 install",
	"npm install", "npm i ", "yarn add",
	"apt-get install", "apt install",
	"cargo install", "go install",
}

func isInstallCommand(command string) bool {
	c := strings.ToLower(strings.TrimSpace(command))
	for _, p := range installPrefixes {
		if strings.HasPrefix(c, p) || c == strings.TrimSpace(p) {
			return true
		}
	}
	return false
}

// timeoutFor picks the effective timeout: the caller's explicit value
// when given, otherwise the install timeout for known-slow commands and
// the exec timeout for everything else.
func (r *Router) timeoutFor(command string, requested time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	if isInstallCommand(command) {
		return r.installTimeout
	}
	return r.execTimeout
}

// Exec runs a shell command on the target.
func (r *Router) Exec(ctx context.Context, targetID int64, command string, timeout time.Duration) types.ExecResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: r.lookupFailure(targetID, err)}
	}
	effective := r.timeoutFor(command, timeout)

	var res types.ExecResult
	start := time.Now()
	switch target.Kind {
	case KindRemote:
		res = r.remote.Run(ctx, target.Credentials, command, effective)
	default:
		res = r.local.Run(ctx, target.Workspace, command, effective)
	}
	r.record(target.Kind, res.Ok(), start)
	return res
}

// List produces an `ls -lah` style listing of path on the target.
func (r *Router) List(ctx context.Context, targetID int64, path string) types.ExecResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.List(ctx, target.Credentials, path)
	default:
		return r.local.List(ctx, target.Workspace, path)
	}
}

// Read returns the contents of a text file on the target.
func (r *Router) Read(ctx context.Context, targetID int64, path string) types.ReadResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.ReadResult{Message: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.Read(ctx, target.Credentials, path)
	default:
		return r.local.Read(target.Workspace, path)
	}
}

// Write stores content at path on the target.
func (r *Router) Write(ctx context.Context, targetID int64, path, content string) types.OpResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.OpResult{Message: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.Write(ctx, target.Credentials, path, content)
	default:
		return r.local.Write(target.Workspace, path, content)
	}
}

// CreateFile creates an empty file on the target.
func (r *Router) CreateFile(ctx context.Context, targetID int64, path string) types.OpResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.OpResult{Message: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.CreateFile(ctx, target.Credentials, path)
	default:
		return r.local.CreateFile(target.Workspace, path)
	}
}

// CreateDir creates a directory on the target.
func (r *Router) CreateDir(ctx context.Context, targetID int64, path string) types.OpResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.OpResult{Message: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.CreateDir(ctx, target.Credentials, path)
	default:
		return r.local.CreateDir(target.Workspace, path)
	}
}

// Rename moves oldPath to newPath on the target.
func (r *Router) Rename(ctx context.Context, targetID int64, oldPath, newPath string) types.OpResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.OpResult{Message: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.Rename(ctx, target.Credentials, oldPath, newPath)
	default:
		return r.local.Rename(target.Workspace, oldPath, newPath)
	}
}

// Delete removes a file or directory tree on the target.
func (r *Router) Delete(ctx context.Context, targetID int64, path string) types.OpResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.OpResult{Message: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.Delete(ctx, target.Credentials, path)
	default:
		return r.local.Delete(target.Workspace, path)
	}
}

// Search finds files whose names contain pattern under searchPath.
func (r *Router) Search(ctx context.Context, targetID int64, searchPath, pattern string, maxResults int) types.SearchResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.SearchResult{Files: []string{}, Message: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.Search(ctx, target.Credentials, searchPath, pattern, maxResults)
	default:
		return r.local.Search(target.Workspace, searchPath, pattern, maxResults)
	}
}

// Stats returns a human-readable usage report for the target.
func (r *Router) Stats(ctx context.Context, targetID int64) types.ExecResult {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: r.lookupFailure(targetID, err)}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.SystemStats(ctx, target.Credentials)
	default:
		return r.local.UsageStats(target.Workspace)
	}
}

// DetailedStats returns numeric usage metrics; fields the target cannot
// report stay nil.
func (r *Router) DetailedStats(ctx context.Context, targetID int64) types.Metrics {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		r.log.Warn("detailed stats lookup failed",
			zap.Int64("target_id", targetID),
			zap.Error(err))
		return types.Metrics{}
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.DetailedStats(ctx, target.Credentials)
	default:
		return r.local.DetailedStats(target.Workspace)
	}
}

// TestConnection reports whether the target is reachable.
func (r *Router) TestConnection(ctx context.Context, targetID int64) (bool, string) {
	target, err := r.source.Lookup(ctx, targetID)
	if err != nil {
		return false, r.lookupFailure(targetID, err)
	}
	switch target.Kind {
	case KindRemote:
		return r.remote.TestConnection(ctx, target.Credentials)
	default:
		return r.local.TestConnection(target.Workspace)
	}
}

func (r *Router) lookupFailure(targetID int64, err error) string {
	r.log.Warn("target lookup failed",
		zap.Int64("target_id", targetID),
		zap.Error(err))
	return fmt.Sprintf("unknown target %d: %v", targetID, err)
}

func (r *Router) record(kind Kind, ok bool, start time.Time) {
	if r.metrics == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.metrics.RecordCommand(kind.String(), outcome, time.Since(start))
}
