// Package router dispatches command and file operations to the backend
// that owns a target: the local sandboxed executor for workspaces, the
// SSH session pool for remote machines. Results from both backends come
// back in the same shapes, so callers stay backend-agnostic.
package router
