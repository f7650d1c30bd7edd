// Package workspace executes commands and file operations against
// sandboxed local directories that stand in for allocated servers.
//
// Each workspace root is derived disjointly from its tenant and
// workspace identifiers and created lazily on first access. Every path
// a caller supplies goes through the sandbox package before any
// filesystem or shell operation touches it, and every path returned to
// a caller is in ~-rooted display form.
//
// Commands run through a Spawner so the denylist, timeout, and
// environment-injection logic is testable without spawning processes.
// The workspace models a resource-limited virtual machine: usage stats
// report against the configured quotas, not the host.
package workspace
