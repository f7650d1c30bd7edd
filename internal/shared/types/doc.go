// Package types provides the shared result shapes returned by every
// command and file operation, regardless of which backend served it.
//
// Result Types:
//   - ExecResult: exit code plus captured stdout/stderr
//   - OpResult: success flag with a human-readable message
//   - ReadResult: file contents or a failure message
//   - SearchResult: matched display-form paths with a count
//   - Metrics: nullable numeric resource snapshot
//
// Upstream HTTP handlers marshal these directly; nothing in this package
// depends on the remote or workspace backends.
package types
