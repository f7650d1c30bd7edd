// Package sandbox confines caller-supplied paths to a workspace root.
//
// Callers address a workspace with virtual, ~-rooted paths ("~", "~/sub").
// Resolve turns those into absolute host paths that provably stay inside
// the root; Display is the inverse, hiding the host layout from callers.
//
// Traversal handling is deliberately aggressive: every ".." segment is
// dropped rather than honored, so no number of them walks even one level
// up. Escapes that survive segment filtering (symlinks) are clamped to the
// root, not reported as errors; operations that must refuse instead of
// degrade use ResolveStrict.
package sandbox
