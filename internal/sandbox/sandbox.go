package sandbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// ErrEscape is returned by ResolveStrict when the input would resolve
// outside the workspace root.
var ErrEscape = errors.New("path escapes workspace root")

// Resolve maps a caller-supplied virtual path onto an absolute path that is
// guaranteed to be the root or a descendant of it.
//
// "" and "~" mean the root itself. A leading "~/" or "/" is stripped; inputs
// are never treated as host-absolute. Every ".." segment is dropped outright
// rather than walking up, so "../../etc" resolves to "etc" under the root.
// If the final path still lands outside the root (symlinks), the root is
// returned instead of an error: callers must check the result, not rely on
// a failure to signal an escape attempt.
//
// The only error condition is a root that cannot itself be resolved.
func Resolve(root, input string) (string, error) {
	rootAbs, err := resolveRoot(root)
	if err != nil {
		return "", err
	}

	rel := Clean(input)
	if rel == "" {
		return rootAbs, nil
	}

	joined, err := securejoin.SecureJoin(rootAbs, rel)
	if err != nil {
		return rootAbs, nil
	}

	resolved := normalize(joined)
	if !Within(rootAbs, resolved) {
		return rootAbs, nil
	}
	return resolved, nil
}

// ResolveStrict is Resolve with the clamp replaced by ErrEscape. Any input
// that attempts traversal or a host-absolute path is refused outright, even
// when dropping its ".." segments would land it back inside the root.
// Mutating operations that must refuse rather than degrade use this variant.
func ResolveStrict(root, input string) (string, error) {
	if requestedEscape(input) {
		return "", fmt.Errorf("%w: %s", ErrEscape, input)
	}
	rootAbs, err := resolveRoot(root)
	if err != nil {
		return "", err
	}
	rel := Clean(input)
	if rel == "" {
		return rootAbs, nil
	}
	joined, err := securejoin.SecureJoin(rootAbs, rel)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEscape, input)
	}
	resolved := normalize(joined)
	if !Within(rootAbs, resolved) {
		return "", fmt.Errorf("%w: %s", ErrEscape, input)
	}
	return resolved, nil
}

// Clean reduces a virtual path to its safe root-relative form. Empty
// segments, ".", every "..", and any segment that still smells of traversal
// are dropped. An empty result means the root itself.
func Clean(input string) string {
	if input == "" || input == "~" {
		return ""
	}
	input = strings.TrimPrefix(input, "~/")
	input = strings.TrimPrefix(input, "/")

	var safe []string
	for _, part := range strings.Split(input, "/") {
		part = strings.TrimSpace(part)
		switch {
		case part == "" || part == ".":
		case part == "..":
		case strings.Contains(part, "..") || strings.HasPrefix(part, "/"):
		default:
			safe = append(safe, part)
		}
	}
	return filepath.Join(safe...)
}

// Within reports whether path equals root or is a descendant of it. Both
// arguments must already be absolute and normalized.
func Within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// Display converts an absolute path back to the ~-rooted virtual form shown
// to callers. Paths at the root become "~"; descendants become "~/sub/dir";
// anything outside the root also reports "~" so the real layout never leaks.
func Display(root, path string) string {
	rootAbs, err := resolveRoot(root)
	if err != nil {
		return "~"
	}
	abs := normalize(path)
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "~"
	}
	if rel == "." {
		return "~"
	}
	return "~/" + filepath.ToSlash(rel)
}

// requestedEscape reports whether the raw input attempted traversal or a
// host-absolute path. Used only to decide strict-mode rejection.
func requestedEscape(input string) bool {
	if strings.HasPrefix(input, "/") {
		return true
	}
	for _, part := range strings.Split(input, "/") {
		if strings.Contains(part, "..") {
			return true
		}
	}
	return false
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}

// normalize resolves symlinks when the path exists; otherwise it resolves
// the deepest existing ancestor and rejoins the remainder, so a not-yet
// created file under a symlinked parent still normalizes consistently.
func normalize(path string) string {
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	dir, base := filepath.Split(path)
	dir = filepath.Clean(dir)
	if dir == path {
		return path
	}
	return filepath.Join(normalize(dir), base)
}
