package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/commandx/backend/internal/shared/types"
)

// toolDirs are cache trees that package managers scatter into $HOME.
// They are junk at the workspace root but may be load-bearing inside a
// venv, so only the root copies are removed.
var toolDirs = []string{".pip_cache", ".rustup", ".cargo", "Library"}

// CleanupToolDirs removes stray toolchain cache directories from the
// workspace root, leaving any copies under venv/ untouched.
func (e *Executor) CleanupToolDirs(ws Workspace) types.OpResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}

	var removed, failed []string
	for _, name := range toolDirs {
		path := filepath.Join(root, name)
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		removed = append(removed, name)
	}

	switch {
	case len(failed) > 0:
		return types.OpResult{
			Message: fmt.Sprintf("Failed to remove: %s", strings.Join(failed, "; ")),
		}
	case len(removed) > 0:
		return types.OpResult{
			Success: true,
			Message: fmt.Sprintf("Removed: %s", strings.Join(removed, ", ")),
		}
	default:
		return types.OpResult{Success: true, Message: "No stray tool directories found"}
	}
}
