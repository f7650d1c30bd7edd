package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/commandx/backend/internal/sandbox"
	"github.com/commandx/backend/internal/shared/types"
)

var errSearchLimit = errors.New("search result limit reached")

// Search recursively matches *pattern* against file names under
// searchPath and returns at most maxResults display-form paths. Matches
// that somehow resolve outside the root are skipped; searchPath is
// already sandboxed, so that filter is defensive.
func (e *Executor) Search(ws Workspace, searchPath, pattern string, maxResults int) types.SearchResult {
	if maxResults < 1 {
		maxResults = 100
	}

	root, err := e.Root(ws)
	if err != nil {
		return types.SearchResult{Files: []string{}, Message: err.Error()}
	}
	searchRoot, err := sandbox.Resolve(root, searchPath)
	if err != nil {
		return types.SearchResult{Files: []string{}, Message: err.Error()}
	}

	info, err := os.Stat(searchRoot)
	if err != nil || !info.IsDir() {
		return types.SearchResult{
			Files:   []string{},
			Message: fmt.Sprintf("Directory not found: %s", searchPath),
		}
	}

	glob := "*" + pattern + "*"
	var (
		mu    sync.Mutex
		files []string
	)

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, searchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, matching `find 2>/dev/null`
		}
		if d.IsDir() {
			return nil
		}
		matched, _ := doublestar.Match(glob, d.Name())
		if !matched {
			return nil
		}
		if !sandbox.Within(root, path) {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if len(files) >= maxResults {
			return errSearchLimit
		}
		files = append(files, sandbox.Display(root, path))
		if len(files) >= maxResults {
			return errSearchLimit
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errSearchLimit) {
		return types.SearchResult{
			Files:   []string{},
			Message: fmt.Sprintf("Search failed: %v", walkErr),
		}
	}

	sort.Strings(files)
	return types.SearchResult{
		Success: true,
		Files:   files,
		Count:   len(files),
		Message: fmt.Sprintf("Found %d file(s)", len(files)),
	}
}
