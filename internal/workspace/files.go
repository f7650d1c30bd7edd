package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/commandx/backend/internal/sandbox"
	"github.com/commandx/backend/internal/shared/types"
	"github.com/gabriel-vasile/mimetype"
)

// List renders a directory listing in `ls -lah` form, with the `.` and
// `..` entries filtered out. Escaping paths follow the configured policy:
// clamp to the root by default.
func (e *Executor) List(ctx context.Context, ws Workspace, path string) types.ExecResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: err.Error()}
	}

	var target string
	if e.rejectEscapes {
		target, err = sandbox.ResolveStrict(root, path)
		if err != nil {
			return types.ExecResult{ExitCode: 1, Stderr: "access denied: path is outside the workspace"}
		}
	} else {
		target, err = sandbox.Resolve(root, path)
		if err != nil {
			return types.ExecResult{ExitCode: 1, Stderr: err.Error()}
		}
	}
	if !sandbox.Within(root, target) {
		e.noteClamp()
		target = root
	}

	info, err := os.Stat(target)
	if err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: fmt.Sprintf("Directory not found: %s", path)}
	}
	if !info.IsDir() {
		return types.ExecResult{ExitCode: 1, Stderr: fmt.Sprintf("Not a directory: %s", path)}
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "" {
		rel = "."
	}
	res := e.Run(ctx, ws, fmt.Sprintf("ls -lah %q", rel), 30*time.Second)
	res.Stdout = filterDotEntries(res.Stdout)
	return res
}

// Read returns the contents of a text file.
func (e *Executor) Read(ws Workspace, path string) types.ReadResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.ReadResult{Message: err.Error()}
	}
	target, err := sandbox.Resolve(root, path)
	if err != nil {
		return types.ReadResult{Message: err.Error()}
	}
	if !sandbox.Within(root, target) {
		return types.ReadResult{Message: "access denied: path is outside the workspace"}
	}

	info, err := os.Stat(target)
	if err != nil {
		return types.ReadResult{Message: fmt.Sprintf("File not found: %s", path)}
	}
	if info.IsDir() {
		return types.ReadResult{Message: fmt.Sprintf("Is a directory, not a file: %s", path)}
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return types.ReadResult{Message: fmt.Sprintf("Failed to read file: %v", err)}
	}
	if !isText(data) {
		return types.ReadResult{Message: "File is not text and cannot be edited"}
	}
	return types.ReadResult{Success: true, Content: string(data), Message: "File read successfully"}
}

// Write stores content at path, creating parent directories as needed.
func (e *Executor) Write(ws Workspace, path, content string) types.OpResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	target, err := sandbox.Resolve(root, path)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	if !sandbox.Within(root, target) {
		return types.OpResult{Message: "access denied: path is outside the workspace"}
	}

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return types.OpResult{Message: fmt.Sprintf("Is a directory, not a file: %s", path)}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return types.OpResult{Message: fmt.Sprintf("Failed to create parent directory: %v", err)}
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return types.OpResult{Message: fmt.Sprintf("Failed to write file: %v", err)}
	}
	return types.OpResult{Success: true, Message: fmt.Sprintf("File %s saved", path)}
}

// CreateFile creates an empty file; it refuses to overwrite.
func (e *Executor) CreateFile(ws Workspace, path string) types.OpResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	target, err := sandbox.Resolve(root, path)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	if !sandbox.Within(root, target) {
		return types.OpResult{Message: "access denied: path is outside the workspace"}
	}

	if _, err := os.Stat(target); err == nil {
		return types.OpResult{Message: fmt.Sprintf("File already exists: %s", path)}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return types.OpResult{Message: fmt.Sprintf("Failed to create parent directory: %v", err)}
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return types.OpResult{Message: fmt.Sprintf("Failed to create file: %v", err)}
	}
	f.Close()
	return types.OpResult{Success: true, Message: fmt.Sprintf("File %s created", path)}
}

// CreateDir creates a directory; it refuses if the path already exists.
func (e *Executor) CreateDir(ws Workspace, path string) types.OpResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	target, err := sandbox.Resolve(root, path)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	if !sandbox.Within(root, target) {
		return types.OpResult{Message: "access denied: path is outside the workspace"}
	}

	if _, err := os.Stat(target); err == nil {
		return types.OpResult{Message: fmt.Sprintf("Directory already exists: %s", path)}
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return types.OpResult{Message: fmt.Sprintf("Failed to create directory: %v", err)}
	}
	return types.OpResult{Success: true, Message: fmt.Sprintf("Directory %s created", path)}
}

// Rename moves oldPath to newPath within the workspace.
func (e *Executor) Rename(ws Workspace, oldPath, newPath string) types.OpResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	oldTarget, err := sandbox.Resolve(root, oldPath)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	newTarget, err := sandbox.Resolve(root, newPath)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	if !sandbox.Within(root, oldTarget) || !sandbox.Within(root, newTarget) {
		return types.OpResult{Message: "access denied: path is outside the workspace"}
	}

	if _, err := os.Stat(oldTarget); err != nil {
		return types.OpResult{Message: fmt.Sprintf("File or directory not found: %s", oldPath)}
	}
	if _, err := os.Stat(newTarget); err == nil {
		return types.OpResult{Message: fmt.Sprintf("File or directory already exists: %s", newPath)}
	}
	if err := os.Rename(oldTarget, newTarget); err != nil {
		return types.OpResult{Message: fmt.Sprintf("Failed to rename: %v", err)}
	}
	return types.OpResult{Success: true, Message: fmt.Sprintf("Renamed %s to %s", oldPath, newPath)}
}

// Delete removes a file or directory tree.
func (e *Executor) Delete(ws Workspace, path string) types.OpResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	target, err := sandbox.Resolve(root, path)
	if err != nil {
		return types.OpResult{Message: err.Error()}
	}
	if !sandbox.Within(root, target) {
		return types.OpResult{Message: "access denied: path is outside the workspace"}
	}
	if target == root {
		return types.OpResult{Message: "refusing to delete the workspace root"}
	}

	if _, err := os.Stat(target); err != nil {
		return types.OpResult{Message: fmt.Sprintf("File or directory not found: %s", path)}
	}
	if err := os.RemoveAll(target); err != nil {
		return types.OpResult{Message: fmt.Sprintf("Failed to delete: %v", err)}
	}
	return types.OpResult{Success: true, Message: fmt.Sprintf("Deleted %s", path)}
}

// isText applies mimetype detection with a UTF-8 sanity fallback: an empty
// file is text, a detected text/* type is text, anything else is not.
func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return utf8.Valid(data) && !strings.ContainsRune(string(data), 0)
}

func filterDotEntries(listing string) string {
	if listing == "" {
		return listing
	}
	lines := strings.Split(listing, "\n")
	kept := lines[:0]
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 9 {
			name := strings.Join(fields[8:], " ")
			if name == "." || name == ".." {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
