package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/commandx/backend/internal/sandbox"
	"github.com/commandx/backend/internal/shared/types"
	"go.uber.org/zap"
)

// deniedTokens are rejected anywhere in a command, case-insensitively,
// before a shell is ever invoked. Multi-word entries match as substrings;
// single words match on word boundaries so that "su" blocks `su -` but
// not `cd sub`.
var deniedTokens = []string{
	"rm -rf", "sudo", "su", "chmod", "chown", "dd", "mkfs", "fdisk",
}

func deniedToken(lowerCommand string) (string, bool) {
	for _, tok := range deniedTokens {
		if strings.ContainsRune(tok, ' ') {
			if strings.Contains(lowerCommand, tok) {
				return tok, true
			}
			continue
		}
		if containsWord(lowerCommand, tok) {
			return tok, true
		}
	}
	return "", false
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		left := start == 0 || isWordBreak(s[start-1])
		right := end == len(s) || isWordBreak(s[end])
		if left && right {
			return true
		}
		i = start + 1
	}
}

// Letters, digits and underscore extend a word; anything else breaks it.
// "." and "-" must break so tool variants like `mkfs.ext4` still match
// their base token.
func isWordBreak(c byte) bool {
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_')
}

// Run executes a shell command string confined to the workspace root.
// Timeouts and refusals come back as exit code 1 with an explanatory
// message; Run never returns an error to its caller.
//
// A leading `cd <dir>` is handled here rather than by the shell: its
// target is resolved through the sandbox and becomes the working
// directory for the rest of the command, so the shell never gets a
// chance to chdir outside the root.
func (e *Executor) Run(ctx context.Context, ws Workspace, command string, timeout time.Duration) types.ExecResult {
	root, err := e.Root(ws)
	if err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: err.Error()}
	}

	lower := strings.ToLower(command)
	if tok, found := deniedToken(lower); found {
		return types.ExecResult{
			ExitCode: 1,
			Stderr:   fmt.Sprintf("command %q is not allowed in this workspace", tok),
		}
	}

	cwd, rest, denied := e.splitChdir(root, command)
	if denied {
		return types.ExecResult{
			ExitCode: 1,
			Stderr:   "access denied: path is outside the workspace",
		}
	}
	if _, err := os.Stat(cwd); err != nil {
		return types.ExecResult{ExitCode: 1, Stderr: "no such directory"}
	}
	if strings.TrimSpace(rest) == "" {
		// Bare `cd` has nothing left to run.
		return types.ExecResult{ExitCode: 0}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, stdout, stderr, err := e.spawner.Run(ctx, cwd, e.environ(root, lower), rest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.ExecResult{ExitCode: 1, Stderr: "command timed out"}
		}
		e.log.Warn("workspace command failed to spawn",
			zap.Int64("workspace_id", ws.ID), zap.Error(err))
		return types.ExecResult{ExitCode: 1, Stderr: err.Error()}
	}

	// pwd output would leak the host path of a virtual workspace. For a
	// compound command ending in pwd the whole stdout is rewritten to the
	// virtual directory, dropping any earlier output. Intentional: callers
	// use the trailing pwd to learn where they are, not to read the rest.
	if isPwd(rest) && code == 0 && stdout != "" {
		stdout = sandbox.Display(root, strings.TrimSpace(stdout)) + "\n"
	}

	return types.ExecResult{ExitCode: code, Stdout: stdout, Stderr: stderr}
}

// splitChdir separates a leading `cd <dir>` from the command and resolves
// the working directory it implies. Without one, the command runs at the
// root. The last return is true when the escape policy demands denial.
func (e *Executor) splitChdir(root, command string) (cwd, rest string, denied bool) {
	trimmed := strings.TrimSpace(command)
	if trimmed != "cd" && !strings.HasPrefix(trimmed, "cd ") {
		return root, command, false
	}

	target := strings.TrimSpace(strings.TrimPrefix(trimmed, "cd"))
	sepIdx, sepLen := -1, 0
	for _, sep := range []string{"&&", ";"} {
		if i := strings.Index(target, sep); i >= 0 && (sepIdx == -1 || i < sepIdx) {
			sepIdx, sepLen = i, len(sep)
		}
	}
	if sepIdx >= 0 {
		rest = strings.TrimSpace(target[sepIdx+sepLen:])
		target = strings.TrimSpace(target[:sepIdx])
	}
	target = stripQuotes(target)

	if e.rejectEscapes {
		resolved, err := sandbox.ResolveStrict(root, target)
		if err != nil {
			return "", "", true
		}
		return resolved, rest, false
	}

	resolved, err := sandbox.Resolve(root, target)
	if err != nil {
		return root, rest, false
	}
	if resolved == root && target != "" && target != "~" {
		e.noteClamp()
	}
	return resolved, rest, false
}

// environ builds the child environment. HOME and the cache directory are
// pinned inside the root so tools cannot scribble outside the workspace.
// Package installs that trigger secondary toolchains (pip pulling in
// cargo builds) get their tool homes redirected into the venv so the
// incidental cache trees stay inside it.
func (e *Executor) environ(root, lowerCommand string) []string {
	env := os.Environ()
	env = append(env,
		"HOME="+root,
		"XDG_CACHE_HOME="+filepath.Join(root, ".cache"),
	)

	venv := filepath.Join(root, "venv")
	if strings.Contains(lowerCommand, "pip install") {
		if info, err := os.Stat(venv); err == nil && info.IsDir() {
			for _, d := range []string{".cargo", ".rustup", ".cache"} {
				_ = os.MkdirAll(filepath.Join(venv, d), 0o755)
			}
			_ = os.MkdirAll(filepath.Join(venv, "Library", "Caches"), 0o755)
			env = append(env,
				"CARGO_HOME="+filepath.Join(venv, ".cargo"),
				"RUSTUP_HOME="+filepath.Join(venv, ".rustup"),
				"XDG_CACHE_HOME="+filepath.Join(venv, ".cache"),
				"HOME="+venv,
			)
		}
	}
	return env
}

func isPwd(command string) bool {
	trimmed := strings.TrimSpace(command)
	return trimmed == "pwd" || strings.HasSuffix(trimmed, " && pwd")
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
