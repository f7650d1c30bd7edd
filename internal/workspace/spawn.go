package workspace

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// Spawner runs a shell command string in a directory with a fixed
// environment and captures its outcome. The denylist, timeout, and
// environment-injection logic above it never touch os/exec directly,
// so they stay testable without spawning processes.
type Spawner interface {
	Run(ctx context.Context, dir string, env []string, command string) (int, string, string, error)
}

type shellSpawner struct{}

func (shellSpawner) Run(ctx context.Context, dir string, env []string, command string) (int, string, string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The shell runs in its own process group so cancellation reaches its
	// children too; WaitDelay stops Wait from blocking on output pipes a
	// surviving grandchild still holds.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if ctx.Err() != nil {
		return 1, stdout.String(), stderr.String(), ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout.String(), stderr.String(), nil
		}
		return 1, stdout.String(), stderr.String(), err
	}
	return 0, stdout.String(), stderr.String(), nil
}
