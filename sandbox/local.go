package sandbox

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/lilamaris/senaka"
)

// timeoutExitCode mirrors the exit status of timeout(1).
const timeoutExitCode = 124

// runLocal executes one command in the group's workspace directory via the
// configured shell.
func (r *Runner) runLocal(ctx context.Context, cmd, workspaceGroupID string) (senaka.ToolResult, error) {
	result := senaka.ToolResult{
		Cmd:              cmd,
		Runner:           senaka.RunnerLocal,
		WorkspaceGroupID: workspaceGroupID,
	}

	dir, err := r.groupDir(workspaceGroupID)
	if err != nil {
		result.ExitCode = -1
		result.Stderr = normalizeOutput("workspace setup: " + err.Error())
		return result, nil
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if r.opts.TimeoutMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(r.opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	stdout := &limitedWriter{max: r.opts.MaxBufferBytes}
	stderr := &limitedWriter{max: r.opts.MaxBufferBytes}

	proc := exec.CommandContext(runCtx, r.opts.ShellPath, "-c", cmd)
	proc.Dir = dir
	proc.Stdout = stdout
	proc.Stderr = stderr

	runErr := proc.Run()
	result.Stdout = normalizeOutput(stdout.output())
	result.Stderr = normalizeOutput(stderr.output())

	switch {
	case ctx.Err() != nil:
		return senaka.ToolResult{}, ctx.Err()
	case runErr == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.ExitCode = timeoutExitCode
		result.Stderr = normalizeOutput(result.Stderr + "\ncommand timed out")
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Stderr = normalizeOutput(result.Stderr + "\n" + runErr.Error())
		}
	}

	r.logger.Debug("sandbox command finished",
		"runner", senaka.RunnerLocal, "group", workspaceGroupID,
		"exit", result.ExitCode, "cmd", cmd)
	return result, nil
}
