package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	units "github.com/docker/go-units"

	"github.com/lilamaris/senaka"
)

// dockerBackend keeps one long-lived container per workspace group and runs
// each command as an exec inside it, so state (files, installed tools)
// persists across loop steps.
type dockerBackend struct {
	cli    *client.Client
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	ready map[string]bool // container name → ensured this process
}

func newDockerBackend(opts Options, logger *slog.Logger) (*dockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &dockerBackend{
		cli:    cli,
		opts:   opts,
		logger: logger,
		ready:  make(map[string]bool),
	}, nil
}

// run executes one command in the group's container. Daemon and setup
// failures surface as exit -1 results; only ctx cancellation is an error.
func (b *dockerBackend) run(ctx context.Context, cmd, workspaceGroupID string) (senaka.ToolResult, error) {
	result := senaka.ToolResult{
		Cmd:              cmd,
		Runner:           senaka.RunnerDocker,
		WorkspaceGroupID: workspaceGroupID,
	}

	name, err := b.ensureContainer(ctx, workspaceGroupID)
	if err != nil {
		if ctx.Err() != nil {
			return senaka.ToolResult{}, ctx.Err()
		}
		result.ExitCode = -1
		result.Stderr = normalizeOutput("container setup: " + err.Error())
		return result, nil
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if b.opts.TimeoutMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(b.opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	stdout := &limitedWriter{max: b.opts.MaxBufferBytes}
	stderr := &limitedWriter{max: b.opts.MaxBufferBytes}
	exitCode, execErr := b.exec(runCtx, name, cmd, stdout, stderr)

	result.Stdout = normalizeOutput(stdout.output())
	result.Stderr = normalizeOutput(stderr.output())

	switch {
	case ctx.Err() != nil:
		return senaka.ToolResult{}, ctx.Err()
	case runCtx.Err() == context.DeadlineExceeded:
		result.ExitCode = timeoutExitCode
		result.Stderr = normalizeOutput(result.Stderr + "\ncommand timed out")
	case execErr != nil:
		result.ExitCode = -1
		result.Stderr = normalizeOutput(result.Stderr + "\n" + execErr.Error())
	default:
		result.ExitCode = exitCode
	}

	b.logger.Debug("sandbox command finished",
		"runner", senaka.RunnerDocker, "group", workspaceGroupID,
		"exit", result.ExitCode, "cmd", cmd)
	return result, nil
}

// exec runs one command in an existing container and returns its exit code.
func (b *dockerBackend) exec(ctx context.Context, containerName, cmd string, stdout, stderr *limitedWriter) (int, error) {
	created, err := b.cli.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		Cmd:          []string{b.opts.DockerShellPath, "-c", cmd},
		WorkingDir:   b.opts.DockerWorkspaceRoot,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return 0, err
	}

	attach, err := b.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, err
	}
	defer attach.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, attach.Reader); err != nil && ctx.Err() == nil {
		return 0, err
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	inspect, err := b.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return 0, err
	}
	return inspect.ExitCode, nil
}

// ensureContainer finds or creates the group's container and makes sure it
// is running. The first ensure in a process also runs the workspace init
// command and verifies required tools.
func (b *dockerBackend) ensureContainer(ctx context.Context, workspaceGroupID string) (string, error) {
	name := b.opts.DockerContainerPrefix + sanitizeName(workspaceGroupID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready[name] {
		return name, nil
	}

	info, err := b.cli.ContainerInspect(ctx, name)
	switch {
	case err == nil:
		if info.State == nil || !info.State.Running {
			if err := b.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
				return "", err
			}
		}
	case client.IsErrNotFound(err):
		if err := b.createContainer(ctx, name, workspaceGroupID); err != nil {
			return "", err
		}
		if init := strings.TrimSpace(b.opts.DockerWorkspaceInitCommand); init != "" {
			out := &limitedWriter{max: b.opts.MaxBufferBytes}
			if code, err := b.exec(ctx, name, init, out, out); err != nil {
				return "", fmt.Errorf("workspace init: %w", err)
			} else if code != 0 {
				return "", fmt.Errorf("workspace init exited %d: %s", code, out.output())
			}
		}
	default:
		return "", err
	}

	if err := b.verifyTools(ctx, name); err != nil {
		return "", err
	}
	b.ready[name] = true
	return name, nil
}

func (b *dockerBackend) createContainer(ctx context.Context, name, workspaceGroupID string) error {
	hostDir, err := hostWorkspaceDir(b.opts, workspaceGroupID)
	if err != nil {
		return err
	}

	resources := container.Resources{}
	if b.opts.DockerMemory != "" {
		mem, err := units.RAMInBytes(b.opts.DockerMemory)
		if err != nil {
			return fmt.Errorf("docker memory %q: %w", b.opts.DockerMemory, err)
		}
		resources.Memory = mem
	}
	if b.opts.DockerCpus > 0 {
		resources.NanoCPUs = int64(b.opts.DockerCpus * 1e9)
	}
	if b.opts.DockerPidsLimit > 0 {
		pids := b.opts.DockerPidsLimit
		resources.PidsLimit = &pids
	}

	hostCfg := &container.HostConfig{
		Binds:     []string{hostDir + ":" + b.opts.DockerWorkspaceRoot},
		Resources: resources,
	}
	if b.opts.DockerNetwork != "" {
		hostCfg.NetworkMode = container.NetworkMode(b.opts.DockerNetwork)
	}

	_, err = b.cli.ContainerCreate(ctx, &container.Config{
		Image:      b.opts.DockerImage,
		Entrypoint: strslice.StrSlice{"sleep", "infinity"},
		WorkingDir: b.opts.DockerWorkspaceRoot,
	}, hostCfg, nil, nil, name)
	if err != nil {
		return err
	}
	b.logger.Info("sandbox container created", "name", name, "image", b.opts.DockerImage)
	return b.cli.ContainerStart(ctx, name, container.StartOptions{})
}

// verifyTools checks every required tool resolves inside the container.
func (b *dockerBackend) verifyTools(ctx context.Context, name string) error {
	for _, tool := range b.opts.DockerRequiredTools {
		out := &limitedWriter{max: b.opts.MaxBufferBytes}
		code, err := b.exec(ctx, name, "command -v "+tool, out, out)
		if err != nil {
			return err
		}
		if code != 0 {
			return fmt.Errorf("required tool %q missing from image %s", tool, b.opts.DockerImage)
		}
	}
	return nil
}

func hostWorkspaceDir(opts Options, workspaceGroupID string) (string, error) {
	r := &Runner{opts: opts}
	return r.groupDir(workspaceGroupID)
}
