// Package sandbox executes gated shell commands for the agent loop. Two
// backends share one Runner surface: local subprocesses per workspace
// directory, and a persistent Docker container per workspace group with one
// exec per command. Command failure is a result, never an error; only
// context cancellation propagates.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lilamaris/senaka"
)

// Output normalization bound for each of stdout and stderr.
const maxOutputChars = 12000

const truncationMarker = "\n[output truncated]"

// Defaults applied by New.
const (
	DefaultTimeoutMs      = 60000
	DefaultMaxBufferBytes = 256 * 1024
	DefaultShellPath      = "/bin/sh"

	DefaultDockerImage           = "debian:bookworm-slim"
	DefaultDockerWorkspaceRoot   = "/workspace"
	DefaultDockerContainerPrefix = "senaka-ws-"
)

// Options configures a Runner. Zero values take the defaults above; Mode
// defaults to local.
type Options struct {
	Mode           string // senaka.RunnerLocal or senaka.RunnerDocker
	TimeoutMs      int
	MaxBufferBytes int
	ShellPath      string
	// WorkspaceRoot holds one subdirectory per workspace group. In docker
	// mode it is the host side of the bind mount.
	WorkspaceRoot string

	DockerShellPath            string
	DockerImage                string
	DockerWorkspaceRoot        string
	DockerContainerPrefix      string
	DockerNetwork              string
	DockerMemory               string // go-units size string, e.g. "512m"
	DockerCpus                 float64
	DockerPidsLimit            int64
	DockerRequiredTools        []string
	DockerWorkspaceInitCommand string
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = senaka.RunnerLocal
	}
	if o.TimeoutMs == 0 {
		o.TimeoutMs = DefaultTimeoutMs
	}
	if o.MaxBufferBytes == 0 {
		o.MaxBufferBytes = DefaultMaxBufferBytes
	}
	if o.ShellPath == "" {
		o.ShellPath = DefaultShellPath
	}
	if o.WorkspaceRoot == "" {
		o.WorkspaceRoot = filepath.Join(os.TempDir(), "senaka-workspaces")
	}
	if o.DockerShellPath == "" {
		o.DockerShellPath = DefaultShellPath
	}
	if o.DockerImage == "" {
		o.DockerImage = DefaultDockerImage
	}
	if o.DockerWorkspaceRoot == "" {
		o.DockerWorkspaceRoot = DefaultDockerWorkspaceRoot
	}
	if o.DockerContainerPrefix == "" {
		o.DockerContainerPrefix = DefaultDockerContainerPrefix
	}
	return o
}

// Runner implements senaka.SandboxRunner over the configured backend.
type Runner struct {
	opts   Options
	logger *slog.Logger
	docker *dockerBackend // nil in local mode
}

// New validates the options and builds a Runner. Docker mode connects to the
// daemon from the environment at construction time.
func New(opts Options, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	r := &Runner{opts: opts, logger: logger}
	switch opts.Mode {
	case senaka.RunnerLocal:
	case senaka.RunnerDocker:
		backend, err := newDockerBackend(opts, logger)
		if err != nil {
			return nil, &senaka.ErrConfig{Reason: "sandbox docker: " + err.Error()}
		}
		r.docker = backend
	default:
		return nil, &senaka.ErrConfig{Reason: fmt.Sprintf("sandbox: unknown mode %q", opts.Mode)}
	}
	return r, nil
}

// Run executes one shell command in the workspace group and returns its
// outcome. The returned error is non-nil only when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, cmd, workspaceGroupID string) (senaka.ToolResult, error) {
	if r.docker != nil {
		return r.docker.run(ctx, cmd, workspaceGroupID)
	}
	return r.runLocal(ctx, cmd, workspaceGroupID)
}

// groupDir resolves (and creates) the host workspace directory for a group.
func (r *Runner) groupDir(workspaceGroupID string) (string, error) {
	dir := filepath.Join(r.opts.WorkspaceRoot, sanitizeName(workspaceGroupID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// sanitizeName reduces an id to a filesystem- and container-name-safe form.
func sanitizeName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}

// limitedWriter caps captured output at max bytes, recording whether
// anything was dropped. Write never fails so the subprocess keeps running.
type limitedWriter struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if remain := w.max - w.buf.Len(); remain > 0 {
		if len(p) > remain {
			p = p[:remain]
			w.truncated = true
		}
		w.buf.Write(p)
	} else if n > 0 {
		w.truncated = true
	}
	return n, nil
}

func (w *limitedWriter) output() string {
	s := w.buf.String()
	if w.truncated {
		s += truncationMarker
	}
	return s
}

// normalizeOutput bounds a captured stream to the wire limit, marking cuts.
func normalizeOutput(s string) string {
	if len(s) <= maxOutputChars {
		return s
	}
	cut := maxOutputChars
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + truncationMarker
}
