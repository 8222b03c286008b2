// Command senaka hosts the agent loop on a terminal: single-shot runs,
// an interactive chat loop, registry listing, and session resets.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lilamaris/senaka"
	"github.com/lilamaris/senaka/internal/config"
	"github.com/lilamaris/senaka/internal/render"
	"github.com/lilamaris/senaka/observer"
	"github.com/lilamaris/senaka/provider/openaicompat"
	"github.com/lilamaris/senaka/registry"
	"github.com/lilamaris/senaka/sandbox"
	filestore "github.com/lilamaris/senaka/store/file"
	pgstore "github.com/lilamaris/senaka/store/postgres"
	sqlitestore "github.com/lilamaris/senaka/store/sqlite"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "senaka:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "senaka",
		Short:         "Local-LLM agent loop host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to senaka.toml")

	root.AddCommand(
		newRunCmd(&configPath),
		newChatCmd(&configPath),
		newModelsCmd(&configPath),
		newResetCmd(&configPath),
	)
	return root
}

// host holds everything a command needs after wiring.
type host struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *registry.Registry
	store    senaka.SessionStore
	loop     *senaka.Loop
	shutdown func(context.Context) error
}

func (h *host) close(ctx context.Context) {
	if h.shutdown != nil {
		if err := h.shutdown(ctx); err != nil {
			h.logger.Warn("observer shutdown", "error", err)
		}
	}
}

// newHost wires the full stack. needSandbox is false for commands that never
// execute tools (models, reset), so they work without a shell or daemon.
func newHost(ctx context.Context, configPath string, needSandbox bool) (*host, error) {
	// 1. Load config
	cfg := config.Load(configPath)

	// 2. Logger
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	// 3. Registry
	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return nil, err
	}

	// 4. Session store
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// 5. Sandbox
	var runner senaka.SandboxRunner
	if needSandbox {
		sb, err := sandbox.New(sandboxOptions(cfg.Sandbox), logger)
		if err != nil {
			return nil, err
		}
		runner = sb
	}

	// 6. Adapter factory, observer-wrapped when enabled
	factory := openaicompat.Factory(openaicompat.WithLogger(logger))
	h := &host{cfg: cfg, logger: logger, registry: reg, store: store}
	var runRecorder func(senaka.Event)
	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx, "senaka", observerPricing(cfg.Observer.Pricing))
		if err != nil {
			return nil, err
		}
		h.shutdown = shutdown
		inner := factory
		factory = func(m senaka.ResolvedModel) senaka.ChatAPI {
			return observer.WrapAPI(inner(m), m, inst)
		}
		runRecorder = observer.RunRecorder(inst)
	}

	// 7. Loop
	loopOpts := []senaka.Option{
		senaka.WithRouter(reg),
		senaka.WithAPIFactory(factory),
		senaka.WithStore(store),
		senaka.WithLogger(logger),
		senaka.WithMaxPipes(cfg.Loop.MaxPipes),
		senaka.WithWorkerMaxResponseTokens(cfg.Loop.WorkerMaxResponseTokens),
		senaka.WithStructuredRetryLimit(cfg.Loop.StructuredRetryLimit),
		senaka.WithThinkBypass(cfg.Loop.WorkerDisableThinkingHack, cfg.Loop.MainDisableThinkingHack),
		senaka.WithWorkerPromptPath(cfg.Loop.WorkerPromptPath),
	}
	if runner != nil {
		loopOpts = append(loopOpts, senaka.WithSandbox(runner))
	}
	if runRecorder != nil {
		loopOpts = append(loopOpts, senaka.WithObserver(runRecorder))
	}
	loop, err := senaka.New(loopOpts...)
	if err != nil {
		return nil, err
	}
	h.loop = loop
	return h, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (senaka.SessionStore, error) {
	switch cfg.Session.Backend {
	case "file", "":
		return filestore.New(expandHome(cfg.Session.Dir), filestore.WithLogger(logger))
	case "sqlite":
		dir := expandHome(cfg.Session.Dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("session dir: %w", err)
		}
		return sqlitestore.New(dir+"/sessions.db", sqlitestore.WithLogger(logger))
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Session.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		s := pgstore.New(pool, pgstore.WithLogger(logger))
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

func sandboxOptions(c config.SandboxConfig) sandbox.Options {
	return sandbox.Options{
		Mode:           c.Mode,
		TimeoutMs:      c.TimeoutMs,
		MaxBufferBytes: c.MaxBufferBytes,
		ShellPath:      c.ShellPath,
		WorkspaceRoot:  expandHome(c.WorkspaceRoot),

		DockerShellPath:            c.DockerShellPath,
		DockerImage:                c.DockerImage,
		DockerWorkspaceRoot:        c.DockerWorkspaceRoot,
		DockerContainerPrefix:      c.DockerContainerPrefix,
		DockerNetwork:              c.DockerNetwork,
		DockerMemory:               c.DockerMemory,
		DockerCpus:                 c.DockerCpus,
		DockerPidsLimit:            c.DockerPidsLimit,
		DockerRequiredTools:        c.DockerRequiredTools,
		DockerWorkspaceInitCommand: c.DockerWorkspaceInitCommand,
	}
}

func observerPricing(in map[string]config.ObserverPricing) map[string]observer.ModelPricing {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]observer.ModelPricing, len(in))
	for model, p := range in {
		out[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
	}
	return out
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// askPolicy turns the --yes/--no/--ask flags into an AskFunc.
func askPolicy(yes, no bool, in *bufio.Reader) senaka.AskFunc {
	switch {
	case yes:
		return func(context.Context, string) (string, error) { return "YES", nil }
	case no:
		return func(context.Context, string) (string, error) { return "NO", nil }
	default:
		return func(ctx context.Context, question string) (string, error) {
			fmt.Printf("\n? %s [YES/NO]: ", question)
			line, err := in.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(line), nil
		}
	}
}

func renderFinal(answer string) string {
	if os.Getenv("NO_COLOR") != "" {
		return render.Terminal(answer, render.NoColor())
	}
	return render.Terminal(answer)
}
