// Package config loads the host configuration: defaults, then an optional
// TOML file, then SENAKA_* env overrides (env wins).
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Session  SessionConfig  `toml:"session"`
	Loop     LoopConfig     `toml:"loop"`
	Sandbox  SandboxConfig  `toml:"sandbox"`
	Observer ObserverConfig `toml:"observer"`
	Log      LogConfig      `toml:"log"`
}

type RegistryConfig struct {
	Path string `toml:"path"`
}

type SessionConfig struct {
	Backend string `toml:"backend"` // file | sqlite | postgres
	Dir     string `toml:"dir"`
	DSN     string `toml:"dsn"`
}

type LoopConfig struct {
	MaxPipes                  int    `toml:"max_pipes"`
	WorkerMaxResponseTokens   int    `toml:"worker_max_response_tokens"`
	StructuredRetryLimit      int    `toml:"structured_retry_limit"`
	WorkerDisableThinkingHack bool   `toml:"worker_disable_thinking_hack"`
	MainDisableThinkingHack   bool   `toml:"main_disable_thinking_hack"`
	WorkerPromptPath          string `toml:"worker_prompt_path"`
}

type SandboxConfig struct {
	Mode           string `toml:"mode"` // local | docker
	TimeoutMs      int    `toml:"timeout_ms"`
	MaxBufferBytes int    `toml:"max_buffer_bytes"`
	ShellPath      string `toml:"shell_path"`
	WorkspaceRoot  string `toml:"workspace_root"`

	DockerShellPath            string   `toml:"docker_shell_path"`
	DockerImage                string   `toml:"docker_image"`
	DockerWorkspaceRoot        string   `toml:"docker_workspace_root"`
	DockerContainerPrefix      string   `toml:"docker_container_prefix"`
	DockerNetwork              string   `toml:"docker_network"`
	DockerMemory               string   `toml:"docker_memory"`
	DockerCpus                 float64  `toml:"docker_cpus"`
	DockerPidsLimit            int64    `toml:"docker_pids_limit"`
	DockerRequiredTools        []string `toml:"docker_required_tools"`
	DockerWorkspaceInitCommand string   `toml:"docker_workspace_init_command"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	return Config{
		Registry: RegistryConfig{Path: "models.toml"},
		Session: SessionConfig{
			Backend: "file",
			Dir:     filepath.Join(home, ".senaka", "sessions"),
		},
		Loop: LoopConfig{
			MaxPipes:                  1,
			WorkerMaxResponseTokens:   640,
			StructuredRetryLimit:      2,
			WorkerDisableThinkingHack: true,
			MainDisableThinkingHack:   true,
		},
		Sandbox: SandboxConfig{Mode: "local"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SENAKA_CONFIG")
	}
	if path == "" {
		path = "senaka.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("SENAKA_REGISTRY"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("SENAKA_SESSION_DIR"); v != "" {
		cfg.Session.Dir = v
	}
	if v := os.Getenv("SENAKA_PG_DSN"); v != "" {
		cfg.Session.DSN = v
	}
	if v := os.Getenv("SENAKA_SANDBOX_MODE"); v != "" {
		cfg.Sandbox.Mode = v
	}
	if v := os.Getenv("SENAKA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SENAKA_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Session.Backend == "postgres" && cfg.Session.DSN == "" {
		cfg.Session.Backend = "file"
	}

	return cfg
}
