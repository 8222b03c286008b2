// Package registry maps agent ids to concrete model routes. A registry is a
// TOML file declaring models (endpoint, credential, sampling defaults) and
// agents (mode, step budget, main/worker model refs); Route resolves one
// agent plus per-run overrides into the configuration the loop consumes.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lilamaris/senaka"
)

// DefaultAgentID is the agent the CLI routes to when none is named.
const DefaultAgentID = "default"

type modelEntry struct {
	Provider      string         `toml:"provider"`
	Endpoint      string         `toml:"endpoint"`
	Credential    string         `toml:"credential"`
	ModelName     string         `toml:"model_name"`
	ContextLength int            `toml:"context_length"`
	Temperature   *float64       `toml:"temperature"`
	MaxTokens     int            `toml:"max_tokens"`
	ExtraParams   map[string]any `toml:"extra_params"`
}

type agentEntry struct {
	Mode     string `toml:"mode"`
	MaxSteps int    `toml:"max_steps"`
	Stream   *bool  `toml:"stream"`
	Main     string `toml:"main"`
	Worker   string `toml:"worker"`
}

type registryFile struct {
	Models map[string]modelEntry `toml:"models"`
	Agents map[string]agentEntry `toml:"agents"`
}

// Registry is a validated, immutable model/agent table.
type Registry struct {
	models map[string]senaka.ResolvedModel
	agents map[string]agentEntry
}

// Load parses and validates a registry TOML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &senaka.ErrConfig{Reason: fmt.Sprintf("registry %s: %v", path, err)}
	}
	return Parse(data)
}

// Parse builds a Registry from raw TOML.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, &senaka.ErrConfig{Reason: "registry parse: " + err.Error()}
	}
	if len(file.Models) == 0 {
		return nil, &senaka.ErrConfig{Reason: "registry declares no models"}
	}
	if len(file.Agents) == 0 {
		return nil, &senaka.ErrConfig{Reason: "registry declares no agents"}
	}

	r := &Registry{
		models: make(map[string]senaka.ResolvedModel, len(file.Models)),
		agents: make(map[string]agentEntry, len(file.Agents)),
	}
	for id, m := range file.Models {
		if strings.TrimSpace(m.Endpoint) == "" {
			return nil, &senaka.ErrConfig{Reason: fmt.Sprintf("model %q: endpoint is required", id)}
		}
		if strings.TrimSpace(m.ModelName) == "" {
			return nil, &senaka.ErrConfig{Reason: fmt.Sprintf("model %q: model_name is required", id)}
		}
		provider := m.Provider
		if provider == "" {
			provider = "openai-compat"
		}
		r.models[id] = senaka.ResolvedModel{
			ID:            id,
			Provider:      provider,
			Endpoint:      strings.TrimRight(m.Endpoint, "/"),
			Credential:    m.Credential,
			ModelName:     m.ModelName,
			ContextLength: m.ContextLength,
			Temperature:   m.Temperature,
			MaxTokens:     m.MaxTokens,
			ExtraParams:   m.ExtraParams,
		}
	}
	for id, a := range file.Agents {
		if err := r.validateAgent(id, a); err != nil {
			return nil, err
		}
		r.agents[id] = a
	}
	return r, nil
}

func (r *Registry) validateAgent(id string, a agentEntry) error {
	switch a.Mode {
	case "", senaka.ModeMainWorker, senaka.ModeSingleMain:
	default:
		return &senaka.ErrConfig{Reason: fmt.Sprintf("agent %q: unknown mode %q", id, a.Mode)}
	}
	if a.MaxSteps < 0 {
		return &senaka.ErrConfig{Reason: fmt.Sprintf("agent %q: max_steps must be >= 1", id)}
	}
	if a.Main == "" {
		return &senaka.ErrConfig{Reason: fmt.Sprintf("agent %q: main model is required", id)}
	}
	if _, ok := r.models[a.Main]; !ok {
		return &senaka.ErrConfig{Reason: fmt.Sprintf("agent %q: unknown main model %q", id, a.Main)}
	}
	if a.Worker != "" {
		if _, ok := r.models[a.Worker]; !ok {
			return &senaka.ErrConfig{Reason: fmt.Sprintf("agent %q: unknown worker model %q", id, a.Worker)}
		}
	}
	return nil
}

// Route resolves an agent id plus per-run overrides. In single-main mode the
// worker role routes to the main model, so both roles share one endpoint.
func (r *Registry) Route(agentID string, ov senaka.RouteOverride) (senaka.ResolvedAgentConfig, error) {
	if agentID == "" {
		agentID = DefaultAgentID
	}
	agent, ok := r.agents[agentID]
	if !ok {
		return senaka.ResolvedAgentConfig{}, &senaka.ErrConfig{
			Reason: fmt.Sprintf("unknown agent %q, known: %s", agentID, strings.Join(r.agentIDs(), ", ")),
		}
	}

	mode := agent.Mode
	if mode == "" {
		mode = senaka.ModeMainWorker
	}
	if ov.Mode != "" {
		switch ov.Mode {
		case senaka.ModeMainWorker, senaka.ModeSingleMain:
			mode = ov.Mode
		default:
			return senaka.ResolvedAgentConfig{}, &senaka.ErrConfig{Reason: fmt.Sprintf("unknown mode override %q", ov.Mode)}
		}
	}

	maxSteps := agent.MaxSteps
	if maxSteps == 0 {
		maxSteps = senaka.DefaultMaxSteps
	}
	if ov.MaxSteps > 0 {
		maxSteps = ov.MaxSteps
	}

	// Streaming defaults on: local models are slow enough that token
	// feedback matters.
	stream := true
	if agent.Stream != nil {
		stream = *agent.Stream
	}
	if ov.Stream != nil {
		stream = *ov.Stream
	}

	main := r.models[agent.Main]
	worker := main
	if mode == senaka.ModeMainWorker && agent.Worker != "" {
		worker = r.models[agent.Worker]
	}

	return senaka.ResolvedAgentConfig{
		Mode:     mode,
		MaxSteps: maxSteps,
		Stream:   stream,
		Main:     main,
		Worker:   worker,
	}, nil
}

// Models lists every declared model sorted by id, for the CLI listing.
func (r *Registry) Models() []senaka.ResolvedModel {
	out := make([]senaka.ResolvedModel, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) agentIDs() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
