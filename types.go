package senaka

import (
	"context"
	"time"
)

// --- Chat session types ---

// Message roles. The loop only ever writes these three.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry in a session transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSession is a persistent multi-turn transcript. The loop treats it as
// append-only; every mutation goes through the store so history survives
// process restarts.
type ChatSession struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []ChatMessage `json:"messages"`
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: text}
}

// --- Agent routing types ---

// Agent modes. In single-main the worker and main roles share one model.
const (
	ModeMainWorker = "main-worker"
	ModeSingleMain = "single-main"
)

// ResolvedModel is a fully routed model candidate: everything the adapter
// needs to reach one OpenAI-compatible endpoint.
type ResolvedModel struct {
	ID            string         `json:"id"`
	Provider      string         `json:"provider"`
	Endpoint      string         `json:"endpoint"`
	Credential    string         `json:"credential"`
	ModelName     string         `json:"model_name"`
	ContextLength int            `json:"context_length,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	ExtraParams   map[string]any `json:"extra_params,omitempty"`
}

// ResolvedAgentConfig is the routing result for one run.
type ResolvedAgentConfig struct {
	Mode     string        `json:"mode"`
	MaxSteps int           `json:"max_steps"`
	Stream   bool          `json:"stream"`
	Main     ResolvedModel `json:"main"`
	Worker   ResolvedModel `json:"worker"`
}

// RouteOverride narrows an agent entry for a single run. Zero values mean
// "keep the registry setting".
type RouteOverride struct {
	Mode     string
	MaxSteps int
	Stream   *bool
}

// AgentRouter resolves an agent id plus per-run overrides into a concrete
// two-model configuration.
type AgentRouter interface {
	Route(agentID string, ov RouteOverride) (ResolvedAgentConfig, error)
}

// --- Worker protocol types ---

// Worker action variants. The set is closed; parsers reject anything else.
const (
	ActionCallTool = "call_tool"
	ActionAsk      = "ask"
	ActionFinalize = "finalize"
)

// ToolShell is the only tool the worker protocol admits.
const ToolShell = "shell"

// WorkerArgs carries the arguments of a call_tool action.
type WorkerArgs struct {
	Cmd string `json:"cmd"`
}

// WorkerAction is the worker model's reply: exactly one of call_tool, ask,
// or finalize.
type WorkerAction struct {
	Action   string      `json:"action"`
	Tool     string      `json:"tool,omitempty"`
	Args     *WorkerArgs `json:"args,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Question string      `json:"question,omitempty"`
}

// --- Main protocol types ---

// Main decision variants.
const (
	DecisionFinalize = "finalize"
	DecisionContinue = "continue"
)

// MainDecision is the main model's sufficiency verdict.
type MainDecision struct {
	Decision                   string   `json:"decision"`
	Answer                     string   `json:"answer,omitempty"`
	Guidance                   string   `json:"guidance,omitempty"`
	SummaryEvidence            []string `json:"summary_evidence,omitempty"`
	NeededEvidence             []string `json:"needed_evidence,omitempty"`
	ForcedSynthesisEnableThink *bool    `json:"forced_synthesis_enable_think,omitempty"`
}

// Planning next-phase variants.
const (
	PlanCollectEvidence = "collect_evidence"
	PlanMainDecision    = "main_decision"
	PlanFinalReport     = "final_report"
)

// PlanningResult is the main model's opening plan for a run.
type PlanningResult struct {
	Next          string   `json:"next"`
	Reason        string   `json:"reason"`
	EvidenceGoals []string `json:"evidence_goals,omitempty"`
	Guidance      string   `json:"guidance,omitempty"`
	AnswerHint    string   `json:"answer_hint,omitempty"`
}

// --- Sandbox types ---

// Sandbox runner kinds.
const (
	RunnerLocal  = "local"
	RunnerDocker = "docker"
)

// ToolResult is the outcome of one sandboxed shell command. Stdout and
// stderr are normalized to a bounded length before the result leaves the
// sandbox package.
type ToolResult struct {
	Cmd              string `json:"cmd"`
	ExitCode         int    `json:"exit_code"`
	Stdout           string `json:"stdout"`
	Stderr           string `json:"stderr"`
	Runner           string `json:"runner"`
	WorkspaceGroupID string `json:"workspace_group_id"`
}

// --- Evidence types ---

// EvidenceKind classifies where an evidence item came from.
type EvidenceKind string

const (
	EvidenceToolResult   EvidenceKind = "tool_result"
	EvidenceUserAnswer   EvidenceKind = "user_answer"
	EvidenceMainGuidance EvidenceKind = "main_guidance"
)

// EvidenceItem is one durable observation gathered during a run.
type EvidenceItem struct {
	Kind    EvidenceKind `json:"kind"`
	Summary string       `json:"summary"`
	Detail  string       `json:"detail,omitempty"`
}

// --- Loop state ---

// LoopState names one state of the agent loop machine.
type LoopState string

const (
	StatePlanIntent        LoopState = "plan_intent"
	StateContextGuard      LoopState = "context_guard"
	StateAcquireEvidence   LoopState = "acquire_evidence"
	StateAssessSufficiency LoopState = "assess_sufficiency"
	StateForcedSynthesis   LoopState = "forced_synthesis"
	StateDone              LoopState = "done"
)

// Main-model call phases, used in events and sampling profiles.
const (
	PhasePlanning          = "planning"
	PhaseAssessSufficiency = "assess-sufficiency"
	PhaseForcedSynthesis   = "forced-synthesis"
	PhaseFinalReport       = "final-report"
)

// --- Run options and result ---

// AskFunc delivers a YES/NO question to the operator and blocks until a
// reply arrives or ctx is cancelled.
type AskFunc func(ctx context.Context, question string) (string, error)

// RunOptions tunes one run. All fields are optional.
type RunOptions struct {
	// Mode overrides the agent's routing mode for this run.
	Mode string
	// MaxSteps overrides the worker step budget (must be ≥ 1 when set).
	MaxSteps int
	// Stream overrides whether first-attempt LLM calls stream tokens.
	Stream *bool
	// WorkspaceGroupID pins the sandbox to a persistent workspace. Defaults
	// to the session id.
	WorkspaceGroupID string
	// OnEvent observes run lifecycle events. May be nil.
	OnEvent func(Event)
	// AskUser answers worker ask actions. Required if the worker may ask.
	AskUser AskFunc
}

// RunResult summarizes a completed run.
type RunResult struct {
	AgentID     string   `json:"agent_id"`
	Mode        string   `json:"mode"`
	MaxSteps    int      `json:"max_steps"`
	Stream      bool     `json:"stream"`
	Summary     string   `json:"summary"`
	Evidence    []string `json:"evidence"`
	Steps       int      `json:"steps"`
	WorkerModel string   `json:"worker_model"`
	MainModel   string   `json:"main_model"`
}
