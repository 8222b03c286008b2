package senaka

// EventKind identifies the kind of run lifecycle event.
type EventKind string

const (
	// EventStart opens the event stream for a run.
	EventStart EventKind = "start"
	// EventLoopState signals the loop entered a state.
	EventLoopState EventKind = "loop-state"
	// EventPlanningStart signals the opening plan is being requested.
	EventPlanningStart EventKind = "planning-start"
	// EventPlanningResult carries the applied plan.
	EventPlanningResult EventKind = "planning-result"
	// EventCompactionStart signals session compaction is about to run.
	EventCompactionStart EventKind = "compaction-start"
	// EventCompactionComplete carries the before/after compaction sizes.
	EventCompactionComplete EventKind = "compaction-complete"
	// EventWorkerStart signals a worker turn began.
	EventWorkerStart EventKind = "worker-start"
	// EventWorkerToken carries one streamed worker token.
	EventWorkerToken EventKind = "worker-token"
	// EventWorkerAction carries the parsed (or synthetic) worker action.
	EventWorkerAction EventKind = "worker-action"
	// EventToolStart signals a sandbox command is about to run.
	EventToolStart EventKind = "tool-start"
	// EventToolResult carries a completed sandbox command result.
	EventToolResult EventKind = "tool-result"
	// EventAsk carries a YES/NO question for the operator.
	EventAsk EventKind = "ask"
	// EventAskAnswer carries the operator's reply.
	EventAskAnswer EventKind = "ask-answer"
	// EventMainStart signals a main-model phase began.
	EventMainStart EventKind = "main-start"
	// EventMainToken carries one streamed main-model token.
	EventMainToken EventKind = "main-token"
	// EventMainDecision carries the main model's verdict for a phase.
	EventMainDecision EventKind = "main-decision"
	// EventFinalAnswer carries the final natural-language report.
	EventFinalAnswer EventKind = "final-answer"
	// EventComplete closes the event stream for a run.
	EventComplete EventKind = "complete"
)

// Event is a flat run lifecycle event published to RunOptions.OnEvent.
// Kind selects which fields are meaningful; unused fields stay zero.
// Events describing committed state (tool-result, ask-answer, main-decision)
// fire only after the corresponding session write is durable. Token events
// fire during streaming and imply no session write.
type Event struct {
	Kind EventKind `json:"kind"`

	// start
	AgentID string `json:"agent_id,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Goal    string `json:"goal,omitempty"`

	// loop-state
	State         LoopState `json:"state,omitempty"`
	Step          int       `json:"step,omitempty"`
	EvidenceCount int       `json:"evidence_count,omitempty"`
	Summary       string    `json:"summary,omitempty"`

	// planning-result
	Next          string   `json:"next,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	EvidenceGoals []string `json:"evidence_goals,omitempty"`
	Guidance      string   `json:"guidance,omitempty"`

	// compaction-start / compaction-complete
	EstimatedTokens    int `json:"estimated_tokens,omitempty"`
	TriggerTokens      int `json:"trigger_tokens,omitempty"`
	TargetTokens       int `json:"target_tokens,omitempty"`
	ContextLimitTokens int `json:"context_limit_tokens,omitempty"`
	MessageCount       int `json:"message_count,omitempty"`
	BeforeTokens       int `json:"before_tokens,omitempty"`
	AfterTokens        int `json:"after_tokens,omitempty"`
	BeforeMessages     int `json:"before_messages,omitempty"`
	AfterMessages      int `json:"after_messages,omitempty"`

	// worker-token / main-token
	Token string `json:"token,omitempty"`

	// worker-action
	Action string `json:"action,omitempty"`
	Detail string `json:"detail,omitempty"`

	// tool-start / tool-result
	Cmd              string `json:"cmd,omitempty"`
	ExitCode         int    `json:"exit_code,omitempty"`
	Stdout           string `json:"stdout,omitempty"`
	Stderr           string `json:"stderr,omitempty"`
	Runner           string `json:"runner,omitempty"`
	WorkspaceGroupID string `json:"workspace_group_id,omitempty"`

	// ask / ask-answer
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`

	// main-start / main-token / main-decision
	Phase    string `json:"phase,omitempty"`
	Decision string `json:"decision,omitempty"`

	// complete
	Steps int `json:"steps,omitempty"`
}
