package senaka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Loop defaults applied by New when no option overrides them.
const (
	DefaultMaxSteps                = 8
	DefaultWorkerMaxResponseTokens = 640
	DefaultStructuredRetryLimit    = 2
)

// Loop runs goal-driven agent loops. One Loop is safe for concurrent runs
// on distinct sessions; a single session must never be driven by two runs
// at once.
type Loop struct {
	router     AgentRouter
	apiFactory APIFactory
	sandbox    SandboxRunner
	store      SessionStore
	logger     *slog.Logger
	observer   func(Event)

	maxPipes                  int
	workerMaxResponseTokens   int
	structuredRetryLimit      int
	workerDisableThinkingHack bool
	mainDisableThinkingHack   bool
	workerPromptPath          string
}

// Option configures a Loop.
type Option func(*Loop)

// WithRouter sets the agent registry router. Required.
func WithRouter(r AgentRouter) Option {
	return func(l *Loop) { l.router = r }
}

// WithAPIFactory sets the chat adapter factory. Required.
func WithAPIFactory(f APIFactory) Option {
	return func(l *Loop) { l.apiFactory = f }
}

// WithSandbox sets the shell sandbox runner. A loop without one fails with
// ErrConfig the first time a worker requests a tool call.
func WithSandbox(s SandboxRunner) Option {
	return func(l *Loop) { l.sandbox = s }
}

// WithStore sets the session store. Required.
func WithStore(s SessionStore) Option {
	return func(l *Loop) { l.store = s }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithObserver sets a default event sink that sees every run's events,
// ahead of any per-run RunOptions.OnEvent callback.
func WithObserver(onEvent func(Event)) Option {
	return func(l *Loop) { l.observer = onEvent }
}

// WithMaxPipes overrides the safety gate's pipe budget.
func WithMaxPipes(n int) Option {
	return func(l *Loop) { l.maxPipes = n }
}

// WithWorkerMaxResponseTokens overrides the worker reply token budget.
func WithWorkerMaxResponseTokens(n int) Option {
	return func(l *Loop) { l.workerMaxResponseTokens = n }
}

// WithStructuredRetryLimit overrides the repair-retry cap for structured
// phases.
func WithStructuredRetryLimit(n int) Option {
	return func(l *Loop) { l.structuredRetryLimit = n }
}

// WithThinkBypass controls think-bypass primer injection per role. Both
// default to on, which suits local think-tag models.
func WithThinkBypass(worker, main bool) Option {
	return func(l *Loop) {
		l.workerDisableThinkingHack = worker
		l.mainDisableThinkingHack = main
	}
}

// WithWorkerPromptPath points the loop at an external worker system prompt
// file. Empty means the embedded default; an unreadable path fails the run
// with ErrConfig.
func WithWorkerPromptPath(path string) Option {
	return func(l *Loop) { l.workerPromptPath = path }
}

// New builds a Loop. Router, API factory, and store are mandatory.
func New(opts ...Option) (*Loop, error) {
	l := &Loop{
		maxPipes:                  DefaultMaxPipes,
		workerMaxResponseTokens:   DefaultWorkerMaxResponseTokens,
		structuredRetryLimit:      DefaultStructuredRetryLimit,
		workerDisableThinkingHack: true,
		mainDisableThinkingHack:   true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.router == nil {
		return nil, &ErrConfig{Reason: "loop requires a router (WithRouter)"}
	}
	if l.apiFactory == nil {
		return nil, &ErrConfig{Reason: "loop requires an API factory (WithAPIFactory)"}
	}
	if l.store == nil {
		return nil, &ErrConfig{Reason: "loop requires a session store (WithStore)"}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// loopRuntime is the mutable bag for one run. The orchestrator owns it;
// stage handlers read and mutate it through the run.
type loopRuntime struct {
	planning                   *PlanningResult
	evidence                   []EvidenceItem
	guidance                   string
	recentUserAnswer           string
	lastTool                   *ToolResult
	finalAnswer                string
	step                       int
	steps                      int
	resumeStateAfterCompaction LoopState
	lastCompactionSignature    string
	forcedSynthesisEnableThink *bool
	forcedSynthesisReason      string
}

// run carries everything one Run invocation needs.
type run struct {
	loop    *Loop
	cfg     ResolvedAgentConfig
	session *ChatSession
	goal    string
	agentID string
	opts    RunOptions

	workerAPI          ChatAPI
	mainAPI            ChatAPI
	rt                 *loopRuntime
	workspaceGroupID   string
	contextLimit       int
	workerSystemPrompt string
}

// Run executes one agent loop on the session and returns the run summary.
// The final assistant answer is appended to the session before Run returns;
// on a fatal error the session keeps whatever trail was persisted so far.
func (l *Loop) Run(ctx context.Context, session *ChatSession, goal, agentID string, opts RunOptions) (RunResult, error) {
	cfg, err := l.router.Route(agentID, RouteOverride{Mode: opts.Mode, MaxSteps: opts.MaxSteps, Stream: opts.Stream})
	if err != nil {
		return RunResult{}, err
	}
	prompt, err := l.resolveWorkerPrompt()
	if err != nil {
		return RunResult{}, err
	}

	workspaceGroupID := strings.TrimSpace(opts.WorkspaceGroupID)
	if workspaceGroupID == "" {
		workspaceGroupID = session.ID
	}

	r := &run{
		loop:               l,
		cfg:                cfg,
		session:            session,
		goal:               goal,
		agentID:            agentID,
		opts:               opts,
		workerAPI:          l.apiFactory(cfg.Worker),
		mainAPI:            l.apiFactory(cfg.Main),
		rt:                 &loopRuntime{step: 1, resumeStateAfterCompaction: StatePlanIntent},
		workspaceGroupID:   workspaceGroupID,
		contextLimit:       resolveContextLimitTokens(cfg),
	}

	l.logger.Info("agent run started",
		"agent", agentID, "mode", cfg.Mode, "session", session.ID,
		"max_steps", cfg.MaxSteps, "context_limit", r.contextLimit)
	r.workerSystemPrompt = prompt

	r.emit(Event{Kind: EventStart, AgentID: agentID, Mode: cfg.Mode, Goal: goal})
	if err := r.appendAndPersist(ctx, UserMessage(tagAgentGoal+agentID+"] "+goal)); err != nil {
		return RunResult{}, err
	}

	state := StatePlanIntent
	for state != StateDone {
		if state != StateContextGuard {
			plan := computeCompactionPlan(r.session, r.contextLimit)
			if plan.shouldCompact && plan.signature != r.rt.lastCompactionSignature {
				r.rt.resumeStateAfterCompaction = state
				state = StateContextGuard
				continue
			}
		}

		var err error
		switch state {
		case StatePlanIntent:
			state, err = r.handlePlanIntent(ctx)
		case StateContextGuard:
			state, err = r.handleContextCompaction(ctx)
		case StateAcquireEvidence:
			state, err = r.handleAcquireEvidence(ctx)
		case StateAssessSufficiency:
			state, err = r.handleAssessSufficiency(ctx)
		case StateForcedSynthesis:
			state, err = r.handleForcedSynthesis(ctx)
		default:
			err = &ErrConfig{Reason: fmt.Sprintf("unknown loop state %q", state)}
		}
		if err != nil {
			l.logger.Error("agent run aborted", "agent", agentID, "session", session.ID, "state", state, "error", err)
			return RunResult{}, err
		}
	}

	if err := r.appendAndPersist(ctx, AssistantMessage(r.rt.finalAnswer)); err != nil {
		return RunResult{}, err
	}
	r.emit(Event{Kind: EventComplete, Steps: r.rt.steps, EvidenceCount: len(r.rt.evidence)})
	l.logger.Info("agent run complete", "agent", agentID, "session", session.ID,
		"steps", r.rt.steps, "evidence", len(r.rt.evidence))

	return RunResult{
		AgentID:     agentID,
		Mode:        cfg.Mode,
		MaxSteps:    cfg.MaxSteps,
		Stream:      cfg.Stream,
		Summary:     r.rt.finalAnswer,
		Evidence:    summarizeEvidenceForMain(r.rt.evidence),
		Steps:       r.rt.steps,
		WorkerModel: cfg.Worker.ModelName,
		MainModel:   cfg.Main.ModelName,
	}, nil
}

// resolveWorkerPrompt loads the worker system prompt: the configured file
// when a path is set, otherwise the embedded default.
func (l *Loop) resolveWorkerPrompt() (string, error) {
	if l.workerPromptPath == "" {
		return defaultWorkerSystemPrompt, nil
	}
	data, err := os.ReadFile(l.workerPromptPath)
	if err != nil {
		return "", &ErrConfig{Reason: fmt.Sprintf("worker prompt %s: %v", l.workerPromptPath, err)}
	}
	return string(data), nil
}

// --- side-effect helpers ---

func (r *run) emit(ev Event) {
	if r.loop.observer != nil {
		r.loop.observer(ev)
	}
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(ev)
	}
}

func (r *run) hasEventSink() bool {
	return r.loop.observer != nil || r.opts.OnEvent != nil
}

func (r *run) emitLoopState(state LoopState, summary string) {
	r.emit(Event{
		Kind:          EventLoopState,
		State:         state,
		Step:          r.rt.step,
		EvidenceCount: len(r.rt.evidence),
		Summary:       summary,
	})
}

// appendAndPersist is the only way the loop mutates the session: the
// in-memory append and the durable write travel together, so no committed
// event can ever describe state the store does not hold.
func (r *run) appendAndPersist(ctx context.Context, msgs ...ChatMessage) error {
	r.session.Messages = append(r.session.Messages, msgs...)
	return r.persist(ctx)
}

func (r *run) persist(ctx context.Context) error {
	if err := r.loop.store.Save(ctx, r.session); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &ErrStore{Op: "save", Err: err}
	}
	return nil
}

// evidenceSummaryForDecision is what the main model judges: plan lines
// first, then the deduplicated evidence list.
func (r *run) evidenceSummaryForDecision() string {
	var lines []string
	if p := r.rt.planning; p != nil {
		lines = append(lines, "Plan: next="+p.Next+" reason="+p.Reason)
		for _, g := range p.EvidenceGoals {
			lines = append(lines, "Plan goal: "+g)
		}
	}
	lines = append(lines, summarizeEvidenceForMain(r.rt.evidence)...)
	return strings.Join(lines, "\n")
}

// --- stage handlers ---

// handlePlanIntent asks the main model for an opening plan and routes on
// it. A plan that stays malformed degrades to evidence collection rather
// than killing the run.
func (r *run) handlePlanIntent(ctx context.Context) (LoopState, error) {
	rt := r.rt
	r.emitLoopState(StatePlanIntent, "")
	r.emit(Event{Kind: EventPlanningStart, Goal: r.goal})
	r.emit(Event{Kind: EventMainStart, Phase: PhasePlanning, EvidenceCount: len(rt.evidence)})

	plan, err := r.askMainForPlanning(ctx)
	if err != nil {
		var ev *ErrValidation
		if ctx.Err() != nil || !errors.As(err, &ev) {
			return "", err
		}
		r.loop.logger.Warn("planning failed, defaulting to evidence collection", "error", err)
		plan = PlanningResult{
			Next:     PlanCollectEvidence,
			Reason:   "planning failed: " + err.Error(),
			Guidance: "Collect concrete evidence with safe read-only commands before finalize.",
		}
		if perr := r.appendAndPersist(ctx, SystemMessage(tagPlanningFail+" "+ev.Reason)); perr != nil {
			return "", perr
		}
	}

	rt.planning = &plan
	if plan.Guidance != "" {
		rt.guidance = plan.Guidance
	}
	if len(plan.EvidenceGoals) > 0 {
		rt.evidence = append(rt.evidence, newGuidanceEvidence("Evidence goals: "+strings.Join(plan.EvidenceGoals, "; ")))
	}
	if err := r.appendAndPersist(ctx, SystemMessage(fmt.Sprintf("%s next=%s reason=%s", tagPlanningResult, plan.Next, plan.Reason))); err != nil {
		return "", err
	}
	r.emit(Event{Kind: EventPlanningResult, Next: plan.Next, Reason: plan.Reason, EvidenceGoals: plan.EvidenceGoals, Guidance: plan.Guidance})

	switch plan.Next {
	case PlanMainDecision:
		return StateAssessSufficiency, nil
	case PlanFinalReport:
		r.emit(Event{Kind: EventMainStart, Phase: PhaseFinalReport, EvidenceCount: len(rt.evidence)})
		answer, err := r.askMainForFinalAnswer(ctx, strings.TrimSpace(plan.AnswerHint), "plan: "+plan.Reason)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			answer = fallbackFinalAnswer(r.goal, summarizeEvidenceForMain(rt.evidence))
		}
		rt.finalAnswer = answer
		r.emit(Event{Kind: EventFinalAnswer, Answer: answer})
		return StateDone, nil
	default:
		return StateAcquireEvidence, nil
	}
}

// handleAcquireEvidence runs one worker turn: a sandboxed command, an
// operator question, or the worker's own finalize.
func (r *run) handleAcquireEvidence(ctx context.Context) (LoopState, error) {
	rt := r.rt
	r.emitLoopState(StateAcquireEvidence, "")

	if rt.step > r.cfg.MaxSteps {
		rt.forcedSynthesisReason = fmt.Sprintf("max step reached: step=%d, maxSteps=%d", rt.step, r.cfg.MaxSteps)
		return StateForcedSynthesis, nil
	}
	rt.steps = rt.step
	r.emit(Event{Kind: EventWorkerStart, Step: rt.step})

	action, err := r.askWorkerForAction(ctx)
	if err != nil {
		var ev *ErrValidation
		if ctx.Err() != nil || !errors.As(err, &ev) {
			return "", err
		}
		r.loop.logger.Warn("worker output stayed invalid, forcing synthesis", "step", rt.step, "error", err)
		rt.evidence = append(rt.evidence, newGuidanceEvidence("Worker replies stayed invalid at step "+
			fmt.Sprint(rt.step)+"; synthesize from existing evidence. Last error: "+ev.Reason))
		rt.forcedSynthesisReason = ev.Error()
		if perr := r.appendAndPersist(ctx, SystemMessage(fmt.Sprintf("%s%d] %s", tagWorkerValidationFail, rt.step, ev.Reason))); perr != nil {
			return "", perr
		}
		r.emit(Event{Kind: EventWorkerAction, Step: rt.step, Action: ActionFinalize, Detail: ev.Error()})
		return StateForcedSynthesis, nil
	}

	switch action.Action {
	case ActionCallTool:
		return r.runWorkerTool(ctx, action)
	case ActionAsk:
		return r.runWorkerAsk(ctx, action)
	default: // finalize
		r.emit(Event{Kind: EventWorkerAction, Step: rt.step, Action: ActionFinalize, Detail: "worker requested finalize"})
		return StateAssessSufficiency, nil
	}
}

// runWorkerTool executes one gated shell command in the sandbox and records
// the result as evidence.
func (r *run) runWorkerTool(ctx context.Context, action WorkerAction) (LoopState, error) {
	rt := r.rt
	cmd := action.Args.Cmd
	r.emit(Event{Kind: EventWorkerAction, Step: rt.step, Action: ActionCallTool, Detail: action.Reason})
	r.emit(Event{Kind: EventToolStart, Step: rt.step, Cmd: cmd})

	if r.loop.sandbox == nil {
		return "", &ErrConfig{Reason: "worker requested a tool call but no sandbox runner is configured"}
	}
	res, err := r.loop.sandbox.Run(ctx, cmd, r.workspaceGroupID)
	if err != nil {
		return "", err
	}
	rt.lastTool = &res
	rt.evidence = append(rt.evidence, newToolEvidence(res))

	if err := r.appendAndPersist(ctx,
		SystemMessage(fmt.Sprintf("%s%d] %s", tagWorkerTool, rt.step, cmd)),
		SystemMessage(fmt.Sprintf("%s%d] exit=%d", tagWorkerToolResult, rt.step, res.ExitCode)),
	); err != nil {
		return "", err
	}
	r.emit(Event{
		Kind: EventToolResult, Step: rt.step, Cmd: cmd,
		ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr,
		Runner: res.Runner, WorkspaceGroupID: res.WorkspaceGroupID,
	})

	rt.step++
	return StateAcquireEvidence, nil
}

// runWorkerAsk suspends the run on the operator's YES/NO answer.
func (r *run) runWorkerAsk(ctx context.Context, action WorkerAction) (LoopState, error) {
	rt := r.rt
	question := action.Question
	r.emit(Event{Kind: EventWorkerAction, Step: rt.step, Action: ActionAsk, Detail: question})
	r.emit(Event{Kind: EventAsk, Step: rt.step, Question: question})

	if r.opts.AskUser == nil {
		return "", &ErrConfig{Reason: "worker asked a question but no askUser callback is configured"}
	}
	answer, err := r.opts.AskUser(ctx, question)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	rt.recentUserAnswer = answer
	rt.evidence = append(rt.evidence, newUserAnswerEvidence(question, answer))

	if err := r.appendAndPersist(ctx,
		SystemMessage(fmt.Sprintf("%s%d] %s", tagWorkerAsk, rt.step, question)),
		UserMessage(fmt.Sprintf("%s%d] %s", tagWorkerAskAnswer, rt.step, answer)),
	); err != nil {
		return "", err
	}
	r.emit(Event{Kind: EventAskAnswer, Step: rt.step, Answer: answer})

	rt.step++
	return StateAcquireEvidence, nil
}

// handleAssessSufficiency asks the main model whether the evidence answers
// the goal. A malformed verdict degrades to one more evidence round.
func (r *run) handleAssessSufficiency(ctx context.Context) (LoopState, error) {
	rt := r.rt
	r.emitLoopState(StateAssessSufficiency, "")
	r.emit(Event{Kind: EventMainStart, Phase: PhaseAssessSufficiency, EvidenceCount: len(rt.evidence)})

	decision, err := r.askMainForDecision(ctx, false, nil)
	if err != nil {
		var ev *ErrValidation
		if ctx.Err() != nil || !errors.As(err, &ev) {
			return "", err
		}
		guidance := "Main decision was invalid; gather one more piece of concrete evidence, then retry finalize."
		rt.guidance = guidance
		rt.evidence = append(rt.evidence, newGuidanceEvidence(guidance))
		if perr := r.appendAndPersist(ctx, SystemMessage(fmt.Sprintf("%s%d] %s", tagMainDecisionFail, rt.step, ev.Reason))); perr != nil {
			return "", perr
		}
		r.emit(Event{Kind: EventMainDecision, Phase: PhaseAssessSufficiency, Decision: DecisionContinue, Guidance: guidance})
		rt.step++
		return StateAcquireEvidence, nil
	}

	if decision.ForcedSynthesisEnableThink != nil {
		rt.forcedSynthesisEnableThink = decision.ForcedSynthesisEnableThink
	}

	if decision.Decision == DecisionContinue {
		guidance := decision.Guidance
		if guidance == "" {
			guidance = "Gather more concrete evidence and retry finalize."
		}
		rt.guidance = guidance
		rt.evidence = append(rt.evidence, newGuidanceEvidence(guidance))
		if err := r.appendAndPersist(ctx, SystemMessage(fmt.Sprintf("%s%d] %s", tagMainGuidance, rt.step, guidance))); err != nil {
			return "", err
		}
		r.emit(Event{Kind: EventMainDecision, Phase: PhaseAssessSufficiency, Decision: DecisionContinue, Guidance: guidance})
		rt.step++
		return StateAcquireEvidence, nil
	}

	r.emit(Event{Kind: EventMainDecision, Phase: PhaseAssessSufficiency, Decision: DecisionFinalize, Guidance: decision.Guidance})
	r.emit(Event{Kind: EventMainStart, Phase: PhaseFinalReport, EvidenceCount: len(rt.evidence)})
	answer, err := r.askMainForFinalAnswer(ctx, strings.TrimSpace(decision.Answer), summarizeDecisionContext(decision))
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		answer = fallbackFinalAnswer(r.goal, summarizeEvidenceForMain(rt.evidence))
		if perr := r.appendAndPersist(ctx, SystemMessage(fmt.Sprintf("%s%d] %v", tagMainFinalAnswerFail, rt.step, err))); perr != nil {
			return "", perr
		}
	}
	rt.finalAnswer = answer
	r.emit(Event{Kind: EventFinalAnswer, Answer: answer})
	return StateDone, nil
}

// handleForcedSynthesis produces the best-effort final answer after the
// budget ran out or the worker stopped cooperating. It always reaches Done.
func (r *run) handleForcedSynthesis(ctx context.Context) (LoopState, error) {
	rt := r.rt
	r.emitLoopState(StateForcedSynthesis, rt.forcedSynthesisReason)
	r.emit(Event{Kind: EventMainStart, Phase: PhaseForcedSynthesis, EvidenceCount: len(rt.evidence)})

	answer, guidance, err := r.forcedFinalAnswer(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		rt.finalAnswer = fallbackFinalAnswer(r.goal, summarizeEvidenceForMain(rt.evidence))
		if perr := r.appendAndPersist(ctx, SystemMessage(tagMainForceFinalizeFail+" "+err.Error())); perr != nil {
			return "", perr
		}
		r.emit(Event{Kind: EventMainDecision, Phase: PhaseForcedSynthesis, Decision: DecisionFinalize, Guidance: "fallback finalize: " + err.Error()})
		r.emit(Event{Kind: EventFinalAnswer, Answer: rt.finalAnswer})
		return StateDone, nil
	}

	rt.finalAnswer = answer
	r.emit(Event{Kind: EventMainDecision, Phase: PhaseForcedSynthesis, Decision: DecisionFinalize, Guidance: guidance})
	r.emit(Event{Kind: EventFinalAnswer, Answer: answer})
	return StateDone, nil
}

// forcedFinalAnswer chains the forced decision and the final report.
func (r *run) forcedFinalAnswer(ctx context.Context) (answer, guidance string, err error) {
	decision, err := r.askMainForDecision(ctx, true, r.rt.forcedSynthesisEnableThink)
	if err != nil {
		return "", "", err
	}
	answer, err = r.askMainForFinalAnswer(ctx, strings.TrimSpace(decision.Answer), summarizeDecisionContext(decision))
	if err != nil {
		return "", "", err
	}
	return answer, decision.Guidance, nil
}

// handleContextCompaction replaces the bulk of the transcript with a
// summary document plus a bounded recent window, then resumes the
// pre-empted state. The stored signature keeps a compaction that made no
// progress from re-triggering immediately.
func (r *run) handleContextCompaction(ctx context.Context) (LoopState, error) {
	rt := r.rt
	plan := computeCompactionPlan(r.session, r.contextLimit)
	if !plan.shouldCompact {
		rt.lastCompactionSignature = ""
		return rt.resumeStateAfterCompaction, nil
	}

	r.emit(Event{
		Kind:               EventCompactionStart,
		EstimatedTokens:    plan.estimatedTokens,
		TriggerTokens:      plan.triggerTokens,
		TargetTokens:       plan.targetTokens,
		ContextLimitTokens: r.contextLimit,
		MessageCount:       len(r.session.Messages),
	})

	beforeTokens, beforeMessages := plan.estimatedTokens, len(r.session.Messages)
	summary := buildCompactionSummaryDocument(r.goal, rt, r.session.Messages)
	r.session.Messages = buildCompactedSessionMessages(r.session, summary, plan.targetTokens)
	if err := r.persist(ctx); err != nil {
		return "", err
	}

	after := computeCompactionPlan(r.session, r.contextLimit)
	rt.lastCompactionSignature = after.signature

	r.emit(Event{
		Kind:           EventCompactionComplete,
		BeforeTokens:   beforeTokens,
		AfterTokens:    after.estimatedTokens,
		BeforeMessages: beforeMessages,
		AfterMessages:  len(r.session.Messages),
	})
	r.loop.logger.Debug("session compacted",
		"before_tokens", beforeTokens, "after_tokens", after.estimatedTokens,
		"before_messages", beforeMessages, "after_messages", len(r.session.Messages))
	return rt.resumeStateAfterCompaction, nil
}
