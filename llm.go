package senaka

import (
	"context"
	"errors"
	"strings"
)

// requestChatReply issues one chat completion. The first attempt streams
// when streamOnFirst is set and a token sink exists; repair retries always
// use the non-streaming call so they stay deterministic.
func requestChatReply(ctx context.Context, api ChatAPI, req CompletionRequest, messages []ChatMessage, attempt int, streamOnFirst bool, onToken func(string)) (string, error) {
	req.Messages = messages
	if attempt == 0 && streamOnFirst && onToken != nil {
		res, err := api.Stream(ctx, req, onToken)
		return res.Content, err
	}
	res, err := api.Completion(ctx, req)
	return res.Content, err
}

// requestStructuredWithRepair drives the repair-retry loop for one
// structured phase. parse validates a reply and captures the result in the
// caller's closure; on rejection the next attempt carries the bad output
// plus a repair prompt appended to the base messages. Provider errors
// consume a retry without a repair message. At the cap the last parse
// failure surfaces as *ErrValidation; the last provider error surfaces
// as-is.
func requestStructuredWithRepair(ctx context.Context, api ChatAPI, baseMessages []ChatMessage, retryLimit int, streamOnFirst bool, reqForAttempt func(attempt int) CompletionRequest, parse func(content string) error, repairKind string, onToken func(string)) error {
	messages := baseMessages
	for attempt := 0; ; attempt++ {
		content, err := requestChatReply(ctx, api, reqForAttempt(attempt), messages, attempt, streamOnFirst, onToken)
		if err != nil {
			if ctx.Err() != nil || attempt == retryLimit {
				return err
			}
			continue
		}
		perr := parse(content)
		if perr == nil {
			return nil
		}
		if attempt == retryLimit {
			return &ErrValidation{Kind: repairKind, Reason: perr.Error(), Attempts: attempt + 1}
		}
		messages = append(append([]ChatMessage(nil), baseMessages...),
			AssistantMessage(content),
			buildStructuredRepairPrompt(repairKind, perr.Error()))
	}
}

func f64(v float64) *float64 { return &v }

// --- per-phase sampling profiles ---

func (r *run) workerRequest() CompletionRequest {
	return CompletionRequest{
		Temperature:         f64(0.7),
		TopP:                f64(1.0),
		MaxTokens:           r.loop.workerMaxResponseTokens,
		DisableThinkingHack: r.loop.workerDisableThinkingHack,
		DebugTag:            repairKindWorkerAction,
	}
}

// mainStructuredRequest covers planning and decision phases. A pending
// enableThinkOverride from an earlier decision can re-enable thinking for
// the forced-synthesis call.
func (r *run) mainStructuredRequest(phase string, enableThinkOverride *bool) CompletionRequest {
	disable := r.loop.mainDisableThinkingHack
	if enableThinkOverride != nil && *enableThinkOverride {
		disable = false
	}
	return CompletionRequest{
		Temperature:         f64(0.7),
		TopP:                f64(1.0),
		DisableThinkingHack: disable,
		DebugTag:            phase,
	}
}

func (r *run) finalReportRequest() CompletionRequest {
	return CompletionRequest{
		Temperature:         f64(1.0),
		TopP:                f64(0.95),
		DisableThinkingHack: r.loop.mainDisableThinkingHack,
		DebugTag:            PhaseFinalReport,
	}
}

// --- token sinks ---

func (r *run) workerTokenSink(step int) func(string) {
	if !r.cfg.Stream || !r.hasEventSink() {
		return nil
	}
	return func(token string) {
		r.emit(Event{Kind: EventWorkerToken, Step: step, Token: token})
	}
}

func (r *run) mainTokenSink(phase string) func(string) {
	if !r.cfg.Stream || !r.hasEventSink() {
		return nil
	}
	return func(token string) {
		r.emit(Event{Kind: EventMainToken, Phase: phase, Token: token})
	}
}

// --- phase calls ---

// askWorkerForAction requests one worker action. The parse pass strips
// think blocks, enforces the reply token budget, validates the action
// shape, and runs call_tool commands through the safety gate. A final
// failure carries the current step in ErrValidation.Step.
func (r *run) askWorkerForAction(ctx context.Context) (WorkerAction, error) {
	messages := buildWorkerMessages(r.workerSystemPrompt, r.goal, r.rt)

	var action WorkerAction
	parse := func(content string) error {
		if err := validateWorkerReplyTokenLimit(content, r.loop.workerMaxResponseTokens); err != nil {
			return err
		}
		a, err := parseWorkerAction(stripThinkBlocks(content))
		if err != nil {
			return err
		}
		if a.Action == ActionCallTool {
			if err := CheckCommand(a.Args.Cmd, r.loop.maxPipes); err != nil {
				return err
			}
		}
		action = a
		return nil
	}

	err := requestStructuredWithRepair(ctx, r.workerAPI, messages, r.loop.structuredRetryLimit, r.cfg.Stream,
		func(int) CompletionRequest { return r.workerRequest() },
		parse, repairKindWorkerAction, r.workerTokenSink(r.rt.step))
	if err != nil {
		var ev *ErrValidation
		if errors.As(err, &ev) {
			ev.Step = r.rt.step
		}
		return WorkerAction{}, err
	}
	return action, nil
}

// askMainForPlanning requests the opening plan.
func (r *run) askMainForPlanning(ctx context.Context) (PlanningResult, error) {
	messages := buildPlanningMessages(r.goal, r.session)

	var plan PlanningResult
	parse := func(content string) error {
		p, err := parsePlanningResult(stripThinkBlocks(content))
		if err != nil {
			return err
		}
		plan = p
		return nil
	}

	err := requestStructuredWithRepair(ctx, r.mainAPI, messages, r.loop.structuredRetryLimit, r.cfg.Stream,
		func(int) CompletionRequest { return r.mainStructuredRequest(PhasePlanning, nil) },
		parse, repairKindPlanning, r.mainTokenSink(PhasePlanning))
	if err != nil {
		return PlanningResult{}, err
	}
	return plan, nil
}

// askMainForDecision requests a sufficiency verdict. With forceFinalize the
// prompt admits only finalize; a parse that still says continue is rejected
// into the repair loop.
func (r *run) askMainForDecision(ctx context.Context, forceFinalize bool, enableThinkOverride *bool) (MainDecision, error) {
	phase := PhaseAssessSufficiency
	if forceFinalize {
		phase = PhaseForcedSynthesis
	}
	messages := buildDecisionMessages(r.goal, r.evidenceSummaryForDecision(), forceFinalize)

	var decision MainDecision
	parse := func(content string) error {
		d, err := parseMainDecision(stripThinkBlocks(content))
		if err != nil {
			return err
		}
		if forceFinalize && d.Decision != DecisionFinalize {
			return errors.New("the step budget is exhausted: decision must be finalize")
		}
		decision = d
		return nil
	}

	err := requestStructuredWithRepair(ctx, r.mainAPI, messages, r.loop.structuredRetryLimit, r.cfg.Stream,
		func(int) CompletionRequest { return r.mainStructuredRequest(phase, enableThinkOverride) },
		parse, repairKindMainDecision, r.mainTokenSink(phase))
	if err != nil {
		return MainDecision{}, err
	}
	return decision, nil
}

// finalAnswerRepairRounds bounds the plain-language rewrite loop.
const finalAnswerRepairRounds = 2

// askMainForFinalAnswer requests the natural-language report. JSON or
// code-block leakage triggers up to two rewrite rounds; a reply that stays
// structured is salvaged via its answer field or replaced by the templated
// fallback. Only provider failure at the cap (and cancellation) returns an
// error.
func (r *run) askMainForFinalAnswer(ctx context.Context, draft, decisionContext string) (string, error) {
	evidence := summarizeEvidenceForMain(r.rt.evidence)
	base := buildFinalReportMessages(r.goal, draft, decisionContext, strings.Join(evidence, "\n"))
	onToken := r.mainTokenSink(PhaseFinalReport)

	messages := base
	var lastContent string
	for attempt := 0; attempt <= finalAnswerRepairRounds; attempt++ {
		content, err := requestChatReply(ctx, r.mainAPI, r.finalReportRequest(), messages, attempt, r.cfg.Stream, onToken)
		if err != nil {
			if ctx.Err() != nil || attempt == finalAnswerRepairRounds {
				return "", err
			}
			continue
		}
		lastContent = content
		answer := strings.TrimSpace(stripThinkBlocks(content))
		if answer != "" && !looksLikeStructuredOutput(answer) {
			return answer, nil
		}
		if attempt < finalAnswerRepairRounds {
			messages = append(append([]ChatMessage(nil), base...),
				AssistantMessage(content),
				UserMessage("Rewrite that as plain natural language. No JSON, no code blocks, no think tags. Output only the report text."))
		}
	}
	if salvaged := tryExtractAnswerField(lastContent); salvaged != "" {
		return salvaged, nil
	}
	return fallbackFinalAnswer(r.goal, evidence), nil
}
