package senaka

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Repair kinds name the structured phase being repaired. They appear in
// repair prompts and in ErrValidation.Kind.
const (
	repairKindWorkerAction = "worker-action"
	repairKindMainDecision = "main-decision"
	repairKindPlanning     = "planning"
)

// thinkBlockRe matches one <think>...</think> pair, shortest-first, across
// newlines, case-insensitive. Trailing whitespace after the closing tag is
// swallowed so stripped output doesn't start with a blank line.
var thinkBlockRe = regexp.MustCompile(`(?is)<think>.*?</think>\s*`)

// stripThinkBlocks removes every <think>...</think> pair from text. Some
// local models leak their hidden reasoning into content even with the
// think-bypass primer in place; parsers call this before validating.
func stripThinkBlocks(text string) string {
	return thinkBlockRe.ReplaceAllString(text, "")
}

// extractJSONObject returns the substring of text from the first '{' to the
// last '}' inclusive. Models often wrap their JSON in prose or code fences;
// this recovers the object without caring about the wrapping.
func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", errors.New("no JSON object found in reply")
	}
	return text[start : end+1], nil
}

// parseWorkerAction validates a worker reply against the action contract:
// exactly one of call_tool (shell, non-empty cmd, non-empty reason ≤120
// chars), ask (non-empty question), or finalize.
func parseWorkerAction(text string) (WorkerAction, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return WorkerAction{}, err
	}
	var action WorkerAction
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return WorkerAction{}, fmt.Errorf("invalid JSON: %w", err)
	}

	switch action.Action {
	case ActionCallTool:
		if action.Tool != ToolShell {
			return WorkerAction{}, fmt.Errorf("unknown tool %q, only %q is available", action.Tool, ToolShell)
		}
		if action.Args == nil || strings.TrimSpace(action.Args.Cmd) == "" {
			return WorkerAction{}, errors.New("call_tool requires a non-empty args.cmd")
		}
		if strings.TrimSpace(action.Reason) == "" {
			return WorkerAction{}, errors.New("call_tool requires a non-empty reason")
		}
		if n := utf8.RuneCountInString(action.Reason); n > 120 {
			return WorkerAction{}, fmt.Errorf("reason too long: %d chars > 120", n)
		}
	case ActionAsk:
		if strings.TrimSpace(action.Question) == "" {
			return WorkerAction{}, errors.New("ask requires a non-empty YES/NO question")
		}
	case ActionFinalize:
		// No payload.
	default:
		return WorkerAction{}, fmt.Errorf("unknown action %q, must be call_tool, ask, or finalize", action.Action)
	}
	return action, nil
}

// parseMainDecision validates a main-model sufficiency verdict.
func parseMainDecision(text string) (MainDecision, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return MainDecision{}, err
	}
	var decision MainDecision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return MainDecision{}, fmt.Errorf("invalid JSON: %w", err)
	}
	switch decision.Decision {
	case DecisionFinalize, DecisionContinue:
	default:
		return MainDecision{}, fmt.Errorf("unknown decision %q, must be finalize or continue", decision.Decision)
	}
	return decision, nil
}

// parsePlanningResult validates a main-model opening plan.
func parsePlanningResult(text string) (PlanningResult, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return PlanningResult{}, err
	}
	var plan PlanningResult
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return PlanningResult{}, fmt.Errorf("invalid JSON: %w", err)
	}
	switch plan.Next {
	case PlanCollectEvidence, PlanMainDecision, PlanFinalReport:
	default:
		return PlanningResult{}, fmt.Errorf("unknown next %q, must be collect_evidence, main_decision, or final_report", plan.Next)
	}
	if strings.TrimSpace(plan.Reason) == "" {
		return PlanningResult{}, errors.New("planning requires a non-empty reason")
	}
	return plan, nil
}

// approxTokens estimates the token count of s as ceil(len/4). Crude but
// model-agnostic, and the same estimate the context guard budgets with.
func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

// validateWorkerReplyTokenLimit rejects worker replies whose post-strip
// length exceeds the response budget.
func validateWorkerReplyTokenLimit(text string, maxTokens int) error {
	if maxTokens <= 0 {
		return nil
	}
	if got := approxTokens(stripThinkBlocks(text)); got > maxTokens {
		return fmt.Errorf("reply too long: ~%d tokens > limit %d", got, maxTokens)
	}
	return nil
}

// buildStructuredRepairPrompt composes the user-role message that asks a
// model to re-emit a malformed structured reply. The error text is quoted so
// the model can see what went wrong; worker-action repairs get targeted
// hints when the error indicates length, policy, or think-tag problems.
func buildStructuredRepairPrompt(kind, errorMessage string) ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Your previous %s output was rejected: %s\n", kind, errorMessage)
	b.WriteString("Re-output EXACTLY one valid JSON object of the specified shape. No prose, no code fences, no explanations.")

	if kind == repairKindWorkerAction {
		lower := strings.ToLower(errorMessage)
		if strings.Contains(lower, "too long") {
			b.WriteString("\nKeep the reply short: one compact JSON object, reason under 120 characters.")
		}
		if strings.Contains(lower, "policy") || strings.Contains(lower, "forbidden") ||
			strings.Contains(lower, "pipes") || strings.Contains(lower, "git push") {
			b.WriteString("\nChoose a different, safe read-only command. Destructive commands, git push, and excess pipes are refused.")
		}
		if strings.Contains(lower, "think") {
			b.WriteString("\nDo not emit <think> tags or hidden reasoning. Output the JSON object only.")
		}
	}
	return UserMessage(b.String())
}

// codeFenceRe matches a markdown code fence opener.
var codeFenceRe = regexp.MustCompile("(?m)^```")

// looksLikeStructuredOutput reports whether text still resembles JSON or a
// code block rather than prose. The final report must be natural language;
// this is the leak detector for that path.
func looksLikeStructuredOutput(text string) bool {
	trimmed := strings.TrimSpace(stripThinkBlocks(text))
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return true
	}
	if codeFenceRe.MatchString(trimmed) {
		return true
	}
	// A JSON object buried in short wrapping text is still a leak.
	if raw, err := extractJSONObject(trimmed); err == nil {
		if json.Valid([]byte(raw)) && len(raw)*2 > len(trimmed) {
			return true
		}
	}
	return false
}

// answerFields are the keys tryExtractAnswerField salvages, in order.
var answerFields = []string{"answer", "final_answer", "response", "final"}

// tryExtractAnswerField salvages a natural-language answer from a JSON reply
// that leaked into the final-report path. Returns "" when nothing usable is
// found.
func tryExtractAnswerField(text string) string {
	raw, err := extractJSONObject(stripThinkBlocks(text))
	if err != nil {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return ""
	}
	for _, field := range answerFields {
		v, ok := obj[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// fallbackFinalAnswer is the deterministic report used when the main model
// cannot produce a usable one. It restates the goal and lists every evidence
// line verbatim.
func fallbackFinalAnswer(goal string, evidence []string) string {
	var b strings.Builder
	b.WriteString("I could not produce a polished final report, so here is a direct summary.\n\n")
	b.WriteString("Goal: " + goal + "\n\n")
	if len(evidence) == 0 {
		b.WriteString("No evidence was gathered.")
		return b.String()
	}
	b.WriteString("Evidence gathered:\n")
	for _, line := range evidence {
		b.WriteString("- " + line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
