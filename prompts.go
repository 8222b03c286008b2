package senaka

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed prompts/worker_system.txt
var defaultWorkerSystemPrompt string

// planningSystemPrompt asks the main model for an opening plan. The JSON
// contract is spelled out inline so small local models have a shape to copy.
const planningSystemPrompt = `You plan an evidence-gathering run for the goal below.
Decide the next phase and reply with EXACTLY ONE JSON object, nothing else:

{"next":"collect_evidence","reason":"...","evidence_goals":["..."],"guidance":"..."}

"next" must be one of:
- "collect_evidence": evidence is missing; a fast worker will run sandboxed
  shell commands or ask the operator YES/NO questions.
- "main_decision": existing history likely already answers the goal; jump to
  the sufficiency check.
- "final_report": the goal is trivial to answer directly; optionally include
  "answer_hint" with a draft answer.

"reason" is mandatory. "evidence_goals" lists concrete facts to collect.
"guidance" directs the worker. No code fences, no <think> tags.`

// decisionSystemPrompt asks the main model to judge sufficiency.
const decisionSystemPrompt = `You judge whether gathered evidence suffices to answer the goal.
Reply with EXACTLY ONE JSON object, nothing else:

{"decision":"finalize","answer":"...","summary_evidence":["..."]}
or
{"decision":"continue","guidance":"...","needed_evidence":["..."]}

Finalize only when the evidence supports a concrete answer; "answer" should
then carry your draft. When continuing, "guidance" must tell the worker what
to gather next. No code fences, no <think> tags.`

// forcedDecisionSystemPrompt is the forced-synthesis variant: the step
// budget is spent, so continuing is not an option.
const forcedDecisionSystemPrompt = `The evidence-gathering budget is exhausted. You MUST finalize now.
Reply with EXACTLY ONE JSON object, nothing else:

{"decision":"finalize","answer":"...","summary_evidence":["..."]}

Write the best answer the existing evidence supports, flagging uncertainty
inside "answer" where the evidence is thin. "continue" is not accepted.`

// finalReportSystemPrompt governs the final natural-language report.
const finalReportSystemPrompt = `Write the final report for the goal below as plain natural language.
Rules: no JSON, no code fences, no bullet-point dumps of raw tool output,
no <think> tags. State the answer first, then the supporting evidence in
one or two short paragraphs. If evidence is incomplete, say what is missing.`

// History summarization bounds for planning prompts.
const (
	planningHistoryMessages = 16
	planningHistoryClip     = 220
)

// Worker header bounds.
const workerEvidenceWindow = 12

// buildPlanningMessages composes the planning request: the contract, the
// goal, and a clipped summary of recent session history so multi-turn
// context survives into the plan.
func buildPlanningMessages(goal string, session *ChatSession) []ChatMessage {
	var b strings.Builder
	b.WriteString("Goal: " + goal + "\n")
	if history := summarizeSessionHistory(session.Messages, planningHistoryMessages, planningHistoryClip); history != "" {
		b.WriteString("\nRecent session history:\n" + history)
	}
	return []ChatMessage{
		SystemMessage(planningSystemPrompt),
		UserMessage(b.String()),
	}
}

// summarizeSessionHistory renders the last limit non-compaction messages,
// one per line, loop tag stripped, clipped to clip chars, prefixed with the
// role. Empty contents are skipped.
func summarizeSessionHistory(messages []ChatMessage, limit, clip int) string {
	var recent []ChatMessage
	for _, m := range messages {
		if isCompactionSummary(m) {
			continue
		}
		recent = append(recent, m)
	}
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	var lines []string
	for _, m := range recent {
		content := strings.TrimSpace(stripLoopTag(m.Content))
		if content == "" {
			continue
		}
		lines = append(lines, m.Role+": "+clipText(content, clip))
	}
	return strings.Join(lines, "\n")
}

// buildWorkerMessages composes one worker turn: the system contract plus a
// header describing where the run stands.
func buildWorkerMessages(systemPrompt, goal string, rt *loopRuntime) []ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\nStep: %d\n", goal, rt.step)

	if rt.guidance != "" {
		b.WriteString("Main guidance: " + rt.guidance + "\n")
	} else {
		b.WriteString("Main guidance: none\n")
	}
	if rt.recentUserAnswer != "" {
		b.WriteString("Latest user answer: " + rt.recentUserAnswer + "\n")
	} else {
		b.WriteString("Latest user answer: none\n")
	}

	b.WriteString("Evidence so far:\n")
	if lines := summarizeEvidenceForWorker(rt.evidence, workerEvidenceWindow); len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n") + "\n")
	} else {
		b.WriteString("none\n")
	}

	b.WriteString("Tool context:\n")
	if rt.lastTool != nil {
		fmt.Fprintf(&b, "Command: %s\nExit code: %d\nStdout:\n%s\nStderr:\n%s\n",
			rt.lastTool.Cmd, rt.lastTool.ExitCode, rt.lastTool.Stdout, rt.lastTool.Stderr)
	} else {
		b.WriteString("No previous tool result.\n")
	}

	return []ChatMessage{
		SystemMessage(systemPrompt),
		UserMessage(strings.TrimRight(b.String(), "\n")),
	}
}

// buildDecisionMessages composes a sufficiency (or forced-synthesis)
// request over the accumulated evidence summary.
func buildDecisionMessages(goal, evidenceSummary string, forceFinalize bool) []ChatMessage {
	system := decisionSystemPrompt
	if forceFinalize {
		system = forcedDecisionSystemPrompt
	}
	var b strings.Builder
	b.WriteString("Goal: " + goal + "\n\nEvidence:\n")
	if evidenceSummary != "" {
		b.WriteString(evidenceSummary)
	} else {
		b.WriteString("none")
	}
	return []ChatMessage{
		SystemMessage(system),
		UserMessage(b.String()),
	}
}

// buildFinalReportMessages composes the final-report request. draft is the
// main model's answer draft when one exists; decisionContext summarizes the
// finalize decision that led here.
func buildFinalReportMessages(goal, draft, decisionContext, evidenceSummary string) []ChatMessage {
	var b strings.Builder
	b.WriteString("Goal: " + goal + "\n")
	if evidenceSummary != "" {
		b.WriteString("\nEvidence:\n" + evidenceSummary + "\n")
	}
	if decisionContext != "" {
		b.WriteString("\nDecision context:\n" + decisionContext + "\n")
	}
	if draft != "" {
		b.WriteString("\nDraft answer to refine:\n" + draft + "\n")
	}
	return []ChatMessage{
		SystemMessage(finalReportSystemPrompt),
		UserMessage(strings.TrimRight(b.String(), "\n")),
	}
}

// summarizeDecisionContext flattens a finalize decision into the context
// block the final-report prompt carries.
func summarizeDecisionContext(d MainDecision) string {
	var lines []string
	if d.Answer != "" {
		lines = append(lines, "answer: "+d.Answer)
	}
	if d.Guidance != "" {
		lines = append(lines, "guidance: "+d.Guidance)
	}
	for _, e := range d.SummaryEvidence {
		lines = append(lines, "summary_evidence: "+e)
	}
	for _, e := range d.NeededEvidence {
		lines = append(lines, "needed_evidence: "+e)
	}
	if d.ForcedSynthesisEnableThink != nil {
		lines = append(lines, fmt.Sprintf("forced_synthesis_enable_think: %t", *d.ForcedSynthesisEnableThink))
	}
	return strings.Join(lines, "\n")
}

// clipText truncates s to at most n bytes on a rune boundary, appending an
// ellipsis when anything was cut.
func clipText(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
