package senaka

import (
	"fmt"
	"strings"
)

// Context guard constants. The guard estimates tokens with the same crude
// ceil(len/4) heuristic the parser uses, plus a per-message overhead.
const (
	// DefaultContextLength applies when neither routed model declares one.
	DefaultContextLength = 8192
	// compactionTriggerRatio of the context limit at which compaction fires.
	compactionTriggerRatio = 0.85
	// compactionTargetRatio of the context limit the rebuild aims below.
	compactionTargetRatio = 0.55
	// compactionMinMessages: sessions shorter than this are never compacted.
	compactionMinMessages = 24
	// compactionMaxRecent is the recent window carried into the rebuild.
	compactionMaxRecent = 24
	// compactionMinRecent is the floor the first trimming pass stops at.
	compactionMinRecent = 6
	// compactionClipChars bounds each clipped line and message.
	compactionClipChars = 700
	// compactionMarker opens every compaction summary document.
	compactionMarker = "[SESSION_COMPACTION]"
	// compactionGroupKeep is how many trailing lines each tag group keeps
	// in the summary document.
	compactionGroupKeep = 5
	// messageTokenOverhead is added per message to the content estimate.
	messageTokenOverhead = 6
)

// estimateMessageTokens approximates one message's token cost.
func estimateMessageTokens(m ChatMessage) int {
	return approxTokens(m.Content) + messageTokenOverhead
}

// estimateSessionTokens approximates the full transcript's token cost.
func estimateSessionTokens(messages []ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += estimateMessageTokens(m)
	}
	return total
}

// resolveContextLimitTokens returns the tighter of the two routed models'
// context lengths, or DefaultContextLength when neither declares one. The
// loop budgets against the smaller window because both models see the same
// session.
func resolveContextLimitTokens(cfg ResolvedAgentConfig) int {
	limit := 0
	for _, n := range []int{cfg.Main.ContextLength, cfg.Worker.ContextLength} {
		if n > 0 && (limit == 0 || n < limit) {
			limit = n
		}
	}
	if limit == 0 {
		return DefaultContextLength
	}
	return limit
}

// compactionPlan is one compaction decision for the current session shape.
type compactionPlan struct {
	shouldCompact   bool
	estimatedTokens int
	triggerTokens   int
	targetTokens    int
	// signature fingerprints the session so a compaction that made no
	// progress does not re-trigger on the very next dispatch.
	signature string
}

// computeCompactionPlan decides whether the session needs compacting under
// the given context limit.
func computeCompactionPlan(session *ChatSession, limitTokens int) compactionPlan {
	estimated := estimateSessionTokens(session.Messages)
	plan := compactionPlan{
		estimatedTokens: estimated,
		triggerTokens:   int(float64(limitTokens) * compactionTriggerRatio),
		targetTokens:    int(float64(limitTokens) * compactionTargetRatio),
	}
	plan.shouldCompact = len(session.Messages) >= compactionMinMessages && estimated >= plan.triggerTokens

	lastRole, lastLen := "", 0
	if n := len(session.Messages); n > 0 {
		lastRole = session.Messages[n-1].Role
		lastLen = len(session.Messages[n-1].Content)
	}
	plan.signature = fmt.Sprintf("%d:%d:%s:%d", estimated, len(session.Messages), lastRole, lastLen)
	return plan
}

// summaryTagGroups lists the tag prefixes the summary document preserves, in
// render order. More specific prefixes come before their generic overlap
// (ASK_ANSWER before ASK, TOOL_RESULT before TOOL) so each line lands in
// exactly one group.
var summaryTagGroups = []struct {
	title  string
	prefix string
}{
	{"Goal lines", tagAgentGoal},
	{"Worker tool results", tagWorkerToolResult},
	{"Worker tool commands", tagWorkerTool},
	{"Operator answers", tagWorkerAskAnswer},
	{"Worker questions", tagWorkerAsk},
	{"Main guidance", tagMainGuidance},
}

// buildCompactionSummaryDocument condenses the transcript into the document
// that replaces it: run position, then the tail of every tagged line group,
// then failure lines, then the latest assistant reply. Everything is clipped
// so the summary itself cannot blow the budget.
func buildCompactionSummaryDocument(goal string, rt *loopRuntime, messages []ChatMessage) string {
	var b strings.Builder
	b.WriteString(compactionMarker + "\n")
	b.WriteString("Earlier history was compacted. Current run position:\n")
	fmt.Fprintf(&b, "- Goal: %s\n- Step: %d\n- Evidence items: %d\n", clipText(goal, compactionClipChars), rt.step, len(rt.evidence))

	grouped := make(map[string][]string, len(summaryTagGroups))
	var failLines []string
	var lastAssistant string
	for _, m := range messages {
		if isCompactionSummary(m) {
			continue
		}
		if m.Role == RoleAssistant && strings.TrimSpace(m.Content) != "" {
			lastAssistant = m.Content
		}
		if !isLoopTagged(m.Content) {
			continue
		}
		matched := false
		for _, g := range summaryTagGroups {
			if strings.HasPrefix(m.Content, g.prefix) {
				grouped[g.prefix] = append(grouped[g.prefix], clipText(m.Content, compactionClipChars))
				matched = true
				break
			}
		}
		if !matched && strings.Contains(m.Content[:strings.IndexByte(m.Content, ']')+1], "_FAIL") {
			failLines = append(failLines, clipText(m.Content, compactionClipChars))
		}
	}

	for _, g := range summaryTagGroups {
		lines := grouped[g.prefix]
		if len(lines) == 0 {
			continue
		}
		if len(lines) > compactionGroupKeep {
			lines = lines[len(lines)-compactionGroupKeep:]
		}
		b.WriteString("\n" + g.title + ":\n")
		for _, line := range lines {
			b.WriteString(line + "\n")
		}
	}
	if len(failLines) > 0 {
		if len(failLines) > compactionGroupKeep {
			failLines = failLines[len(failLines)-compactionGroupKeep:]
		}
		b.WriteString("\nFailures:\n")
		for _, line := range failLines {
			b.WriteString(line + "\n")
		}
	}
	if lastAssistant != "" {
		b.WriteString("\nLatest assistant reply:\n" + clipText(lastAssistant, compactionClipChars) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildCompactedSessionMessages rebuilds the transcript under targetTokens:
// at most one base system message, the fresh summary, and a trailing recent
// window that is trimmed, then clipped, then trimmed again until the budget
// holds or a single recent message remains.
func buildCompactedSessionMessages(session *ChatSession, summaryDoc string, targetTokens int) []ChatMessage {
	var base *ChatMessage
	var recent []ChatMessage
	for _, m := range session.Messages {
		if isCompactionSummary(m) {
			continue
		}
		if base == nil && m.Role == RoleSystem && !isLoopTagged(m.Content) {
			mm := m
			base = &mm
			continue
		}
		recent = append(recent, m)
	}
	if len(recent) > compactionMaxRecent {
		recent = recent[len(recent)-compactionMaxRecent:]
	}

	assemble := func(recent []ChatMessage) []ChatMessage {
		out := make([]ChatMessage, 0, len(recent)+2)
		if base != nil {
			out = append(out, *base)
		}
		out = append(out, SystemMessage(summaryDoc))
		out = append(out, recent...)
		return dedupeMessages(out)
	}

	over := func(msgs []ChatMessage) bool {
		return estimateSessionTokens(msgs) > targetTokens
	}

	msgs := assemble(recent)
	for over(msgs) && len(recent) > compactionMinRecent {
		recent = recent[1:]
		msgs = assemble(recent)
	}
	if over(msgs) {
		clipped := make([]ChatMessage, len(recent))
		for i, m := range recent {
			m.Content = clipText(m.Content, compactionClipChars)
			clipped[i] = m
		}
		recent = clipped
		msgs = assemble(recent)
	}
	for over(msgs) && len(recent) > 1 {
		recent = recent[1:]
		msgs = assemble(recent)
	}
	return msgs
}

// dedupeMessages drops later duplicates of an identical (role, content)
// pair, preserving order.
func dedupeMessages(messages []ChatMessage) []ChatMessage {
	seen := make(map[ChatMessage]struct{}, len(messages))
	out := messages[:0:0]
	for _, m := range messages {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
