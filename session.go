package senaka

import "regexp"

// Session line tags. Tagged system/user lines are how the loop leaves a
// durable trail in the transcript; the context guard groups by these
// prefixes when it builds a compaction summary. Step-scoped tags end with
// "_<step>]", the goal tag with ":<agentID>]".
const (
	tagAgentGoal        = "[AGENT_GOAL:"
	tagWorkerTool       = "[WORKER_TOOL_"
	tagWorkerToolResult = "[WORKER_TOOL_RESULT_"
	tagWorkerAsk        = "[WORKER_ASK_"
	tagWorkerAskAnswer  = "[WORKER_ASK_ANSWER_"
	tagMainGuidance     = "[MAIN_GUIDANCE_"

	tagPlanningFail          = "[PLANNING_FAIL]"
	tagPlanningResult        = "[PLANNING_RESULT]"
	tagWorkerValidationFail  = "[WORKER_VALIDATION_FAIL_"
	tagMainDecisionFail      = "[MAIN_DECISION_FAIL_"
	tagMainFinalAnswerFail   = "[MAIN_FINAL_ANSWER_FAIL_"
	tagMainForceFinalizeFail = "[MAIN_FORCE_FINALIZE_FAIL]"
)

// loopTagRe matches a leading loop tag like "[WORKER_TOOL_3] " or
// "[AGENT_GOAL:default] ".
var loopTagRe = regexp.MustCompile(`^\[[A-Z][A-Z0-9_]*(?::[^\]]*|_\d+)?\]\s*`)

// isLoopTagged reports whether a message content carries a loop tag prefix.
func isLoopTagged(content string) bool {
	return loopTagRe.MatchString(content)
}

// stripLoopTag removes the leading loop tag, if any.
func stripLoopTag(content string) string {
	return loopTagRe.ReplaceAllString(content, "")
}

// isCompactionSummary reports whether a message is a prior compaction
// summary document.
func isCompactionSummary(m ChatMessage) bool {
	return m.Role == RoleSystem && len(m.Content) >= len(compactionMarker) &&
		m.Content[:len(compactionMarker)] == compactionMarker
}
