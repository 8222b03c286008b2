package senaka

import (
	"fmt"
	"strings"
)

// maxEvidenceForMain caps how many evidence lines the main model sees.
const maxEvidenceForMain = 12

// summarizeEvidenceForMain renders evidence for the main model: insertion
// order, deduplicated by kind and summary, at most maxEvidenceForMain lines,
// each prefixed with "[<kind>] ". Each line stands alone.
func summarizeEvidenceForMain(items []EvidenceItem) []string {
	seen := make(map[string]struct{}, len(items))
	var lines []string
	for _, it := range items {
		key := string(it.Kind) + ":" + it.Summary
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		lines = append(lines, "["+string(it.Kind)+"] "+it.Summary)
		if len(lines) >= maxEvidenceForMain {
			break
		}
	}
	return lines
}

// summarizeEvidenceForWorker renders the newest evidence for the worker
// header: the last limit items, numbered from 1, "<idx>. [<kind>] <summary>".
func summarizeEvidenceForWorker(items []EvidenceItem, limit int) []string {
	start := 0
	if len(items) > limit {
		start = len(items) - limit
	}
	lines := make([]string, 0, len(items)-start)
	for i, it := range items[start:] {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", i+1, it.Kind, it.Summary))
	}
	return lines
}

// newToolEvidence builds the evidence item for one sandbox result. The
// summary is a single line; the multi-line output lands in Detail.
func newToolEvidence(res ToolResult) EvidenceItem {
	summary := fmt.Sprintf("runner=%s group=%s cmd=%s exit=%d stdout=%s stderr=%s",
		res.Runner, res.WorkspaceGroupID, res.Cmd, res.ExitCode,
		firstNonEmptyLine(res.Stdout), firstNonEmptyLine(res.Stderr))
	detail := fmt.Sprintf("cmd: %s\nexit: %d\nstdout:\n%s\nstderr:\n%s",
		res.Cmd, res.ExitCode, res.Stdout, res.Stderr)
	return EvidenceItem{Kind: EvidenceToolResult, Summary: summary, Detail: detail}
}

// newUserAnswerEvidence records an operator reply to a worker question.
func newUserAnswerEvidence(question, answer string) EvidenceItem {
	return EvidenceItem{
		Kind:    EvidenceUserAnswer,
		Summary: "Q: " + question + " / A: " + answer,
	}
}

// newGuidanceEvidence records direction from the main model (or a synthetic
// substitute after a validation failure).
func newGuidanceEvidence(text string) EvidenceItem {
	return EvidenceItem{Kind: EvidenceMainGuidance, Summary: text}
}

// firstNonEmptyLine returns the first line of s that contains more than
// whitespace, trimmed. Empty when there is none.
func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
