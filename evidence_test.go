package senaka

import (
	"strings"
	"testing"
)

func TestSummarizeEvidenceForMain(t *testing.T) {
	items := []EvidenceItem{
		{Kind: EvidenceToolResult, Summary: "cmd=ls exit=0"},
		{Kind: EvidenceToolResult, Summary: "cmd=ls exit=0"}, // duplicate
		{Kind: EvidenceUserAnswer, Summary: "cmd=ls exit=0"}, // same text, other kind
		{Kind: EvidenceMainGuidance, Summary: "check sizes"},
	}
	lines := summarizeEvidenceForMain(items)
	if len(lines) != 3 {
		t.Fatalf("lines = %v, want 3 after dedupe", lines)
	}
	if lines[0] != "[tool_result] cmd=ls exit=0" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "[user_answer] cmd=ls exit=0" {
		t.Errorf("line 1 = %q", lines[1])
	}

	var many []EvidenceItem
	for i := 0; i < 30; i++ {
		many = append(many, EvidenceItem{Kind: EvidenceToolResult, Summary: strings.Repeat("x", i+1)})
	}
	if got := len(summarizeEvidenceForMain(many)); got != maxEvidenceForMain {
		t.Errorf("capped at %d, want %d", got, maxEvidenceForMain)
	}
}

func TestSummarizeEvidenceForWorker(t *testing.T) {
	var items []EvidenceItem
	for _, s := range []string{"one", "two", "three", "four"} {
		items = append(items, EvidenceItem{Kind: EvidenceToolResult, Summary: s})
	}
	lines := summarizeEvidenceForWorker(items, 2)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "1. [tool_result] three" || lines[1] != "2. [tool_result] four" {
		t.Errorf("window = %v, want newest two renumbered from 1", lines)
	}
	if got := summarizeEvidenceForWorker(nil, 5); len(got) != 0 {
		t.Errorf("empty items produced %v", got)
	}
}

func TestNewToolEvidence(t *testing.T) {
	res := ToolResult{
		Cmd:              "df -h",
		ExitCode:         1,
		Stdout:           "\n  Filesystem  Size\n/dev/sda1 20G",
		Stderr:           "warning: stale mount",
		Runner:           RunnerLocal,
		WorkspaceGroupID: "grp",
	}
	ev := newToolEvidence(res)
	if ev.Kind != EvidenceToolResult {
		t.Errorf("kind = %q", ev.Kind)
	}
	if strings.Contains(ev.Summary, "\n") {
		t.Error("summary must be a single line")
	}
	for _, want := range []string{"runner=local", "group=grp", "cmd=df -h", "exit=1", "stdout=Filesystem  Size", "stderr=warning: stale mount"} {
		if !strings.Contains(ev.Summary, want) {
			t.Errorf("summary missing %q: %s", want, ev.Summary)
		}
	}
	if !strings.Contains(ev.Detail, "/dev/sda1 20G") {
		t.Error("detail lost the full stdout")
	}
}

func TestNewUserAnswerEvidence(t *testing.T) {
	ev := newUserAnswerEvidence("Proceed? YES or NO.", "NO")
	if ev.Summary != "Q: Proceed? YES or NO. / A: NO" {
		t.Errorf("summary = %q", ev.Summary)
	}
	if ev.Kind != EvidenceUserAnswer {
		t.Errorf("kind = %q", ev.Kind)
	}
}

func TestFirstNonEmptyLine(t *testing.T) {
	if got := firstNonEmptyLine("\n   \n  hello world  \nmore"); got != "hello world" {
		t.Errorf("got %q", got)
	}
	if got := firstNonEmptyLine("  \n \n"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
