package senaka

import "testing"

func TestIsLoopTagged(t *testing.T) {
	tagged := []string{
		"[AGENT_GOAL:default] do the thing",
		"[WORKER_TOOL_3] ls",
		"[WORKER_TOOL_RESULT_12] exit=0",
		"[PLANNING_RESULT] next=collect_evidence",
		"[MAIN_FORCE_FINALIZE_FAIL] provider down",
	}
	for _, s := range tagged {
		if !isLoopTagged(s) {
			t.Errorf("isLoopTagged(%q) = false", s)
		}
	}
	untagged := []string{
		"plain text",
		"[lowercase] nope",
		"[123] starts with digit",
		"no [TAG] at start",
		"",
	}
	for _, s := range untagged {
		if isLoopTagged(s) {
			t.Errorf("isLoopTagged(%q) = true", s)
		}
	}
}

func TestStripLoopTag(t *testing.T) {
	cases := []struct{ in, want string }{
		{"[WORKER_TOOL_3] ls -la", "ls -la"},
		{"[AGENT_GOAL:default] count files", "count files"},
		{"untouched", "untouched"},
	}
	for _, c := range cases {
		if got := stripLoopTag(c.in); got != c.want {
			t.Errorf("stripLoopTag(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsCompactionSummary(t *testing.T) {
	if !isCompactionSummary(SystemMessage(compactionMarker + "\nbody")) {
		t.Error("summary document not recognized")
	}
	if isCompactionSummary(UserMessage(compactionMarker + "\nbody")) {
		t.Error("user-role message mistaken for a summary")
	}
	if isCompactionSummary(SystemMessage("[WORKER_TOOL_1] ls")) {
		t.Error("tagged line mistaken for a summary")
	}
}
