package senaka

import (
	"strings"
	"testing"
)

func TestResolveContextLimitTokens(t *testing.T) {
	cfg := ResolvedAgentConfig{
		Main:   ResolvedModel{ContextLength: 32768},
		Worker: ResolvedModel{ContextLength: 8192},
	}
	if got := resolveContextLimitTokens(cfg); got != 8192 {
		t.Errorf("limit = %d, want the tighter 8192", got)
	}
	if got := resolveContextLimitTokens(ResolvedAgentConfig{}); got != DefaultContextLength {
		t.Errorf("limit = %d, want default %d", got, DefaultContextLength)
	}
	onlyMain := ResolvedAgentConfig{Main: ResolvedModel{ContextLength: 4096}}
	if got := resolveContextLimitTokens(onlyMain); got != 4096 {
		t.Errorf("limit = %d, want 4096", got)
	}
}

func TestEstimateSessionTokens(t *testing.T) {
	msgs := []ChatMessage{
		UserMessage("abcd"),     // 1 + overhead
		SystemMessage("abcde"),  // 2 + overhead
	}
	want := 1 + messageTokenOverhead + 2 + messageTokenOverhead
	if got := estimateSessionTokens(msgs); got != want {
		t.Errorf("estimate = %d, want %d", got, want)
	}
}

func oversizedSession(n, lineLen int) *ChatSession {
	s := &ChatSession{ID: "s"}
	s.Messages = append(s.Messages, SystemMessage("base prompt"))
	for i := 0; i < n; i++ {
		s.Messages = append(s.Messages, UserMessage(strings.Repeat("x", lineLen)))
	}
	return s
}

func TestComputeCompactionPlan(t *testing.T) {
	// Big but short transcript: under the message floor, never compacted.
	short := oversizedSession(5, 4000)
	if plan := computeCompactionPlan(short, 1000); plan.shouldCompact {
		t.Error("compacted a session below the message floor")
	}

	// Long and heavy: compacts.
	heavy := oversizedSession(40, 400)
	plan := computeCompactionPlan(heavy, 1000)
	if !plan.shouldCompact {
		t.Error("heavy session not flagged for compaction")
	}
	if plan.triggerTokens != 850 || plan.targetTokens != 550 {
		t.Errorf("trigger/target = %d/%d, want 850/550", plan.triggerTokens, plan.targetTokens)
	}

	// Long but light: over the floor, under the trigger.
	light := oversizedSession(30, 4)
	if plan := computeCompactionPlan(light, 100000); plan.shouldCompact {
		t.Error("light session flagged for compaction")
	}
}

func TestCompactionPlanSignatureTracksTail(t *testing.T) {
	s := oversizedSession(40, 400)
	a := computeCompactionPlan(s, 1000)
	b := computeCompactionPlan(s, 1000)
	if a.signature != b.signature {
		t.Error("identical sessions produced different signatures")
	}
	s.Messages = append(s.Messages, UserMessage("new tail"))
	c := computeCompactionPlan(s, 1000)
	if c.signature == a.signature {
		t.Error("signature unchanged after the session grew")
	}
}

func TestBuildCompactionSummaryDocument(t *testing.T) {
	rt := &loopRuntime{step: 4, evidence: make([]EvidenceItem, 3)}
	msgs := []ChatMessage{
		UserMessage("[AGENT_GOAL:default] count the files"),
		SystemMessage("[WORKER_TOOL_1] ls"),
		SystemMessage("[WORKER_TOOL_RESULT_1] exit=0"),
		SystemMessage("[WORKER_TOOL_2] ls /tmp"),
		SystemMessage("[WORKER_TOOL_RESULT_2] exit=1"),
		SystemMessage("[MAIN_GUIDANCE_3] check sizes too"),
		SystemMessage("[MAIN_DECISION_FAIL_3] unknown decision"),
		AssistantMessage("interim reply"),
		SystemMessage(compactionMarker + "\nold summary that must not nest"),
	}
	doc := buildCompactionSummaryDocument("count the files", rt, msgs)

	if !strings.HasPrefix(doc, compactionMarker) {
		t.Error("summary must open with the marker")
	}
	for _, want := range []string{
		"Goal: count the files",
		"Step: 4",
		"Evidence items: 3",
		"[WORKER_TOOL_2] ls /tmp",
		"[WORKER_TOOL_RESULT_2] exit=1",
		"[MAIN_GUIDANCE_3] check sizes too",
		"[MAIN_DECISION_FAIL_3] unknown decision",
		"interim reply",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("summary missing %q\n%s", want, doc)
		}
	}
	if strings.Contains(doc, "old summary that must not nest") {
		t.Error("prior compaction summary leaked into the new one")
	}
	// Tool results group under their own heading, not under commands.
	resultIdx := strings.Index(doc, "Worker tool results:")
	cmdIdx := strings.Index(doc, "Worker tool commands:")
	if resultIdx < 0 || cmdIdx < 0 || resultIdx > cmdIdx {
		t.Error("tag groups out of order or missing")
	}
}

func TestBuildCompactionSummaryKeepsGroupTail(t *testing.T) {
	rt := &loopRuntime{step: 9}
	var msgs []ChatMessage
	for i := 1; i <= 8; i++ {
		msgs = append(msgs, SystemMessage(strings.Replace("[WORKER_TOOL_N] cmd-N", "N", string(rune('0'+i)), 2)))
	}
	doc := buildCompactionSummaryDocument("g", rt, msgs)
	if strings.Contains(doc, "cmd-1") || strings.Contains(doc, "cmd-3") {
		t.Error("old group lines survived past the keep window")
	}
	for i := 4; i <= 8; i++ {
		if !strings.Contains(doc, "cmd-"+string(rune('0'+i))) {
			t.Errorf("recent group line cmd-%d dropped", i)
		}
	}
}

func TestBuildCompactedSessionMessages(t *testing.T) {
	s := &ChatSession{ID: "s"}
	s.Messages = append(s.Messages, SystemMessage("base prompt"))
	s.Messages = append(s.Messages, SystemMessage(compactionMarker+"\nstale summary"))
	for i := 0; i < 40; i++ {
		s.Messages = append(s.Messages, UserMessage("filler "+strings.Repeat("y", 80)))
	}
	s.Messages = append(s.Messages, AssistantMessage("latest reply"))

	doc := compactionMarker + "\nfresh summary"
	out := buildCompactedSessionMessages(s, doc, 600)

	if out[0].Content != "base prompt" {
		t.Errorf("first message = %q, want the base system prompt", out[0].Content)
	}
	if out[1].Content != doc {
		t.Error("second message must be the fresh summary")
	}
	if out[len(out)-1].Content != "latest reply" {
		t.Error("newest message lost")
	}
	for _, m := range out {
		if strings.Contains(m.Content, "stale summary") {
			t.Error("stale compaction summary survived the rebuild")
		}
	}
	if got := estimateSessionTokens(out); got > 600 {
		t.Errorf("rebuild over target: %d > 600", got)
	}
}

func TestBuildCompactedSessionClipsWhenTrimmingIsNotEnough(t *testing.T) {
	s := &ChatSession{ID: "s"}
	for i := 0; i < 30; i++ {
		s.Messages = append(s.Messages, UserMessage(strings.Repeat("z", 3000)))
	}
	out := buildCompactedSessionMessages(s, compactionMarker+"\nsum", 400)
	for _, m := range out {
		if m.Content != compactionMarker+"\nsum" && len(m.Content) > compactionClipChars+len("…") {
			t.Errorf("recent message not clipped: %d chars", len(m.Content))
		}
	}
	// Worst case bottoms out at summary plus one recent message.
	if len(out) < 2 {
		t.Errorf("rebuild produced %d messages, want at least summary + 1", len(out))
	}
}

func TestDedupeMessages(t *testing.T) {
	in := []ChatMessage{
		UserMessage("a"),
		UserMessage("a"),
		SystemMessage("a"), // different role, kept
		UserMessage("b"),
		UserMessage("a"),
	}
	out := dedupeMessages(in)
	if len(out) != 3 {
		t.Fatalf("deduped to %d, want 3: %v", len(out), out)
	}
	if out[0].Content != "a" || out[1].Role != RoleSystem || out[2].Content != "b" {
		t.Errorf("order not preserved: %v", out)
	}
}
