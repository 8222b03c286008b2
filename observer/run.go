package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lilamaris/senaka"
)

// runRecorder turns loop events into a run span plus counters. The loop
// publishes events synchronously from one goroutine, so no locking is needed.
type runRecorder struct {
	inst *Instruments

	ctx     context.Context
	span    trace.Span
	agentID string
	mode    string
	started time.Time
}

// RunRecorder returns an event sink suitable for senaka.WithObserver or
// RunOptions.OnEvent. It opens a span per run on the start event, records
// phase transitions as span events, and closes the span on complete.
func RunRecorder(inst *Instruments) func(senaka.Event) {
	r := &runRecorder{inst: inst, ctx: context.Background()}
	return r.observe
}

func (r *runRecorder) observe(ev senaka.Event) {
	switch ev.Kind {
	case senaka.EventStart:
		r.agentID = ev.AgentID
		r.mode = ev.Mode
		r.started = time.Now()
		r.ctx, r.span = r.inst.Tracer.Start(context.Background(), "loop.run", trace.WithAttributes(
			AttrAgentID.String(ev.AgentID),
			AttrRunMode.String(ev.Mode),
		))

	case senaka.EventLoopState:
		if r.span != nil {
			r.span.AddEvent("loop.state", trace.WithAttributes(
				AttrLoopState.String(string(ev.State)),
				attribute.Int("run.step", ev.Step),
			))
		}

	case senaka.EventToolResult:
		r.inst.Steps.Add(r.ctx, 1, metric.WithAttributes(
			AttrAgentID.String(r.agentID),
			AttrRunner.String(ev.Runner),
		))
		if r.span != nil {
			r.span.AddEvent("loop.tool", trace.WithAttributes(
				attribute.Int("tool.exit_code", ev.ExitCode),
				AttrRunner.String(ev.Runner),
			))
		}

	case senaka.EventAskAnswer:
		if r.span != nil {
			r.span.AddEvent("loop.ask_answered")
		}

	case senaka.EventCompactionComplete:
		r.inst.Compactions.Add(r.ctx, 1, metric.WithAttributes(
			AttrAgentID.String(r.agentID),
		))
		if r.span != nil {
			r.span.AddEvent("loop.compaction", trace.WithAttributes(
				attribute.Int("compaction.before_tokens", ev.BeforeTokens),
				attribute.Int("compaction.after_tokens", ev.AfterTokens),
			))
		}

	case senaka.EventMainDecision:
		if r.span != nil {
			r.span.AddEvent("loop.decision", trace.WithAttributes(
				AttrMainPhase.String(ev.Phase),
				attribute.String("run.decision", ev.Decision),
			))
		}

	case senaka.EventComplete:
		if r.span == nil {
			return
		}
		r.span.SetAttributes(AttrRunSteps.Int(ev.Steps))
		r.inst.Runs.Add(r.ctx, 1, metric.WithAttributes(
			AttrAgentID.String(r.agentID),
			AttrRunMode.String(r.mode),
		))
		r.inst.RunDuration.Record(r.ctx, float64(time.Since(r.started).Milliseconds()), metric.WithAttributes(
			AttrAgentID.String(r.agentID),
		))
		r.span.End()
		r.span = nil
		r.ctx = context.Background()
	}
}
