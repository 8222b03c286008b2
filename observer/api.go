package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lilamaris/senaka"
)

// ObservedAPI wraps a senaka.ChatAPI with OTEL instrumentation.
type ObservedAPI struct {
	inner    senaka.ChatAPI
	inst     *Instruments
	model    string
	provider string
}

var _ senaka.ChatAPI = (*ObservedAPI)(nil)

// WrapAPI returns an instrumented adapter that emits a span, token and cost
// metrics, and a structured log record per call.
func WrapAPI(inner senaka.ChatAPI, model senaka.ResolvedModel, inst *Instruments) *ObservedAPI {
	return &ObservedAPI{inner: inner, inst: inst, model: model.ModelName, provider: model.Provider}
}

func (o *ObservedAPI) Completion(ctx context.Context, req senaka.CompletionRequest) (senaka.CompletionResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "llm.completion", trace.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.provider),
	))
	defer span.End()
	start := time.Now()

	res, err := o.inner.Completion(ctx, req)

	o.record(ctx, span, "completion", req.DebugTag, start, res.Usage, err)
	return res, err
}

func (o *ObservedAPI) Stream(ctx context.Context, req senaka.CompletionRequest, onToken func(string)) (senaka.CompletionResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "llm.stream", trace.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.provider),
	))
	defer span.End()
	start := time.Now()

	chunks := 0
	counted := func(tok string) {
		chunks++
		if onToken != nil {
			onToken(tok)
		}
	}

	res, err := o.inner.Stream(ctx, req, counted)

	span.SetAttributes(AttrStreamChunks.Int(chunks))
	o.record(ctx, span, "stream", req.DebugTag, start, res.Usage, err)
	return res, err
}

func (o *ObservedAPI) record(ctx context.Context, span trace.Span, method, tag string, start time.Time, usage senaka.Usage, err error) {
	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	cost := o.inst.Cost.Calculate(o.model, usage.InputTokens, usage.OutputTokens)

	span.SetAttributes(
		AttrTokensInput.Int(usage.InputTokens),
		AttrTokensOutput.Int(usage.OutputTokens),
		AttrCostUSD.Float64(cost),
	)

	modelAttrs := metric.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.provider),
		AttrLLMMethod.String(method),
	)
	o.inst.TokenUsage.Add(ctx, int64(usage.InputTokens), metric.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.provider),
		attribute.String("direction", "input"),
	))
	o.inst.TokenUsage.Add(ctx, int64(usage.OutputTokens), metric.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.provider),
		attribute.String("direction", "output"),
	))
	o.inst.CostTotal.Add(ctx, cost, modelAttrs)
	o.inst.LLMRequests.Add(ctx, 1, metric.WithAttributes(
		AttrLLMModel.String(o.model),
		AttrLLMProvider.String(o.provider),
		AttrLLMMethod.String(method),
		attribute.String("status", status),
	))
	o.inst.LLMDuration.Record(ctx, durationMs, modelAttrs)

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("llm call completed"))
	rec.AddAttributes(
		otellog.String("llm.model", o.model),
		otellog.String("llm.provider", o.provider),
		otellog.String("llm.method", method),
		otellog.String("llm.tag", tag),
		otellog.Int("llm.tokens.input", usage.InputTokens),
		otellog.Int("llm.tokens.output", usage.OutputTokens),
		otellog.Float64("llm.cost_usd", cost),
		otellog.Float64("llm.duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)
}
