package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for loop and LLM spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrStreamChunks = attribute.Key("llm.stream_chunks")

	AttrAgentID   = attribute.Key("run.agent_id")
	AttrRunMode   = attribute.Key("run.mode")
	AttrRunSteps  = attribute.Key("run.steps")
	AttrLoopState = attribute.Key("run.state")
	AttrMainPhase = attribute.Key("run.phase")
	AttrRunner    = attribute.Key("run.sandbox_runner")
)
