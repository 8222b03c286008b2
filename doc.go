// Package senaka hosts a two-role agent loop on local OpenAI-compatible
// models: a fast worker gathers evidence through sandboxed shell commands
// and operator questions while a stronger main model plans, judges
// sufficiency, and writes the final report.
//
// A Loop is assembled from an agent registry, a chat adapter factory, a
// sandbox runner, and a session store:
//
//	loop, err := senaka.New(
//		senaka.WithRouter(reg),
//		senaka.WithAPIFactory(openaicompat.Factory()),
//		senaka.WithSandbox(box),
//		senaka.WithStore(store),
//	)
//	result, err := loop.Run(ctx, session, goal, "default", senaka.RunOptions{})
//
// Runs leave a tagged trail in the session transcript, survive model
// misbehavior through a bounded repair protocol, compact their own context
// when the window fills, and always end with a final answer, even if it is
// the deterministic fallback.
package senaka
