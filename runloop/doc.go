// Package runloop implements the tool-calling execution loop at the heart of
// the agent runtime.
//
// Given a conversation and a set of offered tool schemas, the Coordinator
// repeatedly asks the LLM gateway what to do next, validates and dispatches
// the tool invocations the model requests, feeds the results back into the
// conversation, and stops when the model produces a final answer or the
// iteration ceiling is reached. A run always ends with exactly one final
// answer: a terminal tool result, a direct model answer, or the force-finish
// fallback.
//
// # Architecture
//
//   - Coordinator: owns the iteration count, the conversation, and the tool
//     result log for one run; drives the call -> dispatch -> feedback cycle
//     and the termination policy.
//   - Strategy: per-tool-name dispatch behavior (prepare arguments,
//     interpret raw tool output into a ToolResult). A default strategy
//     handles unregistered tools generically.
//   - LoopDetector: tracks consecutive identical tool invocations and
//     raises a warning signal; it never terminates the run itself.
//   - WireAdapter: serializes tool feedback into the provider profile's
//     wire shape, selected once per run.
//   - ProgressEvent: the ordered, pull-based side channel of progress
//     records a caller consumes while the run executes.
//
// # Quick Start
//
//	coord := runloop.New(gateway, registry)
//	events := coord.Run(ctx,
//	    []llmgateway.Message{llmgateway.UserMessage("What is 2+2?")},
//	    schemas)
//	for ev := range events {
//	    if ev.Kind == runloop.EventResponseComplete {
//	        fmt.Println(ev.Answer)
//	    }
//	}
//
// Iterations, gateway calls, and tool dispatches within one run are strictly
// sequential; multiple runs are independent and share no mutable state
// beyond the injected gateway and registry, which must be concurrency-safe.
package runloop
