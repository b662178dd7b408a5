// Package llmgateway provides the provider-neutral LLM gateway consumed by
// the runloop coordinator.
//
// The gateway contract is deliberately narrow: a Call takes the current
// conversation plus the tool schemas offered this turn and returns either
// text content, a list of requested tool invocations, or both. Everything
// provider-specific lives behind the ProviderAdapter interface; the Client
// routes requests to registered adapters through optional middleware.
//
// The package also carries the error taxonomy the coordinator relies on
// (transient gateway failures are retried at iteration granularity, so
// adapters must classify errors as retryable or not), a generic exponential
// backoff Retry helper, and a small model catalog with alias resolution.
//
//	gw := llmgateway.NewClient(
//	    llmgateway.WithAdapter("openai", adapter),
//	)
//	reply, err := gw.Call(ctx, llmgateway.Request{
//	    Messages: msgs,
//	    Schemas:  schemas,
//	})
package llmgateway
