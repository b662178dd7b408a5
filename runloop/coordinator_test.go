package runloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanmarch/toolrun/llmgateway"
)

// scriptGateway replays a fixed sequence of replies and records every
// request it receives.
type scriptGateway struct {
	mu      sync.Mutex
	replies []*llmgateway.Reply
	errs    []error
	calls   []llmgateway.Request
}

func (g *scriptGateway) Call(_ context.Context, req llmgateway.Request) (*llmgateway.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	i := len(g.calls) - 1
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return &llmgateway.Reply{}, nil
}

func (g *scriptGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type recordedCall struct {
	name string
	args map[string]any
}

// mapRegistry routes execution through a per-tool function map and records
// every call.
type mapRegistry struct {
	mu    sync.Mutex
	tools map[string]func(args map[string]any) (any, error)
	calls []recordedCall
}

func (r *mapRegistry) Execute(_ context.Context, name string, args map[string]any) (any, error) {
	r.mu.Lock()
	r.calls = append(r.calls, recordedCall{name: name, args: args})
	r.mu.Unlock()
	if fn, ok := r.tools[name]; ok {
		return fn(args)
	}
	return nil, fmt.Errorf("no such tool: %s", name)
}

func (r *mapRegistry) recorded() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedCall(nil), r.calls...)
}

func toolCall(name, args string) llmgateway.ToolInvocation {
	return llmgateway.ToolInvocation{ID: "call_" + name, Name: name, Arguments: args}
}

func calcSchemas() []llmgateway.ToolSchema {
	return []llmgateway.ToolSchema{
		{Name: "calculate", Description: "Evaluate an arithmetic expression"},
		{Name: "finish", Description: "Finish with a final answer"},
	}
}

func collect(ch <-chan ProgressEvent) []ProgressEvent {
	var out []ProgressEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func kinds(events []ProgressEvent) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func finalEvent(t *testing.T, events []ProgressEvent) ProgressEvent {
	t.Helper()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, EventResponseComplete, last.Kind)
	return last
}

func TestRunCalculateThenFinish(t *testing.T) {
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{"expression":"2+2"}`)}},
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("finish", `{"answer":"4"}`)}},
	}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) {
			return map[string]any{"result": 4}, nil
		},
		"finish": func(map[string]any) (any, error) {
			return map[string]any{}, nil
		},
	}}

	coord := New(gw, reg)
	msgs := []llmgateway.Message{llmgateway.UserMessage("What is 2+2?")}
	events := collect(coord.Run(context.Background(), msgs, calcSchemas()))

	final := finalEvent(t, events)
	assert.Equal(t, "4", final.Answer)
	require.NotNil(t, final.Stats)
	assert.Equal(t, 2, final.Stats.Iterations)
	assert.False(t, final.Stats.LimitHit)
	assert.Equal(t, []string{"calculate", "finish"}, final.Stats.ToolsUsed)
	assert.Equal(t, 2, gw.callCount())
}

func TestRunPlainTextAnswerCompletes(t *testing.T) {
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{Content: "Paris is the capital of France."},
	}}
	coord := New(gw, &mapRegistry{})

	res, err := coord.RunSync(context.Background(), []llmgateway.Message{llmgateway.UserMessage("capital of France?")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", res.Answer)
	assert.Equal(t, 1, res.Stats.Iterations)
}

func TestRunUnwrapsJSONWrappedAnswer(t *testing.T) {
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{Content: `{"answer":"42"}`},
	}}
	coord := New(gw, &mapRegistry{})

	res, err := coord.RunSync(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Answer)
}

func TestForceFinishUsesExtraGatewayCall(t *testing.T) {
	// Every regular turn returns a non-finish tool call; the force-finish
	// turn yields a usable plain answer.
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{"expression":"1+1"}`)}},
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{"expression":"1+1"}`)}},
		{Content: "The best answer I have is 2."},
	}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) {
			return map[string]any{"result": 2}, nil
		},
	}}
	coord := New(gw, reg, WithConfig(RunConfig{MaxIterations: 2}))

	events := collect(coord.Run(context.Background(), []llmgateway.Message{llmgateway.UserMessage("loop")}, calcSchemas()))

	assert.Contains(t, kinds(events), EventIterationLimit)
	final := finalEvent(t, events)
	assert.Equal(t, "The best answer I have is 2.", final.Answer)
	assert.True(t, final.Stats.LimitHit)
	// N regular calls plus exactly one force-finish call.
	assert.Equal(t, 3, gw.callCount())
	// The force-finish call must offer no tool schemas.
	assert.Empty(t, gw.calls[2].Schemas)
}

func TestForceFinishFallsBackToResultSummary(t *testing.T) {
	// maxIterations=1, the model never finishes, and the force-finish call
	// yields nothing usable. The answer must still be non-empty and derive
	// from the one recorded tool result.
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{"expression":"3*3"}`)}},
		{Content: ""},
	}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) {
			return map[string]any{"result": 9}, nil
		},
	}}
	coord := New(gw, reg, WithConfig(RunConfig{MaxIterations: 1}))

	res, err := coord.RunSync(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Answer)
	assert.Contains(t, res.Answer, "9")
	assert.Equal(t, 2, gw.callCount())
}

func TestForceFinishGenericWhenNoResults(t *testing.T) {
	// No tool was ever executed and the force-finish call fails too.
	gw := &scriptGateway{
		errs: []error{errors.New("boom"), errors.New("boom")},
	}
	coord := New(gw, &mapRegistry{}, WithConfig(RunConfig{MaxIterations: 1}))

	res, err := coord.RunSync(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Answer)
}

func TestGatewayErrorEmitsEventAndContinues(t *testing.T) {
	gw := &scriptGateway{
		errs: []error{errors.New("connection reset")},
		replies: []*llmgateway.Reply{
			nil,
			{ToolCalls: []llmgateway.ToolInvocation{toolCall("finish", `{"answer":"done"}`)}},
		},
	}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"finish": func(map[string]any) (any, error) { return map[string]any{}, nil },
	}}
	coord := New(gw, reg)

	events := collect(coord.Run(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas()))

	assert.Contains(t, kinds(events), EventError)
	final := finalEvent(t, events)
	assert.Equal(t, "done", final.Answer)
	assert.Equal(t, 2, final.Stats.Iterations)
}

func TestUnknownToolSkipsRegistry(t *testing.T) {
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("launch_rockets", `{}`)}},
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("finish", `{"answer":"ok"}`)}},
	}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"finish": func(map[string]any) (any, error) { return map[string]any{}, nil },
	}}
	coord := New(gw, reg)

	res, err := coord.RunSync(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas())
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Answer)

	for _, call := range reg.recorded() {
		assert.NotEqual(t, "launch_rockets", call.name)
	}
	// The synthesized failure feedback still reaches the model.
	secondReq := gw.calls[1]
	last := secondReq.Messages[len(secondReq.Messages)-1]
	assert.Equal(t, llmgateway.RoleTool, last.Role)
	assert.Contains(t, last.Content, "not available")
}

func TestMalformedArgumentsFallBackToEmptyMap(t *testing.T) {
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `"not an object`)}},
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("finish", `{"answer":"ok"}`)}},
	}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(args map[string]any) (any, error) {
			return map[string]any{"echo": len(args)}, nil
		},
		"finish": func(map[string]any) (any, error) { return map[string]any{}, nil },
	}}
	coord := New(gw, reg)

	_, err := coord.RunSync(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas())
	require.NoError(t, err)

	calls := reg.recorded()
	require.NotEmpty(t, calls)
	assert.Equal(t, "calculate", calls[0].name)
	assert.Empty(t, calls[0].args)
}

func TestLoopWarningInjectedAfterThreeRepeats(t *testing.T) {
	reply := &llmgateway.Reply{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{"expression":"1"}`)}}
	gw := &scriptGateway{replies: []*llmgateway.Reply{reply, reply, reply, reply}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) { return map[string]any{"result": 1}, nil },
	}}
	coord := New(gw, reg, WithConfig(RunConfig{MaxIterations: 4}))

	collect(coord.Run(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas()))

	// The fourth regular request sees the warning injected during the
	// third identical invocation.
	require.GreaterOrEqual(t, gw.callCount(), 4)
	var warnings int
	for _, m := range gw.calls[3].Messages {
		if m.Role == llmgateway.RoleSystem && strings.Contains(m.Content, "times in a row") {
			warnings++
		}
	}
	assert.Greater(t, warnings, 0)
}

func TestContinueRequestDoublesIterationBudget(t *testing.T) {
	reply := &llmgateway.Reply{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{}`)}}
	gw := &scriptGateway{replies: []*llmgateway.Reply{reply, reply, reply, reply, reply}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) { return map[string]any{"result": 1}, nil },
	}}
	coord := New(gw, reg, WithConfig(RunConfig{MaxIterations: 2, Continue: true}))

	res, err := coord.RunSync(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas())
	require.NoError(t, err)
	assert.True(t, res.Stats.LimitHit)
	assert.Equal(t, 4, res.Stats.Iterations)
	// 4 regular turns plus one force-finish call.
	assert.Equal(t, 5, gw.callCount())
}

func TestAskBeforeContinueSkipsForceFinish(t *testing.T) {
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{}`)}},
	}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) { return map[string]any{"result": 7}, nil },
	}}
	coord := New(gw, reg, WithConfig(RunConfig{MaxIterations: 1, AskBeforeContinue: true}))

	res, err := coord.RunSync(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas())
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "continue")
	// No force-finish gateway call when the caller is to be prompted.
	assert.Equal(t, 1, gw.callCount())
}

func TestEventOrderWithinRun(t *testing.T) {
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{"expression":"2+2"}`)}},
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("finish", `{"answer":"4"}`)}},
	}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) { return map[string]any{"result": 4}, nil },
		"finish":    func(map[string]any) (any, error) { return map[string]any{}, nil },
	}}
	coord := New(gw, reg)

	events := collect(coord.Run(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas()))

	assert.Equal(t, []EventKind{
		EventIterationStart,
		EventToolStart,
		EventToolEnd,
		EventIterationEnd,
		EventIterationStart,
		EventToolStart,
		EventToolEnd,
		EventResponseComplete,
	}, kinds(events))

	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
		assert.Equal(t, events[0].ExecutionID, events[i].ExecutionID)
	}
}

func TestContextCancelStopsRun(t *testing.T) {
	reply := &llmgateway.Reply{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{}`)}}
	gw := &scriptGateway{replies: []*llmgateway.Reply{reply, reply, reply}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) { return map[string]any{"result": 1}, nil },
	}}
	coord := New(gw, reg, WithConfig(RunConfig{MaxIterations: 50}))

	ctx, cancel := context.WithCancel(context.Background())
	ch := coord.Run(ctx, []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas())

	<-ch
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after context cancellation")
	}
}

func TestPanicInToolBecomesErrorEvent(t *testing.T) {
	gw := &scriptGateway{replies: []*llmgateway.Reply{
		{ToolCalls: []llmgateway.ToolInvocation{toolCall("calculate", `{}`)}},
	}}
	reg := &mapRegistry{tools: map[string]func(map[string]any) (any, error){
		"calculate": func(map[string]any) (any, error) { panic("bad tool") },
	}}
	coord := New(gw, reg, WithConfig(RunConfig{MaxIterations: 1}))

	events := collect(coord.Run(context.Background(), []llmgateway.Message{llmgateway.UserMessage("q")}, calcSchemas()))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Kind)
	assert.Contains(t, last.Data["error"], "internal error")
}
