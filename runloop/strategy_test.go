package runloop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinishAnswerFromResult(t *testing.T) {
	res := StrategyFor("finish").ProcessResult(
		map[string]any{"answer": "from result"},
		map[string]any{"answer": "from args"},
	)
	assert.True(t, res.Terminal)
	assert.True(t, res.Success)
	assert.Equal(t, "from result", res.Answer)
}

func TestFinishAnswerFallsBackToArgs(t *testing.T) {
	res := StrategyFor("finish").ProcessResult(
		map[string]any{},
		map[string]any{"answer": "from args"},
	)
	assert.True(t, res.Terminal)
	assert.Equal(t, "from args", res.Answer)
}

func TestFinishTerminalEvenOnExecutionFailure(t *testing.T) {
	res := StrategyFor("finish").ProcessResult(
		map[string]any{"success": false, "error": "db unavailable"},
		map[string]any{},
	)
	assert.True(t, res.Terminal)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Answer)
}

func TestReasoningNeverTerminal(t *testing.T) {
	long := strings.Repeat("t", thinkingLimit+100)
	res := StrategyFor("think").ProcessResult(nil, map[string]any{"thought": long})
	assert.False(t, res.Terminal)
	assert.True(t, res.Success)
	assert.Len(t, res.Feedback, thinkingLimit)

	require.Len(t, res.Events, 1)
	assert.Equal(t, EventToken, res.Events[0].Kind)
}

func TestReasoningAliasesShareStrategy(t *testing.T) {
	for _, name := range []string{"think", "reflect", "plan"} {
		res := StrategyFor(name).ProcessResult(nil, map[string]any{"thought": "x"})
		assert.False(t, res.Terminal, name)
	}
}

func TestDelegateNonTerminalWithoutMedia(t *testing.T) {
	res := StrategyFor("delegate").ProcessResult(
		map[string]any{"summary": "child wrote a report"},
		map[string]any{},
	)
	assert.False(t, res.Terminal)
	assert.Equal(t, "child wrote a report", res.Feedback)
}

func TestDelegateTerminalWithMedia(t *testing.T) {
	res := StrategyFor("delegate").ProcessResult(
		map[string]any{"summary": "rendered chart", "images": []any{"chart.png"}},
		map[string]any{},
	)
	assert.True(t, res.Terminal)
	assert.Equal(t, "rendered chart", res.Answer)
}

func TestDelegateTerminalWithPresentation(t *testing.T) {
	res := StrategyFor("delegate").ProcessResult(
		map[string]any{"summary": "deck", "presentation": map[string]any{"slides": 10}},
		map[string]any{},
	)
	assert.True(t, res.Terminal)
}

func TestDelegatePrepareArgsInjectsParent(t *testing.T) {
	rc := &RunContext{ExecutionID: "exec-1"}
	args := StrategyFor("delegate").PrepareArgs(map[string]any{"task": "t"}, rc)
	assert.Equal(t, "exec-1", args["parent_execution_id"])
	assert.Equal(t, "t", args["task"])
}

func TestParallelDelegateAggregates(t *testing.T) {
	res := StrategyFor("parallel_delegate").ProcessResult(
		map[string]any{"results": []any{
			map[string]any{"summary": "first"},
			map[string]any{"summary": "second"},
		}},
		map[string]any{},
	)
	assert.False(t, res.Terminal)
	assert.Contains(t, res.Feedback, "first")
	assert.Contains(t, res.Feedback, "second")
}

func TestParallelDelegateTerminalIfAnyChildHasMedia(t *testing.T) {
	res := StrategyFor("parallel_delegate").ProcessResult(
		map[string]any{"results": []any{
			map[string]any{"summary": "text only"},
			map[string]any{"summary": "video", "videos": []any{"clip.mp4"}},
		}},
		map[string]any{},
	)
	assert.True(t, res.Terminal)
	assert.NotEmpty(t, res.Answer)
}

func TestArtifactTerminalOnSuccessOnly(t *testing.T) {
	ok := StrategyFor("slides").ProcessResult(
		map[string]any{"summary": "10-slide deck"},
		map[string]any{},
	)
	assert.True(t, ok.Terminal)
	assert.Equal(t, "10-slide deck", ok.Answer)

	failed := StrategyFor("slides").ProcessResult(
		map[string]any{"success": false, "error": "render timeout"},
		map[string]any{},
	)
	assert.False(t, failed.Terminal)
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Feedback, "render timeout")
}

func TestDefaultStrategyRendersFeedback(t *testing.T) {
	res := StrategyFor("grep").ProcessResult(
		map[string]any{"output": "3 matches"},
		map[string]any{},
	)
	assert.False(t, res.Terminal)
	assert.True(t, res.Success)
	assert.Equal(t, "3 matches", res.Feedback)
}

func TestDefaultStrategyNormalizedFailure(t *testing.T) {
	res := StrategyFor("grep").ProcessResult(
		map[string]any{"success": false, "error": "permission denied"},
		map[string]any{},
	)
	assert.False(t, res.Success)
	assert.Contains(t, res.Feedback, "permission denied")
}

func TestKnownSafeTool(t *testing.T) {
	for _, name := range []string{"finish", "think", "reflect", "plan", "delegate", "parallel_delegate", "slides"} {
		assert.True(t, KnownSafeTool(name), name)
	}
	assert.False(t, KnownSafeTool("shell"))
}
