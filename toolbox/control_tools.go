package toolbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/evanmarch/toolrun/llmgateway"
)

// DelegateRunner executes a delegated subtask and returns a result map in
// the delegate contract shape (summary text, optional media and
// presentation fields). The coordinator's dispatch strategies interpret
// that shape for termination.
type DelegateRunner interface {
	Delegate(ctx context.Context, args map[string]any) (map[string]any, error)
}

// DelegateFunc adapts a function to DelegateRunner.
type DelegateFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

func (f DelegateFunc) Delegate(ctx context.Context, args map[string]any) (map[string]any, error) {
	return f(ctx, args)
}

// RegisterControlTools registers the run-control tools. Their termination
// semantics live in the coordinator; the executors here echo arguments and
// hand subtasks to the runner. A nil runner leaves delegation tools
// reporting failure, which keeps the run alive.
func RegisterControlTools(reg *Registry, runner DelegateRunner) {
	reg.Register(finishTool())
	for _, name := range []string{"think", "reflect", "plan"} {
		reg.Register(reasoningTool(name))
	}
	reg.Register(delegateTool(runner))
	reg.Register(parallelDelegateTool(runner))
	reg.Register(slidesTool(runner))
}

func finishTool() Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "finish",
			Description: "Finish the task and deliver the final answer to the user.",
			Parameters: objectSchema(map[string]any{
				"answer": prop("string", "The complete final answer."),
			}, "answer"),
		},
		Run: func(_ context.Context, args map[string]any, _ ExecutionEnvironment) (any, error) {
			answer, _ := stringArg(args, "answer")
			return map[string]any{"answer": answer}, nil
		},
	}
}

func reasoningTool(name string) Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        name,
			Description: "Record intermediate reasoning without taking any external action.",
			Parameters: objectSchema(map[string]any{
				"thought": prop("string", "The reasoning to record."),
			}, "thought"),
		},
		Run: func(_ context.Context, args map[string]any, _ ExecutionEnvironment) (any, error) {
			thought, _ := stringArg(args, "thought")
			return map[string]any{"thought": thought}, nil
		},
	}
}

func delegateTool(runner DelegateRunner) Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "delegate",
			Description: "Hand a self-contained subtask to a child agent and return its result.",
			Parameters: objectSchema(map[string]any{
				"task":    prop("string", "The subtask description."),
				"context": prop("string", "Extra context the child agent needs."),
			}, "task"),
		},
		Run: func(ctx context.Context, args map[string]any, _ ExecutionEnvironment) (any, error) {
			if runner == nil {
				return nil, fmt.Errorf("no delegate runner configured")
			}
			return runner.Delegate(ctx, args)
		},
	}
}

func parallelDelegateTool(runner DelegateRunner) Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "parallel_delegate",
			Description: "Run several independent subtasks on child agents and collect all results.",
			Parameters: objectSchema(map[string]any{
				"tasks": map[string]any{
					"type":        "array",
					"description": "The subtask descriptions.",
					"items":       map[string]any{"type": "string"},
				},
			}, "tasks"),
		},
		Run: func(ctx context.Context, args map[string]any, _ ExecutionEnvironment) (any, error) {
			if runner == nil {
				return nil, fmt.Errorf("no delegate runner configured")
			}
			tasks, _ := args["tasks"].([]any)
			if len(tasks) == 0 {
				return nil, fmt.Errorf("tasks is required")
			}

			results := make([]any, len(tasks))
			var wg sync.WaitGroup
			for i, task := range tasks {
				wg.Add(1)
				go func(i int, task any) {
					defer wg.Done()
					child, err := runner.Delegate(ctx, map[string]any{"task": task})
					if err != nil {
						child = map[string]any{"success": false, "error": err.Error()}
					}
					results[i] = child
				}(i, task)
			}
			wg.Wait()
			return map[string]any{"results": results}, nil
		},
	}
}

func slidesTool(runner DelegateRunner) Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "slides",
			Description: "Generate a slide presentation from an outline.",
			Parameters: objectSchema(map[string]any{
				"title":   prop("string", "Presentation title."),
				"outline": prop("string", "The slide-by-slide outline."),
			}, "title", "outline"),
		},
		Run: func(ctx context.Context, args map[string]any, _ ExecutionEnvironment) (any, error) {
			if runner == nil {
				return nil, fmt.Errorf("no presentation backend configured")
			}
			prepared := cloneWith(args, "kind", "presentation")
			return runner.Delegate(ctx, prepared)
		},
	}
}

func cloneWith(args map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out[key] = value
	return out
}
