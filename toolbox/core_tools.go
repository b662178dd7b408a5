package toolbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evanmarch/toolrun/llmgateway"
)

const (
	defaultShellTimeout = 30 * time.Second
	maxShellTimeout     = 5 * time.Minute
)

// RegisterCoreTools registers the built-in working tools on a registry.
func RegisterCoreTools(reg *Registry) {
	reg.Register(calculateTool())
	reg.Register(readFileTool())
	reg.Register(writeFileTool())
	reg.Register(editFileTool())
	reg.Register(shellTool())
	reg.Register(grepTool())
	reg.Register(globTool())
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func calculateTool() Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "calculate",
			Description: "Evaluate an arithmetic expression. Supports + - * / % ^ and parentheses.",
			Parameters: objectSchema(map[string]any{
				"expression": prop("string", "The expression to evaluate, e.g. \"(2+3)*4\"."),
			}, "expression"),
		},
		Run: func(_ context.Context, args map[string]any, _ ExecutionEnvironment) (any, error) {
			expr, ok := stringArg(args, "expression")
			if !ok || expr == "" {
				return nil, fmt.Errorf("expression is required")
			}
			v, err := Evaluate(expr)
			if err != nil {
				return nil, fmt.Errorf("calculate: %w", err)
			}
			return map[string]any{
				"result": v,
				"output": FormatNumber(v),
			}, nil
		},
	}
}

func readFileTool() Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "read_file",
			Description: "Read a file from the filesystem. Returns line-numbered content.",
			Parameters: objectSchema(map[string]any{
				"file_path": prop("string", "Path to the file to read."),
				"offset":    prop("integer", "1-based line number to start reading from."),
				"limit":     prop("integer", "Maximum number of lines to read. Default: 2000."),
			}, "file_path"),
		},
		Run: func(_ context.Context, args map[string]any, env ExecutionEnvironment) (any, error) {
			path, ok := stringArg(args, "file_path")
			if !ok || path == "" {
				return nil, fmt.Errorf("file_path is required")
			}
			offset, _ := intArg(args, "offset")
			limit, _ := intArg(args, "limit")
			if limit == 0 {
				limit = 2000
			}
			content, err := env.ReadFile(path, offset, limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"output": content}, nil
		},
	}
}

func writeFileTool() Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "write_file",
			Description: "Write content to a file. Creates the file and parent directories if needed.",
			Parameters: objectSchema(map[string]any{
				"file_path": prop("string", "Path to write to."),
				"content":   prop("string", "The full file content to write."),
			}, "file_path", "content"),
		},
		Run: func(_ context.Context, args map[string]any, env ExecutionEnvironment) (any, error) {
			path, ok := stringArg(args, "file_path")
			if !ok || path == "" {
				return nil, fmt.Errorf("file_path is required")
			}
			content, ok := stringArg(args, "content")
			if !ok {
				return nil, fmt.Errorf("content is required")
			}
			if err := env.WriteFile(path, content); err != nil {
				return nil, err
			}
			return map[string]any{
				"output": fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
			}, nil
		},
	}
}

func editFileTool() Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "edit_file",
			Description: "Replace an exact string occurrence in a file. The old_string must be unique unless replace_all is true.",
			Parameters: objectSchema(map[string]any{
				"file_path":   prop("string", "Path to the file to edit."),
				"old_string":  prop("string", "Exact text to find."),
				"new_string":  prop("string", "Replacement text."),
				"replace_all": prop("boolean", "Replace every occurrence. Default: false."),
			}, "file_path", "old_string", "new_string"),
		},
		Run: func(_ context.Context, args map[string]any, env ExecutionEnvironment) (any, error) {
			path, ok := stringArg(args, "file_path")
			if !ok || path == "" {
				return nil, fmt.Errorf("file_path is required")
			}
			oldString, ok := stringArg(args, "old_string")
			if !ok || oldString == "" {
				return nil, fmt.Errorf("old_string is required")
			}
			newString, _ := stringArg(args, "new_string")
			replaceAll, _ := boolArg(args, "replace_all")

			content, err := env.ReadFileRaw(path)
			if err != nil {
				return nil, err
			}

			count := strings.Count(content, oldString)
			if count == 0 {
				return nil, fmt.Errorf("old_string not found in %s", path)
			}
			if count > 1 && !replaceAll {
				return nil, fmt.Errorf("old_string found %d times in %s; add context to make it unique or set replace_all", count, path)
			}

			var updated string
			replaced := 1
			if replaceAll {
				updated = strings.ReplaceAll(content, oldString, newString)
				replaced = count
			} else {
				updated = strings.Replace(content, oldString, newString, 1)
			}
			if err := env.WriteFile(path, updated); err != nil {
				return nil, err
			}
			return map[string]any{
				"output": fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, path),
			}, nil
		},
	}
}

func shellTool() Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "shell",
			Description: "Execute a shell command. Returns stdout, stderr, and exit code.",
			Parameters: objectSchema(map[string]any{
				"command":    prop("string", "The command to run."),
				"timeout_ms": prop("integer", "Override the default command timeout in milliseconds."),
			}, "command"),
		},
		Run: func(ctx context.Context, args map[string]any, env ExecutionEnvironment) (any, error) {
			command, ok := stringArg(args, "command")
			if !ok || command == "" {
				return nil, fmt.Errorf("command is required")
			}
			timeout := defaultShellTimeout
			if ms, ok := intArg(args, "timeout_ms"); ok && ms > 0 {
				timeout = time.Duration(ms) * time.Millisecond
			}
			if timeout > maxShellTimeout {
				timeout = maxShellTimeout
			}

			result, err := env.RunCommand(ctx, command, timeout)
			if err != nil {
				return nil, err
			}

			var sb strings.Builder
			sb.WriteString(result.Output())
			if result.TimedOut {
				fmt.Fprintf(&sb, "\n\n[Command timed out after %s. Partial output shown above; retry with a larger timeout_ms.]", timeout)
			} else if result.ExitCode != 0 {
				fmt.Fprintf(&sb, "\n\n[Exit code: %d]", result.ExitCode)
			}
			return map[string]any{
				"output":    sb.String(),
				"exit_code": result.ExitCode,
				"timed_out": result.TimedOut,
			}, nil
		},
	}
}

func grepTool() Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "grep",
			Description: "Search file contents using regex patterns. Returns matching lines with file paths and line numbers.",
			Parameters: objectSchema(map[string]any{
				"pattern":          prop("string", "Regex pattern to search for."),
				"path":             prop("string", "Directory or file to search. Default: working directory."),
				"glob_filter":      prop("string", "File pattern filter, e.g. \"*.go\"."),
				"case_insensitive": prop("boolean", "Case insensitive search. Default: false."),
				"max_results":      prop("integer", "Maximum number of results. Default: 100."),
			}, "pattern"),
		},
		Run: func(ctx context.Context, args map[string]any, env ExecutionEnvironment) (any, error) {
			pattern, ok := stringArg(args, "pattern")
			if !ok || pattern == "" {
				return nil, fmt.Errorf("pattern is required")
			}
			path, _ := stringArg(args, "path")
			globFilter, _ := stringArg(args, "glob_filter")
			caseInsensitive, _ := boolArg(args, "case_insensitive")
			maxResults, _ := intArg(args, "max_results")
			if maxResults <= 0 {
				maxResults = 100
			}

			out, err := env.Search(ctx, pattern, path, SearchOptions{
				GlobFilter:      globFilter,
				CaseInsensitive: caseInsensitive,
				MaxResults:      maxResults,
			})
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(out) == "" {
				out = "No matches found."
			}
			return map[string]any{"output": out}, nil
		},
	}
}

func globTool() Tool {
	return Tool{
		Schema: llmgateway.ToolSchema{
			Name:        "glob",
			Description: "Find files matching a glob pattern.",
			Parameters: objectSchema(map[string]any{
				"pattern": prop("string", "Glob pattern, e.g. \"*.go\"."),
				"path":    prop("string", "Base directory. Default: working directory."),
			}, "pattern"),
		},
		Run: func(_ context.Context, args map[string]any, env ExecutionEnvironment) (any, error) {
			pattern, ok := stringArg(args, "pattern")
			if !ok || pattern == "" {
				return nil, fmt.Errorf("pattern is required")
			}
			path, _ := stringArg(args, "path")

			matches, err := env.Glob(pattern, path)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return map[string]any{"output": "No files matched the pattern."}, nil
			}
			return map[string]any{"output": strings.Join(matches, "\n")}, nil
		},
	}
}
