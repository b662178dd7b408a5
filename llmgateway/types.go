package llmgateway

import "context"

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolInvocation is a model-issued request to call a named tool. Arguments is
// the raw payload exactly as the model produced it; it is not guaranteed to
// be valid JSON, and the coordinator is responsible for tolerant parsing.
// ID correlates the eventual feedback on providers that require it and may
// be empty on providers that don't.
type ToolInvocation struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in a conversation. The struct covers both tool-result
// wire shapes: a bare tool message carries only Content, while the id-bearing
// shape also sets ToolCallID and Name.
type Message struct {
	Role       Role             `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []ToolInvocation `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message, optionally carrying the
// tool invocations the model requested.
func AssistantMessage(text string, calls ...ToolInvocation) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// ToolSchema describes a callable tool for the model. Parameters is a JSON
// Schema object.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Request is the input to one gateway call.
type Request struct {
	Messages    []Message    `json:"messages"`
	Schemas     []ToolSchema `json:"tools,omitempty"`
	Model       string       `json:"model,omitempty"`
	Profile     string       `json:"profile,omitempty"` // provider profile, routes adapter selection
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
}

// Reply is the model's answer to one call: text content, tool invocations,
// or both.
type Reply struct {
	Content   string           `json:"content,omitempty"`
	ToolCalls []ToolInvocation `json:"tool_calls,omitempty"`
	Usage     Usage            `json:"usage"`
}

// HasToolCalls reports whether the model requested any tool invocations.
func (r *Reply) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Gateway is the narrow contract the coordinator consumes.
type Gateway interface {
	Call(ctx context.Context, req Request) (*Reply, error)
}

// ProviderAdapter is implemented by each provider backend.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Call sends one blocking completion request.
	Call(ctx context.Context, req Request) (*Reply, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}
