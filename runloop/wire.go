package runloop

import "github.com/evanmarch/toolrun/llmgateway"

// Wire profiles. A profile names how tool feedback is shaped on the
// conversation transcript for a given provider family.
const (
	// ProfilePlain renders tool feedback as a bare tool-role message with
	// content only.
	ProfilePlain = "plain"
	// ProfileOpenAI renders tool feedback with the invocation id and tool
	// name alongside the content, as the OpenAI tool-message schema
	// requires.
	ProfileOpenAI = "openai"
)

// WireAdapter shapes tool feedback into a transcript message for one wire
// profile.
type WireAdapter interface {
	Profile() string
	ToolFeedback(inv llmgateway.ToolInvocation, feedback string) llmgateway.Message
}

type plainWire struct{}

func (plainWire) Profile() string { return ProfilePlain }

func (plainWire) ToolFeedback(_ llmgateway.ToolInvocation, feedback string) llmgateway.Message {
	return llmgateway.Message{Role: llmgateway.RoleTool, Content: feedback}
}

type openaiWire struct{}

func (openaiWire) Profile() string { return ProfileOpenAI }

func (openaiWire) ToolFeedback(inv llmgateway.ToolInvocation, feedback string) llmgateway.Message {
	return llmgateway.Message{
		Role:       llmgateway.RoleTool,
		Content:    feedback,
		ToolCallID: inv.ID,
		Name:       inv.Name,
	}
}

// WireFor returns the adapter for the named profile. Unknown profiles fall
// back to the plain shape, which every provider accepts.
func WireFor(profile string) WireAdapter {
	switch profile {
	case ProfileOpenAI:
		return openaiWire{}
	default:
		return plainWire{}
	}
}
