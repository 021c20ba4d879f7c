// Package codec implements pure parsing over persisted messages: turning a
// tool_call-status assistant message back into structured tool calls, and
// recovering the assistant-visible text from either kind of message.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/errs"
	"github.com/hsaliak/goclaw-core/internal/store"
)

// ToolCall is one provider-issued function invocation recovered from a
// persisted message.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiEnvelope struct {
	ToolCalls []openaiToolCall `json:"tool_calls"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiEnvelope struct {
	FunctionCall *geminiFunctionCall `json:"functionCall"`
	Args         json.RawMessage     `json:"args"`
}

type fallbackCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type fallbackEnvelope struct {
	FunctionCalls []fallbackCall `json:"functionCalls"`
}

// ExtractToolCalls recovers the tool calls embedded in msg.Content. It
// returns an empty slice (not an error) for any message whose Status is not
// "tool_call".
func ExtractToolCalls(msg store.Message) ([]ToolCall, error) {
	if msg.Status != "tool_call" {
		return nil, nil
	}

	if !json.Valid([]byte(msg.Content)) {
		return nil, errs.New(errs.Internal, "failed to parse message content as JSON")
	}

	switch msg.ParsingStrategy {
	case "openai":
		var env openaiEnvelope
		if err := json.Unmarshal([]byte(msg.Content), &env); err != nil {
			return nil, errs.Wrap(errs.Internal, fmt.Errorf("parse openai tool_calls envelope: %w", err))
		}
		calls := make([]ToolCall, 0, len(env.ToolCalls))
		for _, c := range env.ToolCalls {
			name := c.Function.Name
			if name == "" {
				name = "unknown"
			}
			args := c.Function.Arguments
			if args == "" {
				args = "{}"
			}
			if !json.Valid([]byte(args)) {
				return nil, errs.New(errs.Internal, "failed to parse tool call arguments as JSON")
			}
			calls = append(calls, ToolCall{ID: c.ID, Name: name, Args: json.RawMessage(args)})
		}
		return calls, nil

	case "gemini", "gemini_gca":
		var env geminiEnvelope
		if err := json.Unmarshal([]byte(msg.Content), &env); err != nil {
			return nil, errs.Wrap(errs.Internal, fmt.Errorf("parse gemini functionCall envelope: %w", err))
		}
		name := msg.ToolCallID
		var args json.RawMessage
		if env.FunctionCall != nil {
			if env.FunctionCall.Name != "" {
				name = env.FunctionCall.Name
			}
			args = env.FunctionCall.Args
		} else if env.Args != nil {
			args = env.Args
		}
		return []ToolCall{{ID: msg.ToolCallID, Name: name, Args: args}}, nil

	default:
		var env fallbackEnvelope
		if err := json.Unmarshal([]byte(msg.Content), &env); err != nil {
			return nil, errs.Wrap(errs.Internal, fmt.Errorf("parse functionCalls fallback envelope: %w", err))
		}
		calls := make([]ToolCall, 0, len(env.FunctionCalls))
		for _, c := range env.FunctionCalls {
			name := c.Name
			if name == "" {
				name = "unknown"
			}
			args := c.Args
			if args == nil {
				args = json.RawMessage("{}")
			}
			calls = append(calls, ToolCall{Name: name, Args: args})
		}
		return calls, nil
	}
}

// ExtractAssistantText recovers the text an assistant intended the user to
// see, whether or not the message also carried a tool call.
func ExtractAssistantText(msg store.Message) string {
	if msg.Status != "tool_call" {
		return msg.Content
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(msg.Content), &body); err != nil {
		return ""
	}
	return body.Content
}
