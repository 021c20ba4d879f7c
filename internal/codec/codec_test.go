package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsaliak/goclaw-core/internal/store"
)

func TestExtractToolCallsNonToolCallStatusReturnsEmpty(t *testing.T) {
	calls, err := ExtractToolCalls(store.Message{Status: "completed", Content: "hello"})
	require.NoError(t, err)
	assert.Nil(t, calls)
}

func TestExtractToolCallsInvalidJSON(t *testing.T) {
	_, err := ExtractToolCalls(store.Message{Status: "tool_call", Content: "not json"})
	assert.Error(t, err)
}

func TestExtractToolCallsOpenAI(t *testing.T) {
	msg := store.Message{
		Status:          "tool_call",
		ParsingStrategy: "openai",
		Content:         `{"tool_calls":[{"id":"call_1","function":{"name":"read_file","arguments":"{\"path\":\"a.txt\"}"}}]}`,
	}
	calls, err := ExtractToolCalls(msg)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.JSONEq(t, `{"path":"a.txt"}`, string(calls[0].Args))
}

func TestExtractToolCallsOpenAIDefaultsMissingFields(t *testing.T) {
	msg := store.Message{
		Status:          "tool_call",
		ParsingStrategy: "openai",
		Content:         `{"tool_calls":[{"id":"call_2","function":{"name":"","arguments":""}}]}`,
	}
	calls, err := ExtractToolCalls(msg)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "unknown", calls[0].Name)
	assert.Equal(t, "{}", string(calls[0].Args))
}

func TestExtractToolCallsGemini(t *testing.T) {
	msg := store.Message{
		Status:          "tool_call",
		ParsingStrategy: "gemini",
		ToolCallID:      "read_file",
		Content:         `{"functionCall":{"name":"read_file","args":{"path":"a.txt"}}}`,
	}
	calls, err := ExtractToolCalls(msg)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "read_file", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.JSONEq(t, `{"path":"a.txt"}`, string(calls[0].Args))
}

func TestExtractToolCallsGeminiGCAUsesStoredToolCallIDAsName(t *testing.T) {
	msg := store.Message{
		Status:          "tool_call",
		ParsingStrategy: "gemini_gca",
		ToolCallID:      "list_directory",
		Content:         `{"args":{"path":"."}}`,
	}
	calls, err := ExtractToolCalls(msg)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "list_directory", calls[0].Name)
}

func TestExtractToolCallsFallback(t *testing.T) {
	msg := store.Message{
		Status:  "tool_call",
		Content: `{"functionCalls":[{"name":"grep_tool","args":{"pattern":"TODO"}}]}`,
	}
	calls, err := ExtractToolCalls(msg)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "grep_tool", calls[0].Name)
}

func TestExtractAssistantTextPlainMessage(t *testing.T) {
	text := ExtractAssistantText(store.Message{Status: "completed", Content: "hi there"})
	assert.Equal(t, "hi there", text)
}

func TestExtractAssistantTextToolCallMessage(t *testing.T) {
	msg := store.Message{Status: "tool_call", Content: `{"content":"Let me check that file."}`}
	assert.Equal(t, "Let me check that file.", ExtractAssistantText(msg))
}

func TestExtractAssistantTextToolCallMessageUnparsable(t *testing.T) {
	msg := store.Message{Status: "tool_call", Content: "not json"}
	assert.Equal(t, "", ExtractAssistantText(msg))
}
