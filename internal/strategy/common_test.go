package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hsaliak/goclaw-core/internal/store"
)

func TestToolCallIDPartsSplitsCompoundID(t *testing.T) {
	id, name := toolCallIDParts("call_abc123|read_file")
	assert.Equal(t, "call_abc123", id)
	assert.Equal(t, "read_file", name)
}

func TestToolCallIDPartsNoSeparatorReturnsWholeAsID(t *testing.T) {
	id, name := toolCallIDParts("read_file")
	assert.Equal(t, "read_file", id)
	assert.Equal(t, "", name)
}

func TestCountTokensHeuristic(t *testing.T) {
	payload := []byte(strings.Repeat("a", 40))
	assert.Equal(t, 10, countTokens(payload))
}

func TestLastToolMessageIndex(t *testing.T) {
	history := []store.Message{
		{Role: "user"},
		{Role: "tool"},
		{Role: "assistant"},
		{Role: "tool"},
	}
	assert.Equal(t, 3, lastToolMessageIndex(history))
}

func TestLastToolMessageIndexNoneFound(t *testing.T) {
	history := []store.Message{{Role: "user"}, {Role: "assistant"}}
	assert.Equal(t, -1, lastToolMessageIndex(history))
}

func TestToolResultBudgetMostRecentGetsLargerBudget(t *testing.T) {
	cfg := Config{TruncationBudgetRecent: 5000, TruncationBudgetOlder: 300}
	assert.Equal(t, 5000, toolResultBudget(cfg, 3, 3))
	assert.Equal(t, 300, toolResultBudget(cfg, 1, 3))
}

func TestTruncateLeavesShortContentUntouched(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
}

func TestTruncateCutsAtLimitAndAppendsSuffix(t *testing.T) {
	content := strings.Repeat("x", 20)
	out := truncate(content, 5)
	assert.True(t, strings.HasPrefix(out, "xxxxx"))
	assert.Contains(t, out, "TRUNCATED")
}

func TestTruncateDoesNotSplitUTF8CodePoint(t *testing.T) {
	// "é" is a 2-byte UTF-8 sequence; a limit landing mid-sequence must back
	// off to the start of the code point rather than keep a lone
	// continuation byte.
	content := "é" + strings.Repeat("x", 10)
	out := truncate(content, 1)
	assert.True(t, strings.HasPrefix(out, "\n...") || strings.HasPrefix(out, "é"))
}
