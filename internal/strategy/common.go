// Package strategy implements the three provider-specific payload
// assembly/response-parsing variants (ChatCompletions, GenerativeContent,
// GenerativeContent-wrapped) behind one Strategy interface.
package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/codec"
	"github.com/hsaliak/goclaw-core/internal/store"
	"github.com/hsaliak/goclaw-core/internal/transport"
)

// ModelInfo is one entry in a provider's model listing.
type ModelInfo struct {
	ID   string
	Name string
}

// Config carries the subset of process configuration a Strategy needs to
// assemble requests and call provider endpoints.
type Config struct {
	Model                  string
	BaseURL                string
	APIKey                 string
	ProjectID              string
	StripReasoning         bool
	TruncationBudgetRecent int
	TruncationBudgetOlder  int
}

// Strategy is a polymorphic capability over one concrete LLM wire protocol.
type Strategy interface {
	Name() string
	AssemblePayload(sessionID, systemInstruction string, history []store.Message) (json.RawMessage, error)
	ProcessResponse(sessionID string, responseJSON []byte, groupID string) (int, error)
	ParseToolCalls(msg store.Message) ([]codec.ToolCall, error)
	GetModels(apiKey string) ([]ModelInfo, error)
	GetQuota(token string) (json.RawMessage, error)
	CountTokens(payload json.RawMessage) int
}

// countTokens applies the shared len(dump)/4 heuristic (spec §4.3) used by
// every variant in place of a real tokenizer.
func countTokens(payload json.RawMessage) int {
	return len(payload) / 4
}

// toolCallIDParts splits a stored "<id>|<name>" tool_call_id into its id and
// name halves, as produced by the ChatCompletions ProcessResponse.
func toolCallIDParts(compound string) (id, name string) {
	for i := 0; i < len(compound); i++ {
		if compound[i] == '|' {
			return compound[:i], compound[i+1:]
		}
	}
	return compound, ""
}

// enabledToolSet returns the names of every currently enabled tool.
func enabledToolSet(db *store.Store) (map[string]bool, []store.Tool, error) {
	tools, err := db.GetEnabledTools()
	if err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool, len(tools))
	for _, t := range tools {
		set[t.Name] = true
	}
	return set, tools, nil
}

// lastToolMessageIndex returns the index of the last role=="tool" message in
// history, or -1 if none.
func lastToolMessageIndex(history []store.Message) int {
	last := -1
	for i, m := range history {
		if m.Role == "tool" {
			last = i
		}
	}
	return last
}

// toolResultBudget picks the truncation budget for the tool message at idx:
// the most recent tool result gets the larger budget, every earlier one the
// smaller "older" budget, per spec §4.3.4.
func toolResultBudget(cfg Config, idx, lastToolIdx int) int {
	if idx == lastToolIdx {
		return cfg.TruncationBudgetRecent
	}
	return cfg.TruncationBudgetOlder
}

// truncate caps content at limit bytes, never splitting a UTF-8 code point,
// and appends the spec's truncation suffix when it does cut content.
func truncate(content string, limit int) string {
	if limit <= 0 || len(content) <= limit {
		return content
	}
	cut := limit
	for cut > 0 && isUTF8Continuation(content[cut]) {
		cut--
	}
	kept := content[:cut]
	return kept + fmt.Sprintf(
		"\n... [TRUNCATED: Showing %d/%d characters. Use the tool again with an offset to read more.] ...",
		cut, len(content))
}

func isUTF8Continuation(b byte) bool {
	return b&0xC0 == 0x80
}

// httpGetterPoster bundles the two boundary capabilities a Strategy's
// GetModels/GetQuota calls need.
type httpGetterPoster struct {
	Getter transport.HttpGetter
	Poster transport.HttpPoster
}
