package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/codec"
	"github.com/hsaliak/goclaw-core/internal/errs"
	. "github.com/hsaliak/goclaw-core/internal/logging"
	"github.com/hsaliak/goclaw-core/internal/state"
	"github.com/hsaliak/goclaw-core/internal/store"
	"github.com/hsaliak/goclaw-core/internal/transport"
)

// GenerativeContent implements the Gemini-style generateContent wire
// protocol, grounded on original_source/orchestrator_gemini.cpp (with STATE
// extraction aligned to the "### STATE" convention per spec, superseding
// that file's older "---STATE---" marker).
type GenerativeContent struct {
	db     *store.Store
	getter transport.HttpGetter
	cfg    Config
	name   string // "gemini"
}

// NewGenerativeContent constructs the public Gemini strategy.
func NewGenerativeContent(db *store.Store, getter transport.HttpGetter, cfg Config) *GenerativeContent {
	return &GenerativeContent{db: db, getter: getter, cfg: cfg, name: "gemini"}
}

func (g *GenerativeContent) Name() string { return g.name }

type contentEntry struct {
	Role  string          `json:"role"`
	Parts []map[string]interface{} `json:"parts"`
}

// toolCallName extracts the function name from a persisted functionCall
// part, whether it was stored as {"functionCall":{"name":...}} or the bare
// {"name":...} fallback shape.
func toolCallName(parsed map[string]interface{}) (string, bool) {
	if fc, ok := parsed["functionCall"].(map[string]interface{}); ok {
		if name, ok := fc["name"].(string); ok {
			return name, true
		}
	}
	if name, ok := parsed["name"].(string); ok {
		return name, true
	}
	return "", false
}

func (g *GenerativeContent) AssemblePayload(sessionID, systemInstruction string, history []store.Message) (json.RawMessage, error) {
	enabled, tools, err := enabledToolSet(g.db)
	if err != nil {
		return nil, err
	}
	lastToolIdx := lastToolMessageIndex(history)

	var contents []contentEntry
	suppressedToolNames := make(map[string]bool)

	for i, msg := range history {
		if msg.Role == "system" {
			continue
		}

		displayContent := msg.Content
		if i == 0 {
			displayContent = "## Begin Conversation History\n" + displayContent
		}
		if i == len(history)-1 && msg.Role == "user" && i > 0 {
			displayContent = "## End of History\n\n### CURRENT REQUEST\n" + displayContent
		}

		role := msg.Role
		switch msg.Role {
		case "assistant":
			role = "model"
		case "tool":
			role = "function"
		}

		var part map[string]interface{}
		switch {
		case msg.Status == "tool_call":
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Content), &parsed); err != nil {
				part = map[string]interface{}{"text": displayContent}
				break
			}
			name, _ := toolCallName(parsed)
			if name != "" && !enabled[name] {
				L_warn("strategy: filtering out invalid tool call", "name", name)
				suppressedToolNames[name] = true
				part = map[string]interface{}{"text": "[Invalid tool call suppressed]"}
			} else {
				part = parsed
			}
		case msg.Role == "tool":
			_, namePart := toolCallIDParts(msg.ToolCallID)
			if suppressedToolNames[namePart] || !enabled[namePart] {
				L_warn("strategy: filtering out invalid tool response", "name", namePart)
				role = "user"
				part = map[string]interface{}{"text": "[Invalid tool response suppressed]"}
			} else {
				part = map[string]interface{}{
					"functionResponse": map[string]interface{}{
						"name": namePart,
						"response": map[string]interface{}{
							"content": truncate(msg.Content, toolResultBudget(g.cfg, i, lastToolIdx)),
						},
					},
				}
			}
		default:
			part = map[string]interface{}{"text": displayContent}
		}

		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
		} else {
			contents = append(contents, contentEntry{Role: role, Parts: []map[string]interface{}{part}})
		}
	}

	var validContents []contentEntry
	for _, c := range contents {
		if c.Role == "function" && (len(validContents) == 0 || validContents[len(validContents)-1].Role != "model") {
			continue
		}
		validContents = append(validContents, c)
	}

	payload := map[string]interface{}{"contents": validContents}
	if systemInstruction != "" {
		payload["system_instruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": systemInstruction}},
		}
	}

	var decls []map[string]interface{}
	for _, t := range tools {
		var schema interface{}
		if err := json.Unmarshal([]byte(t.JSONSchema), &schema); err != nil {
			continue
		}
		decls = append(decls, map[string]interface{}{
			"name": t.Name, "description": t.Description, "parameters": schema,
		})
	}
	if len(decls) > 0 {
		payload["tools"] = []map[string]interface{}{{"function_declarations": decls}}
	}

	return json.Marshal(payload)
}

func (g *GenerativeContent) ProcessResponse(sessionID string, responseJSON []byte, groupID string) (int, error) {
	return g.processResponse(sessionID, responseJSON, groupID, false)
}

// processResponse is shared with the wrapped variant, which sets unwrap to
// transparently look under a top-level "response" field first.
func (g *GenerativeContent) processResponse(sessionID string, responseJSON []byte, groupID string, unwrap bool) (int, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(responseJSON, &top); err != nil {
		return 0, errs.Wrap(errs.Internal, fmt.Errorf("parse generateContent response: %w", err))
	}

	target := top
	if unwrap {
		if inner, ok := top["response"]; ok {
			var innerMap map[string]json.RawMessage
			if err := json.Unmarshal(inner, &innerMap); err == nil {
				target = innerMap
			}
		}
	}

	totalTokens := 0
	if raw, ok := target["usageMetadata"]; ok {
		var usage struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		}
		if err := json.Unmarshal(raw, &usage); err == nil {
			totalTokens = usage.PromptTokenCount + usage.CandidatesTokenCount
			if err := g.db.RecordUsage(sessionID, g.cfg.Model, usage.PromptTokenCount, usage.CandidatesTokenCount, totalTokens); err != nil {
				L_warn("strategy: failed to record usage", "error", err)
			}
		}
	}

	rawCandidates, ok := target["candidates"]
	if !ok {
		return 0, errs.New(errs.Internal, "no candidates in response")
	}
	var candidates []struct {
		Content struct {
			Parts []json.RawMessage `json:"parts"`
		} `json:"content"`
	}
	if err := json.Unmarshal(rawCandidates, &candidates); err != nil || len(candidates) == 0 {
		return 0, errs.New(errs.Internal, "no candidates in response")
	}

	for _, part := range candidates[0].Content.Parts {
		var p struct {
			FunctionCall *struct {
				Name string `json:"name"`
			} `json:"functionCall"`
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(part, &p); err != nil {
			continue
		}

		if p.FunctionCall != nil {
			if _, err := g.db.AppendMessage(sessionID, "assistant", string(part), p.FunctionCall.Name, "tool_call", groupID, g.Name(), totalTokens); err != nil {
				return 0, err
			}
			continue
		}
		if p.Text != nil {
			if _, err := g.db.AppendMessage(sessionID, "assistant", *p.Text, "", "completed", groupID, g.Name(), totalTokens); err != nil {
				return 0, err
			}
			if block := state.Extract(*p.Text); block != "" {
				if err := g.db.SetSessionState(sessionID, block); err != nil {
					L_warn("strategy: failed to persist session state", "error", err)
				}
			}
		}
	}

	return totalTokens, nil
}

func (g *GenerativeContent) ParseToolCalls(msg store.Message) ([]codec.ToolCall, error) {
	return codec.ExtractToolCalls(msg)
}

func (g *GenerativeContent) GetModels(apiKey string) ([]ModelInfo, error) {
	body, err := g.getter.Get(g.cfg.BaseURL+"/models?key="+apiKey, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Models []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"models"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("parse models response: %w", err))
	}

	models := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, ModelInfo{ID: m.Name, Name: m.DisplayName})
	}
	return models, nil
}

func (g *GenerativeContent) GetQuota(token string) (json.RawMessage, error) {
	return nil, errs.New(errs.Unimplemented, "quota check not implemented for GenerativeContent strategy")
}

func (g *GenerativeContent) CountTokens(payload json.RawMessage) int {
	return countTokens(payload)
}
