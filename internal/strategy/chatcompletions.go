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

// ChatCompletions implements the OpenAI-style chat-completions wire
// protocol, grounded on original_source/core/orchestrator_openai.cpp.
type ChatCompletions struct {
	db     *store.Store
	getter transport.HttpGetter
	cfg    Config
}

// NewChatCompletions constructs the ChatCompletions strategy.
func NewChatCompletions(db *store.Store, getter transport.HttpGetter, cfg Config) *ChatCompletions {
	return &ChatCompletions{db: db, getter: getter, cfg: cfg}
}

func (c *ChatCompletions) Name() string { return "openai" }

func (c *ChatCompletions) AssemblePayload(sessionID, systemInstruction string, history []store.Message) (json.RawMessage, error) {
	enabled, tools, err := enabledToolSet(c.db)
	if err != nil {
		return nil, err
	}
	lastToolIdx := lastToolMessageIndex(history)

	var messages []map[string]interface{}
	if systemInstruction != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": systemInstruction})
	}

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

		var obj map[string]interface{}

		switch {
		case msg.Status == "tool_call":
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Content), &parsed); err != nil {
				obj = map[string]interface{}{"role": msg.Role, "content": displayContent}
				break
			}
			valid := true
			if rawCalls, ok := parsed["tool_calls"].([]interface{}); ok {
				for _, rc := range rawCalls {
					call, _ := rc.(map[string]interface{})
					fn, _ := call["function"].(map[string]interface{})
					name, _ := fn["name"].(string)
					if !enabled[name] {
						L_warn("strategy: filtering out invalid tool call", "name", name)
						valid = false
						break
					}
				}
			}
			if valid {
				obj = parsed
			} else {
				obj = map[string]interface{}{"role": "assistant", "content": "[Invalid tool call suppressed]"}
			}

		case msg.Role == "tool":
			idPart, namePart := toolCallIDParts(msg.ToolCallID)
			if !enabled[namePart] {
				L_warn("strategy: filtering out invalid tool response", "name", namePart)
				obj = map[string]interface{}{"role": "user", "content": "[Invalid tool response suppressed]"}
			} else {
				obj = map[string]interface{}{
					"role":         "tool",
					"tool_call_id": idPart,
					"content":      truncate(msg.Content, toolResultBudget(c.cfg, i, lastToolIdx)),
				}
			}

		default:
			obj = map[string]interface{}{"role": msg.Role, "content": displayContent}
		}

		if n := len(messages); n > 0 && messages[n-1]["role"] == "user" && obj["role"] == "user" {
			prev, _ := messages[n-1]["content"].(string)
			next, _ := obj["content"].(string)
			messages[n-1]["content"] = prev + "\n" + next
		} else {
			messages = append(messages, obj)
		}
	}

	payload := map[string]interface{}{"model": c.cfg.Model, "messages": messages}

	var toolDefs []map[string]interface{}
	for _, t := range tools {
		var schema interface{}
		if err := json.Unmarshal([]byte(t.JSONSchema), &schema); err != nil {
			continue
		}
		toolDefs = append(toolDefs, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  schema,
			},
		})
	}
	if len(toolDefs) > 0 {
		payload["tools"] = toolDefs
	}

	if c.cfg.StripReasoning {
		payload["transforms"] = []string{"strip_reasoning"}
	}

	return json.Marshal(payload)
}

func (c *ChatCompletions) ProcessResponse(sessionID string, responseJSON []byte, groupID string) (int, error) {
	var resp struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
		Choices []struct {
			Message json.RawMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(responseJSON, &resp); err != nil {
		return 0, errs.Wrap(errs.Internal, fmt.Errorf("parse chat-completions response: %w", err))
	}

	totalTokens := resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		if err := c.db.RecordUsage(sessionID, c.cfg.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, totalTokens); err != nil {
			L_warn("strategy: failed to record usage", "error", err)
		}
	}

	if len(resp.Choices) == 0 {
		return 0, errs.New(errs.Internal, "no choices in response")
	}

	var msg struct {
		Content   *string `json:"content"`
		ToolCalls []struct {
			ID       string `json:"id"`
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tool_calls"`
	}
	if err := json.Unmarshal(resp.Choices[0].Message, &msg); err != nil {
		return 0, errs.Wrap(errs.Internal, fmt.Errorf("chat-completions response choice missing message: %w", err))
	}

	if len(msg.ToolCalls) > 0 {
		toolCallID := msg.ToolCalls[0].ID + "|" + msg.ToolCalls[0].Function.Name
		if _, err := c.db.AppendMessage(sessionID, "assistant", string(resp.Choices[0].Message), toolCallID, "tool_call", groupID, c.Name(), totalTokens); err != nil {
			return 0, err
		}
		return totalTokens, nil
	}

	if msg.Content != nil {
		if _, err := c.db.AppendMessage(sessionID, "assistant", *msg.Content, "", "completed", groupID, c.Name(), totalTokens); err != nil {
			return 0, err
		}
		if block := state.Extract(*msg.Content); block != "" {
			if err := c.db.SetSessionState(sessionID, block); err != nil {
				L_warn("strategy: failed to persist session state", "error", err)
			}
		}
	}

	return totalTokens, nil
}

func (c *ChatCompletions) ParseToolCalls(msg store.Message) ([]codec.ToolCall, error) {
	return codec.ExtractToolCalls(msg)
}

func (c *ChatCompletions) GetModels(apiKey string) ([]ModelInfo, error) {
	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	body, err := c.getter.Get(c.cfg.BaseURL+"/models", headers)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("parse models response: %w", err))
	}

	models := make([]ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, ModelInfo{ID: m.ID, Name: m.ID})
	}
	return models, nil
}

func (c *ChatCompletions) GetQuota(token string) (json.RawMessage, error) {
	return nil, errs.New(errs.Unimplemented, "quota check not implemented for ChatCompletions strategy")
}

func (c *ChatCompletions) CountTokens(payload json.RawMessage) int {
	return countTokens(payload)
}
