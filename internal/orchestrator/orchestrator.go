// Package orchestrator implements C4: prompt assembly, system-instruction
// composition, memo injection, and STATE rebuild, grounded on
// original_source/core/orchestrator.cpp.
package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/hsaliak/goclaw-core/internal/codec"
	"github.com/hsaliak/goclaw-core/internal/state"
	"github.com/hsaliak/goclaw-core/internal/store"
	"github.com/hsaliak/goclaw-core/internal/strategy"
	"github.com/hsaliak/goclaw-core/internal/transport"
)

const defaultSystemPrompt = "You are a helpful coding assistant.\n"

const historyGuidelines = `
## Conversation History Guidelines
1. The following messages are sequential and chronological.
2. Every response MUST include a ### STATE block at the end to summarize technical progress.
3. Use the ### STATE block from the history as the authoritative source for project goals and technical anchors.

### State Format
### STATE
Goal: [Short description of current task]
Context: [Active files/classes being edited]
Resolved: [List of things finished this session]
Technical Anchors: [Ports, IPs, constant values]
`

// Provider selects which Strategy family backs an Orchestrator.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Config is an Orchestrator's immutable configuration. Changing Provider,
// GcaMode, or BaseURL requires re-selecting the concrete Strategy (via
// Builder.Build), matching original_source's UpdateStrategy.
type Config struct {
	Provider        Provider
	Model           string
	GcaMode         bool
	ProjectID       string
	BaseURL         string
	APIKey          string
	ThrottleSeconds int
	StripReasoning  bool

	TruncationBudgetRecent int
	TruncationBudgetOlder  int

	// SystemPrompt is the builtin system prompt resource. If it contains
	// lines beginning with "#patch:" or "#purpose:", only the content
	// after the first such directive is kept (spec §4.4.1 step 1).
	SystemPrompt string
}

// Builder constructs an Orchestrator from a Config, selecting the concrete
// Strategy once at Build time.
type Builder struct {
	db     *store.Store
	getter transport.HttpGetter
	poster transport.HttpPoster
	tokens transport.TokenProvider
	cfg    Config
}

// NewBuilder starts a Builder bound to the given Store and HTTP boundary
// capabilities.
func NewBuilder(db *store.Store, getter transport.HttpGetter, poster transport.HttpPoster, tokens transport.TokenProvider) *Builder {
	return &Builder{db: db, getter: getter, poster: poster, tokens: tokens}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// Build selects the concrete Strategy for the current config and returns a
// ready Orchestrator.
func (b *Builder) Build() *Orchestrator {
	o := &Orchestrator{db: b.db, getter: b.getter, poster: b.poster, tokens: b.tokens, cfg: b.cfg}
	o.updateStrategy()
	return o
}

// Orchestrator holds an owning reference to a Strategy plus the
// configuration that selected it, and the last-selected group-id set from
// the most recent AssemblePrompt call.
type Orchestrator struct {
	db     *store.Store
	getter transport.HttpGetter
	poster transport.HttpPoster
	tokens transport.TokenProvider
	cfg    Config

	strat strategy.Strategy

	lastSelectedGroups []string
}

func (o *Orchestrator) updateStrategy() {
	sc := strategy.Config{
		Model:                  o.cfg.Model,
		BaseURL:                o.cfg.BaseURL,
		APIKey:                 o.cfg.APIKey,
		ProjectID:              o.cfg.ProjectID,
		StripReasoning:         o.cfg.StripReasoning,
		TruncationBudgetRecent: o.cfg.TruncationBudgetRecent,
		TruncationBudgetOlder:  o.cfg.TruncationBudgetOlder,
	}

	if o.cfg.Provider == ProviderGemini {
		if o.cfg.GcaMode {
			o.strat = strategy.NewGenerativeContentWrapped(o.db, o.getter, o.poster, sc, o.tokens)
		} else {
			o.strat = strategy.NewGenerativeContent(o.db, o.getter, sc)
		}
		return
	}
	o.strat = strategy.NewChatCompletions(o.db, o.getter, sc)
}

// Reconfigure produces a new Orchestrator with cfg applied, re-selecting the
// Strategy. The receiver is left untouched.
func (o *Orchestrator) Reconfigure(cfg Config) *Orchestrator {
	return NewBuilder(o.db, o.getter, o.poster, o.tokens).WithConfig(cfg).Build()
}

// LastSelectedGroups returns the distinct group ids chosen by the most
// recent AssemblePrompt call, for observability.
func (o *Orchestrator) LastSelectedGroups() []string {
	return o.lastSelectedGroups
}

// AssemblePrompt builds the full provider payload for session, following
// spec §4.4 steps 1-4.
func (o *Orchestrator) AssemblePrompt(sessionID string, activeSkills []string) (json.RawMessage, error) {
	settings, err := o.db.GetContextSettings(sessionID)
	if err != nil {
		return nil, err
	}
	if settings.Size == -1 {
		o.lastSelectedGroups = nil
		return json.Marshal(map[string]interface{}{"contents": []interface{}{}})
	}

	history, err := o.relevantHistory(sessionID, settings.Size)
	if err != nil {
		return nil, err
	}

	systemInstruction := o.buildSystemInstructions(sessionID, activeSkills)
	o.injectRelevantMemos(history, &systemInstruction)

	return o.strat.AssemblePayload(sessionID, systemInstruction, history)
}

// ProcessResponse delegates to the active Strategy.
func (o *Orchestrator) ProcessResponse(sessionID string, responseJSON []byte, groupID string) (int, error) {
	return o.strat.ProcessResponse(sessionID, responseJSON, groupID)
}

// ParseToolCalls delegates to the active Strategy.
func (o *Orchestrator) ParseToolCalls(msg store.Message) ([]codec.ToolCall, error) {
	return o.strat.ParseToolCalls(msg)
}

// CountTokens delegates to the active Strategy.
func (o *Orchestrator) CountTokens(payload json.RawMessage) int {
	return o.strat.CountTokens(payload)
}

// StrategyName returns the active strategy's name, used by the Interaction
// Loop to tag newly appended user messages.
func (o *Orchestrator) StrategyName() string {
	return o.strat.Name()
}

// RebuildContext re-extracts the ### STATE block from the current window's
// assistant messages and overwrites session_state with the last one found.
// Used after undo, session switch, and on command.
func (o *Orchestrator) RebuildContext(sessionID string) error {
	settings, err := o.db.GetContextSettings(sessionID)
	if err != nil {
		return err
	}
	history, err := o.relevantHistory(sessionID, settings.Size)
	if err != nil {
		return err
	}

	for _, msg := range history {
		if msg.Role != "assistant" {
			continue
		}
		if block := state.Extract(msg.Content); block != "" {
			if err := o.db.SetSessionState(sessionID, block); err != nil {
				return err
			}
		}
	}
	return nil
}

// relevantHistory fetches the windowed conversation history and filters it
// to messages compatible with the active strategy (spec §4.4 step 3),
// recording the distinct group-id set as lastSelectedGroups.
func (o *Orchestrator) relevantHistory(sessionID string, windowSize int) ([]store.Message, error) {
	hist, err := o.db.GetConversationHistory(sessionID, false, windowSize)
	if err != nil {
		return nil, err
	}

	current := o.strat.Name()
	groupSeen := make(map[string]bool)
	var groups []string

	history := make([]store.Message, 0, len(hist))
	for _, m := range hist {
		isToolRelated := m.Role == "tool" || m.Status == "tool_call"
		strategyMatches := m.ParsingStrategy == "" || m.ParsingStrategy == current ||
			(current == "gemini_gca" && m.ParsingStrategy == "gemini") ||
			(current == "gemini" && m.ParsingStrategy == "gemini_gca")

		if !isToolRelated || strategyMatches {
			if m.GroupID != "" && !groupSeen[m.GroupID] {
				groupSeen[m.GroupID] = true
				groups = append(groups, m.GroupID)
			}
			history = append(history, m)
		}
	}

	o.lastSelectedGroups = groups
	return history, nil
}

// buildSystemInstructions composes the system instruction in the fixed
// order from spec §4.4.1.
func (o *Orchestrator) buildSystemInstructions(sessionID string, activeSkills []string) string {
	systemInstruction := resolvePatchDirective(o.cfg.SystemPrompt)
	if systemInstruction == "" {
		systemInstruction = defaultSystemPrompt
	}
	if !strings.HasSuffix(systemInstruction, "\n") {
		systemInstruction += "\n"
	}

	if tools, err := o.db.GetEnabledTools(); err == nil && len(tools) > 0 {
		systemInstruction += "\n## Available Tools\n" +
			"You have access to the following tools. Use them to fulfill the user's request.\n"
		for _, t := range tools {
			systemInstruction += "- " + t.Name + ": " + t.Description + "\n"
		}
	}

	if len(activeSkills) > 0 {
		if skills, err := o.db.GetSkills(); err == nil {
			active := make(map[string]bool, len(activeSkills))
			for _, n := range activeSkills {
				active[n] = true
			}
			var patches strings.Builder
			for _, sk := range skills {
				if active[sk.Name] {
					patches.WriteString("### Skill: " + sk.Name + "\n" + sk.SystemPromptPatch + "\n")
				}
			}
			if patches.Len() > 0 {
				systemInstruction += "\n## Active Personas & Skills\n" + patches.String()
			}
		}
	}

	systemInstruction += historyGuidelines + "\n"

	if blob, err := o.db.GetSessionState(sessionID); err == nil && blob != "" {
		systemInstruction += "## Global State (Anchor)\n" + blob + "\n"
	}

	return systemInstruction
}

// resolvePatchDirective keeps only the content after the first "#patch:" or
// "#purpose:" line, if the resource contains one (spec §4.4.1 step 1).
func resolvePatchDirective(resource string) string {
	if resource == "" {
		return ""
	}

	lines := strings.Split(resource, "\n")
	var kept []string
	inPatch := false
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "#patch:") || strings.HasPrefix(trimmed, "#purpose:") ||
			strings.HasPrefix(trimmed, "# patch:") || strings.HasPrefix(trimmed, "# purpose:") {
			inPatch = true
			continue
		}
		if inPatch {
			kept = append(kept, line)
		}
	}

	out := strings.Join(kept, "\n")
	if out == "" {
		return resource
	}
	return out
}

// injectRelevantMemos locates the most recent user message in history,
// extracts tags from it, and appends up to five matching memos under a
// "## Relevant Memos" header (spec §4.4.2).
func (o *Orchestrator) injectRelevantMemos(history []store.Message, systemInstruction *string) {
	if len(history) == 0 {
		return
	}

	var lastUserText string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			lastUserText = history[i].Content
			break
		}
	}
	if lastUserText == "" {
		return
	}

	tags := store.ExtractTags(lastUserText)
	if len(tags) == 0 {
		return
	}

	memos, err := o.db.GetMemosByTags(tags)
	if err != nil || len(memos) == 0 {
		return
	}

	*systemInstruction += "\n## Relevant Memos\n" +
		"The following memos were automatically retrieved as they might be relevant to the current context:\n"
	for i, m := range memos {
		if i >= 5 {
			break
		}
		*systemInstruction += "- [" + formatMemoTags(m.SemanticTags) + "] " + m.Content + "\n"
	}
}

// formatMemoTags renders a memo's JSON-array tag list as a comma-separated
// string for prompt display, falling back to the raw stored value if it
// doesn't parse.
func formatMemoTags(tagsJSON string) string {
	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return tagsJSON
	}
	return strings.Join(tags, ", ")
}
