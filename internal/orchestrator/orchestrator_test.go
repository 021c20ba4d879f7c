package orchestrator

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsaliak/goclaw-core/internal/store"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	db, err := store.Init(filepath.Join(t.TempDir(), "orch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	o := NewBuilder(db, nil, nil, nil).WithConfig(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-test",
	}).Build()
	return o, db
}

func TestAssemblePromptContextDisabledReturnsEmptyContents(t *testing.T) {
	o, db := newTestOrchestrator(t)
	require.NoError(t, db.SetContextWindow("sess-1", -1))

	payload, err := o.AssemblePrompt("sess-1", nil)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Empty(t, decoded["contents"])
	assert.Nil(t, o.LastSelectedGroups())
}

func TestAssemblePromptIncludesSystemAndHistory(t *testing.T) {
	o, db := newTestOrchestrator(t)

	_, err := db.AppendMessage("sess-1", "user", "what is 2+2?", "", "completed", "g1", "openai", 0)
	require.NoError(t, err)
	_, err = db.AppendMessage("sess-1", "assistant", "4", "", "completed", "g1", "openai", 0)
	require.NoError(t, err)

	payload, err := o.AssemblePrompt("sess-1", nil)
	require.NoError(t, err)

	var decoded struct {
		Messages []map[string]interface{} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.NotEmpty(t, decoded.Messages)
	assert.Equal(t, "system", decoded.Messages[0]["role"])
	assert.Contains(t, decoded.Messages[0]["content"], "helpful coding assistant")

	assert.Equal(t, []string{"g1"}, o.LastSelectedGroups())
}

func TestAssemblePromptIncludesEnabledToolsInSystemInstruction(t *testing.T) {
	o, db := newTestOrchestrator(t)
	_, err := db.AppendMessage("sess-1", "user", "hi", "", "completed", "g1", "openai", 0)
	require.NoError(t, err)

	payload, err := o.AssemblePrompt("sess-1", nil)
	require.NoError(t, err)

	var decoded struct {
		Messages []map[string]interface{} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Contains(t, decoded.Messages[0]["content"], "## Available Tools")
}

func TestAssemblePromptInjectsActiveSkills(t *testing.T) {
	o, db := newTestOrchestrator(t)
	_, err := db.AppendMessage("sess-1", "user", "hi", "", "completed", "g1", "openai", 0)
	require.NoError(t, err)

	skills, err := db.GetSkills()
	require.NoError(t, err)
	require.NotEmpty(t, skills)
	name := skills[0].Name

	payload, err := o.AssemblePrompt("sess-1", []string{name})
	require.NoError(t, err)

	var decoded struct {
		Messages []map[string]interface{} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Contains(t, decoded.Messages[0]["content"], "## Active Personas & Skills")
	assert.Contains(t, decoded.Messages[0]["content"], name)
}

func TestRebuildContextExtractsLatestStateBlock(t *testing.T) {
	o, db := newTestOrchestrator(t)

	_, err := db.AppendMessage("sess-1", "user", "do the thing", "", "completed", "g1", "openai", 0)
	require.NoError(t, err)
	_, err = db.AppendMessage("sess-1", "assistant", "done\n\n### STATE\nGoal: ship it\n", "", "completed", "g1", "openai", 0)
	require.NoError(t, err)

	require.NoError(t, o.RebuildContext("sess-1"))

	blob, err := db.GetSessionState("sess-1")
	require.NoError(t, err)
	assert.Contains(t, blob, "Goal: ship it")
}

func TestStrategyNameReflectsConfiguredProvider(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	assert.Equal(t, "openai", o.StrategyName())
}

func TestReconfigureSwitchesStrategy(t *testing.T) {
	o, db := newTestOrchestrator(t)

	reconfigured := o.Reconfigure(Config{
		Provider: ProviderGemini,
		Model:    "gemini-test",
		BaseURL:  "https://generativelanguage.googleapis.com/v1beta",
	})

	assert.Equal(t, "gemini", reconfigured.StrategyName())
	assert.Equal(t, "openai", o.StrategyName())
	assert.Same(t, db, reconfigured.db)
}

func TestFormatMemoTagsParsesJSONArray(t *testing.T) {
	assert.Equal(t, "infra, ports", formatMemoTags(`["infra","ports"]`))
}

func TestFormatMemoTagsFallsBackToRawOnParseFailure(t *testing.T) {
	assert.Equal(t, "not-json", formatMemoTags("not-json"))
}

func TestResolvePatchDirectiveKeepsContentAfterDirective(t *testing.T) {
	resource := "# purpose: general assistant\nline one\nline two\n"
	assert.Equal(t, "line one\nline two\n", resolvePatchDirective(resource))
}

func TestResolvePatchDirectiveReturnsWholeResourceWithoutDirective(t *testing.T) {
	resource := "just a plain prompt\n"
	assert.Equal(t, resource, resolvePatchDirective(resource))
}

func TestResolvePatchDirectiveEmptyResource(t *testing.T) {
	assert.Equal(t, "", resolvePatchDirective(""))
}
