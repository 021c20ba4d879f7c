package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Init(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitRegistersDefaultToolsAndSkills(t *testing.T) {
	s := newTestStore(t)

	tools, err := s.GetEnabledTools()
	require.NoError(t, err)
	assert.NotEmpty(t, tools)

	skills, err := s.GetSkills()
	require.NoError(t, err)
	assert.NotEmpty(t, skills)
}

func TestInitIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s1, err := Init(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Init(path)
	require.NoError(t, err)
	defer s2.Close()

	tools, err := s2.GetEnabledTools()
	require.NoError(t, err)
	assert.NotEmpty(t, tools)
}

func TestAppendMessageCreatesSessionImplicitly(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AppendMessage("sess-1", "user", "hello", "", "completed", "group-1", "openai", 0)
	require.NoError(t, err)
	assert.Positive(t, id)

	history, err := s.GetConversationHistory("sess-1", true, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
}

func TestGetConversationHistoryOrdersByIDAscending(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage("sess-1", "user", "msg", "", "completed", "group-1", "openai", 0)
		require.NoError(t, err)
	}

	history, err := s.GetConversationHistory("sess-1", true, 10)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		assert.Less(t, history[i-1].ID, history[i].ID)
	}
}

func TestGetConversationHistoryExcludesDroppedByDefault(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AppendMessage("sess-1", "tool", "result", "id|name", "completed", "group-1", "openai", 0)
	require.NoError(t, err)
	require.NoError(t, s.UpdateMessageStatus(id, "dropped"))

	history, err := s.GetConversationHistory("sess-1", false, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	withDropped, err := s.GetConversationHistory("sess-1", true, 10)
	require.NoError(t, err)
	require.Len(t, withDropped, 1)
	assert.Equal(t, "dropped", withDropped[0].Status)
}

func TestGetMessagesByGroupsFiltersToGroup(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendMessage("sess-1", "user", "a", "", "completed", "group-1", "openai", 0)
	require.NoError(t, err)
	_, err = s.AppendMessage("sess-1", "user", "b", "", "completed", "group-2", "openai", 0)
	require.NoError(t, err)

	msgs, err := s.GetMessagesByGroups([]string{"group-1"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].Content)
}

func TestScratchpadUpdateReadAppend(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendMessage("sess-1", "user", "seed", "", "completed", "g1", "openai", 0)
	require.NoError(t, err)

	_, err = s.UpdateScratchpad("sess-1", "update", "first note")
	require.NoError(t, err)

	out, err := s.UpdateScratchpad("sess-1", "read", "")
	require.NoError(t, err)
	assert.Equal(t, "first note", out)

	out, err = s.UpdateScratchpad("sess-1", "append", "\nsecond note")
	require.NoError(t, err)
	assert.Contains(t, out, "first note")
	assert.Contains(t, out, "second note")
}

func TestMemoSaveAndRetrieveByTag(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddMemo("remember this", `["project-x","todo"]`)
	require.NoError(t, err)
	assert.Positive(t, id)

	memos, err := s.GetMemosByTags([]string{"project-x"})
	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.Equal(t, "remember this", memos[0].Content)
}

func TestActiveSkillsToggle(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendMessage("sess-1", "user", "seed", "", "completed", "g1", "openai", 0)
	require.NoError(t, err)

	skills, err := s.GetSkills()
	require.NoError(t, err)
	require.NotEmpty(t, skills)
	name := skills[0].Name

	require.NoError(t, s.SetActiveSkills("sess-1", []string{name}))
	active, err := s.GetActiveSkills("sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{name}, active)

	require.NoError(t, s.SetActiveSkills("sess-1", nil))
	active, err = s.GetActiveSkills("sess-1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestQueryAndExecute(t *testing.T) {
	s := newTestStore(t)

	n, err := s.Execute(`INSERT INTO llm_memos (content, semantic_tags, created_at) VALUES ('x', '[]', '2024-01-01T00:00:00.000Z')`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	out, err := s.Query("SELECT content FROM llm_memos")
	require.NoError(t, err)
	assert.Contains(t, out, "x")
}

func TestRecordAndGetTotalUsage(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordUsage("sess-1", "gpt-test", 10, 20, 30))
	require.NoError(t, s.RecordUsage("sess-1", "gpt-test", 5, 5, 10))

	total, err := s.GetTotalUsage("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 40, total.TotalTokens)
}
