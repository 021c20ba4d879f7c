package store

import (
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

// RegisterTool upserts a tool's catalogue row, keyed on name.
func (s *Store) RegisterTool(name, description, jsonSchema string, isEnabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO tools (name, description, json_schema, is_enabled) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET description = excluded.description, json_schema = excluded.json_schema, is_enabled = excluded.is_enabled`,
		name, description, jsonSchema, boolToInt(isEnabled),
	)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("register tool %q: %w", name, err))
	}
	return nil
}

// GetEnabledTools returns every tool row with is_enabled = true.
func (s *Store) GetEnabledTools() ([]Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT name, description, json_schema, is_enabled, call_count FROM tools WHERE is_enabled = 1 ORDER BY name`)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("query enabled tools: %w", err))
	}
	defer rows.Close()

	var out []Tool
	for rows.Next() {
		var t Tool
		var enabled int
		if err := rows.Scan(&t.Name, &t.Description, &t.JSONSchema, &enabled, &t.CallCount); err != nil {
			return nil, errs.Wrap(errs.Internal, fmt.Errorf("scan tool: %w", err))
		}
		t.IsEnabled = enabled != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, err)
	}
	return out, nil
}

// IncrementToolCallCount bumps a tool's call_count by one on successful
// execution.
func (s *Store) IncrementToolCallCount(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tools SET call_count = call_count + 1 WHERE name = ?`, name)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("increment call count for %q: %w", name, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "tool %q not found", name)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// builtinTool is one entry in the default tool catalogue registered at Init.
type builtinTool struct {
	name        string
	description string
	schema      string
}

// builtinTools is the default catalogue: the thirteen tools from spec.md
// §4.5, the five vcsseries tools, and query_json, grounded on
// original_source/core/database.cpp's RegisterBuiltinTools and
// original_source/core/tool_types.h.
var builtinTools = []builtinTool{
	{"read_file", "Read a file, optionally restricted to a line range.",
		`{"type":"object","properties":{"path":{"type":"string"},"start_line":{"type":"integer"},"end_line":{"type":"integer"},"add_line_numbers":{"type":"boolean"}},"required":["path"]}`},
	{"write_file", "Overwrite a file with new content.",
		`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`},
	{"apply_patch", "Apply a sequence of find/replace patches to a file.",
		`{"type":"object","properties":{"path":{"type":"string"},"patches":{"type":"array","items":{"type":"object","properties":{"find":{"type":"string"},"replace":{"type":"string"}},"required":["find","replace"]}}},"required":["path","patches"]}`},
	{"execute_bash", "Run a shell command and capture its output.",
		`{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`},
	{"grep_tool", "Search file contents for a pattern.",
		`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"},"context":{"type":"integer"}},"required":["pattern"]}`},
	{"git_grep_tool", "Search a VCS working tree with rich match options.",
		`{"type":"object","properties":{"pattern":{"type":"string"},"case_insensitive":{"type":"boolean"},"word_regexp":{"type":"boolean"},"context":{"type":"integer"},"pcre":{"type":"boolean"},"branch":{"type":"string"},"cached":{"type":"boolean"},"and_patterns":{"type":"array","items":{"type":"string"}},"or_patterns":{"type":"array","items":{"type":"string"}},"not_patterns":{"type":"array","items":{"type":"string"}},"pathspecs":{"type":"array","items":{"type":"string"}}},"required":["pattern"]}`},
	{"query_db", "Run a parameter-bound SQL statement against the store.",
		`{"type":"object","properties":{"sql":{"type":"string"}},"required":["sql"]}`},
	{"save_memo", "Persist a tagged free-form note.",
		`{"type":"object","properties":{"content":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}}},"required":["content","tags"]}`},
	{"retrieve_memos", "Retrieve memos matching any of the given tags.",
		`{"type":"object","properties":{"tags":{"type":"array","items":{"type":"string"}}},"required":["tags"]}`},
	{"list_directory", "List directory contents to a given depth.",
		`{"type":"object","properties":{"path":{"type":"string"},"depth":{"type":"integer"},"git_only":{"type":"boolean"}},"required":[]}`},
	{"manage_scratchpad", "Read, update, or append to the session scratchpad.",
		`{"type":"object","properties":{"action":{"type":"string","enum":["read","update","append"]},"content":{"type":"string"}},"required":["action"]}`},
	{"describe_db", "Return the store's schema.",
		`{"type":"object","properties":{},"required":[]}`},
	{"use_skill", "Activate or deactivate a named skill for the session.",
		`{"type":"object","properties":{"name":{"type":"string"},"action":{"type":"string","enum":["activate","deactivate"]}},"required":["name","action"]}`},

	{"git_branch_staging", "Create and check out a staging branch from a base branch.",
		`{"type":"object","properties":{"name":{"type":"string"},"base_branch":{"type":"string"}},"required":["name"]}`},
	{"git_commit_patch", "Stage and commit all working-tree changes with a rationale.",
		`{"type":"object","properties":{"summary":{"type":"string"},"rationale":{"type":"string"}},"required":["summary","rationale"]}`},
	{"git_format_patch_series", "List commits between a base branch and HEAD with subject and rationale.",
		`{"type":"object","properties":{"base_branch":{"type":"string"}},"required":["base_branch"]}`},
	{"git_verify_series", "Check out each commit in a series in turn and run a verification command.",
		`{"type":"object","properties":{"command":{"type":"string"},"base_branch":{"type":"string"}},"required":["command","base_branch"]}`},
	{"git_reroll_patch", "Rewrite the patch at an index in the series with the current working tree.",
		`{"type":"object","properties":{"index":{"type":"integer"},"base_branch":{"type":"string"}},"required":["index","base_branch"]}`},

	{"query_json", "Evaluate a jq-style filter against a JSON document.",
		`{"type":"object","properties":{"data":{"type":"string"},"query":{"type":"string"}},"required":["data","query"]}`},
}

func (s *Store) registerDefaultTools() error {
	for _, t := range builtinTools {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO tools (name, description, json_schema, is_enabled) VALUES (?, ?, ?, 1)`,
			t.name, t.description, t.schema,
		); err != nil {
			return errs.Wrap(errs.Internal, fmt.Errorf("register builtin tool %q: %w", t.name, err))
		}
	}
	return nil
}
