package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

// RegisterSkill inserts a new skill row.
func (s *Store) RegisterSkill(name, description, systemPromptPatch string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO skills (name, description, system_prompt_patch) VALUES (?, ?, ?)`,
		name, description, systemPromptPatch,
	)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, fmt.Errorf("register skill %q: %w", name, err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err)
	}
	return id, nil
}

// UpdateSkill overwrites an existing skill's description and patch text.
func (s *Store) UpdateSkill(name, description, systemPromptPatch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE skills SET description = ?, system_prompt_patch = ? WHERE name = ?`,
		description, systemPromptPatch, name,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("update skill %q: %w", name, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "skill %q not found", name)
	}
	return nil
}

// DeleteSkill removes a skill identified either by name or by its numeric id
// (passed as a decimal string).
func (s *Store) DeleteSkill(nameOrID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res sql.Result
	var err error
	if id, convErr := strconv.ParseInt(nameOrID, 10, 64); convErr == nil {
		res, err = s.db.Exec(`DELETE FROM skills WHERE id = ?`, id)
	} else {
		res, err = s.db.Exec(`DELETE FROM skills WHERE name = ?`, nameOrID)
	}
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("delete skill %q: %w", nameOrID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "skill %q not found", nameOrID)
	}
	return nil
}

// GetSkills returns every registered skill.
func (s *Store) GetSkills() ([]Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, name, description, system_prompt_patch, activation_count FROM skills ORDER BY name`)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("query skills: %w", err))
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.Description, &sk.SystemPromptPatch, &sk.ActivationCount); err != nil {
			return nil, errs.Wrap(errs.Internal, fmt.Errorf("scan skill: %w", err))
		}
		out = append(out, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, err)
	}
	return out, nil
}

// GetSkillByName returns one skill, or not_found if no such skill is
// registered.
func (s *Store) GetSkillByName(name string) (Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sk Skill
	err := s.db.QueryRow(
		`SELECT id, name, description, system_prompt_patch, activation_count FROM skills WHERE name = ?`, name,
	).Scan(&sk.ID, &sk.Name, &sk.Description, &sk.SystemPromptPatch, &sk.ActivationCount)
	if err == sql.ErrNoRows {
		return Skill{}, errs.Newf(errs.NotFound, "skill %q not found", name)
	}
	if err != nil {
		return Skill{}, errs.Wrap(errs.Internal, fmt.Errorf("query skill %q: %w", name, err))
	}
	return sk, nil
}

// IncrementSkillActivationCount bumps a skill's activation_count by one.
func (s *Store) IncrementSkillActivationCount(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE skills SET activation_count = activation_count + 1 WHERE name = ?`, name)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("increment activation count for %q: %w", name, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "skill %q not found", name)
	}
	return nil
}

// SetActiveSkills persists names as a JSON array on the session row.
func (s *Store) SetActiveSkills(sessionID string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	defer tx.Rollback()

	if err := s.ensureSession(tx, sessionID); err != nil {
		return errs.Wrap(errs.Internal, err)
	}

	blob, err := json.Marshal(names)
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}

	if _, err := tx.Exec(`UPDATE sessions SET active_skills = ? WHERE id = ?`, string(blob), sessionID); err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("set active skills: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	return nil
}

// GetActiveSkills returns the session's active-skill names, or nil if the
// session has none set.
func (s *Store) GetActiveSkills(sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blob sql.NullString
	err := s.db.QueryRow(`SELECT active_skills FROM sessions WHERE id = ?`, sessionID).Scan(&blob)
	if err == sql.ErrNoRows || !blob.Valid || blob.String == "" {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("query active skills: %w", err))
	}

	var names []string
	if err := json.Unmarshal([]byte(blob.String), &names); err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("decode active skills: %w", err))
	}
	return names, nil
}

// builtinSkill is one entry in the default skill catalogue registered at
// Init. Two of the original catalogue's four skills (grounded on
// original_source/core/database.cpp's RegisterBuiltinSkills) were written
// for the original program's own C++ codebase; this core replaces them
// with language-neutral and Go-flavored equivalents so the catalogue fits a
// repo-agnostic coding agent rather than presupposing the original's stack.
var builtinSkills = []builtinTool{
	{"planner", "Breaks a large request into an ordered, checkable task list before touching code.",
		"When activated, restate the user's goal as a short numbered plan before making any edits. Revisit the plan after each step and note what changed."},
	{"dba", "Focuses on schema design, query correctness, and migration safety.",
		"When activated, treat schema changes as forward-only migrations. Prefer additive changes over destructive ones, and call out any query whose cost scales with table size."},
	{"code_reviewer", "Reviews a diff for correctness, clarity, and test coverage before it ships.",
		"When activated, review changes for correctness first, then clarity, then test coverage. Flag anything that silently swallows an error or changes behavior the diff doesn't mention."},
	{"go_expert", "Applies idiomatic Go conventions: explicit errors, small interfaces, context propagation.",
		"When activated, favor explicit error returns over panics, small accept-interfaces/return-structs APIs, and context.Context threading through blocking calls. Flag goroutines without a clear owner or shutdown path."},
}

func (s *Store) registerDefaultSkills() error {
	for _, sk := range builtinSkills {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO skills (name, description, system_prompt_patch) VALUES (?, ?, ?)`,
			sk.name, sk.description, sk.schema,
		); err != nil {
			return errs.Wrap(errs.Internal, fmt.Errorf("register builtin skill %q: %w", sk.name, err))
		}
	}
	return nil
}
