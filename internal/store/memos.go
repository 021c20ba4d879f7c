package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

// AddMemo persists a memo with tags already JSON-encoded as an array.
func (s *Store) AddMemo(content, tagsJSON string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO llm_memos (content, semantic_tags, created_at) VALUES (?, ?, ?)`,
		content, tagsJSON, nowISO(),
	)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, fmt.Errorf("add memo: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err)
	}
	return id, nil
}

// UpdateMemo overwrites a memo's content and tags.
func (s *Store) UpdateMemo(id int64, content, tagsJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE llm_memos SET content = ?, semantic_tags = ? WHERE id = ?`, content, tagsJSON, id)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("update memo: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "memo %d not found", id)
	}
	return nil
}

// DeleteMemo removes one memo.
func (s *Store) DeleteMemo(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM llm_memos WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("delete memo: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "memo %d not found", id)
	}
	return nil
}

// GetMemo returns one memo by id.
func (s *Store) GetMemo(id int64) (Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m Memo
	err := s.db.QueryRow(`SELECT id, content, semantic_tags, created_at FROM llm_memos WHERE id = ?`, id).
		Scan(&m.ID, &m.Content, &m.SemanticTags, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return Memo{}, errs.Newf(errs.NotFound, "memo %d not found", id)
	}
	if err != nil {
		return Memo{}, errs.Wrap(errs.Internal, fmt.Errorf("query memo: %w", err))
	}
	return m, nil
}

// GetAllMemos returns every memo.
func (s *Store) GetAllMemos() ([]Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, content, semantic_tags, created_at FROM llm_memos`)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("query all memos: %w", err))
	}
	defer rows.Close()
	return scanMemos(rows)
}

// GetMemosByTags returns memos whose semantic_tags JSON array contains an
// exact, prefix (tag-%), suffix (%-tag), or interior (%-tag-%) match for any
// tag derived from tagsInput.
//
// Each input string contributes both its extracted tags (via extractTags)
// and, if long enough and not a stopword, its own lowercased trimmed form
// verbatim — matching the richer union the original store performs so memo
// retrieval doesn't miss a single meaningful word passed as one "tag".
func (s *Store) GetMemosByTags(tagsInput []string) ([]Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tagsInput) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var tags []string
	addTag := func(t string) {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	for _, raw := range tagsInput {
		for _, t := range extractTags(raw) {
			addTag(t)
		}
		lower := strings.ToLower(strings.TrimSpace(raw))
		if len(lower) > 2 && !isStopword(lower) {
			addTag(lower)
		}
	}

	if len(tags) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT DISTINCT m.id, m.content, m.semantic_tags, m.created_at
		FROM llm_memos m, json_each(m.semantic_tags) j WHERE `)
	args := make([]interface{}, 0, len(tags)*4)
	for i, t := range tags {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("(j.value = ? OR j.value LIKE ? OR j.value LIKE ? OR j.value LIKE ?)")
		args = append(args, t, t+"-%", "%-"+t, "%-"+t+"-%")
	}

	rows, err := s.db.Query(sb.String(), args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("query memos by tags: %w", err))
	}
	defer rows.Close()
	return scanMemos(rows)
}

func scanMemos(rows *sql.Rows) ([]Memo, error) {
	var out []Memo
	for rows.Next() {
		var m Memo
		if err := rows.Scan(&m.ID, &m.Content, &m.SemanticTags, &m.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.Internal, fmt.Errorf("scan memo: %w", err))
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, err)
	}
	return out, nil
}

// ExtractTags is the exported form of the package's tag-extraction helper,
// used by the Orchestrator's relevant-memo injection (spec §4.4.2) and the
// save_memo/retrieve_memos tools.
func ExtractTags(text string) []string {
	return extractTags(text)
}

// IsStopword is the exported form of the package's stopword predicate.
func IsStopword(word string) bool {
	return isStopword(strings.ToLower(word))
}
