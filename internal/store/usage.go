package store

import (
	"database/sql"
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

// RecordUsage appends one usage row for a single LLM round.
func (s *Store) RecordUsage(sessionID, model string, promptTokens, completionTokens, totalTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO usage (session_id, model, prompt_tokens, completion_tokens, total_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, model, promptTokens, completionTokens, totalTokens, nowISO(),
	)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("record usage: %w", err))
	}
	return nil
}

// GetTotalUsage sums usage rows, optionally scoped to one session.
func (s *Store) GetTotalUsage(sessionID string) (TotalUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row *sql.Row
	if sessionID == "" {
		row = s.db.QueryRow(
			`SELECT COALESCE(SUM(prompt_tokens),0), COALESCE(SUM(completion_tokens),0), COALESCE(SUM(total_tokens),0) FROM usage`)
	} else {
		row = s.db.QueryRow(
			`SELECT COALESCE(SUM(prompt_tokens),0), COALESCE(SUM(completion_tokens),0), COALESCE(SUM(total_tokens),0) FROM usage WHERE session_id = ?`,
			sessionID)
	}

	var u TotalUsage
	if err := row.Scan(&u.PromptTokens, &u.CompletionTokens, &u.TotalTokens); err != nil {
		return TotalUsage{}, errs.Wrap(errs.Internal, fmt.Errorf("sum usage: %w", err))
	}
	return u, nil
}
