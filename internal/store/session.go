package store

import (
	"database/sql"
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

const defaultContextWindow = 2

// SetContextWindow persists the history window size for a session.
func (s *Store) SetContextWindow(sessionID string, size int) error {
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
	if _, err := tx.Exec(`UPDATE sessions SET context_size = ? WHERE id = ?`, size, sessionID); err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("set context window: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	return nil
}

// GetContextSettings returns the session's history window size, defaulting
// to 2 if the session has no row yet.
func (s *Store) GetContextSettings(sessionID string) (ContextSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var size sql.NullInt64
	err := s.db.QueryRow(`SELECT context_size FROM sessions WHERE id = ?`, sessionID).Scan(&size)
	if err == sql.ErrNoRows {
		return ContextSettings{Size: defaultContextWindow}, nil
	}
	if err != nil {
		return ContextSettings{}, errs.Wrap(errs.Internal, fmt.Errorf("query context settings: %w", err))
	}
	if !size.Valid {
		return ContextSettings{Size: defaultContextWindow}, nil
	}
	return ContextSettings{Size: int(size.Int64)}, nil
}

// SetSessionState overwrites the session's state blob.
func (s *Store) SetSessionState(sessionID, blob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO session_state (session_id, state_blob) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET state_blob = excluded.state_blob`,
		sessionID, blob,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("set session state: %w", err))
	}
	return nil
}

// GetSessionState returns the session's state blob, failing with not_found
// if none has been set.
func (s *Store) GetSessionState(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blob string
	err := s.db.QueryRow(`SELECT state_blob FROM session_state WHERE session_id = ?`, sessionID).Scan(&blob)
	if err == sql.ErrNoRows {
		return "", errs.Newf(errs.NotFound, "no session state for %q", sessionID)
	}
	if err != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("query session state: %w", err))
	}
	return blob, nil
}

// DeleteSession removes every row referencing sessionID across messages,
// usage, session_state, and sessions.
func (s *Store) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM messages WHERE session_id = ?`,
		`DELETE FROM usage WHERE session_id = ?`,
		`DELETE FROM session_state WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.Exec(stmt, sessionID); err != nil {
			return errs.Wrap(errs.Internal, fmt.Errorf("delete session: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	return nil
}

// CloneSession copies every messages/usage/session_state/sessions row that
// references source to reference target instead, inside one transaction.
// It fails with not_found if source has no session row, already_exists if
// target does.
func (s *Store) CloneSession(source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, source).Scan(&exists); err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if exists == 0 {
		return errs.Newf(errs.NotFound, "source session %q not found", source)
	}

	if err := tx.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, target).Scan(&exists); err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if exists != 0 {
		return errs.Newf(errs.AlreadyExists, "target session %q already exists", target)
	}

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, context_size, scratchpad, active_skills)
		 SELECT ?, context_size, scratchpad, active_skills FROM sessions WHERE id = ?`,
		target, source,
	); err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("clone session row: %w", err))
	}

	if _, err := tx.Exec(
		`INSERT INTO messages (session_id, role, content, tool_call_id, status, created_at, group_id, parsing_strategy, tokens)
		 SELECT ?, role, content, tool_call_id, status, created_at, group_id, parsing_strategy, tokens
		 FROM messages WHERE session_id = ? ORDER BY id ASC`,
		target, source,
	); err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("clone messages: %w", err))
	}

	if _, err := tx.Exec(
		`INSERT INTO usage (session_id, model, prompt_tokens, completion_tokens, total_tokens, created_at)
		 SELECT ?, model, prompt_tokens, completion_tokens, total_tokens, created_at FROM usage WHERE session_id = ?`,
		target, source,
	); err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("clone usage: %w", err))
	}

	if _, err := tx.Exec(
		`INSERT INTO session_state (session_id, state_blob)
		 SELECT ?, state_blob FROM session_state WHERE session_id = ?`,
		target, source,
	); err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("clone session state: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	return nil
}

// UpdateScratchpad applies action (read, update, append) to the session's
// scratchpad and returns the resulting text.
func (s *Store) UpdateScratchpad(sessionID, action, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}
	defer tx.Rollback()

	if err := s.ensureSession(tx, sessionID); err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}

	var existing sql.NullString
	if err := tx.QueryRow(`SELECT scratchpad FROM sessions WHERE id = ?`, sessionID).Scan(&existing); err != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("read scratchpad: %w", err))
	}

	var result string
	switch action {
	case "read":
		result = existing.String
		if err := tx.Commit(); err != nil {
			return "", errs.Wrap(errs.Internal, err)
		}
		return result, nil
	case "update":
		result = content
	case "append":
		result = existing.String + content
	default:
		return "", errs.Newf(errs.InvalidArgument, "unknown scratchpad action %q", action)
	}

	if _, err := tx.Exec(`UPDATE sessions SET scratchpad = ? WHERE id = ?`, result, sessionID); err != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("write scratchpad: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}
	return result, nil
}

// GetScratchpad returns the session's current scratchpad text.
func (s *Store) GetScratchpad(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var text sql.NullString
	err := s.db.QueryRow(`SELECT scratchpad FROM sessions WHERE id = ?`, sessionID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("query scratchpad: %w", err))
	}
	return text.String, nil
}
