package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// AppendMessage creates the session row if absent, then inserts one message
// row, returning its assigned id.
func (s *Store) AppendMessage(sessionID, role, content, toolCallID, status, groupID, parsingStrategy string, tokens int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err)
	}
	defer tx.Rollback()

	if err := s.ensureSession(tx, sessionID); err != nil {
		return 0, errs.Wrap(errs.Internal, fmt.Errorf("ensure session: %w", err))
	}

	res, err := tx.Exec(
		`INSERT INTO messages (session_id, role, content, tool_call_id, status, created_at, group_id, parsing_strategy, tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, role, content, nullable(toolCallID), status, nowISO(), nullable(groupID), nullable(parsingStrategy), tokens,
	)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, fmt.Errorf("insert message: %w", err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.Internal, err)
	}
	return id, nil
}

// UpdateMessageStatus sets the status column for one message row.
func (s *Store) UpdateMessageStatus(id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE messages SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("update message status: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "message %d not found", id)
	}
	return nil
}

// GetConversationHistory returns messages for session, honoring turn-group
// integrity: when windowSize > 0, the result is every message belonging to
// the most recent windowSize distinct non-null group ids, plus any message
// whose group_id is null, in chronological order. windowSize == 0 returns
// every message (subject to includeDropped).
func (s *Store) GetConversationHistory(sessionID string, includeDropped bool, windowSize int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var statusClause string
	if !includeDropped {
		statusClause = "AND status != 'dropped'"
	}

	var rows *sql.Rows
	var err error
	if windowSize <= 0 {
		query := fmt.Sprintf(
			`SELECT id, session_id, role, content, tool_call_id, status, created_at, group_id, parsing_strategy, tokens
			 FROM messages WHERE session_id = ? %s ORDER BY created_at ASC, id ASC`, statusClause)
		rows, err = s.db.Query(query, sessionID)
	} else {
		query := fmt.Sprintf(
			`SELECT id, session_id, role, content, tool_call_id, status, created_at, group_id, parsing_strategy, tokens
			 FROM messages
			 WHERE session_id = ? %s
			   AND (group_id IS NULL OR group_id IN (
			       SELECT DISTINCT group_id FROM messages
			       WHERE session_id = ? AND group_id IS NOT NULL
			       ORDER BY created_at DESC, id DESC LIMIT ?
			   ))
			 ORDER BY created_at ASC, id ASC`, statusClause)
		rows, err = s.db.Query(query, sessionID, sessionID, windowSize)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("query conversation history: %w", err))
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetMessagesByGroups returns, in chronological order, every message whose
// group_id is one of groupIDs.
func (s *Store) GetMessagesByGroups(groupIDs []string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(groupIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(groupIDs))
	args := make([]interface{}, len(groupIDs))
	for i, g := range groupIDs {
		placeholders[i] = "?"
		args[i] = g
	}

	query := fmt.Sprintf(
		`SELECT id, session_id, role, content, tool_call_id, status, created_at, group_id, parsing_strategy, tokens
		 FROM messages WHERE group_id IN (%s) ORDER BY created_at ASC, id ASC`,
		strings.Join(placeholders, ","))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("query messages by groups: %w", err))
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetLastGroupID returns the most recently inserted non-null group id for
// the session, or "" if none exists.
func (s *Store) GetLastGroupID(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var groupID sql.NullString
	err := s.db.QueryRow(
		`SELECT group_id FROM messages WHERE session_id = ? AND group_id IS NOT NULL
		 ORDER BY created_at DESC, id DESC LIMIT 1`, sessionID,
	).Scan(&groupID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("query last group id: %w", err))
	}
	return groupID.String, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		var toolCallID, groupID, parsingStrategy sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &toolCallID, &m.Status, &m.CreatedAt, &groupID, &parsingStrategy, &m.Tokens); err != nil {
			return nil, errs.Wrap(errs.Internal, fmt.Errorf("scan message: %w", err))
		}
		m.ToolCallID = toolCallID.String
		m.GroupID = groupID.String
		m.ParsingStrategy = parsingStrategy.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, err)
	}
	return out, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nowISO() string {
	return time.Now().UTC().Format(timeLayout)
}
