package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hsaliak/goclaw-core/internal/errs"
	. "github.com/hsaliak/goclaw-core/internal/logging"
)

// Store is the single shared mutable resource in the core. One process-wide
// mutex guards the underlying connection; every exported method takes it for
// its whole body, per spec §4.1/§5.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Init opens or creates the database at path, applies the schema, adds
// late-added columns idempotently, and registers the built-in tool and
// skill catalogues. Calling Init twice on the same path is permitted and
// reconciling (spec §8.2).
func Init(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, errs.Wrap(errs.Internal, fmt.Errorf("create database directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("open database: %w", err))
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		L_warn("store: failed to enable WAL mode", "error", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		L_warn("store: failed to set busy_timeout", "error", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.registerDefaultTools(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.registerDefaultSkills(); err != nil {
		db.Close()
		return nil, err
	}

	L_info("store: opened", "path", path)
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	role TEXT CHECK(role IN ('system', 'user', 'assistant', 'tool')),
	content TEXT,
	tool_call_id TEXT,
	status TEXT DEFAULT 'completed',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	group_id TEXT,
	parsing_strategy TEXT,
	tokens INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tools (
	name TEXT PRIMARY KEY,
	description TEXT,
	json_schema TEXT,
	is_enabled INTEGER DEFAULT 1,
	call_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS skills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE,
	description TEXT,
	system_prompt_patch TEXT,
	activation_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	context_size INTEGER DEFAULT 2,
	scratchpad TEXT,
	active_skills TEXT
);

CREATE TABLE IF NOT EXISTS usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	model TEXT,
	prompt_tokens INTEGER,
	completion_tokens INTEGER,
	total_tokens INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS session_state (
	session_id TEXT PRIMARY KEY,
	state_blob TEXT
);

CREATE TABLE IF NOT EXISTS llm_memos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	semantic_tags TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// lateColumns are additive ALTER TABLE statements applied idempotently by
// ignoring sqlite3's "duplicate column name" error, matching the teacher's
// migrateVN pattern adapted to the original's flat additive-column style.
var lateColumns = []string{
	"ALTER TABLE messages ADD COLUMN tokens INTEGER DEFAULT 0;",
	"ALTER TABLE skills ADD COLUMN activation_count INTEGER DEFAULT 0;",
	"ALTER TABLE sessions ADD COLUMN active_skills TEXT;",
	"ALTER TABLE tools ADD COLUMN call_count INTEGER DEFAULT 0;",
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return errs.Wrap(errs.Internal, fmt.Errorf("apply schema: %w", err))
	}

	for _, stmt := range lateColumns {
		if _, err := s.db.Exec(stmt); err != nil {
			if !strings.Contains(err.Error(), "duplicate column name") {
				return errs.Wrap(errs.Internal, fmt.Errorf("apply migration %q: %w", stmt, err))
			}
		}
	}

	return nil
}

// ensureSession inserts a session row if one does not already exist.
func (s *Store) ensureSession(tx dbTx, sessionID string) error {
	_, err := tx.Exec("INSERT OR IGNORE INTO sessions (id) VALUES (?)", sessionID)
	return err
}

// dbTx is satisfied by both *sql.DB and *sql.Tx so helpers can run inside or
// outside an explicit transaction.
type dbTx interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}
