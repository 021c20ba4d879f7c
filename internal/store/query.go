package store

import (
	"encoding/json"
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

// Execute runs a parameter-bound statement that does not return rows
// (INSERT/UPDATE/DELETE/DDL), returning the number of affected rows. Backs
// the query_db tool's write path.
func (s *Store) Execute(sqlText string, params ...interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(sqlText, params...)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, fmt.Errorf("execute %q: %w", sqlText, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err)
	}
	return n, nil
}

// Query runs a parameter-bound SELECT and returns the result as a JSON
// array of objects, one per row, keyed by column name. Backs the query_db
// tool's read path.
func (s *Store) Query(sqlText string, params ...interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(sqlText, params...)
	if err != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("query %q: %w", sqlText, err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", errs.Wrap(errs.Internal, fmt.Errorf("scan row: %w", err))
		}

		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			row[c] = normalizeSQLValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}

	blob, err := json.Marshal(out)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}
	return string(blob), nil
}

// DescribeSchema returns the store's schema via sqlite_master, backing the
// describe_db tool.
func (s *Store) DescribeSchema() (string, error) {
	return s.Query(`SELECT name, sql FROM sqlite_master WHERE type = 'table'`)
}

// normalizeSQLValue converts driver-returned values ([]byte for TEXT
// columns under the sqlite3 driver) into JSON-friendly types.
func normalizeSQLValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case nil:
		return nil
	default:
		return t
	}
}
