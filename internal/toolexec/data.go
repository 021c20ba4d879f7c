package toolexec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
)

// queryDB runs a caller-supplied SQL statement against the store. SELECTs
// return a JSON array of rows; anything else returns the affected row
// count. Grounded on original_source/core/tool_executor.cpp's QueryDb and
// internal/store/query.go's Execute/Query split.
func (e *Executor) queryDB(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	sqlText, err := requireString(args, "sql")
	if err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(strings.ToUpper(sqlText))
	if strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH") || strings.HasPrefix(trimmed, "PRAGMA") {
		rows, err := e.db.Query(sqlText)
		if err != nil {
			return "", err
		}
		return rows, nil
	}

	n, err := e.db.Execute(sqlText)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d row(s) affected", n), nil
}

// describeDB returns the store's table schema as a JSON array of
// {name, sql} rows. Grounded on internal/store/query.go's DescribeSchema.
func (e *Executor) describeDB(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	if _, err := decodeArgs(argsJSON); err != nil {
		return "", err
	}
	return e.db.DescribeSchema()
}

// queryJSON evaluates a jq-style filter against an inline JSON document,
// adapted from the teacher's internal/tools/jq.go JQTool (file/exec input
// sources dropped: this tool only operates on the data argument).
func (e *Executor) queryJSON(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	data, err := requireString(args, "data")
	if err != nil {
		return "", err
	}
	queryText, err := requireString(args, "query")
	if err != nil {
		return "", err
	}

	var input interface{}
	if err := json.Unmarshal([]byte(data), &input); err != nil {
		return "", errs.Newf(errs.InvalidArgument, "data is not valid JSON: %v", err)
	}

	parsed, err := gojq.Parse(queryText)
	if err != nil {
		return "", errs.Newf(errs.InvalidArgument, "invalid jq query: %v", err)
	}

	iter := parsed.Run(input)
	var results []string
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return "", errs.Wrap(errs.Internal, fmt.Errorf("jq evaluation failed: %w", err))
		}
		out, err := json.Marshal(v)
		if err != nil {
			return "", errs.Wrap(errs.Internal, err)
		}
		results = append(results, string(out))
	}

	if len(results) == 0 {
		return "(no results)", nil
	}
	return strings.Join(results, "\n"), nil
}
