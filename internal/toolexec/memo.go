package toolexec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
)

// saveMemo persists a tagged free-form note for later semantic retrieval.
// Grounded on original_source/core/tool_executor.cpp's SaveMemo and
// internal/store/memos.go's AddMemo.
func (e *Executor) saveMemo(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	content, err := requireString(args, "content")
	if err != nil {
		return "", err
	}
	tags, err := requireStringArray(args, "tags")
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", errs.New(errs.InvalidArgument, "tags must not be empty")
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}

	id, err := e.db.AddMemo(content, string(tagsJSON))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved memo #%d with tags [%s]", id, strings.Join(tags, ", ")), nil
}

// retrieveMemos returns every memo whose semantic tags overlap tags.
// Grounded on original_source/core/tool_executor.cpp's RetrieveMemos and
// internal/store/memos.go's GetMemosByTags.
func (e *Executor) retrieveMemos(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	tags, err := requireStringArray(args, "tags")
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", errs.New(errs.InvalidArgument, "tags must not be empty")
	}

	memos, err := e.db.GetMemosByTags(tags)
	if err != nil {
		return "", err
	}
	if len(memos) == 0 {
		return "(no matching memos)", nil
	}

	var out strings.Builder
	for _, m := range memos {
		var parsedTags []string
		if err := json.Unmarshal([]byte(m.SemanticTags), &parsedTags); err != nil {
			parsedTags = nil
		}
		fmt.Fprintf(&out, "#%d [%s] %s\n", m.ID, strings.Join(parsedTags, ", "), m.Content)
	}
	return strings.TrimRight(out.String(), "\n"), nil
}
