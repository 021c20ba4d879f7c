package toolexec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
	"github.com/hsaliak/goclaw-core/internal/sandbox"
)

// readFile reads a file, optionally restricted to a 1-indexed inclusive
// line range, optionally prefixing each line with its line number.
// Grounded on original_source/core/tool_executor.cpp's ReadFile.
func (e *Executor) readFile(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return "", err
	}
	startLine, err := optionalIntPtr(args, "start_line")
	if err != nil {
		return "", err
	}
	endLine, err := optionalIntPtr(args, "end_line")
	if err != nil {
		return "", err
	}
	addLineNumbers, err := optionalBool(args, "add_line_numbers", true)
	if err != nil {
		return "", err
	}

	content, err := sandbox.ReadFile(path, e.workspaceRoot, e.workspaceRoot)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, err)
	}

	lines := strings.Split(string(content), "\n")
	total := len(lines)

	start := 1
	if startLine != nil {
		start = *startLine
	}
	end := total
	if endLine != nil {
		end = *endLine
	}
	if start < 1 {
		start = 1
	}
	if end > total {
		end = total
	}
	if start > end {
		return "", errs.Newf(errs.InvalidArgument, "start_line %d exceeds end_line %d for a %d-line file", start, end, total)
	}

	selected := lines[start-1 : end]
	var body strings.Builder
	if addLineNumbers {
		for i, l := range selected {
			body.WriteString(strconv.Itoa(start + i))
			body.WriteString(": ")
			body.WriteString(l)
			body.WriteString("\n")
		}
	} else {
		body.WriteString(strings.Join(selected, "\n"))
		body.WriteString("\n")
	}

	if end < total {
		body.WriteString(fmt.Sprintf("\n... [Truncated. Use 'read_file' with start_line=%d to see more] ...", end+1))
	}

	header := fmt.Sprintf("### FILE: %s | TOTAL_LINES: %d | RANGE: %d-%d\n", path, total, start, end)
	return header + body.String(), nil
}

// writeFile overwrites a file's full content via the sandbox's atomic
// write path, blocked against write-protected directories and denied
// files. Grounded on original_source/core/tool_executor.cpp's WriteFile.
func (e *Executor) writeFile(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return "", err
	}
	content, err := requireString(args, "content")
	if err != nil {
		return "", err
	}

	if err := sandbox.WriteFileValidated(path, e.workspaceRoot, e.workspaceRoot, []byte(content), 0644); err != nil {
		return "", errs.Wrap(errs.PermissionDenied, err)
	}

	previewLines := strings.Split(content, "\n")
	truncated := len(previewLines) > 3
	if truncated {
		previewLines = previewLines[:3]
	}
	preview := strings.Join(previewLines, "\n")
	if truncated {
		preview += "\n..."
	}
	return fmt.Sprintf("Wrote %d bytes to %s\n%s", len(content), path, preview), nil
}

// patchEdit is one find/replace step within an apply_patch call.
type patchEdit struct {
	Find    string
	Replace string
}

// applyPatch applies a sequence of find/replace edits to a file's current
// content, in order, each edit operating on the result of the previous
// one. A find text that doesn't appear, or appears more than once
// (ambiguous), fails the whole patch before anything is written.
// Grounded on original_source/core/tool_executor.cpp's ApplyPatch.
func (e *Executor) applyPatch(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return "", err
	}
	rawPatches, err := requireObjectArray(args, "patches")
	if err != nil {
		return "", err
	}
	if len(rawPatches) == 0 {
		return "", errs.New(errs.InvalidArgument, "patches must not be empty")
	}

	patches := make([]patchEdit, len(rawPatches))
	for i, p := range rawPatches {
		find, err := requireString(p, "find")
		if err != nil {
			return "", err
		}
		if find == "" {
			return "", errs.Newf(errs.InvalidArgument, "patch %d: find must not be empty", i)
		}
		replace, err := requireString(p, "replace")
		if err != nil {
			return "", err
		}
		patches[i] = patchEdit{Find: find, Replace: replace}
	}

	content, err := sandbox.ReadFile(path, e.workspaceRoot, e.workspaceRoot)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, err)
	}

	current := string(content)
	for i, p := range patches {
		count := strings.Count(current, p.Find)
		if count == 0 {
			return "", errs.Newf(errs.NotFound, "patch %d: find text not found in %s", i, path)
		}
		if count > 1 {
			return "", errs.Newf(errs.FailedPrecondition, "patch %d: find text occurs %d times in %s, must be unique", i, count, path)
		}
		current = strings.Replace(current, p.Find, p.Replace, 1)
	}

	if err := sandbox.WriteFileValidated(path, e.workspaceRoot, e.workspaceRoot, []byte(current), 0644); err != nil {
		return "", errs.Wrap(errs.PermissionDenied, err)
	}
	return fmt.Sprintf("Applied %d patch(es) to %s", len(patches), path), nil
}
