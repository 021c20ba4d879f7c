package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
)

const (
	grepMaxLines        = 50
	gitGrepMaxLines     = 500
	grepSummaryMinLines = 20
	searchTimeout       = 30 * time.Second
)

// formatSearchOutput caps output at max lines, and whenever the match count
// clears grepSummaryMinLines prepends a one-line summary so the agent sees
// the total before the (possibly truncated) body. Grounded on
// original_source/core/tool_executor.cpp's Grep/GitGrep output shaping.
func formatSearchOutput(raw string, max int) string {
	raw = strings.TrimRight(raw, "\n")
	if raw == "" {
		return "(no matches)"
	}
	lines := strings.Split(raw, "\n")
	total := len(lines)

	var body string
	truncated := false
	if total > max {
		lines = lines[:max]
		truncated = true
	}
	body = strings.Join(lines, "\n")

	var out strings.Builder
	if total > grepSummaryMinLines {
		fmt.Fprintf(&out, "Found %d matching line(s).\n", total)
	}
	out.WriteString(body)
	if truncated {
		fmt.Fprintf(&out, "\n... (truncated, showing %d of %d lines)", max, total)
	}
	return out.String()
}

// grep_tool: recursive literal pattern search. Inside a VCS working tree it
// delegates to git_grep_tool; otherwise it falls back to a plain recursive
// grep of the working directory.
func (e *Executor) grepTool(argsJSON json.RawMessage, cancellation *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	pattern, err := requireString(args, "pattern")
	if err != nil {
		return "", err
	}
	path, err := optionalString(args, "path", ".")
	if err != nil {
		return "", err
	}
	contextLines, err := optionalInt(args, "context", 0)
	if err != nil {
		return "", err
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), searchTimeout)
	defer cancelFn()

	if _, err := runCommand(ctx, e.workspaceRoot, "git", "rev-parse", "--is-inside-work-tree"); err == nil {
		delegated := map[string]interface{}{
			"pattern": pattern,
			"context": contextLines,
		}
		if path != "." && path != "" {
			delegated["pathspecs"] = []string{path}
		}
		delegatedJSON, err := json.Marshal(delegated)
		if err != nil {
			return "", errs.Wrap(errs.Internal, err)
		}
		return e.gitGrepTool(delegatedJSON, cancellation)
	}

	cmdArgs := []string{"-r", "-n", "-F"}
	if contextLines > 0 {
		cmdArgs = append(cmdArgs, "-C", strconv.Itoa(contextLines))
	}
	cmdArgs = append(cmdArgs, "-e", pattern, path)

	out, runErr := runCommand(ctx, e.workspaceRoot, "grep", cmdArgs...)
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return formatSearchOutput("", grepMaxLines), nil
		}
		return "", errs.Wrap(errs.Internal, fmt.Errorf("grep failed: %w: %s", runErr, out))
	}
	return formatSearchOutput(out, grepMaxLines), nil
}

// git_grep_tool: rich git-grep search with boolean pattern combinators,
// case/word matching, branch/tree selection, and pathspec filtering.
func (e *Executor) gitGrepTool(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	pattern, err := requireString(args, "pattern")
	if err != nil {
		return "", err
	}
	caseInsensitive, err := optionalBool(args, "case_insensitive", false)
	if err != nil {
		return "", err
	}
	wordRegexp, err := optionalBool(args, "word_regexp", false)
	if err != nil {
		return "", err
	}
	contextLines, err := optionalInt(args, "context", 0)
	if err != nil {
		return "", err
	}
	pcre, err := optionalBool(args, "pcre", false)
	if err != nil {
		return "", err
	}
	branch, err := optionalString(args, "branch", "")
	if err != nil {
		return "", err
	}
	cached, err := optionalBool(args, "cached", false)
	if err != nil {
		return "", err
	}
	andPatterns, err := optionalStringArray(args, "and_patterns")
	if err != nil {
		return "", err
	}
	orPatterns, err := optionalStringArray(args, "or_patterns")
	if err != nil {
		return "", err
	}
	notPatterns, err := optionalStringArray(args, "not_patterns")
	if err != nil {
		return "", err
	}
	pathspecs, err := optionalStringArray(args, "pathspecs")
	if err != nil {
		return "", err
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), searchTimeout)
	defer cancelFn()

	if _, err := runCommand(ctx, e.workspaceRoot, "git", "rev-parse", "--is-inside-work-tree"); err != nil {
		return "", errs.New(errs.FailedPrecondition, "not a git repository")
	}

	cmdArgs := []string{"grep", "-n"}
	if caseInsensitive {
		cmdArgs = append(cmdArgs, "-i")
	}
	if wordRegexp {
		cmdArgs = append(cmdArgs, "-w")
	}
	if pcre {
		cmdArgs = append(cmdArgs, "-P")
	} else {
		cmdArgs = append(cmdArgs, "-E")
	}
	if contextLines > 0 {
		cmdArgs = append(cmdArgs, "-C", strconv.Itoa(contextLines))
	}
	if cached {
		cmdArgs = append(cmdArgs, "--cached")
	}

	cmdArgs = append(cmdArgs, "-e", pattern)
	for _, p := range andPatterns {
		cmdArgs = append(cmdArgs, "--and", "-e", p)
	}
	for _, p := range orPatterns {
		cmdArgs = append(cmdArgs, "--or", "-e", p)
	}
	for _, p := range notPatterns {
		cmdArgs = append(cmdArgs, "--not", "-e", p)
	}
	if branch != "" {
		cmdArgs = append(cmdArgs, branch)
	}
	if len(pathspecs) > 0 {
		cmdArgs = append(cmdArgs, "--")
		cmdArgs = append(cmdArgs, pathspecs...)
	}

	out, runErr := runCommand(ctx, e.workspaceRoot, "git", cmdArgs...)
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return formatSearchOutput("", gitGrepMaxLines), nil
		}
		return "", errs.Wrap(errs.Internal, fmt.Errorf("git grep failed: %w: %s", runErr, out))
	}
	return formatSearchOutput(out, gitGrepMaxLines), nil
}
