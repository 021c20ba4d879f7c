package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
)

// baseBranchConfigKey is where the resolved base branch for the current
// staging series is remembered, so downstream series tools don't need it
// re-supplied on every call. Grounded on the base-branch persistence
// behavior captured in original_source/core/mail_model_test.cpp (there
// stored under "slop.basebranch"; renamed to this core's own namespace).
const baseBranchConfigKey = "goclaw.basebranch"

func (e *Executor) git(ctx context.Context, arg ...string) (string, error) {
	return runCommand(ctx, e.workspaceRoot, "git", arg...)
}

// resolveBaseBranch returns explicit if non-empty, else the persisted
// goclaw.basebranch config value, else failed_precondition.
func (e *Executor) resolveBaseBranch(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	out, err := e.git(ctx, "config", baseBranchConfigKey)
	if err != nil || strings.TrimSpace(out) == "" {
		return "", errs.New(errs.FailedPrecondition, "no base branch set; run git_branch_staging first or supply base_branch")
	}
	return strings.TrimSpace(out), nil
}

// seriesCommits returns the commit hashes and subjects strictly between
// base and HEAD, oldest first.
func (e *Executor) seriesCommits(ctx context.Context, base string) ([]string, []string, error) {
	out, err := e.git(ctx, "log", "--reverse", "--format=%H\x1f%s", base+"..HEAD")
	if err != nil {
		return nil, nil, errs.Wrap(errs.Internal, fmt.Errorf("list series commits: %w: %s", err, out))
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil, nil, nil
	}
	var hashes, subjects []string
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\x1f", 2)
		if len(parts) != 2 {
			continue
		}
		hashes = append(hashes, parts[0])
		subjects = append(subjects, parts[1])
	}
	return hashes, subjects, nil
}

// gitBranchStaging creates and checks out a staging branch from a base
// branch (defaulting to the current branch), persisting the base branch
// choice for the rest of the series tools.
func (e *Executor) gitBranchStaging(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return "", err
	}
	baseBranch, err := optionalString(args, "base_branch", "")
	if err != nil {
		return "", err
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), searchTimeout)
	defer cancelFn()

	if baseBranch == "" {
		out, gitErr := e.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
		if gitErr != nil {
			return "", errs.New(errs.FailedPrecondition, "not a git repository")
		}
		baseBranch = strings.TrimSpace(out)
	}

	if out, gitErr := e.git(ctx, "config", baseBranchConfigKey, baseBranch); gitErr != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("persist base branch: %w: %s", gitErr, out))
	}

	branch := "goclaw/staging/" + name
	out, gitErr := e.git(ctx, "checkout", "-b", branch, baseBranch)
	if gitErr != nil {
		return "", errs.Newf(errs.FailedPrecondition, "create staging branch %q from %q: %s", branch, baseBranch, out)
	}
	return fmt.Sprintf("Created and checked out %s from %s", branch, baseBranch), nil
}

// gitCommitPatch stages all working-tree changes and commits them with a
// message combining summary and rationale.
func (e *Executor) gitCommitPatch(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	summary, err := requireString(args, "summary")
	if err != nil {
		return "", err
	}
	rationale, err := requireString(args, "rationale")
	if err != nil {
		return "", err
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), searchTimeout)
	defer cancelFn()

	if out, gitErr := e.git(ctx, "add", "-A"); gitErr != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("stage changes: %w: %s", gitErr, out))
	}

	if _, gitErr := e.git(ctx, "diff", "--cached", "--quiet"); gitErr == nil {
		return "", errs.New(errs.FailedPrecondition, "no changes to commit")
	}

	message := summary + "\n\nRationale: " + rationale
	if out, gitErr := e.git(ctx, "commit", "-m", message); gitErr != nil {
		return "", errs.Newf(errs.FailedPrecondition, "commit failed: %s", out)
	}

	hash, gitErr := e.git(ctx, "rev-parse", "HEAD")
	if gitErr != nil {
		return "", errs.Wrap(errs.Internal, gitErr)
	}
	return fmt.Sprintf("Committed %s: %s", strings.TrimSpace(hash), summary), nil
}

// gitFormatPatchSeries lists every commit between base_branch and HEAD as
// a numbered patch series carrying subject, rationale, and diff, per the
// "### Patch [i/N]: <summary> ###" format captured in
// original_source/core/mail_model_test.cpp.
func (e *Executor) gitFormatPatchSeries(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	baseBranchArg, err := optionalString(args, "base_branch", "")
	if err != nil {
		return "", err
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), searchTimeout)
	defer cancelFn()

	base, err := e.resolveBaseBranch(ctx, baseBranchArg)
	if err != nil {
		return "", err
	}

	hashes, subjects, err := e.seriesCommits(ctx, base)
	if err != nil {
		return "", err
	}
	if len(hashes) == 0 {
		return "(no commits ahead of " + base + ")", nil
	}

	var out strings.Builder
	for i, hash := range hashes {
		body, gitErr := e.git(ctx, "show", "--no-color", "-s", "--format=%b", hash)
		if gitErr != nil {
			body = ""
		}
		diff, gitErr := e.git(ctx, "show", "--no-color", "--format=", hash)
		if gitErr != nil {
			diff = ""
		}
		fmt.Fprintf(&out, "### Patch [%d/%d]: %s ###\n%s\n%s\n", i+1, len(hashes), subjects[i], strings.TrimSpace(body), diff)
	}
	return out.String(), nil
}

// verifyStepResult is one commit's outcome in a git_verify_series report.
type verifyStepResult struct {
	Commit  string `json:"commit"`
	Subject string `json:"subject"`
	Status  string `json:"status"`
	Output  string `json:"output,omitempty"`
}

// gitVerifySeries checks out each commit between base_branch and HEAD in
// turn and runs command against it, reporting pass/fail per commit and
// restoring the original branch afterward.
func (e *Executor) gitVerifySeries(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	command, err := requireString(args, "command")
	if err != nil {
		return "", err
	}
	baseBranchArg, err := optionalString(args, "base_branch", "")
	if err != nil {
		return "", err
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), searchTimeout)
	defer cancelFn()

	base, err := e.resolveBaseBranch(ctx, baseBranchArg)
	if err != nil {
		return "", err
	}
	hashes, subjects, err := e.seriesCommits(ctx, base)
	if err != nil {
		return "", err
	}
	if len(hashes) == 0 {
		return "", errs.New(errs.FailedPrecondition, "no commits ahead of base branch to verify")
	}

	originalBranch, gitErr := e.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if gitErr != nil {
		return "", errs.Wrap(errs.Internal, gitErr)
	}
	originalBranch = strings.TrimSpace(originalBranch)
	defer e.git(ctx, "checkout", originalBranch)

	allPassed := true
	report := make([]verifyStepResult, 0, len(hashes))
	for i, hash := range hashes {
		if out, gitErr := e.git(ctx, "checkout", hash); gitErr != nil {
			report = append(report, verifyStepResult{Commit: hash, Subject: subjects[i], Status: "failed", Output: out})
			allPassed = false
			continue
		}
		out, runErr := runCommand(ctx, e.workspaceRoot, "bash", "-c", command)
		status := "passed"
		if runErr != nil {
			status = "failed"
			allPassed = false
		}
		report = append(report, verifyStepResult{Commit: hash, Subject: subjects[i], Status: status, Output: out})
	}

	blob, err := json.Marshal(map[string]interface{}{"all_passed": allPassed, "report": report})
	if err != nil {
		return "", errs.Wrap(errs.Internal, err)
	}
	return string(blob), nil
}

// gitRerollPatch replaces the diff of the commit at index (0-based, within
// the base_branch..HEAD series) with the current uncommitted working-tree
// changes, re-applying the remaining commits in the series on top and
// leaving the series the same length and order. Grounded on the reroll
// semantics captured in original_source/core/mail_model_test.cpp.
func (e *Executor) gitRerollPatch(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	index, err := requireInt(args, "index")
	if err != nil {
		return "", err
	}
	baseBranchArg, err := optionalString(args, "base_branch", "")
	if err != nil {
		return "", err
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), searchTimeout)
	defer cancelFn()

	base, err := e.resolveBaseBranch(ctx, baseBranchArg)
	if err != nil {
		return "", err
	}
	hashes, subjects, err := e.seriesCommits(ctx, base)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(hashes) {
		return "", errs.Newf(errs.InvalidArgument, "index %d out of range for a %d-commit series", index, len(hashes))
	}

	diff, gitErr := e.git(ctx, "diff")
	if gitErr != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("read working tree diff: %w", gitErr))
	}
	if strings.TrimSpace(diff) == "" {
		return "", errs.New(errs.FailedPrecondition, "no uncommitted changes to reroll into the patch")
	}

	originalBranch, gitErr := e.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if gitErr != nil {
		return "", errs.Wrap(errs.Internal, gitErr)
	}
	originalBranch = strings.TrimSpace(originalBranch)

	parent := base
	if index > 0 {
		parent = hashes[index-1]
	}

	tmpBranch := "goclaw/reroll-tmp-" + strconv.Itoa(index)
	e.git(ctx, "branch", "-D", tmpBranch)

	cleanup := func() {
		e.git(ctx, "checkout", originalBranch)
		e.git(ctx, "branch", "-D", tmpBranch)
	}

	if out, gitErr := e.git(ctx, "checkout", "-b", tmpBranch, parent); gitErr != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("create reroll branch: %w: %s", gitErr, out))
	}

	diffFile, gitErr := writeTempPatch(e.workspaceRoot, diff)
	if gitErr != nil {
		cleanup()
		return "", errs.Wrap(errs.Internal, gitErr)
	}
	defer os.Remove(diffFile)

	if out, gitErr := e.git(ctx, "apply", diffFile); gitErr != nil {
		cleanup()
		return "", errs.Newf(errs.FailedPrecondition, "patch does not apply cleanly onto commit %d's parent: %s", index, out)
	}
	if out, gitErr := e.git(ctx, "commit", "-am", subjects[index]); gitErr != nil {
		cleanup()
		return "", errs.Wrap(errs.Internal, fmt.Errorf("commit reroll: %w: %s", gitErr, out))
	}

	for i := index + 1; i < len(hashes); i++ {
		if out, gitErr := e.git(ctx, "cherry-pick", hashes[i]); gitErr != nil {
			e.git(ctx, "cherry-pick", "--abort")
			cleanup()
			return "", errs.Newf(errs.FailedPrecondition, "cherry-pick of commit %d conflicted during reroll: %s", i, out)
		}
	}

	if out, gitErr := e.git(ctx, "checkout", originalBranch); gitErr != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("return to %s: %w: %s", originalBranch, gitErr, out))
	}
	if out, gitErr := e.git(ctx, "reset", "--hard", tmpBranch); gitErr != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("fast-forward %s: %w: %s", originalBranch, gitErr, out))
	}
	e.git(ctx, "branch", "-D", tmpBranch)

	return fmt.Sprintf("Rerolled patch %d/%d on %s from working-tree changes", index+1, len(hashes), originalBranch), nil
}

// writeTempPatch writes diff to a temp file under dir for `git apply` to
// consume, using a name distinct from the *.tmp pattern
// sandbox.AtomicWriteFile reserves for its own rename dance.
func writeTempPatch(dir, diff string) (string, error) {
	f, err := os.CreateTemp(dir, ".goclaw-reroll-*.patch")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(diff); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
