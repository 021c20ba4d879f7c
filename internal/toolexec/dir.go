package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
	"github.com/hsaliak/goclaw-core/internal/sandbox"
)

// listDirectory lists a directory's contents to a given depth, optionally
// restricted to files git considers tracked. Grounded on
// original_source/core/tool_executor.cpp's ListDirectory.
func (e *Executor) listDirectory(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	path, err := optionalString(args, "path", ".")
	if err != nil {
		return "", err
	}
	depth, err := optionalInt(args, "depth", 1)
	if err != nil {
		return "", err
	}
	gitOnly, err := optionalBool(args, "git_only", false)
	if err != nil {
		return "", err
	}
	if depth < 1 {
		depth = 1
	}

	resolved, err := sandbox.ValidatePath(path, e.workspaceRoot, e.workspaceRoot)
	if err != nil {
		return "", errs.Wrap(errs.PermissionDenied, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, err)
	}
	if !info.IsDir() {
		return "", errs.Newf(errs.InvalidArgument, "%s is not a directory", path)
	}

	var allowed map[string]bool
	if gitOnly {
		ctx, cancelFn := context.WithTimeout(context.Background(), searchTimeout)
		defer cancelFn()
		out, runErr := runCommand(ctx, e.workspaceRoot, "git", "ls-files", path)
		if runErr != nil {
			return "", errs.New(errs.FailedPrecondition, "not a git repository")
		}
		allowed = make(map[string]bool)
		for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
			if line != "" {
				allowed[line] = true
			}
		}
	}

	var entries []string
	var walk func(dir, relPrefix string, remaining int) error
	walk = func(dir, relPrefix string, remaining int) error {
		items, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })
		for _, it := range items {
			rel := filepath.Join(relPrefix, it.Name())
			if it.Name() == ".git" {
				continue
			}
			if it.IsDir() {
				if !gitOnly {
					entries = append(entries, rel+"/")
				}
				if remaining > 1 {
					if err := walk(filepath.Join(dir, it.Name()), rel, remaining-1); err != nil {
						return err
					}
				}
				continue
			}
			if gitOnly && !allowed[filepath.ToSlash(rel)] {
				continue
			}
			entries = append(entries, rel)
		}
		return nil
	}

	if err := walk(resolved, "", depth); err != nil {
		return "", errs.Wrap(errs.Internal, fmt.Errorf("list directory: %w", err))
	}

	if len(entries) == 0 {
		return "(empty)", nil
	}
	return strings.Join(entries, "\n"), nil
}
