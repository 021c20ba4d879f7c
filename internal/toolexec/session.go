package toolexec

import (
	"encoding/json"
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
)

// manageScratchpad reads, overwrites, or appends to the bound session's
// scratchpad, a small durable workspace the agent uses to carry notes
// across turns. Grounded on original_source/core/tool_executor.cpp's
// ManageScratchpad and internal/store/session.go's UpdateScratchpad.
func (e *Executor) manageScratchpad(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	if err := e.requireSession(); err != nil {
		return "", err
	}
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	action, err := requireString(args, "action")
	if err != nil {
		return "", err
	}
	content, err := optionalString(args, "content", "")
	if err != nil {
		return "", err
	}

	switch action {
	case "read":
	case "update", "append":
		if content == "" {
			return "", errs.Newf(errs.InvalidArgument, "content is required for action %q", action)
		}
	default:
		return "", errs.Newf(errs.InvalidArgument, "unknown scratchpad action %q", action)
	}

	result, err := e.db.UpdateScratchpad(e.sessionID, action, content)
	if err != nil {
		return "", err
	}
	if result == "" {
		return "(scratchpad is empty)", nil
	}
	return result, nil
}

// useSkill activates or deactivates a named skill for the bound session,
// updating the session's active-skill set so buildSystemInstructions picks
// it up on the next turn. Grounded on original_source/core/tool_executor.cpp's
// UseSkill and internal/store/skills.go.
func (e *Executor) useSkill(argsJSON json.RawMessage, _ *cancel.Request) (string, error) {
	if err := e.requireSession(); err != nil {
		return "", err
	}
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return "", err
	}
	action, err := requireString(args, "action")
	if err != nil {
		return "", err
	}
	if action != "activate" && action != "deactivate" {
		return "", errs.Newf(errs.InvalidArgument, "unknown skill action %q", action)
	}

	if _, err := e.db.GetSkillByName(name); err != nil {
		return "", err
	}

	active, err := e.db.GetActiveSkills(e.sessionID)
	if err != nil {
		return "", err
	}

	var updated []string
	found := false
	for _, n := range active {
		if n == name {
			found = true
			if action == "deactivate" {
				continue
			}
		}
		updated = append(updated, n)
	}
	if action == "activate" && !found {
		updated = append(updated, name)
		if err := e.db.IncrementSkillActivationCount(name); err != nil {
			return "", err
		}
	}

	if err := e.db.SetActiveSkills(e.sessionID, updated); err != nil {
		return "", err
	}
	verb := "deactivated"
	if action == "activate" {
		verb = "activated"
	}
	return fmt.Sprintf("Skill %q %s", name, verb), nil
}
