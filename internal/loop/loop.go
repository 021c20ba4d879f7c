// Package loop implements C7: the single-user-turn Interaction Loop that
// drives one round trip (or several, across tool calls) between the Store,
// the Orchestrator, the Tool Dispatcher, and the provider endpoint.
// Grounded directly on spec.md §4.7; the teacher has no single equivalent
// file (its turn loop is split across internal/session and
// internal/gateway), so this package is new code written in the teacher's
// idiom: a small struct holding borrowed references, explicit error
// returns, and internal/logging calls at each step.
package loop

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/codec"
	"github.com/hsaliak/goclaw-core/internal/dispatcher"
	"github.com/hsaliak/goclaw-core/internal/errs"
	. "github.com/hsaliak/goclaw-core/internal/logging"
	"github.com/hsaliak/goclaw-core/internal/orchestrator"
	"github.com/hsaliak/goclaw-core/internal/store"
	"github.com/hsaliak/goclaw-core/internal/transport"
)

// UI is the collaborator the loop renders newly persisted messages to and
// polls for an interactive cancel signal while a tool batch is in flight.
// The terminal REPL in cmd/goclaw is the only implementation; a test
// double is trivial to write.
type UI interface {
	RenderMessage(msg store.Message)
	CancelRequested() bool
}

// Config carries the provider-endpoint details the loop needs to build a
// request per spec §6.2, mirroring the subset of orchestrator.Config that
// selects the same Strategy (the loop and the Orchestrator are configured
// from the same source, but the loop owns the transport call so it needs
// its own copy of the endpoint shape).
type Config struct {
	Provider        orchestrator.Provider
	Model           string
	BaseURL         string
	APIKey          string
	GcaMode         bool
	ThrottleSeconds int
}

// Loop drives the Interaction Loop over a fixed set of collaborators.
type Loop struct {
	db     *store.Store
	orch   *orchestrator.Orchestrator
	disp   *dispatcher.Dispatcher
	poster transport.HttpPoster
	tokens transport.TokenProvider
	ui     UI
	cfg    Config
}

// New builds a Loop. tokens may be nil when no TokenProvider is configured.
func New(db *store.Store, orch *orchestrator.Orchestrator, disp *dispatcher.Dispatcher, poster transport.HttpPoster, tokens transport.TokenProvider, ui UI, cfg Config) *Loop {
	return &Loop{db: db, orch: orch, disp: disp, poster: poster, tokens: tokens, ui: ui, cfg: cfg}
}

// requestTarget builds the provider URL and headers for the active
// Strategy, per spec §6.2.
func (l *Loop) requestTarget() (string, map[string]string, error) {
	switch {
	case l.cfg.Provider == orchestrator.ProviderGemini && l.cfg.GcaMode:
		if l.tokens == nil {
			return "", nil, errs.New(errs.FailedPrecondition, "cloud-IDE Gemini requires a TokenProvider")
		}
		token, err := l.tokens.GetValidToken()
		if err != nil {
			return "", nil, err
		}
		url := l.cfg.BaseURL + ":generateContent"
		return url, map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + token,
		}, nil

	case l.cfg.Provider == orchestrator.ProviderGemini:
		url := l.cfg.BaseURL + "/models/" + l.cfg.Model + ":generateContent?key=" + l.cfg.APIKey
		return url, map[string]string{"Content-Type": "application/json"}, nil

	default:
		url := l.cfg.BaseURL + "/chat/completions"
		return url, map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + l.cfg.APIKey,
		}, nil
	}
}

// nowGroupID allocates a monotonic group id. Overridable in tests.
var nowGroupID = func() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// RunTurn executes one user turn to completion: append the user message,
// then loop assemble/post/process/dispatch rounds until the model stops
// emitting tool calls or the turn ends for another reason (self-repair
// exhausted, auth failure, cancellation). Grounded on spec.md §4.7.
func (l *Loop) RunTurn(sessionID, userText string) error {
	groupID := nowGroupID()

	if _, err := l.db.AppendMessage(sessionID, "user", userText, "", "completed", groupID, l.orch.StrategyName(), 0); err != nil {
		return err
	}

	selfRepaired := false
	var lastRenderedID int64

	for {
		activeSkills, err := l.db.GetActiveSkills(sessionID)
		if err != nil {
			return err
		}

		payload, err := l.orch.AssemblePrompt(sessionID, activeSkills)
		if err != nil {
			return err
		}

		url, headers, err := l.requestTarget()
		if err != nil {
			return err
		}

		body, postErr := l.poster.Post(url, payload, headers)
		if postErr != nil {
			kind := errs.KindOf(postErr)

			if kind == errs.InvalidArgument && !selfRepaired {
				selfRepaired = true
				L_warn("loop: provider rejected request, attempting self-repair", "session", sessionID)
				if err := l.selfRepair(sessionID, groupID); err != nil {
					return err
				}
				continue
			}

			if (kind == errs.Unauthenticated || kind == errs.PermissionDenied) && l.tokens != nil && l.tokens.IsEnabled() {
				L_warn("loop: auth failure, requesting token refresh", "session", sessionID, "kind", kind)
				if _, refreshErr := l.tokens.GetValidToken(); refreshErr != nil {
					L_error("loop: token refresh failed", "error", refreshErr)
				}
				return postErr
			}

			return postErr
		}

		tokens, err := l.orch.ProcessResponse(sessionID, []byte(body), groupID)
		if err != nil {
			return err
		}
		L_debug("loop: processed provider response", "session", sessionID, "tokens", tokens)

		newMessages, err := l.messagesSince(groupID, &lastRenderedID)
		if err != nil {
			return err
		}
		for _, m := range newMessages {
			l.ui.RenderMessage(m)
		}

		ranTools := false
		for _, m := range newMessages {
			if m.Status != "tool_call" {
				continue
			}
			calls, err := l.orch.ParseToolCalls(m)
			if err != nil {
				L_warn("loop: failed to parse tool calls", "error", err)
				continue
			}
			if len(calls) == 0 {
				continue
			}
			ranTools = true
			if err := l.runToolBatch(sessionID, groupID, calls); err != nil {
				return err
			}
		}

		if !ranTools {
			return nil
		}

		if l.cfg.ThrottleSeconds > 0 {
			time.Sleep(time.Duration(l.cfg.ThrottleSeconds) * time.Second)
		}
	}
}

// messagesSince fetches the turn's messages tagged groupID with ID greater
// than *lastID, advancing *lastID to the highest ID seen.
func (l *Loop) messagesSince(groupID string, lastID *int64) ([]store.Message, error) {
	all, err := l.db.GetMessagesByGroups([]string{groupID})
	if err != nil {
		return nil, err
	}
	var fresh []store.Message
	for _, m := range all {
		if m.ID > *lastID {
			fresh = append(fresh, m)
			*lastID = m.ID
		}
	}
	return fresh, nil
}

// runToolBatch dispatches calls concurrently, polling the UI for a cancel
// signal while the batch is in flight, then persists one "tool" role
// message per result tagged with groupID and the active strategy name.
func (l *Loop) runToolBatch(sessionID, groupID string, calls []codec.ToolCall) error {
	cancellation := cancel.New()

	dispatchCalls := make([]dispatcher.Call, len(calls))
	for i, c := range calls {
		dispatchCalls[i] = dispatcher.Call{ID: c.ID, Name: c.Name, Args: c.Args}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if l.ui.CancelRequested() {
					cancellation.Cancel()
					return
				}
			}
		}
	}()

	results := l.disp.Dispatch(dispatchCalls, cancellation)
	close(done)

	for i, r := range results {
		call := calls[i]
		status := "completed"
		content := r.Output
		if r.Err != nil {
			status = "error"
			content = fmt.Sprintf("### TOOL_RESULT: %s\nError: %s: %s\n\n---", call.Name, errs.KindOf(r.Err), r.Err.Error())
		}
		compoundID := call.ID + "|" + call.Name
		if _, err := l.db.AppendMessage(sessionID, "tool", content, compoundID, status, groupID, l.orch.StrategyName(), 0); err != nil {
			return err
		}
	}
	return nil
}

// selfRepair drops the most recent tool or tool_call message within the
// session's last ten messages and appends a synthetic note tagged with
// the turn's existing groupID, per spec §4.7 step 2c. Attempted at most
// once per turn by the caller.
func (l *Loop) selfRepair(sessionID, groupID string) error {
	recent, err := l.db.GetConversationHistory(sessionID, true, 0)
	if err != nil {
		return err
	}
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Role == "tool" || m.Status == "tool_call" {
			if err := l.db.UpdateMessageStatus(m.ID, "dropped"); err != nil {
				return err
			}
			break
		}
	}

	_, err = l.db.AppendMessage(sessionID, "user", "History auto-fixed by dropping problematic tool calls.", "", "completed", groupID, l.orch.StrategyName(), 0)
	return err
}
