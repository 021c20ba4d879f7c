package strategy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hsaliak/goclaw-core/internal/errs"
	"github.com/hsaliak/goclaw-core/internal/store"
	"github.com/hsaliak/goclaw-core/internal/transport"
)

// GenerativeContentWrapped is the cloud-IDE variant of GenerativeContent:
// identical assembly, but the payload is wrapped as
// {model, project, user_prompt_id, request} and responses may arrive
// wrapped under a top-level "response" field. Grounded on
// original_source/orchestrator_gemini.cpp's GeminiGcaOrchestrator.
type GenerativeContentWrapped struct {
	*GenerativeContent
	poster transport.HttpPoster
	tokens transport.TokenProvider
}

// NewGenerativeContentWrapped constructs the cloud-IDE Gemini strategy.
func NewGenerativeContentWrapped(db *store.Store, getter transport.HttpGetter, poster transport.HttpPoster, cfg Config, tokens transport.TokenProvider) *GenerativeContentWrapped {
	inner := &GenerativeContent{db: db, getter: getter, cfg: cfg, name: "gemini_gca"}
	return &GenerativeContentWrapped{GenerativeContent: inner, poster: poster, tokens: tokens}
}

// nowUnixNanosString lets tests supply a deterministic clock by overriding
// this package variable; production code uses time.Now().
var nowUnixNanosString = func() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

func (g *GenerativeContentWrapped) AssemblePayload(sessionID, systemInstruction string, history []store.Message) (json.RawMessage, error) {
	inner, err := g.GenerativeContent.AssemblePayload(sessionID, systemInstruction, history)
	if err != nil {
		return nil, err
	}

	var innerMap map[string]interface{}
	if err := json.Unmarshal(inner, &innerMap); err != nil {
		return nil, errs.Wrap(errs.Internal, fmt.Errorf("unmarshal inner request: %w", err))
	}
	innerMap["session_id"] = sessionID

	wrapped := map[string]interface{}{
		"model":          g.cfg.Model,
		"project":        g.cfg.ProjectID,
		"user_prompt_id": nowUnixNanosString(),
		"request":        innerMap,
	}
	return json.Marshal(wrapped)
}

func (g *GenerativeContentWrapped) ProcessResponse(sessionID string, responseJSON []byte, groupID string) (int, error) {
	return g.GenerativeContent.processResponse(sessionID, responseJSON, groupID, true)
}

func (g *GenerativeContentWrapped) GetModels(apiKey string) ([]ModelInfo, error) {
	return nil, errs.New(errs.Unimplemented, "model listing not implemented for cloud-IDE Gemini logins")
}

func (g *GenerativeContentWrapped) GetQuota(token string) (json.RawMessage, error) {
	if g.cfg.ProjectID == "" {
		return nil, errs.New(errs.FailedPrecondition, "project ID is not set")
	}

	body, err := json.Marshal(map[string]string{"project": g.cfg.ProjectID})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err)
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	}
	resp, err := g.poster.Post(g.cfg.BaseURL+":retrieveUserQuota", body, headers)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp), nil
}
