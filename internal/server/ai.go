package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/app"
)

// askBody is the JSON body of the ask endpoints.
type askBody struct {
	Prompt      string   `json:"prompt"`
	Text        string   `json:"text"` // helper endpoints
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	SessionID   string   `json:"sessionId"`
	Prefix      string   `json:"prefix"`
	Force       bool     `json:"force"`
}

type answerResponse struct {
	Text      string       `json:"text"`
	Source    kspai.Source `json:"source"`
	SessionID string       `json:"sessionId"`
	Local     bool         `json:"local,omitempty"`
}

func newAnswerResponse(a *kspai.Answer) answerResponse {
	return answerResponse{Text: a.Text, Source: a.Source, SessionID: a.SessionID, Local: a.Local()}
}

// decodeBody reads the request body into an askBody. On failure it writes
// a 400 and returns false.
func (s *server) decodeBody(w http.ResponseWriter, r *http.Request) (*askBody, bool) {
	var body askBody
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "invalid request body: "+err.Error()))
		return nil, false
	}
	if t := body.Temperature; t != nil && (*t < 0 || *t > 1) {
		writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "temperature must be between 0 and 1"))
		return nil, false
	}
	if body.MaxTokens < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "max_tokens must not be negative"))
		return nil, false
	}
	return &body, true
}

func (b *askBody) request() *kspai.AskRequest {
	return &kspai.AskRequest{
		Prompt:       b.Prompt,
		SessionID:    b.SessionID,
		MaxTokens:    b.MaxTokens,
		Temperature:  b.Temperature,
		ForceRefresh: b.Force,
		CachePrefix:  b.Prefix,
	}
}

// decodeAsk decodes and validates an ask body.
func (s *server) decodeAsk(w http.ResponseWriter, r *http.Request) (*kspai.AskRequest, bool) {
	body, ok := s.decodeBody(w, r)
	if !ok {
		return nil, false
	}
	// A blank prompt is a prompt; the rule engine answers it.
	if body.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "prompt required"))
		return nil, false
	}
	return body.request(), true
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	ans, err := s.deps.Resolver.Ask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnswerResponse(ans))
}

// handleAskStream delivers the answer as SSE. Headers are sent with the
// first fragment, so failures before any text still get a JSON error.
func (s *server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.New("streaming unsupported by response writer"))
		return
	}

	started := false
	start := func() {
		if !started {
			writeSSEHeaders(w)
			started = true
		}
	}

	ans, err := s.deps.Streamer.StreamAsk(r.Context(), req, func(text string) error {
		start()
		if err := writeSSEData(w, text); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing left to tell it.
			return
		}
		if !started {
			writeError(w, err)
			return
		}
		delivered := 0
		if ans != nil {
			delivered = len(ans.Text)
		}
		slog.LogAttrs(r.Context(), slog.LevelWarn, "stream aborted",
			slog.Int("delivered", delivered),
			slog.String("error", err.Error()),
			slog.String("request_id", kspai.RequestIDFromContext(r.Context())),
		)
		writeSSEError(w, err.Error())
		writeSSEDone(w)
		flusher.Flush()
		return
	}

	start()
	writeSSEDone(w)
	flusher.Flush()
}

// handleHelper serves the task helper endpoints, which take {text} instead
// of a raw prompt and wrap it in a fixed instruction.
func (s *server) handleHelper(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.decodeBody(w, r)
		if !ok {
			return
		}
		if strings.TrimSpace(body.Text) == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "text required"))
			return
		}

		opts := *body.request()
		var (
			ans *kspai.Answer
			err error
		)
		switch kind {
		case app.PrefixSummarize:
			ans, err = s.deps.Resolver.Summarize(r.Context(), body.Text, opts)
		case app.PrefixAnalyze:
			ans, err = s.deps.Resolver.AnalyzeCode(r.Context(), body.Text, opts)
		default:
			ans, err = s.deps.Resolver.SuggestMotivation(r.Context(), body.Text, opts)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newAnswerResponse(ans))
	}
}
