package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/remote"
)

func TestComplete(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Halo juga!"}}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	req := (&kspai.AskRequest{
		Prompt:    "halo",
		SessionID: "s1",
		History:   []kspai.Message{{Role: kspai.RoleUser, Text: "sebelumnya"}, {Role: kspai.RoleAssistant, Text: "jawab"}},
	}).WithDefaults()

	text, err := c.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Halo juga!" {
		t.Errorf("text = %q", text)
	}
	if got.Model != defaultModel {
		t.Errorf("model = %q, want %q", got.Model, defaultModel)
	}
	if len(got.Messages) != 3 || got.Messages[2].Content != "halo" || got.Messages[1].Role != "assistant" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.MaxTokens != 400 || got.Temperature != 0.6 || got.User != "s1" || got.Stream {
		t.Errorf("request = %+v", got)
	}
}

func TestComplete_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "m", srv.Client()).Complete(context.Background(), &kspai.AskRequest{Prompt: "x"})
	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *remote.APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Remote != "openai" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestComplete_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>oops</html>")
	}))
	defer srv.Close()

	_, err := New(srv.URL, "m", srv.Client()).Complete(context.Background(), &kspai.AskRequest{Prompt: "x"})
	if !errors.Is(err, remote.ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{
			`{"choices":[{"delta":{"role":"assistant"}}]}`,
			`{"choices":[{"delta":{"content":"Ha"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`[DONE]`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", d)
		}
	}))
	defer srv.Close()

	ch, err := New(srv.URL, "m", srv.Client()).Stream(context.Background(), &kspai.AskRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var sb strings.Builder
	for f := range ch {
		if f.Err != nil {
			t.Fatalf("fragment error: %v", f.Err)
		}
		sb.WriteString(f.Text)
	}
	if sb.String() != "Halo" {
		t.Errorf("streamed = %q, want %q", sb.String(), "Halo")
	}
}

func TestStream_ErrorEvent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"overloaded\"}}\n\n")
	}))
	defer srv.Close()

	ch, err := New(srv.URL, "m", srv.Client()).Stream(context.Background(), &kspai.AskRequest{Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	var frags []kspai.Fragment
	for f := range ch {
		frags = append(frags, f)
	}
	if len(frags) != 2 || frags[0].Text != "a" || frags[1].Err == nil {
		t.Errorf("fragments = %+v", frags)
	}
}

func TestStream_OpenFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "m", srv.Client()).Stream(context.Background(), &kspai.AskRequest{Prompt: "x"}); err == nil {
		t.Error("expected error for 503")
	}
}
