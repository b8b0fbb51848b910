// Package openai implements kspai.Remote over an OpenAI-compatible
// chat-completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/remote"
	"github.com/kisahsukses/kspai/internal/remote/sseutil"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	remoteName     = "openai"
	maxBodySize    = 4 << 20
)

var _ kspai.Remote = (*Client)(nil)

// Client is an OpenAI chat-completions adapter. Auth is handled by the
// transport chain of the provided *http.Client.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// New creates a Client. Empty baseURL and model select the OpenAI defaults.
func New(baseURL, model string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    client,
	}
}

// Name returns the remote identifier.
func (c *Client) Name() string { return remoteName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	User        string        `json:"user,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

func (c *Client) buildRequest(req *kspai.AskRequest, stream bool) *chatRequest {
	msgs := make([]chatMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Text})
	}
	msgs = append(msgs, chatMessage{Role: string(kspai.RoleUser), Content: req.Prompt})
	return &chatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.TemperatureOrDefault(),
		User:        req.SessionID,
		Stream:      stream,
	}
}

func (c *Client) do(ctx context.Context, body *chatRequest) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if body.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: do request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, remote.ParseAPIError(remoteName, resp)
	}
	return resp, nil
}

// Complete sends a non-streaming chat completion and extracts the answer.
func (c *Client) Complete(ctx context.Context, req *kspai.AskRequest) (string, error) {
	resp, err := c.do(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	text, err := remote.ExtractText(body)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return text, nil
}

// Stream opens a streaming chat completion. Content deltas are emitted as
// fragments; the channel is closed after [DONE] or an error fragment.
func (c *Client) Stream(ctx context.Context, req *kspai.AskRequest) (<-chan kspai.Fragment, error) {
	resp, err := c.do(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan kspai.Fragment, 8)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		send := func(f kspai.Fragment) bool {
			select {
			case ch <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var streamErr error
		err := sseutil.ReadEvents(ctx, resp.Body, func(data string) bool {
			if e := gjson.Get(data, "error.message"); e.Exists() {
				streamErr = fmt.Errorf("openai: stream error: %s", e.String())
				return false
			}
			delta := gjson.Get(data, "choices.0.delta.content").String()
			if delta == "" {
				return true
			}
			return send(kspai.Fragment{Text: delta})
		})
		if streamErr == nil && err != nil {
			streamErr = fmt.Errorf("openai: read stream: %w", err)
		}
		if streamErr != nil {
			send(kspai.Fragment{Err: streamErr})
		}
	}()
	return ch, nil
}
