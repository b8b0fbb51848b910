// Package proxyclient implements kspai.Remote against a kspai proxy
// boundary (POST /api/ai and /api/ai/stream).
package proxyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	kspai "github.com/kisahsukses/kspai/internal"
	"github.com/kisahsukses/kspai/internal/remote"
	"github.com/kisahsukses/kspai/internal/remote/sseutil"
)

const (
	remoteName  = "proxy"
	maxBodySize = 4 << 20
	rawChunk    = 4096
)

var _ kspai.Remote = (*Client)(nil)

// Client talks to a proxy boundary. apiKey, when set, is sent as X-Api-Key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a Client for the boundary at baseURL.
func New(baseURL, apiKey string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    client,
	}
}

// Name returns the remote identifier.
func (c *Client) Name() string { return remoteName }

type askBody struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	SessionID   string  `json:"sessionId"`
}

func (c *Client) post(ctx context.Context, path string, req *kspai.AskRequest) (*http.Response, error) {
	b, err := json.Marshal(askBody{
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.TemperatureOrDefault(),
		SessionID:   req.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("proxy: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("proxy: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("proxy: do request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, remote.ParseAPIError(remoteName, resp)
	}
	return resp, nil
}

// Complete posts to /api/ai and extracts the answer text.
func (c *Client) Complete(ctx context.Context, req *kspai.AskRequest) (string, error) {
	resp, err := c.post(ctx, "/api/ai", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("proxy: read response: %w", err)
	}
	text, err := remote.ExtractText(body)
	if err != nil {
		return "", fmt.Errorf("proxy: %w", err)
	}
	return text, nil
}

// Stream posts to /api/ai/stream. Event-stream responses are decoded into
// their data payloads; any other body is forwarded verbatim in raw chunks.
func (c *Client) Stream(ctx context.Context, req *kspai.AskRequest) (<-chan kspai.Fragment, error) {
	resp, err := c.post(ctx, "/api/ai/stream", req)
	if err != nil {
		return nil, err
	}

	ch := make(chan kspai.Fragment, 8)
	send := func(f kspai.Fragment) bool {
		select {
		case ch <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		var err error
		if isEventStream(resp.Header.Get("Content-Type")) {
			err = sseutil.ReadEvents(ctx, resp.Body, func(data string) bool {
				return send(kspai.Fragment{Text: data})
			})
		} else {
			err = readRaw(resp.Body, send)
		}
		if err != nil {
			send(kspai.Fragment{Err: fmt.Errorf("proxy: read stream: %w", err)})
		}
	}()
	return ch, nil
}

func isEventStream(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/event-stream"
}

func readRaw(r io.Reader, send func(kspai.Fragment) bool) error {
	buf := make([]byte, rawChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 && !send(kspai.Fragment{Text: string(buf[:n])}) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
