package kspai

import (
	"context"
	"testing"
	"time"
)

func TestAskRequestWithDefaults(t *testing.T) {
	t.Parallel()

	hot, cold := 1.7, -0.2
	tests := []struct {
		name     string
		req      AskRequest
		wantSess string
		wantMax  int
		wantTemp float64
		wantTTL  time.Duration
	}{
		{name: "zero value", req: AskRequest{Prompt: "x"}, wantSess: "default", wantMax: 400, wantTemp: 0.6, wantTTL: 5 * time.Minute},
		{name: "explicit values", req: AskRequest{SessionID: "s1", MaxTokens: 50, TTL: time.Second}, wantSess: "s1", wantMax: 50, wantTemp: 0.6, wantTTL: time.Second},
		{name: "temperature clamped high", req: AskRequest{Temperature: &hot}, wantSess: "default", wantMax: 400, wantTemp: 1, wantTTL: 5 * time.Minute},
		{name: "temperature clamped low", req: AskRequest{Temperature: &cold}, wantSess: "default", wantMax: 400, wantTemp: 0, wantTTL: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.req.WithDefaults()
			if got.SessionID != tt.wantSess {
				t.Errorf("SessionID = %q, want %q", got.SessionID, tt.wantSess)
			}
			if got.MaxTokens != tt.wantMax {
				t.Errorf("MaxTokens = %d, want %d", got.MaxTokens, tt.wantMax)
			}
			if got.TemperatureOrDefault() != tt.wantTemp {
				t.Errorf("Temperature = %v, want %v", got.TemperatureOrDefault(), tt.wantTemp)
			}
			if got.TTL != tt.wantTTL {
				t.Errorf("TTL = %v, want %v", got.TTL, tt.wantTTL)
			}
		})
	}

	t.Run("does not mutate receiver", func(t *testing.T) {
		t.Parallel()
		req := &AskRequest{Prompt: "x"}
		_ = req.WithDefaults()
		if req.SessionID != "" || req.Temperature != nil {
			t.Errorf("receiver mutated: %+v", req)
		}
	})
}

func TestContextMeta(t *testing.T) {
	t.Parallel()

	ctx := ContextWithRequestID(context.Background(), "req-1")
	id := &Identity{Subject: "anonymous", Method: "open"}
	ctx2 := ContextWithIdentity(ctx, id)

	if ctx2 != ctx {
		t.Error("identity should be stored by mutation when request meta exists")
	}
	if got := RequestIDFromContext(ctx2); got != "req-1" {
		t.Errorf("request id = %q, want %q", got, "req-1")
	}
	if got := IdentityFromContext(ctx2); got != id {
		t.Errorf("identity = %v, want %v", got, id)
	}

	bare := ContextWithIdentity(context.Background(), id)
	if IdentityFromContext(bare) != id {
		t.Error("identity lost on bare context")
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("empty context should have no request id")
	}
}
