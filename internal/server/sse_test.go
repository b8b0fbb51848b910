package server

import (
	"net/http/httptest"
	"testing"
)

func TestWriteSSEHeaders(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeSSEHeaders(rec)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", cc, "no-cache")
	}
	if c := rec.Header().Get("Connection"); c != "keep-alive" {
		t.Errorf("Connection = %q, want keep-alive", c)
	}
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestWriteSSEData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"single line", "Halo dunia", "data: Halo dunia\n\n"},
		{"multi line", "baris satu\nbaris dua", "data: baris satu\ndata: baris dua\n\n"},
		{"crlf", "a\r\nb\rc", "data: a\ndata: b\ndata: c\n\n"},
		{"trailing newline", "akhir\n", "data: akhir\ndata: \n\n"},
		{"json payload", `{"id":"1"}`, "data: {\"id\":\"1\"}\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			if err := writeSSEData(rec, tt.text); err != nil {
				t.Fatal(err)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteSSEDone(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeSSEDone(rec)

	want := "data: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestWriteSSEError(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeSSEError(rec, "upstream stream error")

	want := "event: error\ndata: {\"error\":{\"message\":\"upstream stream error\",\"type\":\"stream_error\"}}\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}
