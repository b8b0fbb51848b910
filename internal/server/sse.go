package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Pre-allocated byte slices for SSE formatting.
var (
	sseDataPrefix = []byte("data: ")
	sseLineEnd    = []byte("\n")
	sseDone       = []byte("data: [DONE]\n\n")
	sseErrorEvent = []byte("event: error\n")
)

// Pre-allocated header value slices for SSE responses.
var (
	sseHeaders      = []string{"text/event-stream"}
	sseCacheControl = []string{"no-cache"}
	sseConnection   = []string{"keep-alive"}
	sseAccelBuf     = []string{"no"}
)

// writeSSEHeaders sets the response headers for an SSE stream.
func writeSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h["Content-Type"] = sseHeaders
	h["Cache-Control"] = sseCacheControl
	h["Connection"] = sseConnection
	h["X-Accel-Buffering"] = sseAccelBuf
	w.WriteHeader(http.StatusOK)
}

// sseLineBreaks normalizes every SSE line terminator to "\n".
var sseLineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// writeSSEData writes one event carrying text. Each line of text becomes its
// own data field so clients rejoin them with "\n".
func writeSSEData(w http.ResponseWriter, text string) error {
	for line := range strings.SplitSeq(sseLineBreaks.Replace(text), "\n") {
		if _, err := w.Write(sseDataPrefix); err != nil {
			return err
		}
		if _, err := w.Write([]byte(line)); err != nil {
			return err
		}
		if _, err := w.Write(sseLineEnd); err != nil {
			return err
		}
	}
	_, err := w.Write(sseLineEnd)
	return err
}

// writeSSEDone writes the stream termination sentinel: "data: [DONE]\n\n".
func writeSSEDone(w http.ResponseWriter) {
	w.Write(sseDone)
}

// writeSSEError writes an error event after the stream has started.
func writeSSEError(w http.ResponseWriter, msg string) {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = "stream_error"
	payload, _ := json.Marshal(e)
	w.Write(sseErrorEvent)
	w.Write(sseDataPrefix)
	w.Write(payload)
	w.Write([]byte("\n\n"))
}
