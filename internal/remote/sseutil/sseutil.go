// Package sseutil reads Server-Sent Events streams from remotes.
package sseutil

import (
	"bufio"
	"context"
	"io"
	"strings"
)

const maxLineSize = 64 * 1024 // 64KB per SSE line

// Done is the data payload that terminates an event stream.
const Done = "[DONE]"

// NewScanner returns a bufio.Scanner configured for reading SSE lines with
// a 64KB buffer. Each call to Scan() returns a single line (without the trailing newline).
func NewScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 4096), maxLineSize)
	return s
}

// ParseSSELine parses a single SSE line into its field and value.
// It returns ok=false for empty lines, comments, and malformed lines.
//
//	"event: <type>"   -> field="event", value=type
//	"data: <payload>" -> field="data", value=payload
//	": comment"       -> ok=false
func ParseSSELine(line string) (field, value string, ok bool) {
	if line == "" || line[0] == ':' {
		return "", "", false
	}
	field, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	return field, strings.TrimPrefix(value, " "), true
}

// ReadEvents scans r and calls fn with the data of each event. Multiple
// data lines of one event are joined with "\n". Reading stops at the Done
// sentinel, at EOF, when fn returns false, or when ctx is cancelled.
func ReadEvents(ctx context.Context, r io.Reader, fn func(data string) bool) error {
	scanner := NewScanner(r)
	var (
		buf     strings.Builder
		pending bool
	)
	dispatch := func() (stop bool) {
		if !pending {
			return false
		}
		data := buf.String()
		buf.Reset()
		pending = false
		if data == Done {
			return true
		}
		return !fn(data)
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if line == "" {
			if dispatch() {
				return nil
			}
			continue
		}
		field, value, ok := ParseSSELine(line)
		if !ok || field != "data" {
			continue
		}
		if pending {
			buf.WriteByte('\n')
		}
		buf.WriteString(value)
		pending = true
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	dispatch()
	return ctx.Err()
}
