package remote

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrMalformedPayload is returned for response bodies that are not JSON.
var ErrMalformedPayload = errors.New("malformed remote payload")

var textPaths = [...]string{"text", "choices.0.text", "choices.0.message.content"}

// ExtractText returns the answer carried by a remote payload. It tries a
// top-level text field, then the first choice's text, then the first
// choice's message content. Empty strings count as absent. When none is
// present the whole payload is returned as compact JSON, so the result is
// never silently empty for a non-empty payload.
func ExtractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrMalformedPayload
	}
	for _, p := range textPaths {
		if r := gjson.GetBytes(body, p); r.Type == gjson.String && r.Str != "" {
			return r.Str, nil
		}
	}
	return gjson.GetBytes(body, "@ugly").Raw, nil
}
