package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
)

type statusError struct {
	code int
}

func (e *statusError) Error() string   { return fmt.Sprintf("HTTP %d", e.code) }
func (e *statusError) HTTPStatus() int { return e.code }

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want float64
	}{
		{"nil", nil, 0},
		{"429", &statusError{429}, 0.5},
		{"500", &statusError{500}, 1.0},
		{"503", &statusError{503}, 1.0},
		{"529", &statusError{529}, 1.0},
		{"400", &statusError{400}, 0},
		{"401", &statusError{401}, 0},
		{"wrapped 502", fmt.Errorf("openai: %w", &statusError{502}), 1.0},
		{"context deadline", context.DeadlineExceeded, 1.5},
		{"os deadline", os.ErrDeadlineExceeded, 1.5},
		{"wrapped deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), 1.5},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, 1.0},
		{"generic", errors.New("something broke"), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
