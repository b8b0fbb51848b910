package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	kspai "github.com/kisahsukses/kspai/internal"
)

// Simulated streaming defaults.
const (
	DefaultChunkSize = 80
	DefaultPause     = 40 * time.Millisecond
)

// StreamConfig tunes simulated delivery. Zero values select the defaults.
type StreamConfig struct {
	ChunkSize int           // runes per simulated fragment
	Pause     time.Duration // delay between simulated fragments
}

// Streamer delivers answers as ordered fragments, relaying a remote stream
// when one can be opened and otherwise pacing out a resolved answer.
type Streamer struct {
	resolver  *Resolver
	chunkSize int
	pause     time.Duration
}

// NewStreamer returns a Streamer over r.
func NewStreamer(r *Resolver, cfg StreamConfig) *Streamer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	} else if cfg.Pause == 0 {
		cfg.Pause = DefaultPause
	}
	return &Streamer{resolver: r, chunkSize: cfg.ChunkSize, pause: cfg.Pause}
}

// StreamAsk delivers the answer to req through onChunk, strictly in order,
// and returns the full text. The concatenation of delivered fragments always
// equals the returned text. If ctx is cancelled or onChunk fails, delivery
// stops and the text delivered so far is returned with the error.
func (s *Streamer) StreamAsk(ctx context.Context, req *kspai.AskRequest, onChunk func(string) error) (*kspai.Answer, error) {
	req = s.resolver.prepare(req)
	ctx, span := tracer.Start(ctx, "streamer.StreamAsk", trace.WithAttributes(
		attribute.String("session.id", req.SessionID),
	))
	defer span.End()

	if r := s.resolver; r.remote != nil {
		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		start := time.Now()
		ch, err := r.remote.Stream(streamCtx, r.withHistory(req))
		if err == nil {
			ans, delivered, err := s.relay(ctx, req, ch, onChunk)
			if r.metrics != nil {
				r.metrics.RemoteDuration.WithLabelValues(r.remote.Name(), "stream").Observe(time.Since(start).Seconds())
			}
			if delivered || err != nil {
				span.SetAttributes(attribute.String("stream.mode", "relay"))
				return ans, err
			}
			// Nothing reached the caller; resolve it instead.
			cancel()
		} else if ctx.Err() != nil {
			return &kspai.Answer{SessionID: req.SessionID}, ctx.Err()
		} else if !errors.Is(err, kspai.ErrStreamUnsupported) {
			r.remoteFailed(ctx, "stream", err, true)
		}
	}

	span.SetAttributes(attribute.String("stream.mode", "simulated"))
	return s.simulate(ctx, req, onChunk)
}

// relay forwards remote fragments. A remote error after the first fragment
// returns the partial answer with the error and records nothing; an error
// before any fragment reports delivered=false so the caller can fall back.
func (s *Streamer) relay(ctx context.Context, req *kspai.AskRequest, ch <-chan kspai.Fragment, onChunk func(string) error) (ans *kspai.Answer, delivered bool, err error) {
	r := s.resolver
	var sb strings.Builder
	partial := func() *kspai.Answer {
		return &kspai.Answer{Text: sb.String(), Source: kspai.SourceRemote, SessionID: req.SessionID}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			return partial(), sb.Len() > 0, ctx.Err()
		case f, ok := <-ch:
			if !ok {
				break loop
			}
			if f.Err != nil {
				if sb.Len() == 0 {
					r.remoteFailed(ctx, "stream", f.Err, true)
					break loop
				}
				r.remoteFailed(ctx, "stream", f.Err, false)
				return partial(), true, fmt.Errorf("remote stream interrupted: %w", f.Err)
			}
			if f.Text == "" {
				continue
			}
			if err := onChunk(f.Text); err != nil {
				return partial(), true, err
			}
			sb.WriteString(f.Text)
			s.countFragment("relay")
		}
	}

	if sb.Len() == 0 {
		return nil, false, nil
	}
	r.record(req.SessionID, req.Prompt, sb.String())
	if r.metrics != nil {
		r.metrics.Answers.WithLabelValues(string(kspai.SourceRemote)).Inc()
	}
	return partial(), true, nil
}

// simulate resolves the full answer and paces it out in fixed-size chunks.
func (s *Streamer) simulate(ctx context.Context, req *kspai.AskRequest, onChunk func(string) error) (*kspai.Answer, error) {
	ans, err := s.resolver.Ask(ctx, req)
	if err != nil {
		return nil, err
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	sent := 0
	for i, chunk := range SplitRunes(ans.Text, s.chunkSize) {
		if err := ctx.Err(); err != nil {
			return &kspai.Answer{Text: ans.Text[:sent], Source: ans.Source, SessionID: ans.SessionID}, err
		}
		if i > 0 && s.pause > 0 {
			if timer == nil {
				timer = time.NewTimer(s.pause)
			} else {
				timer.Reset(s.pause)
			}
			select {
			case <-ctx.Done():
				return &kspai.Answer{Text: ans.Text[:sent], Source: ans.Source, SessionID: ans.SessionID}, ctx.Err()
			case <-timer.C:
			}
		}
		if err := onChunk(chunk); err != nil {
			return &kspai.Answer{Text: ans.Text[:sent], Source: ans.Source, SessionID: ans.SessionID}, err
		}
		sent += len(chunk)
		s.countFragment("simulated")
	}
	return ans, nil
}

func (s *Streamer) countFragment(mode string) {
	if m := s.resolver.metrics; m != nil {
		m.StreamFragments.WithLabelValues(mode).Inc()
	}
}

// SplitRunes splits text into pieces of at most n runes; the last piece may
// be shorter. Empty text yields no pieces.
func SplitRunes(text string, n int) []string {
	if text == "" || n <= 0 {
		return nil
	}
	var parts []string
	count, start := 0, 0
	for i := range text {
		if count == n {
			parts = append(parts, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(parts, text[start:])
}
