package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	kspai "github.com/kisahsukses/kspai/internal"
)

// Recorder defaults.
const (
	DefaultJournalBuffer = 1024
	DefaultBatchSize     = 64
	DefaultFlushInterval = time.Second
	journalDrainTime     = 10 * time.Second
)

// JournalStore is the persistence interface consumed by MessageRecorder.
type JournalStore interface {
	InsertMessages(ctx context.Context, msgs []kspai.Message) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// journalOp is either an appended message or, when forget is set, a
// session deletion.
type journalOp struct {
	msg    kspai.Message
	forget string
}

// MessageRecorder persists session history in the background. It implements
// session.Journal. Operations are applied in the order they were recorded,
// and are dropped when the buffer is full so a slow disk never blocks a request.
type MessageRecorder struct {
	ch        chan journalOp
	store     JournalStore
	batchSize int
	interval  time.Duration
	queueLen  prometheus.Gauge // nil when metrics are disabled
}

// RecorderConfig tunes a MessageRecorder. Zero values take defaults.
type RecorderConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	QueueLength   prometheus.Gauge
}

// NewMessageRecorder creates a MessageRecorder backed by store.
func NewMessageRecorder(store JournalStore, cfg RecorderConfig) *MessageRecorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultJournalBuffer
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &MessageRecorder{
		ch:        make(chan journalOp, cfg.BufferSize),
		store:     store,
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		queueLen:  cfg.QueueLength,
	}
}

// Name returns the worker identifier.
func (m *MessageRecorder) Name() string { return "message_recorder" }

// Record enqueues an appended message. It never blocks.
func (m *MessageRecorder) Record(msg kspai.Message) {
	m.enqueue(journalOp{msg: msg})
}

// Forget enqueues the deletion of a session's persisted history. It never blocks.
func (m *MessageRecorder) Forget(sessionID string) {
	m.enqueue(journalOp{forget: sessionID})
}

func (m *MessageRecorder) enqueue(op journalOp) {
	select {
	case m.ch <- op:
	default:
		slog.Warn("session journal op dropped, channel full",
			"session_id", op.sessionID(),
		)
	}
	m.observeQueue()
}

func (op journalOp) sessionID() string {
	if op.forget != "" {
		return op.forget
	}
	return op.msg.SessionID
}

func (m *MessageRecorder) observeQueue() {
	if m.queueLen != nil {
		m.queueLen.Set(float64(len(m.ch)))
	}
}

// Run applies operations until ctx is cancelled, then drains what remains.
func (m *MessageRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	buf := make([]journalOp, 0, m.batchSize)

	for {
		select {
		case op := <-m.ch:
			buf = append(buf, op)
			if len(buf) >= m.batchSize {
				m.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ticker.C:
			if len(buf) > 0 {
				m.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ctx.Done():
			m.drain(buf)
			return nil
		}
	}
}

func (m *MessageRecorder) drain(buf []journalOp) {
	ctx, cancel := context.WithTimeout(context.Background(), journalDrainTime)
	defer cancel()

	for {
		select {
		case op := <-m.ch:
			buf = append(buf, op)
			if len(buf) >= m.batchSize {
				m.flush(ctx, buf)
				buf = buf[:0]
			}
		default:
			if len(buf) > 0 {
				m.flush(ctx, buf)
			}
			return
		}
	}
}

// flush writes consecutive appends as one insert and applies deletions
// between them in order.
func (m *MessageRecorder) flush(ctx context.Context, ops []journalOp) {
	defer m.observeQueue()

	pending := make([]kspai.Message, 0, len(ops))
	insert := func() {
		if len(pending) == 0 {
			return
		}
		if err := m.store.InsertMessages(ctx, pending); err != nil {
			slog.LogAttrs(ctx, slog.LevelError, "session journal flush failed",
				slog.Int("count", len(pending)),
				slog.String("error", err.Error()),
			)
		}
		pending = make([]kspai.Message, 0, len(ops))
	}

	for _, op := range ops {
		if op.forget == "" {
			pending = append(pending, op.msg)
			continue
		}
		insert()
		if err := m.store.DeleteSession(ctx, op.forget); err != nil {
			slog.LogAttrs(ctx, slog.LevelError, "session journal delete failed",
				slog.String("session_id", op.forget),
				slog.String("error", err.Error()),
			)
		}
	}
	insert()
}
