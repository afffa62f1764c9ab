package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// logBufferSize is how many records may wait for the database before new
// ones are dropped.
const logBufferSize = 256

// LogStore appends log records to a run's audit log.
type LogStore interface {
	InsertLog(ctx context.Context, runID uuid.UUID, ts time.Time, level, message string, metadata []byte) error
}

type logEntry struct {
	ts       time.Time
	level    string
	message  string
	metadata []byte
}

// logSink writes the records of one run from a background goroutine so a slow
// database never holds up the caller.
type logSink struct {
	store   LogStore
	runID   uuid.UUID
	entries chan logEntry
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func newLogSink(store LogStore, runID uuid.UUID, size int) *logSink {
	ctx, cancel := context.WithCancel(context.Background())
	s := &logSink{
		store:   store,
		runID:   runID,
		entries: make(chan logEntry, size),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.run()
	return s
}

func (s *logSink) run() {
	defer close(s.done)
	for e := range s.entries {
		if s.ctx.Err() != nil {
			s.dropped.Add(1)
			continue
		}
		insertCtx, cancel := context.WithTimeout(s.ctx, storeTimeout)
		if err := s.store.InsertLog(insertCtx, s.runID, e.ts, e.level, e.message, e.metadata); err != nil {
			s.dropped.Add(1)
		}
		cancel()
	}
}

func (s *logSink) send(e logEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.entries <- e:
	default:
		s.dropped.Add(1)
	}
}

func (s *logSink) close(timeout time.Duration) int64 {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
		// Give up on the rest; pending inserts see a cancelled context
	}
	s.cancel()
	return s.dropped.Load()
}

// DBLogHandler is a slog.Handler that queues records of one run for the
// database. Records that do not fit the queue are dropped.
type DBLogHandler struct {
	RunID uuid.UUID

	sink  *logSink
	attrs []slog.Attr
	group string
}

func NewDBLogHandler(store LogStore, runID uuid.UUID) *DBLogHandler {
	return newDBLogHandler(store, runID, logBufferSize)
}

func newDBLogHandler(store LogStore, runID uuid.UUID, size int) *DBLogHandler {
	return &DBLogHandler{
		RunID: runID,
		sink:  newLogSink(store, runID, size),
	}
}

// Close stops accepting records and waits up to timeout for queued ones to be
// written. It returns how many records were lost.
func (h *DBLogHandler) Close(timeout time.Duration) int64 {
	return h.sink.close(timeout)
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true // Log everything
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	// Extract attributes to JSON
	meta := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		meta[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		meta[h.key(a.Key)] = a.Value.Resolve().Any()
		return true
	})

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	h.sink.send(logEntry{ts: r.Time, level: r.Level.String(), message: r.Message, metadata: metaJSON})
	return nil
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &next
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.key(name)
	return &next
}

func (h *DBLogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}
