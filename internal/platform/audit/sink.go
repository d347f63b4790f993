package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store persists audit records. Implementations must be safe for use from
// the sink's background worker.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
}

// Stats is a snapshot of the sink's diagnostic counters. Enqueued counts
// accepted records; Dropped counts records rejected because the queue was
// full; Failed counts store write errors. None of these conditions are ever
// visible to the HTTP caller.
type Stats struct {
	Enqueued int64 `json:"enqueued"`
	Written  int64 `json:"written"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

const defaultQueueSize = 1024

// Sink writes audit records asynchronously. Enqueue never blocks and never
// returns an error: on a full queue the record is dropped and counted. The
// background worker writes with context.Background so that client
// disconnects cannot cancel an in-flight audit write, and applies no
// timeout — a slow store degrades queue depth, not request latency.
type Sink struct {
	store  Store
	logger zerolog.Logger

	ch   chan *Record
	wg   sync.WaitGroup
	once sync.Once

	enqueued atomic.Int64
	written  atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// SinkOption configures a Sink.
type SinkOption func(*sinkConfig)

type sinkConfig struct {
	queueSize int
}

// WithQueueSize bounds the in-memory audit queue.
func WithQueueSize(n int) SinkOption {
	return func(c *sinkConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// NewSink creates a sink and starts its background worker.
func NewSink(store Store, logger zerolog.Logger, opts ...SinkOption) *Sink {
	cfg := sinkConfig{queueSize: defaultQueueSize}
	for _, o := range opts {
		o(&cfg)
	}

	s := &Sink{
		store:  store,
		logger: logger,
		ch:     make(chan *Record, cfg.queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Enqueue schedules a record for persistence. It fills defaults, never
// blocks, and never fails from the caller's perspective.
func (s *Sink) Enqueue(rec *Record) {
	if rec == nil {
		return
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	select {
	case s.ch <- rec:
		s.enqueued.Add(1)
	default:
		s.dropped.Add(1)
		s.logger.Warn().
			Str("action", rec.Action).
			Str("entity", rec.Entity).
			Msg("audit queue full, record dropped")
	}
}

func (s *Sink) run() {
	defer s.wg.Done()
	for rec := range s.ch {
		// Deliberately not the request context: scheduled writes outlive
		// the request that produced them.
		if err := s.store.Insert(context.Background(), rec); err != nil {
			s.failed.Add(1)
			s.logger.Error().Err(err).
				Str("action", rec.Action).
				Str("entity", rec.Entity).
				Msg("audit write failed")
			continue
		}
		s.written.Add(1)
	}
}

// Close stops accepting records and drains the queue, bounded by ctx.
func (s *Sink) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.ch) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the sink counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Enqueued: s.enqueued.Load(),
		Written:  s.written.Load(),
		Dropped:  s.dropped.Load(),
		Failed:   s.failed.Load(),
	}
}
