// Package batch coalesces concurrent model invocations of the same
// usage type into windows dispatched together, trading a bounded amount
// of added latency for fewer provider round-trips.
package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/models"
	"github.com/igorhaf/orbit-ai-optimizer/services"
)

// Invocation is one queued unit of work. It runs when the window
// holding it flushes.
type Invocation func(ctx context.Context) (*models.CompletionResult, error)

// Stats is a snapshot of the batching counters.
type Stats struct {
	Requests     uint64  `json:"requests"`
	Batches      uint64  `json:"batches"`
	AvgBatchSize float64 `json:"avg_batch_size"`
	AvgWaitMs    float64 `json:"avg_wait_ms"`
}

type outcome struct {
	result *models.CompletionResult
	err    error
}

type pending struct {
	ctx      context.Context
	invoke   Invocation
	enqueued time.Time
	// done is buffered so a flushed invocation never blocks on a caller
	// that already gave up.
	done chan outcome
}

// window accumulates submissions for one usage type. The closed flag is
// the exactly-once flush guard: the size trigger and the wait timer race
// on it under the service mutex, and whichever loses observes the window
// as already closed.
type window struct {
	usage    models.UsageType
	pending  []*pending
	openedAt time.Time
	timer    *time.Timer
	closed   bool
}

// Service groups submissions into per-usage-type windows bounded by a
// maximum size and a maximum wait. At most one window per usage type is
// open at a time.
type Service struct {
	maxSize int
	maxWait time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	windows map[models.UsageType]*window

	statsMu      sync.Mutex
	requests     uint64
	batches      uint64
	batchedTotal uint64
	waitTotal    time.Duration
}

// NewService creates a batch service flushing windows at maxSize
// submissions or after maxWait, whichever comes first.
func NewService(maxSize int, maxWait time.Duration, logger *zap.Logger) *Service {
	return &Service{
		maxSize: maxSize,
		maxWait: maxWait,
		windows: make(map[models.UsageType]*window),
		logger:  logger,
	}
}

// Submit queues an invocation into the open window for its usage type
// and blocks until the window flushes and this invocation completes.
// A failure in a sibling invocation never affects this caller; each
// submission receives only its own outcome.
func (s *Service) Submit(ctx context.Context, usage models.UsageType, invoke Invocation) (*models.CompletionResult, error) {
	p := &pending{
		ctx:      ctx,
		invoke:   invoke,
		enqueued: time.Now(),
		done:     make(chan outcome, 1),
	}

	s.mu.Lock()
	w, ok := s.windows[usage]
	if !ok || w.closed {
		w = &window{usage: usage, openedAt: time.Now()}
		target := w
		// The callback contends on s.mu, so it cannot observe the window
		// before this critical section ends.
		w.timer = time.AfterFunc(s.maxWait, func() {
			if batch, ok := s.close(target); ok {
				s.dispatch(target, batch)
			}
		})
		s.windows[usage] = w
	}
	w.pending = append(w.pending, p)

	// Size trigger: close inside the same critical section as the
	// append, so no later submission can slip into a full window.
	var batch []*pending
	var flushNow bool
	if len(w.pending) >= s.maxSize {
		batch, flushNow = s.closeLocked(w)
	}
	s.mu.Unlock()

	s.statsMu.Lock()
	s.requests++
	s.statsMu.Unlock()

	if flushNow {
		s.dispatch(w, batch)
	}

	select {
	case out := <-p.done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, services.WrapError(services.ErrorTypeInvocation, "request canceled while batched", ctx.Err())
	}
}

// close transitions a window to closed under the service mutex.
func (s *Service) close(w *window) ([]*pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(w)
}

// closeLocked performs the exactly-once flush transition. It reports
// false when another trigger already closed the window.
func (s *Service) closeLocked(w *window) ([]*pending, bool) {
	if w.closed {
		return nil, false
	}
	w.closed = true
	w.timer.Stop()
	if s.windows[w.usage] == w {
		delete(s.windows, w.usage)
	}
	return w.pending, true
}

// dispatch runs a closed window's invocations concurrently. Each
// outcome is delivered only to its own submitter.
func (s *Service) dispatch(w *window, batch []*pending) {
	now := time.Now()

	s.statsMu.Lock()
	s.batches++
	s.batchedTotal += uint64(len(batch))
	for _, p := range batch {
		s.waitTotal += now.Sub(p.enqueued)
	}
	s.statsMu.Unlock()

	s.logger.Debug("flushing batch window",
		zap.String("usage_type", string(w.usage)),
		zap.Int("size", len(batch)),
		zap.Duration("open_for", now.Sub(w.openedAt)))

	for _, p := range batch {
		go func(p *pending) {
			result, err := p.invoke(p.ctx)
			p.done <- outcome{result: result, err: err}
		}(p)
	}
}

// Stats returns a snapshot of the batching counters.
func (s *Service) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats := Stats{
		Requests: s.requests,
		Batches:  s.batches,
	}
	if s.batches > 0 {
		stats.AvgBatchSize = float64(s.batchedTotal) / float64(s.batches)
	}
	if s.batchedTotal > 0 {
		stats.AvgWaitMs = float64(s.waitTotal.Milliseconds()) / float64(s.batchedTotal)
	}
	return stats
}
