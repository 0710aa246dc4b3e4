package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
	"github.com/gadgetcloud/gc-backend/internal/pkg/metrics"
)

const (
	defaultWorkers     = 4
	defaultBuffer      = 256
	defaultMaxAttempts = 3
	defaultBackoff     = 100 * time.Millisecond
	writeTimeout       = 5 * time.Second
)

// Options tunes the dispatcher. Zero values select the defaults.
type Options struct {
	Workers     int
	Buffer      int
	MaxAttempts int
	Backoff     time.Duration // first retry delay, doubled per attempt
}

// Dispatcher persists audit entries off the request path. Entries are
// sharded by target id so events about the same user are written in order.
// It implements ports.AuditSink.
type Dispatcher struct {
	workers []chan domain.AuditLogEntry
	repo    ports.AuditRepository
	log     zerolog.Logger
	opts    Options

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(repo ports.AuditRepository, log zerolog.Logger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	d := &Dispatcher{
		workers: make([]chan domain.AuditLogEntry, opts.Workers),
		repo:    repo,
		log:     log,
		opts:    opts,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditLogEntry, opts.Buffer)
	}
	return d
}

var _ ports.AuditSink = (*Dispatcher)(nil)

// Start launches the workers. Cancelling ctx aborts in-flight retries and
// stops the workers without draining; use Close for an orderly stop.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Submit queues entry without blocking. When the worker's buffer is full or
// the dispatcher is closed the entry is dropped and logged.
func (d *Dispatcher) Submit(entry domain.AuditLogEntry) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(entry, "dispatcher closed")
		return
	}

	idx := d.shardIndex(shardKey(entry))
	select {
	case d.workers[idx] <- entry:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.drop(entry, "queue full")
	}
}

// Close stops accepting entries and blocks until queued ones are written.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func shardKey(e domain.AuditLogEntry) string {
	if e.TargetID != "" {
		return e.TargetID
	}
	return e.ActorID
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuditLogEntry) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-ch:
			if !ok {
				return
			}
			metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.write(ctx, id, entry)
		}
	}
}

// write appends entry, retrying up to MaxAttempts with exponential backoff.
// A duplicate id means an earlier attempt landed, which counts as success.
func (d *Dispatcher) write(ctx context.Context, worker int, entry domain.AuditLogEntry) {
	backoff := d.opts.Backoff
	for attempt := 1; ; attempt++ {
		err := d.appendOnce(ctx, &entry)
		if err == nil || errors.Is(err, domain.ErrAuditLogExists) {
			result := "ok"
			if attempt > 1 {
				result = "retried_ok"
			}
			metrics.AuditWritesTotal.WithLabelValues(result).Inc()
			return
		}

		if attempt >= d.opts.MaxAttempts {
			metrics.AuditWritesTotal.WithLabelValues("failed").Inc()
			d.log.Error().Err(err).
				Str("audit_id", entry.ID).
				Str("event_type", string(entry.EventType)).
				Str("actor_id", entry.ActorID).
				Str("target_id", entry.TargetID).
				Int("attempts", attempt).
				Int("worker_id", worker).
				Msg("audit write failed, entry lost")
			return
		}

		d.log.Warn().Err(err).
			Str("audit_id", entry.ID).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("audit write failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			metrics.AuditWritesTotal.WithLabelValues("failed").Inc()
			d.log.Error().Str("audit_id", entry.ID).Msg("audit write abandoned on shutdown")
			return
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (d *Dispatcher) appendOnce(ctx context.Context, entry *domain.AuditLogEntry) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := time.Now()
	err := d.repo.Append(wctx, entry)
	metrics.AuditWriteDuration.Observe(time.Since(start).Seconds())
	return err
}

func (d *Dispatcher) drop(entry domain.AuditLogEntry, reason string) {
	metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
	d.log.Error().
		Str("audit_id", entry.ID).
		Str("event_type", string(entry.EventType)).
		Str("target_id", entry.TargetID).
		Str("reason", reason).
		Msg("audit entry dropped")
}
