// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/murmur/internal/logging"
	"github.com/tomtom215/murmur/internal/metrics"
	"github.com/tomtom215/murmur/internal/models"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("activity batcher is closed")

// flushTimeout bounds one triggered flush, retries included.
const flushTimeout = 30 * time.Second

// Config configures a Batcher.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxKeep       int64

	// MaxRetry is the number of write attempts per flush, the first one
	// included. Values below 1 mean 1.
	MaxRetry    int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	ShutdownTimeout time.Duration
}

// Stats is a point-in-time snapshot of the batcher counters.
type Stats struct {
	Enqueued          int64         `json:"enqueued"`
	Flushed           int64         `json:"flushed"`
	FlushOK           int64         `json:"flush_ok"`
	FlushFail         int64         `json:"flush_fail"`
	LastFlushTime     time.Time     `json:"last_flush_time"`
	LastFlushDuration time.Duration `json:"last_flush_duration"`
	QueueLength       int           `json:"queue_length"`
}

// Batcher is a write-behind queue of activity records.
type Batcher struct {
	store   Writer
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	queue    []models.ActivityRecord
	closed   bool
	armed    bool
	stopTick chan struct{}
	tickDone chan struct{}
	flushWg  sync.WaitGroup

	flushing atomic.Bool

	// ctx is cancelled when Shutdown gives up, ending backoff waits.
	ctx    context.Context
	cancel context.CancelFunc

	enqueued      atomic.Int64
	flushed       atomic.Int64
	flushOK       atomic.Int64
	flushFail     atomic.Int64
	lastFlushTime atomic.Value // time.Time
	lastFlushDur  atomic.Int64
}

// NewBatcher validates cfg and returns an idle batcher. m may be nil.
func NewBatcher(store Writer, cfg Config, m *metrics.Metrics) (*Batcher, error) {
	if store == nil {
		return nil, fmt.Errorf("activity store required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive")
	}
	if cfg.MaxRetry < 1 {
		cfg.MaxRetry = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 100 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.ShutdownTimeout < 0 {
		cfg.ShutdownTimeout = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Batcher{
		store:   store,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
		queue:   make([]models.ActivityRecord, 0, cfg.BatchSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	b.lastFlushTime.Store(time.Time{})
	return b, nil
}

// Enqueue records that userID was active at ts. It never blocks on I/O.
func (b *Batcher) Enqueue(userID string, ts time.Time) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.queue = append(b.queue, models.ActivityRecord{UserID: userID, ObservedAt: ts})
	queueLen := len(b.queue)
	if !b.armed {
		b.armed = true
		b.stopTick = make(chan struct{})
		b.tickDone = make(chan struct{})
		go b.tickLoop(b.stopTick, b.tickDone)
	}
	needsFlush := queueLen >= b.cfg.BatchSize
	if needsFlush {
		b.flushWg.Add(1)
	}
	b.mu.Unlock()

	b.enqueued.Add(1)
	b.metrics.RecordEnqueued(queueLen)

	if needsFlush {
		go func() {
			defer b.flushWg.Done()
			b.flushDetached("size")
		}()
	}
	return nil
}

func (b *Batcher) tickLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.flushDetached("interval")
		}
	}
}

// flushDetached runs a triggered flush on the batcher's own context, so a
// caller's cancellation cannot cut a write short.
func (b *Batcher) flushDetached(trigger string) {
	ctx, cancel := context.WithTimeout(b.ctx, flushTimeout)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		logging.Debug().Err(err).Str("trigger", trigger).Msg("Activity flush failed")
	}
}

// Flush writes the whole queue. It is a no-op when another flush is
// running or the queue is empty. When every attempt fails the batch is put
// back at the front of the queue and the error is returned.
func (b *Batcher) Flush(ctx context.Context) error {
	if !b.flushing.CompareAndSwap(false, true) {
		return nil
	}
	defer b.flushing.Store(false)

	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := b.queue
	b.queue = make([]models.ActivityRecord, 0, b.cfg.BatchSize)
	b.mu.Unlock()

	start := b.now()
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return b.store.WriteBatch(ctx, batch, b.cfg.MaxKeep)
	}, backoff.WithContext(backoff.WithMaxRetries(b.newBackOff(), uint64(b.cfg.MaxRetry-1)), ctx))
	elapsed := b.now().Sub(start)

	if err != nil {
		b.mu.Lock()
		b.queue = append(batch, b.queue...)
		queueLen := len(b.queue)
		b.mu.Unlock()

		b.flushFail.Add(1)
		b.metrics.RecordFlush(len(batch), elapsed, time.Time{}, queueLen, err)
		logging.Warn().
			Err(err).
			Int("records", len(batch)).
			Int("attempts", attempts).
			Int("queue_length", queueLen).
			Msg("Activity flush failed, batch requeued")
		return fmt.Errorf("flush %d activity records after %d attempts: %w", len(batch), attempts, err)
	}

	at := b.now()
	b.flushed.Add(int64(len(batch)))
	b.flushOK.Add(1)
	b.lastFlushTime.Store(at)
	b.lastFlushDur.Store(int64(elapsed))

	b.mu.Lock()
	queueLen := len(b.queue)
	b.mu.Unlock()
	b.metrics.RecordFlush(len(batch), elapsed, at, queueLen, nil)

	logging.Debug().
		Int("records", len(batch)).
		Int("attempts", attempts).
		Dur("elapsed", elapsed).
		Msg("Activity batch flushed")
	return nil
}

// newBackOff waits base*2^attempt between attempts, capped at BackoffMax.
func (b *Batcher) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.cfg.BackoffBase
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = b.cfg.BackoffMax
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// Shutdown stops the ticker, waits for a running flush and performs one
// final flush, all within ShutdownTimeout. On timeout it logs and returns;
// records still queued are lost. Later calls are no-ops.
func (b *Batcher) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	stop, tickDone := b.stopTick, b.tickDone
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if stop != nil {
			close(stop)
			<-tickDone
		}
		b.flushWg.Wait()
		if err := b.Flush(ctx); err != nil {
			logging.Warn().Err(err).Msg("Final activity flush failed")
		}
	}()

	select {
	case <-done:
		logging.Info().Int64("flushed", b.flushed.Load()).Msg("Activity batcher stopped")
	case <-ctx.Done():
		logging.Warn().
			Dur("timeout", b.cfg.ShutdownTimeout).
			Int("abandoned", b.QueueLength()).
			Msg("Activity batcher shutdown timed out")
	}
	b.cancel()
}

// Serve blocks until ctx ends and then shuts the batcher down. It
// implements suture.Service.
func (b *Batcher) Serve(ctx context.Context) error {
	<-ctx.Done()
	b.Shutdown()
	return ctx.Err()
}

func (b *Batcher) String() string { return "activity-batcher" }

// QueueLength returns the number of records waiting to be flushed.
func (b *Batcher) QueueLength() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Stats returns a snapshot of the counters.
func (b *Batcher) Stats() Stats {
	var last time.Time
	if t, ok := b.lastFlushTime.Load().(time.Time); ok {
		last = t
	}
	return Stats{
		Enqueued:          b.enqueued.Load(),
		Flushed:           b.flushed.Load(),
		FlushOK:           b.flushOK.Load(),
		FlushFail:         b.flushFail.Load(),
		LastFlushTime:     last,
		LastFlushDuration: time.Duration(b.lastFlushDur.Load()),
		QueueLength:       b.QueueLength(),
	}
}
