package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/englishadventure/user-service/internal/api/metrics"
	"github.com/englishadventure/user-service/internal/core/domain"
	"github.com/englishadventure/user-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	publishTimeout = 5 * time.Second
	// drainTimeout bounds how long a stopping worker keeps flushing its queue.
	drainTimeout = 10 * time.Second
)

// ErrQueueFull is returned by Publish when the account's shard has no room.
var ErrQueueFull = errors.New("event queue full")

// Dispatcher routes account events to a fixed set of workers using consistent
// hashing on the account id, guaranteeing per-account event ordering. Workers
// hand each event to the downstream publisher.
type Dispatcher struct {
	workers []chan domain.AccountEvent
	next    ports.EventPublisher
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, next ports.EventPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AccountEvent, numWorkers),
		next:    next,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AccountEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. When ctx is cancelled each worker
// flushes the events already queued, within drainTimeout, and returns.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Publish enqueues event on the worker responsible for its account. It never
// blocks: a full shard yields ErrQueueFull.
func (d *Dispatcher) Publish(ctx context.Context, event domain.AccountEvent) error {
	idx := d.shardIndex(event.AccountID)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case d.workers[idx] <- event:
		metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return nil
	default:
		metrics.EventsFailedTotal.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

// shardIndex maps an account id deterministically to a worker index.
func (d *Dispatcher) shardIndex(accountID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(accountID, 10)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AccountEvent) {
	defer d.wg.Done()
	depth := metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(id))

	// Publishing outlives ctx so a shutdown never aborts an event mid-flight.
	pubCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			d.drain(pubCtx, id, ch, depth)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			d.publish(pubCtx, id, event)
		}
	}
}

// drain publishes whatever is still buffered in ch without waiting for more.
func (d *Dispatcher) drain(ctx context.Context, id int, ch <-chan domain.AccountEvent, depth prometheus.Gauge) {
	deadline := time.Now().Add(drainTimeout)
	flushed := 0
	for {
		if time.Now().After(deadline) {
			if n := len(ch); n > 0 {
				metrics.EventsFailedTotal.WithLabelValues("dropped").Add(float64(n))
				d.log.Warn().Int("worker_id", id).Int("pending", n).Msg("drain timed out, dropping pending events")
			}
			return
		}
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			d.publish(ctx, id, event)
			flushed++
		default:
			if flushed > 0 {
				d.log.Info().Int("worker_id", id).Int("flushed", flushed).Msg("event queue drained")
			}
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, id int, event domain.AccountEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	err := d.next.Publish(ctx, event)
	metrics.EventPublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EventsFailedTotal.WithLabelValues("publish_failed").Inc()
		d.log.Error().Err(err).
			Str("event", string(event.Type)).
			Int64("account_id", event.AccountID).
			Int("worker_id", id).
			Msg("event publishing failed")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()
}
