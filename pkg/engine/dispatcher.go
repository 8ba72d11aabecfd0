package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/metrics"
	"autopilot-assistant/pkg/models"
)

const contactQueueDepth = 16

// Handler consumes inbound messages once the dispatcher has serialized them.
type Handler interface {
	HandleInbound(ctx context.Context, msg models.InboundMessage)
}

// Dispatcher serializes inbound messages per contact: each contact gets one
// jobs channel drained by one goroutine, so the state machine never sees two
// messages from the same contact at once. A shared semaphore bounds how many
// contacts are processed concurrently. Messages for different contacts run
// in parallel.
type Dispatcher struct {
	engine  Handler
	logger  *logrus.Logger
	metrics *metrics.Metrics
	sem     chan struct{}

	mu      sync.Mutex
	workers map[string]chan models.InboundMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(engine Handler, logger *logrus.Logger, m *metrics.Metrics, maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	return &Dispatcher{
		engine:  engine,
		logger:  logger,
		metrics: m,
		sem:     make(chan struct{}, maxConcurrent),
		workers: make(map[string]chan models.InboundMessage),
	}
}

// Start must be called before the first Enqueue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
}

// Stop cancels the workers and waits for in-flight messages to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Enqueue hands a message to the contact's worker, creating it on first
// contact. Blocks only if the contact's queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, msg models.InboundMessage) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}

	jobs := d.workerFor(msg.ContactID)

	select {
	case jobs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

func (d *Dispatcher) workerFor(contactID string) chan models.InboundMessage {
	d.mu.Lock()
	defer d.mu.Unlock()

	if jobs, ok := d.workers[contactID]; ok {
		return jobs
	}

	jobs := make(chan models.InboundMessage, contactQueueDepth)
	d.workers[contactID] = jobs
	d.metrics.ActiveContactWorkers.Inc()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.metrics.ActiveContactWorkers.Dec()
		for {
			select {
			case <-d.ctx.Done():
				return
			case msg := <-jobs:
				select {
				case d.sem <- struct{}{}:
				case <-d.ctx.Done():
					return
				}
				if !msg.ReceivedAt.IsZero() {
					d.metrics.QueueWaitDuration.Observe(time.Since(msg.ReceivedAt).Seconds())
				}
				d.engine.HandleInbound(d.ctx, msg)
				<-d.sem
			}
		}
	}()

	return jobs
}
