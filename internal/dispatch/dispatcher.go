package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/common"
	"github.com/madara-alliance/orchestrator-go/internal/stages"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

// Logical queue names, per spec.md §6's "<prefix>_<kind>_<suffix>" convention.
const (
	QueueProcess = "orchestrator_process_queue"
	QueueVerify  = "orchestrator_verify_queue"
	QueueFailure = "orchestrator_failure_queue"
)

// Dispatcher consumes the process/verify/failure logical queues, running
// stage handlers against jobs loaded from the store (spec.md §4.D).
type Dispatcher struct {
	Store    jobstore.Store
	Queue    adapters.Queue
	Registry stages.Registry
	Alerter  adapters.Alerter
	Logger   *common.Logger

	Consumers           int
	EmptyReceiveBackoff time.Duration
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration

	// OsSemaphore bounds concurrent OsRun Process calls (spec.md §9 open
	// question on max_concurrent_os_jobs), grounded on the teacher's
	// heavySem channel-based semaphore.
	OsSemaphore chan struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// safeGo launches fn in a goroutine, recovering and logging any panic
// rather than crashing the process, grounded on the teacher's safeGo.
func (d *Dispatcher) safeGo(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				if d.Logger != nil {
					d.Logger.Error().Msgf("dispatch: recovered panic: %v", r)
				}
			}
		}()
		fn()
	}()
}

// Start launches Consumers consumer goroutines per logical queue.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	consumers := d.Consumers
	if consumers <= 0 {
		consumers = 1
	}

	for i := 0; i < consumers; i++ {
		d.safeGo(func() { d.consumeLoop(ctx, QueueProcess, d.handleProcessMessage) })
		d.safeGo(func() { d.consumeLoop(ctx, QueueVerify, d.handleVerifyMessage) })
		d.safeGo(func() { d.consumeLoop(ctx, QueueFailure, d.handleFailureMessage) })
	}
}

// Stop cancels all consumer loops and awaits in-flight handler calls to
// completion (spec.md §4.D, "Cancellation" — no hard kill).
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

type messageHandler func(ctx context.Context, body string) error

func (d *Dispatcher) consumeLoop(ctx context.Context, queueName string, handle messageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := d.Queue.Receive(ctx, queueName, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if d.Logger != nil {
				d.Logger.Error().Msgf("dispatch: receive from %s: %v", queueName, err)
			}
			d.sleep(ctx, d.EmptyReceiveBackoff)
			continue
		}
		if len(msgs) == 0 {
			d.sleep(ctx, d.EmptyReceiveBackoff)
			continue
		}

		for _, msg := range msgs {
			if err := handle(ctx, msg.Body); err != nil {
				if d.Logger != nil {
					d.Logger.Error().Msgf("dispatch: handle message from %s: %v", queueName, err)
				}
				if nackErr := d.Queue.Nack(ctx, queueName, msg); nackErr != nil && d.Logger != nil {
					d.Logger.Error().Msgf("dispatch: nack message on %s: %v", queueName, nackErr)
				}
				continue
			}
			if err := d.Queue.Ack(ctx, queueName, msg); err != nil && d.Logger != nil {
				d.Logger.Error().Msgf("dispatch: ack message on %s: %v", queueName, err)
			}
		}
	}
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) {
	if dur <= 0 {
		dur = time.Second
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (d *Dispatcher) enqueueVerify(ctx context.Context, jobID string, delay time.Duration) error {
	body, err := encodeJobEnvelope(jobID)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return d.Queue.Send(ctx, QueueVerify, body)
	}
	return d.Queue.SendDelayed(ctx, QueueVerify, body, delay)
}

func (d *Dispatcher) enqueueProcess(ctx context.Context, jobID string, delay time.Duration) error {
	body, err := encodeJobEnvelope(jobID)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return d.Queue.Send(ctx, QueueProcess, body)
	}
	return d.Queue.SendDelayed(ctx, QueueProcess, body, delay)
}

func (d *Dispatcher) enqueueFailure(ctx context.Context, jobID string) error {
	body, err := encodeJobEnvelope(jobID)
	if err != nil {
		return err
	}
	return d.Queue.Send(ctx, QueueFailure, body)
}

func (d *Dispatcher) acquireOsSemaphore(ctx context.Context) (release func(), err error) {
	if d.OsSemaphore == nil {
		return func() {}, nil
	}
	select {
	case d.OsSemaphore <- struct{}{}:
		return func() { <-d.OsSemaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire os semaphore: %w", ctx.Err())
	}
}
