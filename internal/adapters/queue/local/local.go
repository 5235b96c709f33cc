// Package local implements adapters.Queue as in-process heaps, for
// local/dev runs and tests, grounded on the teacher's channel-backed
// jobmanager queue generalized to named logical queues with delay and
// visibility-timeout semantics.
package local

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
)

// VisibilityTimeout is how long a received message stays invisible before
// being redelivered if neither Ack nor Nack is called.
const VisibilityTimeout = 2 * time.Minute

type pendingMessage struct {
	visibleAt time.Time
	body      string
	receipt   string
	index     int
}

type messageHeap []*pendingMessage

func (h messageHeap) Len() int            { return len(h) }
func (h messageHeap) Less(i, j int) bool  { return h[i].visibleAt.Before(h[j].visibleAt) }
func (h messageHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *messageHeap) Push(x interface{}) { m := x.(*pendingMessage); m.index = len(*h); *h = append(*h, m) }
func (h *messageHeap) Pop() interface{} {
	old := *h
	n := len(old)
	m := old[n-1]
	*h = old[:n-1]
	return m
}

type queueState struct {
	mu      sync.Mutex
	pending messageHeap
	inFlight map[string]*pendingMessage
}

// Queue is an in-process, heap-scheduled implementation of adapters.Queue.
type Queue struct {
	mu     sync.Mutex
	queues map[string]*queueState
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{queues: make(map[string]*queueState)}
}

func (q *Queue) stateFor(name string) *queueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.queues[name]
	if !ok {
		s = &queueState{inFlight: make(map[string]*pendingMessage)}
		q.queues[name] = s
	}
	return s
}

func (q *Queue) Send(_ context.Context, queueName, body string) error {
	return q.enqueue(queueName, body, 0)
}

func (q *Queue) SendDelayed(_ context.Context, queueName, body string, delay time.Duration) error {
	return q.enqueue(queueName, body, delay)
}

func (q *Queue) enqueue(queueName, body string, delay time.Duration) error {
	s := q.stateFor(queueName)
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.pending, &pendingMessage{visibleAt: time.Now().Add(delay), body: body})
	return nil
}

func (q *Queue) Receive(ctx context.Context, queueName string, waitTime time.Duration) ([]adapters.QueueMessage, error) {
	deadline := time.Now().Add(waitTime)
	for {
		if msg, ok := q.tryReceive(queueName); ok {
			return []adapters.QueueMessage{msg}, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (q *Queue) tryReceive(queueName string) (adapters.QueueMessage, bool) {
	s := q.stateFor(queueName)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for receipt, m := range s.inFlight {
		if !m.visibleAt.After(now) {
			delete(s.inFlight, receipt)
			heap.Push(&s.pending, m)
		}
	}
	if s.pending.Len() == 0 || s.pending[0].visibleAt.After(now) {
		return adapters.QueueMessage{}, false
	}
	m := heap.Pop(&s.pending).(*pendingMessage)
	m.receipt = uuid.New().String()
	m.visibleAt = now.Add(VisibilityTimeout)
	s.inFlight[m.receipt] = m
	return adapters.QueueMessage{Body: m.body, ReceiptHandle: m.receipt}, true
}

func (q *Queue) Ack(_ context.Context, queueName string, msg adapters.QueueMessage) error {
	s := q.stateFor(queueName)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, msg.ReceiptHandle)
	return nil
}

func (q *Queue) Nack(_ context.Context, queueName string, msg adapters.QueueMessage) error {
	s := q.stateFor(queueName)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.inFlight[msg.ReceiptHandle]
	if !ok {
		return nil
	}
	delete(s.inFlight, msg.ReceiptHandle)
	m.visibleAt = time.Now()
	heap.Push(&s.pending, m)
	return nil
}
