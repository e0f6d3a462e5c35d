// Package feed provides the infeed/outfeed collaborator: bounded in-process
// queues of byte payloads the corresponding units consume. Each queue owns a
// channel resource so that feed units of the same direction serialize in
// program order.
package feed

import (
	"errors"
	"sync"

	"github.com/vk/runcore/internal/resource"
)

// ErrEmpty is returned by Dequeue when the queue holds no payload.
var ErrEmpty = errors.New("feed queue empty")

// ErrFull is returned by Enqueue when the queue is at capacity.
var ErrFull = errors.New("feed queue full")

// Queue is a bounded FIFO of byte payloads.
type Queue struct {
	mu       sync.Mutex
	items    [][]byte
	capacity int
	res      *resource.Resource
}

// NewQueue returns an empty queue with the given capacity. Capacity zero or
// negative means unbounded.
func NewQueue(name string, capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		res:      resource.New(resource.Channel, name),
	}
}

// Enqueue appends a copy of the payload to the queue.
func (q *Queue) Enqueue(payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return ErrFull
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	q.items = append(q.items, cp)
	return nil
}

// Dequeue removes and returns the oldest payload.
func (q *Queue) Dequeue() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, ErrEmpty
	}
	payload := q.items[0]
	q.items = q.items[1:]
	return payload, nil
}

// Len returns the number of queued payloads.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Resource returns the channel resource units declare when touching the queue.
func (q *Queue) Resource() *resource.Resource {
	return q.res
}

// Manager bundles the infeed and outfeed queues of one device.
type Manager struct {
	Infeed  *Queue
	Outfeed *Queue
}

// NewManager returns a feed manager with queues of the given capacity.
func NewManager(capacity int) *Manager {
	return &Manager{
		Infeed:  NewQueue("infeed", capacity),
		Outfeed: NewQueue("outfeed", capacity),
	}
}
