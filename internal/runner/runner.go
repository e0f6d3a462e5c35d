// Package runner ships the two task-runner policies used by the replay tool
// and tests: an inline runner executing tasks on the caller's goroutine and
// a fixed-size worker pool. The executor itself is agnostic and accepts any
// task-submission callable.
package runner

import (
	"sync"

	"github.com/vk/runcore/internal/unit"
)

// Inline returns a task runner that executes every task synchronously on
// the submitting goroutine. The degenerate policy the executor must stay
// correct under.
func Inline() unit.TaskRunner {
	return func(task unit.Task) {
		task()
	}
}

// Pool is a fixed-size worker pool. Submissions never block: tasks land on
// an unbounded queue, so workers submitting follow-up tasks (the executor's
// ready-successor promotions) cannot deadlock the pool.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []unit.Task
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts a pool with the given number of workers.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues a task. Submitting to a closed pool panics: the executor
// only submits while a run is in flight, and runs are joined before the
// pool shuts down.
func (p *Pool) Submit(task unit.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		panic("runner: submit on closed pool")
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
}

// Close drains the queue and stops the workers. It blocks until every
// queued task has run.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		task()
	}
}
