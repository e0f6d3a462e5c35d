// Package executor drives a unit sequence to completion concurrently. It
// consumes the dependency graph and the injected task-submission capability:
// units with no pending predecessors are submitted immediately, every
// completed unit decrements its successors' predecessor counters, and any
// successor reaching zero is submitted in turn. Two units with disjoint
// footprints run concurrently no matter how far apart they sit in program
// order.
//
// The executor is policy-agnostic about the task runner: it is correct when
// every submission runs inline on the caller's goroutine and when
// submissions land on an arbitrary thread pool.
package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vk/runcore/internal/ctxlog"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/graph"
	"github.com/vk/runcore/internal/unit"
)

// state is the scheduling state of one unit within a run.
type state int32

const (
	statePending state = iota
	stateReady
	stateRunning
	stateDone
	stateFailed
	stateSkipped
)

// Executor owns the immutable dependency graph of one sequence. A single
// Executor may drive concurrent runs of its sequence; all mutable
// bookkeeping lives in per-run state.
type Executor struct {
	graph  *graph.Graph
	tracer trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithTracer attaches an OpenTelemetry tracer; the executor then emits one
// span per run and one per unit execution.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = t
	}
}

// New builds the dependency graph of the sequence and returns an executor
// for it. The executor takes ownership of the sequence.
func New(ctx context.Context, seq unit.Sequence, opts ...Option) *Executor {
	e := &Executor{graph: graph.Build(ctx, seq)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the executor's immutable dependency graph.
func (e *Executor) Graph() *graph.Graph {
	return e.graph
}

// Execute schedules every unit of the sequence and returns the sequence's
// completion event. It never blocks the calling thread: all waiting is
// expressed through event continuations. The returned event resolves with
// success once every unit is done, or with the first failure observed once
// every in-flight unit has finished.
func (e *Executor) Execute(ctx context.Context, params *unit.ExecuteParams) *event.Event {
	n := e.graph.Len()
	if n == 0 {
		return event.Ok()
	}

	rs := &runState{
		exec:     e,
		ctx:      ctx,
		params:   params,
		pending:  make([]atomic.Int32, n),
		states:   make([]atomic.Int32, n),
		seqEvent: event.New(),
	}
	rs.remaining.Store(int64(n))
	for i := 0; i < n; i++ {
		rs.pending[i].Store(int32(e.graph.Node(i).InDegree()))
	}

	if e.tracer != nil {
		runCtx, span := e.tracer.Start(ctx, "runcore.execute",
			trace.WithAttributes(attribute.Int("units", n)))
		rs.ctx = runCtx
		rs.seqEvent.AndThen(func(err error) {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		})
	}

	// Units with zero predecessors are Ready at schedule start and are
	// submitted unconditionally, in program order.
	for _, root := range e.graph.Roots() {
		rs.submit(root)
	}
	return rs.seqEvent
}

// runState is the mutable bookkeeping of one run of a sequence. Predecessor
// counters and the terminal counter are atomic because workers complete
// units concurrently and race to decrement them.
type runState struct {
	exec   *Executor
	ctx    context.Context
	params *unit.ExecuteParams

	pending   []atomic.Int32
	states    []atomic.Int32
	remaining atomic.Int64

	aborted  atomic.Bool
	failOnce sync.Once
	errMu    sync.Mutex
	err      error

	seqEvent *event.Event
}

func (rs *runState) setState(i int, s state) {
	rs.states[i].Store(int32(s))
}

// submit transitions a unit Ready and hands its execution to the task
// runner.
func (rs *runState) submit(i int) {
	rs.setState(i, stateReady)
	rs.params.Run(func() { rs.run(i) })
}

// run executes one unit and attaches the completion continuation to its
// event. It runs on whatever goroutine the task runner chose.
func (rs *runState) run(i int) {
	node := rs.exec.graph.Node(i)
	u := node.Unit()
	rs.setState(i, stateRunning)

	ctx := rs.ctx
	var span trace.Span
	if rs.exec.tracer != nil {
		ctx, span = rs.exec.tracer.Start(ctx, "unit.execute",
			trace.WithAttributes(
				attribute.String("unit.kind", u.Kind().String()),
				attribute.String("unit.op", u.Info().OpName),
			))
	}

	ctxlog.FromContext(ctx).Debug("Executing unit.",
		"index", i, "kind", u.Kind().String(), "op", u.Info().OpName)

	ev := u.Execute(ctx, rs.params)
	ev.AndThen(func(err error) {
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
		rs.unitDone(i, err)
	})
}

// unitDone is the completion continuation of one unit: it records the
// terminal state, promotes successors whose last predecessor just resolved,
// and accounts for the run's overall completion.
func (rs *runState) unitDone(i int, err error) {
	node := rs.exec.graph.Node(i)

	if err != nil {
		rs.setState(i, stateFailed)
		rs.fail(node, err)
	} else {
		rs.setState(i, stateDone)
	}

	rs.resolveSuccessors(node)
	rs.finish()
}

// resolveSuccessors decrements every successor's predecessor counter and
// promotes (or, after a failure, skips) the ones reaching zero. Successors
// are visited in program order so dispatch order stays deterministic among
// simultaneously-ready units.
func (rs *runState) resolveSuccessors(node *graph.Node) {
	for _, s := range node.Successors() {
		remaining := rs.pending[s].Add(-1)
		if remaining < 0 {
			panic(fmt.Sprintf("executor: negative predecessor count for unit %d", s))
		}
		if remaining > 0 {
			continue
		}
		if rs.aborted.Load() {
			rs.skip(s)
		} else {
			rs.submit(s)
		}
	}
}

// skip marks a never-started unit terminal after a failure, cascading
// through its successors. No further Pending unit is promoted to Ready once
// the run is aborted; in-flight units still finish on their own.
func (rs *runState) skip(start int) {
	logger := ctxlog.FromContext(rs.ctx)
	queue := []int{start}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]

		node := rs.exec.graph.Node(i)
		rs.setState(i, stateSkipped)
		logger.Warn("Skipping unit due to earlier failure.",
			"index", i, "op", node.Unit().Info().OpName)

		for _, s := range node.Successors() {
			remaining := rs.pending[s].Add(-1)
			if remaining < 0 {
				panic(fmt.Sprintf("executor: negative predecessor count for unit %d", s))
			}
			if remaining == 0 {
				queue = append(queue, s)
			}
		}
		rs.finish()
	}
}

// fail records the first failure observed and aborts further promotion.
// Failures from independent branches are unordered; first observed wins.
func (rs *runState) fail(node *graph.Node, err error) {
	rs.failOnce.Do(func() {
		info := node.Unit().Info()
		wrapped := fmt.Errorf("unit '%s' (kind %s, module '%s'): %w",
			info.OpName, node.Unit().Kind(), info.ModuleName, err)

		rs.errMu.Lock()
		rs.err = wrapped
		rs.errMu.Unlock()
		rs.aborted.Store(true)

		ctxlog.FromContext(rs.ctx).Error("Unit execution failed.",
			"index", node.Index(), "op", info.OpName, "error", err)
	})
}

// finish accounts one terminal unit and resolves the sequence event when
// the last one lands.
func (rs *runState) finish() {
	if rs.remaining.Add(-1) != 0 {
		return
	}
	rs.errMu.Lock()
	err := rs.err
	rs.errMu.Unlock()
	if err != nil {
		rs.seqEvent.SignalError(err)
		return
	}
	rs.seqEvent.Signal()
}
