// exec/exec.go
package exec

import (
	"context"
	"sync"

	"firmboot-go/boot"
	"firmboot-go/errcode"
	"firmboot-go/report"
	"firmboot-go/x/fmtx"
	"firmboot-go/x/mathx"
)

// TaskError is one failure delivered on the runner's error channel.
type TaskError struct {
	Name string
	Err  error
}

// Runner is the in-tree cooperative Task Execution Service: a fixed number
// of statically allocated task slots, filled during boot and started once
// the boot sequence has completed. Tasks run as goroutines and suspend on
// ordinary channel and timer operations; the runner does not preempt,
// cancel (beyond the start context) or retry anything.
type Runner struct {
	mu      sync.Mutex
	hub     *report.Hub // optional
	capn    int
	slots   []*slot
	started bool
	ctx     context.Context
	errs    chan TaskError
	wg      sync.WaitGroup
}

type slot struct {
	task boot.Task
	done chan struct{}
}

func (s *slot) Done() <-chan struct{} { return s.done }

// Compile-time check: Runner is a boot.Executor.
var _ boot.Executor = (*Runner)(nil)

// NewRunner creates a runner with maxTasks slots. hub may be nil.
// maxTasks is clamped to [1, 512]; zero picks a small default.
func NewRunner(maxTasks int, hub *report.Hub) *Runner {
	if maxTasks <= 0 {
		maxTasks = 8
	}
	maxTasks = mathx.Clamp(maxTasks, 1, 512)
	return &Runner{
		hub:  hub,
		capn: maxTasks,
		errs: make(chan TaskError, maxTasks),
	}
}

// Submit allocates a slot for the task. Before Start, the task only queues;
// after Start (a spawned task at runtime), it launches immediately.
// Submission past capacity fails with errcode.ExecutorFull.
func (r *Runner) Submit(t boot.Task) (boot.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.slots) >= r.capn {
		return nil, &errcode.E{C: errcode.ExecutorFull, Op: "submit", Msg: t.Name}
	}
	s := &slot{task: t, done: make(chan struct{})}
	r.slots = append(r.slots, s)
	r.state(t.Name, "submitted", nil)

	if r.started {
		r.launch(s)
	}
	return s, nil
}

// Report publishes a failure that happened outside a running task, such as
// a spawner function returning an error during boot.
func (r *Runner) Report(name string, err error) {
	r.state(name, "failed", err)
	r.pushErr(TaskError{Name: name, Err: err})
}

// Start launches every submitted task, in submission order. It is called
// once, after the boot sequence has finished, which is what guarantees that
// spawners fully execute before any task begins.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.ctx = ctx
	for _, s := range r.slots {
		r.launch(s)
	}
}

// caller holds lock
func (r *Runner) launch(s *slot) {
	r.wg.Add(1)
	ctx := r.ctx
	go func() {
		defer r.wg.Done()
		defer close(s.done)
		defer func() {
			if p := recover(); p != nil {
				err := &errcode.E{C: errcode.Error, Op: "task",
					Msg: fmtx.Sprintf("%s: panic: %v", s.task.Name, p)}
				r.state(s.task.Name, "failed", err)
				r.pushErr(TaskError{Name: s.task.Name, Err: err})
			}
		}()

		r.state(s.task.Name, "running", nil)
		err := s.task.Fn(ctx, s.task.Bundle, s.task.Hooks)
		if err != nil {
			r.state(s.task.Name, "failed", err)
			r.pushErr(TaskError{Name: s.task.Name, Err: err})
			return
		}
		r.state(s.task.Name, "done", nil)
	}()
}

// Errors is the runner's error channel: task return errors, task panics and
// reported spawner failures. Delivery is best-effort with a bounded queue.
func (r *Runner) Errors() <-chan TaskError { return r.errs }

// Wait blocks until every launched task has returned. Useful in tests and
// host tools; firmware tasks normally never return.
func (r *Runner) Wait() { r.wg.Wait() }

// Tasks returns the submitted task names in submission order.
func (r *Runner) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s.task.Name)
	}
	return out
}

func (r *Runner) pushErr(e TaskError) {
	select {
	case r.errs <- e:
	default:
		// drop oldest, keep the newest failure visible
		select {
		case <-r.errs:
		default:
		}
		select {
		case r.errs <- e:
		default:
		}
	}
}

func (r *Runner) state(name, status string, err error) {
	if r.hub == nil {
		return
	}
	payload := map[string]any{"status": status}
	if err != nil {
		payload["error"] = err.Error()
	}
	r.hub.PublishRetained("task/"+name+"/state", payload)
}
