// boot/registry.go
package boot

import (
	"context"
	"errors"
	"sync"

	"firmboot-go/bundle"
	"firmboot-go/errcode"
	"firmboot-go/hook"
	"firmboot-go/periph"
)

// -----------------------------------------------------------------------------
// Kinds and function shapes
// -----------------------------------------------------------------------------

// Kind distinguishes the two classes of boot entries.
type Kind uint8

const (
	KindSpawner Kind = iota + 1
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindSpawner:
		return "spawner"
	case KindTask:
		return "task"
	}
	return "unknown"
}

// SpawnFn is a synchronous boot function. It receives a Spawner capability
// for submitting further tasks and the bundle instance it registered for
// (nil when it registered none).
type SpawnFn func(sp Spawner, b *bundle.Instance) error

// TaskFn is a long-running task function. It owns its bundle and hook values
// for its entire lifetime, typically the life of the program.
type TaskFn func(ctx context.Context, b *bundle.Instance, hooks hook.Values) error

// -----------------------------------------------------------------------------
// Executor contract (external collaborator)
// -----------------------------------------------------------------------------

// Task is one unit handed to the Task Execution Service: the function plus
// its fixed initial state.
type Task struct {
	Name   string
	Fn     TaskFn
	Bundle *bundle.Instance
	Hooks  hook.Values
}

// Handle observes a submitted task.
type Handle interface {
	Done() <-chan struct{}
}

// Executor is the cooperative Task Execution Service consumed by the
// registrar. Submitted tasks must not start running before the executor is
// started, which happens only after the boot sequence completes. Report is
// the executor's error channel; the registrar forwards spawner failures
// through it and never retries them.
type Executor interface {
	Submit(t Task) (Handle, error)
	Report(name string, err error)
}

// Spawner is the capability handed to spawner functions for submitting
// asynchronous tasks during the boot phase.
type Spawner struct {
	exec Executor
}

// Spawn submits an additional task. Like registered tasks, it will not run
// before the boot phase has finished.
func (s Spawner) Spawn(name string, fn TaskFn, b *bundle.Instance, hooks hook.Values) error {
	_, err := s.exec.Submit(Task{Name: name, Fn: fn, Bundle: b, Hooks: hooks})
	return err
}

// -----------------------------------------------------------------------------
// Entries
// -----------------------------------------------------------------------------

// Entry is the immutable descriptor of one registered boot function.
type Entry struct {
	name  string
	kind  Kind
	typ   *bundle.Type
	hooks []hook.Spec
	spawn SpawnFn
	task  TaskFn
}

func (e *Entry) Name() string         { return e.name }
func (e *Entry) Kind() Kind           { return e.kind }
func (e *Entry) Bundle() *bundle.Type { return e.typ }

// Hooks returns the declared hook parameters in order.
func (e *Entry) Hooks() []hook.Spec {
	out := make([]hook.Spec, len(e.hooks))
	copy(out, e.hooks)
	return out
}

// Leaves returns the entry's transitive peripheral requirement.
func (e *Entry) Leaves() []periph.ID {
	if e.typ == nil {
		return nil
	}
	return e.typ.Leaves()
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry is the ordered collection of boot entries. It is populated at
// program definition time, before the boot sequence runs; registration
// mistakes (duplicate names, nil functions) panic to surface at start-up.
type Registry struct {
	mu      sync.Mutex
	entries []*Entry
	byName  map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Entry)}
}

// Default is the process-wide registry that package-level registration
// (typically from init functions of firmware modules) appends to.
var Default = NewRegistry()

// RegisterSpawner adds a synchronous boot function. typ may be nil when the
// spawner needs no peripherals.
func (r *Registry) RegisterSpawner(name string, typ *bundle.Type, fn SpawnFn) {
	if fn == nil {
		panic(&errcode.E{C: errcode.InvalidField, Op: "register", Msg: name + ": nil spawner"})
	}
	r.add(&Entry{name: name, kind: KindSpawner, typ: typ, spawn: fn})
}

// RegisterTask adds an asynchronous task. typ may be nil; hooks lists the
// configuration parameters the task body reads.
func (r *Registry) RegisterTask(name string, typ *bundle.Type, hooks []hook.Spec, fn TaskFn) {
	if fn == nil {
		panic(&errcode.E{C: errcode.InvalidField, Op: "register", Msg: name + ": nil task"})
	}
	r.add(&Entry{name: name, kind: KindTask, typ: typ, hooks: hooks, task: fn})
}

// RegisterSpawner and RegisterTask on the default registry.
func RegisterSpawner(name string, typ *bundle.Type, fn SpawnFn) {
	Default.RegisterSpawner(name, typ, fn)
}

func RegisterTask(name string, typ *bundle.Type, hooks []hook.Spec, fn TaskFn) {
	Default.RegisterTask(name, typ, hooks, fn)
}

func (r *Registry) add(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.name == "" {
		panic(&errcode.E{C: errcode.InvalidField, Op: "register", Msg: "empty entry name"})
	}
	if _, dup := r.byName[e.name]; dup {
		panic(&errcode.E{C: errcode.DuplicateEntry, Op: "register", Msg: e.name})
	}
	r.byName[e.name] = e
	r.entries = append(r.entries, e)
}

// Entries returns the registered entries in registration order.
func (r *Registry) Entries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Validate surfaces every definition-time conflict in the registry without
// running anything: two entries requiring the same leaf token, and declared
// hooks with no (or a mistyped) provider. Tests and tooling call it
// directly; Boot refuses to start unless it passes.
func (r *Registry) Validate(hooks *hook.Registry) error {
	var errs []error

	claimants := make(map[periph.ID]string)
	for _, e := range r.Entries() {
		for _, id := range e.Leaves() {
			if first, dup := claimants[id]; dup {
				errs = append(errs, &errcode.E{C: errcode.TokenClaimed, Op: "validate",
					Msg: string(id) + " required by both " + first + " and " + e.name})
				continue
			}
			claimants[id] = e.name
		}
		for _, s := range e.hooks {
			if hooks == nil {
				errs = append(errs, &errcode.E{C: errcode.MissingHook, Op: "validate",
					Msg: e.name + ": " + s.Name})
				continue
			}
			if err := hooks.Check(s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
