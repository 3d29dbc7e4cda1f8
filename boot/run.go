// boot/run.go
package boot

import (
	"context"

	"firmboot-go/bundle"
	"firmboot-go/hook"
	"firmboot-go/periph"
	"firmboot-go/report"
)

// Env carries the collaborators of one boot sequence.
type Env struct {
	Set   *periph.Set    // the one-time peripheral token set
	Exec  Executor       // task execution service
	Hooks *hook.Registry // may be nil when no entry declares hooks
	Hub   *report.Hub    // optional status hub
}

// Boot runs the startup sequence once:
//
//  1. validate the registry (any conflict aborts before anything executes);
//  2. spawners, in registration order: claim the entry's bundle from the
//     set and invoke the function synchronously with a Spawner capability.
//     A returned error goes to the executor's error channel; boot continues;
//  3. tasks, in registration order: claim the bundle, resolve hook values,
//     submit to the executor.
//
// The executor is started by the caller after Boot returns, so every
// spawner has fully executed before any task's first instruction.
func (r *Registry) Boot(ctx context.Context, env Env) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Validate(env.Hooks); err != nil {
		return err
	}

	entries := r.Entries()

	env.phase("spawners")
	for _, e := range entries {
		if e.kind != KindSpawner {
			continue
		}
		inst, err := e.claim(env.Set)
		if err != nil {
			return err
		}
		if err := e.spawn(Spawner{exec: env.Exec}, inst); err != nil {
			env.Exec.Report(e.name, err)
		}
	}

	env.phase("tasks")
	for _, e := range entries {
		if e.kind != KindTask {
			continue
		}
		inst, err := e.claim(env.Set)
		if err != nil {
			return err
		}
		var vals hook.Values
		if len(e.hooks) > 0 {
			vals, err = env.Hooks.Resolve(e.hooks)
			if err != nil {
				return err
			}
		}
		if _, err := env.Exec.Submit(Task{Name: e.name, Fn: e.task, Bundle: inst, Hooks: vals}); err != nil {
			return err
		}
	}

	env.phase("done")
	return nil
}

// Boot runs the sequence on the default registry.
func Boot(ctx context.Context, env Env) error {
	return Default.Boot(ctx, env)
}

func (e *Entry) claim(set *periph.Set) (*bundle.Instance, error) {
	if e.typ == nil {
		return nil, nil
	}
	return e.typ.ClaimFrom(set, e.name)
}

func (env Env) phase(name string) {
	if env.Hub == nil {
		return
	}
	env.Hub.PublishRetained("boot/state", map[string]any{"phase": name})
}
