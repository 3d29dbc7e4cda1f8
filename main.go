// Minimal heartbeat demo: one hook-configured task, no peripherals. Runs
// unchanged on host and device builds.
package main

import (
	"context"
	"time"

	"firmboot-go/boot"
	"firmboot-go/bundle"
	"firmboot-go/exec"
	"firmboot-go/hook"
	"firmboot-go/periph"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	hooks := hook.NewRegistry()
	hooks.ProvideValue("heartbeat_interval", hook.TypeDuration, time.Second)

	r := boot.NewRegistry()
	r.RegisterTask("heartbeat", nil, []hook.Spec{hook.Dur("heartbeat_interval")},
		func(ctx context.Context, _ *bundle.Instance, hooks hook.Values) error {
			tick := time.NewTicker(hooks.Duration("heartbeat_interval"))
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-tick.C:
					println("heartbeat")
				}
			}
		})

	runner := exec.NewRunner(1, nil)
	ctx := context.Background()
	if err := r.Boot(ctx, boot.Env{Set: periph.NewSet(), Exec: runner, Hooks: hooks}); err != nil {
		panic(err)
	}
	runner.Start(ctx)
	runner.Wait()
}
