// cmd/blinky/main.go
//
// Smallest full wiring of the boot layer, on the host simulator: an LED
// bundle, a spawner that takes ownership of both LEDs and spawns a chaser
// task, and a peripheral-free heartbeat task configured through a hook.
package main

import (
	"context"
	"time"

	"firmboot-go/boot"
	"firmboot-go/bundle"
	"firmboot-go/exec"
	"firmboot-go/hook"
	"firmboot-go/provider"
	"firmboot-go/provider/sim"
	"firmboot-go/report"
	"firmboot-go/types"
)

const (
	pinLedA = 24
	pinLedB = 25
)

// Leds is the application's peripheral bundle: one token per LED, no field
// may alias the other.
var Leds = bundle.Define("leds",
	bundle.Leaf("led_a", provider.GPIOID(pinLedA)),
	bundle.Leaf("led_b", provider.GPIOID(pinLedB)),
)

// hw is set by main before the boot sequence runs.
var hw *provider.Claims

func init() {
	boot.RegisterSpawner("led_setup", Leds, func(sp boot.Spawner, b *bundle.Instance) error {
		a, err := hw.GPIO(b.Token("led_a"))
		if err != nil {
			return err
		}
		bb, err := hw.GPIO(b.Token("led_b"))
		if err != nil {
			return err
		}
		if err := a.ConfigureOutput(true); err != nil {
			return err
		}
		if err := bb.ConfigureOutput(false); err != nil {
			return err
		}
		// Hand the pins to a chaser task; it will not run until boot ends.
		return sp.Spawn("led_chaser", func(ctx context.Context, _ *bundle.Instance, _ hook.Values) error {
			tick := time.NewTicker(100 * time.Millisecond)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-tick.C:
					a.Toggle()
					bb.Toggle()
				}
			}
		}, nil, hook.Values{})
	})

	boot.RegisterTask("heartbeat", nil, []hook.Spec{hook.Dur("blink_interval")},
		func(ctx context.Context, _ *bundle.Instance, hooks hook.Values) error {
			tick := time.NewTicker(hooks.Duration("blink_interval"))
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
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	platform := sim.New()
	set, claims, err := platform.Init(types.Plan{
		GPIO: []types.GPIOPlan{{Pin: pinLedA, Name: "led_a"}, {Pin: pinLedB, Name: "led_b"}},
	})
	if err != nil {
		panic(err)
	}
	hw = claims

	if err := hook.LoadJSON(hook.Default, []byte(`{"blink_interval_ms": 250}`)); err != nil {
		panic(err)
	}

	hub := report.NewHub(8)
	mon := hub.Subscribe("boot/state")
	go func() {
		for e := range mon.C() {
			if m, ok := e.Payload.(map[string]any); ok {
				println("[boot]", m["phase"].(string))
			}
		}
	}()

	runner := exec.NewRunner(4, hub)
	if err := boot.Boot(ctx, boot.Env{Set: set, Exec: runner, Hooks: hook.Default, Hub: hub}); err != nil {
		panic(err)
	}
	runner.Start(ctx)
	runner.Wait()

	if pin, ok := platform.Pin(pinLedA); ok {
		println("led_a toggles:", pin.Toggles())
	}
}
