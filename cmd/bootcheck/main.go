// cmd/bootcheck/main.go
//
// Host tool: validates the registered boot sequence against a board plan.
// Firmware projects link their module packages into a small main that calls
// this logic, so definition-time conflicts (double-claimed peripherals,
// missing hook providers) surface in CI instead of on the bench.
package main

import (
	"flag"
	"os"

	"firmboot-go/boot"
	"firmboot-go/hook"
	"firmboot-go/periph"
	"firmboot-go/provider"
	"firmboot-go/types"
	"firmboot-go/x/fmtx"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Plan  types.Plan     `toml:"plan"`
	Hooks map[string]any `toml:"hooks"`
}

func main() {
	cfgPath := flag.String("config", "board.toml", "board plan and hook values")
	flag.Parse()

	var cfg fileConfig
	if _, err := toml.DecodeFile(*cfgPath, &cfg); err != nil {
		fail("read %s: %v", *cfgPath, err)
	}

	hooks := hook.NewRegistry()
	for k, v := range cfg.Hooks {
		if err := hook.ProvideAuto(hooks, k, v); err != nil {
			fail("hook %s: %v", k, err)
		}
	}

	if err := boot.Default.Validate(hooks); err != nil {
		fail("validate: %v", err)
	}

	set := periph.NewSet(provider.PlanIDs(cfg.Plan)...)
	for _, e := range boot.Default.Entries() {
		fmtx.Printf("%-8s %s\n", e.Kind(), e.Name())
		if t := e.Bundle(); t != nil {
			if _, err := t.ClaimFrom(set, e.Name()); err != nil {
				fail("  claim %s: %v", t.Name(), err)
			}
			fmtx.Printf("  bundle %s: %s\n", t.Name(), joinIDs(t.Leaves()))
		}
		for _, h := range e.Hooks() {
			fmtx.Printf("  hook   %s (%s)\n", h.Name, h.Type)
		}
	}

	if rest := set.Remaining(); len(rest) > 0 {
		fmtx.Printf("unbound: %s\n", joinIDs(rest))
	}
}

func joinIDs(ids []periph.ID) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " "
		}
		out += string(id)
	}
	return out
}

func fail(format string, a ...any) {
	fmtx.Printf(format+"\n", a...)
	os.Exit(1)
}
