// hook/hook_test.go
package hook

import (
	"testing"
	"time"

	"firmboot-go/errcode"
)

func TestResolveTypedValues(t *testing.T) {
	r := NewRegistry()
	r.ProvideValue("enabled", TypeBool, true)
	r.ProvideValue("retries", TypeInt, int64(3))
	r.ProvideValue("gain", TypeFloat, 1.5)
	r.ProvideValue("label", TypeString, "core")
	r.ProvideValue("period", TypeDuration, 250*time.Millisecond)

	vals, err := r.Resolve([]Spec{
		Bool("enabled"), Int("retries"), Float("gain"), Str("label"), Dur("period"),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !vals.Bool("enabled") || vals.Int("retries") != 3 || vals.Float("gain") != 1.5 {
		t.Error("scalar values wrong")
	}
	if vals.String("label") != "core" || vals.Duration("period") != 250*time.Millisecond {
		t.Error("string/duration values wrong")
	}
}

func TestResolveMissingProvider(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve([]Spec{Dur("blink_interval")}); errcode.Of(err) != errcode.MissingHook {
		t.Errorf("err = %v, want missing_hook", err)
	}
}

func TestResolveTypeMismatch(t *testing.T) {
	r := NewRegistry()
	r.ProvideValue("period", TypeInt, int64(250))
	if _, err := r.Resolve([]Spec{Dur("period")}); errcode.Of(err) != errcode.HookTypeMismatch {
		t.Errorf("err = %v, want hook_type_mismatch", err)
	}
}

func TestProviderRunsPerResolve(t *testing.T) {
	r := NewRegistry()
	n := int64(0)
	r.Provide("seq", TypeInt, func() any { n++; return n })

	v1, err := r.Resolve([]Spec{Int("seq")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	v2, err := r.Resolve([]Spec{Int("seq")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v1.Int("seq") != 1 || v2.Int("seq") != 2 {
		t.Errorf("got %d, %d; providers must run once per resolve", v1.Int("seq"), v2.Int("seq"))
	}
}

func TestDuplicateProviderPanics(t *testing.T) {
	r := NewRegistry()
	r.ProvideValue("x", TypeInt, int64(1))
	defer func() {
		if p := recover(); p == nil {
			t.Fatal("expected panic on duplicate provider")
		}
	}()
	r.ProvideValue("x", TypeInt, int64(2))
}

func TestProviderValueShapeChecked(t *testing.T) {
	r := NewRegistry()
	// declared as duration but produces a string
	r.ProvideValue("period", TypeDuration, "fast")
	if _, err := r.Resolve([]Spec{Dur("period")}); errcode.Of(err) != errcode.HookTypeMismatch {
		t.Errorf("err = %v, want hook_type_mismatch", err)
	}
}

func TestValuesAccessorsPanicOnMisuse(t *testing.T) {
	r := NewRegistry()
	r.ProvideValue("retries", TypeInt, int64(3))
	vals, err := r.Resolve([]Spec{Int("retries")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	defer func() {
		if p := recover(); p == nil {
			t.Fatal("expected panic reading undeclared hook")
		}
	}()
	vals.String("label")
}

func TestLoadJSON(t *testing.T) {
	r := NewRegistry()
	raw := []byte(`{"blink_interval_ms": 500, "label": "demo", "enabled": true, "gain": 0.5}`)
	if err := LoadJSON(r, raw); err != nil {
		t.Fatalf("load: %v", err)
	}

	vals, err := r.Resolve([]Spec{
		Dur("blink_interval"), Str("label"), Bool("enabled"), Float("gain"),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if vals.Duration("blink_interval") != 500*time.Millisecond {
		t.Errorf("blink_interval = %v", vals.Duration("blink_interval"))
	}
	if vals.String("label") != "demo" || !vals.Bool("enabled") || vals.Float("gain") != 0.5 {
		t.Error("loaded values wrong")
	}
}

func TestProvideAuto(t *testing.T) {
	r := NewRegistry()
	if err := ProvideAuto(r, "timeout_ms", int64(1000)); err != nil {
		t.Fatalf("provide: %v", err)
	}
	vals, err := r.Resolve([]Spec{Dur("timeout")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if vals.Duration("timeout") != time.Second {
		t.Errorf("timeout = %v", vals.Duration("timeout"))
	}
}
