// hook/hook.go
package hook

import (
	"sync"
	"time"

	"firmboot-go/errcode"
)

// -----------------------------------------------------------------------------
// Specs and value types
// -----------------------------------------------------------------------------

// Type is a reflect-free tag for a hook value. Providers and declarations
// must agree on the tag; a mismatch is a definition-time error.
type Type string

const (
	TypeBool     Type = "bool"
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeString   Type = "string"
	TypeDuration Type = "duration"
)

// Spec declares one hook parameter on a task: a name and the expected type.
type Spec struct {
	Name string
	Type Type
}

// Bool, Int, Float, Str and Dur are Spec shorthands for task declarations.
func Bool(name string) Spec  { return Spec{Name: name, Type: TypeBool} }
func Int(name string) Spec   { return Spec{Name: name, Type: TypeInt} }
func Float(name string) Spec { return Spec{Name: name, Type: TypeFloat} }
func Str(name string) Spec   { return Spec{Name: name, Type: TypeString} }
func Dur(name string) Spec   { return Spec{Name: name, Type: TypeDuration} }

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

type provider struct {
	typ Type
	fn  func() any
}

// Registry holds named hook providers. Providers are installed at program
// definition time (typically from init functions); duplicates panic.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]provider)}
}

// Default is the process-wide registry used by decentralized provider
// installation, mirroring the boot registry.
var Default = NewRegistry()

// Provide installs a provider whose value is computed at resolve time.
func (r *Registry) Provide(name string, typ Type, fn func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" || fn == nil {
		panic(&errcode.E{C: errcode.InvalidField, Op: "provide", Msg: name})
	}
	if _, dup := r.providers[name]; dup {
		panic(&errcode.E{C: errcode.DuplicateHook, Op: "provide", Msg: name})
	}
	r.providers[name] = provider{typ: typ, fn: fn}
}

// ProvideValue installs a fixed value provider.
func (r *Registry) ProvideValue(name string, typ Type, v any) {
	r.Provide(name, typ, func() any { return v })
}

// Check verifies that a provider exists for the spec with a matching type,
// without invoking it. Boot validation uses this.
func (r *Registry) Check(s Spec) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[s.Name]
	if !ok {
		return &errcode.E{C: errcode.MissingHook, Op: "check", Msg: s.Name}
	}
	if p.typ != s.Type {
		return &errcode.E{C: errcode.HookTypeMismatch, Op: "check",
			Msg: s.Name + ": have " + string(p.typ) + ", want " + string(s.Type)}
	}
	return nil
}

// Resolve produces the value set for one task instantiation. Each provider
// runs once; the resulting Values are fixed for the task's lifetime.
func (r *Registry) Resolve(specs []Spec) (Values, error) {
	vals := Values{m: make(map[string]any, len(specs))}
	for _, s := range specs {
		if err := r.Check(s); err != nil {
			return Values{}, err
		}
		r.mu.RLock()
		p := r.providers[s.Name]
		r.mu.RUnlock()
		v := p.fn()
		if !matches(s.Type, v) {
			return Values{}, &errcode.E{C: errcode.HookTypeMismatch, Op: "resolve", Msg: s.Name}
		}
		vals.m[s.Name] = v
	}
	return vals, nil
}

func matches(t Type, v any) bool {
	switch t {
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeInt:
		_, ok := v.(int64)
		return ok
	case TypeFloat:
		_, ok := v.(float64)
		return ok
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeDuration:
		_, ok := v.(time.Duration)
		return ok
	}
	return false
}

// -----------------------------------------------------------------------------
// Values
// -----------------------------------------------------------------------------

// Values is the resolved hook set handed to a task. It is part of the
// task's fixed initial state: resolved once, never re-resolved or mutated.
type Values struct {
	m map[string]any
}

// Has reports whether a hook value is present.
func (v Values) Has(name string) bool {
	_, ok := v.m[name]
	return ok
}

func (v Values) get(name string) any {
	x, ok := v.m[name]
	if !ok {
		panic(&errcode.E{C: errcode.MissingHook, Op: "get", Msg: name})
	}
	return x
}

// Typed accessors. Reading a hook the task did not declare, or with the
// wrong type, is a programming error and panics.
func (v Values) Bool(name string) bool              { return as[bool](v, name) }
func (v Values) Int(name string) int64              { return as[int64](v, name) }
func (v Values) Float(name string) float64          { return as[float64](v, name) }
func (v Values) String(name string) string          { return as[string](v, name) }
func (v Values) Duration(name string) time.Duration { return as[time.Duration](v, name) }

func as[T any](v Values, name string) T {
	x, ok := v.get(name).(T)
	if !ok {
		panic(&errcode.E{C: errcode.HookTypeMismatch, Op: "get", Msg: name})
	}
	return x
}
