// bundle/bundle.go
package bundle

import (
	"firmboot-go/errcode"
	"firmboot-go/periph"
)

// -----------------------------------------------------------------------------
// Type definition
// -----------------------------------------------------------------------------

// Field declares one named member of a bundle type: either a leaf token
// (Token set) or a nested bundle (Bundle set), never both.
type Field struct {
	Name   string
	Token  periph.ID
	Bundle *Type
}

// Leaf declares a token field.
func Leaf(name string, id periph.ID) Field { return Field{Name: name, Token: id} }

// Nested declares a sub-bundle field.
func Nested(name string, t *Type) Field { return Field{Name: name, Bundle: t} }

// Type is a named bundle shape. Types are defined once, at program
// definition time, and are immutable thereafter. Definition fails by panic:
// a bundle whose fields alias a leaf token, even transitively through nested
// bundles, must never come into existence.
type Type struct {
	name   string
	fields []Field
	leaves []periph.ID // transitive, declaration order
}

// Define produces a new bundle type. Fields may mix leaf tokens and nested
// bundles. Panics on an empty or duplicate field name, a field declaring
// neither or both of token/bundle, or any leaf token reachable through two
// fields (errcode.AliasedToken).
func Define(name string, fields ...Field) *Type {
	t := &Type{name: name, fields: fields}

	names := make(map[string]struct{}, len(fields))
	seen := make(map[periph.ID]struct{})
	for _, f := range fields {
		if f.Name == "" {
			panic(&errcode.E{C: errcode.InvalidField, Op: "define", Msg: name + ": empty field name"})
		}
		if _, dup := names[f.Name]; dup {
			panic(&errcode.E{C: errcode.DuplicateField, Op: "define", Msg: name + "." + f.Name})
		}
		names[f.Name] = struct{}{}

		switch {
		case f.Token != "" && f.Bundle == nil:
			t.addLeaf(seen, f.Token)
		case f.Token == "" && f.Bundle != nil:
			for _, id := range f.Bundle.leaves {
				t.addLeaf(seen, id)
			}
		default:
			panic(&errcode.E{C: errcode.InvalidField, Op: "define",
				Msg: name + "." + f.Name + ": exactly one of token or bundle"})
		}
	}
	return t
}

// Group produces a coarser bundle type whose fields are all existing bundle
// types. The transitive aliasing check is the same as Define's.
func Group(name string, fields ...Field) *Type {
	for _, f := range fields {
		if f.Bundle == nil {
			panic(&errcode.E{C: errcode.InvalidField, Op: "group",
				Msg: name + "." + f.Name + ": group fields must be bundles"})
		}
	}
	return Define(name, fields...)
}

func (t *Type) addLeaf(seen map[periph.ID]struct{}, id periph.ID) {
	if _, dup := seen[id]; dup {
		panic(&errcode.E{C: errcode.AliasedToken, Op: "define", Msg: t.name + ": " + string(id)})
	}
	seen[id] = struct{}{}
	t.leaves = append(t.leaves, id)
}

// Name returns the bundle type name.
func (t *Type) Name() string { return t.name }

// Fields returns the declared fields in order.
func (t *Type) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Leaves returns the transitive leaf token set, in declaration order.
func (t *Type) Leaves() []periph.ID {
	out := make([]periph.ID, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// -----------------------------------------------------------------------------
// Instances
// -----------------------------------------------------------------------------

// Part is one constructor argument for Compose: a token or an instance being
// moved into the named field.
type Part struct {
	Name   string
	Token  periph.Token
	Bundle *Instance
}

// Tok moves a token into the named field.
func Tok(name string, t periph.Token) Part { return Part{Name: name, Token: t} }

// Sub moves a bundle instance into the named field.
func Sub(name string, b *Instance) Part { return Part{Name: name, Bundle: b} }

// Instance is a live bundle: one owned value per declared field. Instances
// are move-only; constructing one consumes its sources, and moving a field
// out (or the whole instance) invalidates the previous holder.
type Instance struct {
	typ    *Type
	moved  bool
	tokens map[string]periph.Token
	nested map[string]*Instance
	taken  map[string]bool // fields already moved out
}

// ClaimFrom materializes an instance by claiming every leaf token from the
// set, in declaration order, under the given owner name. The claim is
// all-or-nothing: availability is verified up front, so a conflict leaves
// the set untouched. Only the boot phase calls this, single-threaded.
func (t *Type) ClaimFrom(set *periph.Set, owner string) (*Instance, error) {
	for _, id := range t.leaves {
		if !set.Has(id) {
			return nil, &errcode.E{C: errcode.UnknownToken, Op: "claim", Msg: t.name + ": " + string(id)}
		}
		if holder, claimed := set.Owner(id); claimed {
			return nil, &errcode.E{C: errcode.TokenClaimed, Op: "claim",
				Msg: t.name + ": " + string(id) + " held by " + holder}
		}
	}
	return t.build(func(id periph.ID) (periph.Token, error) {
		return set.Claim(owner, id)
	})
}

// Compose builds an instance by moving in one already-owned value per
// declared field. Sources are consumed even when they arrive inside nested
// instances. A missing or mistyped part is a definition-time error; every
// part is validated before anything moves, so a rejected call leaves all
// sources live.
func (t *Type) Compose(parts ...Part) (*Instance, error) {
	byName := make(map[string]Part, len(parts))
	for _, p := range parts {
		if _, dup := byName[p.Name]; dup {
			return nil, &errcode.E{C: errcode.DuplicateField, Op: "compose", Msg: t.name + "." + p.Name}
		}
		byName[p.Name] = p
	}

	names := make(map[string]struct{}, len(t.fields))
	for _, f := range t.fields {
		names[f.Name] = struct{}{}
	}
	for _, p := range parts {
		if _, ok := names[p.Name]; !ok {
			return nil, &errcode.E{C: errcode.UnknownField, Op: "compose", Msg: t.name + "." + p.Name}
		}
	}

	for _, f := range t.fields {
		p, ok := byName[f.Name]
		if !ok {
			return nil, &errcode.E{C: errcode.UnknownField, Op: "compose",
				Msg: t.name + "." + f.Name + ": missing part"}
		}
		if f.Bundle != nil {
			if p.Bundle == nil || p.Bundle.moved || p.Bundle.typ != f.Bundle {
				return nil, &errcode.E{C: errcode.InvalidField, Op: "compose",
					Msg: t.name + "." + f.Name + ": bundle of type " + f.Bundle.name + " required"}
			}
			continue
		}
		if !p.Token.Valid() || p.Token.ID() != f.Token {
			return nil, &errcode.E{C: errcode.InvalidField, Op: "compose",
				Msg: t.name + "." + f.Name + ": token " + string(f.Token) + " required"}
		}
	}

	inst := newInstance(t)
	for _, f := range t.fields {
		p := byName[f.Name]
		if f.Bundle != nil {
			inst.nested[f.Name] = p.Bundle.Move()
			continue
		}
		inst.tokens[f.Name] = p.Token.Move()
	}
	return inst, nil
}

func newInstance(t *Type) *Instance {
	return &Instance{
		typ:    t,
		tokens: make(map[string]periph.Token),
		nested: make(map[string]*Instance),
		taken:  make(map[string]bool),
	}
}

func (t *Type) build(claim func(periph.ID) (periph.Token, error)) (*Instance, error) {
	inst := newInstance(t)
	for _, f := range t.fields {
		if f.Bundle != nil {
			sub, err := f.Bundle.build(claim)
			if err != nil {
				return nil, err
			}
			inst.nested[f.Name] = sub
			continue
		}
		tok, err := claim(f.Token)
		if err != nil {
			return nil, err
		}
		inst.tokens[f.Name] = tok
	}
	return inst, nil
}

// Type returns the instance's bundle type.
func (i *Instance) Type() *Type {
	i.check()
	return i.typ
}

// Token moves the named leaf field out of the instance. The field cannot be
// taken twice; the instance keeps its other fields.
func (i *Instance) Token(name string) periph.Token {
	i.check()
	tok, ok := i.tokens[name]
	if !ok || i.taken[name] {
		panic(&errcode.E{C: errcode.UnknownField, Op: "token", Msg: i.typ.name + "." + name})
	}
	i.taken[name] = true
	return tok.Move()
}

// Bundle moves the named nested bundle out of the instance.
func (i *Instance) Bundle(name string) *Instance {
	i.check()
	sub, ok := i.nested[name]
	if !ok || i.taken[name] {
		panic(&errcode.E{C: errcode.UnknownField, Op: "bundle", Msg: i.typ.name + "." + name})
	}
	i.taken[name] = true
	return sub.Move()
}

// Move transfers the whole instance; the receiver and every prior reference
// to it become invalid.
func (i *Instance) Move() *Instance {
	i.check()
	i.moved = true
	out := &Instance{typ: i.typ, tokens: i.tokens, nested: i.nested, taken: i.taken}
	i.tokens, i.nested, i.taken = nil, nil, nil
	return out
}

// Leaves lists the leaf tokens still held by the instance (fields moved out
// are excluded), in declaration order.
func (i *Instance) Leaves() []periph.ID {
	i.check()
	var out []periph.ID
	for _, f := range i.typ.fields {
		if i.taken[f.Name] {
			continue
		}
		if f.Bundle != nil {
			out = append(out, i.nested[f.Name].Leaves()...)
			continue
		}
		out = append(out, f.Token)
	}
	return out
}

func (i *Instance) check() {
	if i == nil || i.moved {
		panic(errcode.BundleMoved)
	}
}
