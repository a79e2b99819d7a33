// Package resolve links parsed declarations together: typedef chains are
// followed to their underlying types, struct and enum tags to their
// definitions, and enumerator values into an evaluation environment used
// for array sizes and bitfield widths.
package resolve

import (
	"fmt"

	"github.com/raymyers/cbind/pkg/ctypes"
	"github.com/raymyers/cbind/pkg/expr"
	"github.com/raymyers/cbind/pkg/parser"
	"github.com/raymyers/cbind/pkg/platform"
)

// Resolver indexes one parse run's declarations.
type Resolver struct {
	profile  *platform.Profile
	typedefs map[string]ctypes.CType
	structs  map[string]*ctypes.Struct // keyed by tag, latest definition wins
	enums    map[string]*ctypes.Enum
	env      expr.Env
}

// New creates a resolver for the given target profile.
func New(profile *platform.Profile) *Resolver {
	return &Resolver{
		profile:  profile,
		typedefs: make(map[string]ctypes.CType),
		structs:  make(map[string]*ctypes.Struct),
		enums:    make(map[string]*ctypes.Enum),
		env:      make(expr.Env),
	}
}

// AddDecls indexes declarations in order. Enumerator values are evaluated
// incrementally so later enumerators can reference earlier ones; a value
// that cannot be evaluated gets a diagnostic on the enum and is skipped in
// the environment, never dropped from the definition.
func (r *Resolver) AddDecls(decls []parser.Decl) {
	for _, d := range decls {
		switch d := d.(type) {
		case *parser.StructDecl:
			if !d.Def.Opaque {
				r.structs[d.Def.Tag] = d.Def
			}
		case *parser.EnumDecl:
			if d.Def.Opaque {
				continue
			}
			r.enums[d.Def.Tag] = d.Def
			for _, e := range d.Def.Enumerators {
				v, err := expr.Eval(e.Value, r.env)
				if err != nil {
					d.Def.AddError(fmt.Sprintf("enumerator %s: %v", e.Name, err))
					continue
				}
				r.env[e.Name] = v
			}
		case *parser.TypedefDecl:
			r.typedefs[d.Name] = d.Type
		}
	}
}

// Env returns the enumerator evaluation environment.
func (r *Resolver) Env() expr.Env { return r.env }

// Profile returns the target ABI profile.
func (r *Resolver) Profile() *platform.Profile { return r.profile }

// LookupTypedef returns the type a typedef name aliases.
func (r *Resolver) LookupTypedef(name string) (ctypes.CType, bool) {
	t, ok := r.typedefs[name]
	return t, ok
}

// Resolve follows typedef references and opaque tag references to the
// underlying type. A name that never resolves gets a diagnostic attached
// and is returned as-is, so emitters can still render something useful.
func (r *Resolver) Resolve(t ctypes.CType) ctypes.CType {
	seen := make(map[string]bool)
	for {
		switch cur := t.(type) {
		case *ctypes.TypedefRef:
			if seen[cur.Name] {
				cur.AddError(fmt.Sprintf("typedef cycle through %q", cur.Name))
				return cur
			}
			seen[cur.Name] = true
			next, ok := r.typedefs[cur.Name]
			if !ok {
				cur.AddError(fmt.Sprintf("unresolved type name %q", cur.Name))
				return cur
			}
			t = next
		case *ctypes.Struct:
			if cur.Opaque {
				if def, ok := r.structs[cur.Tag]; ok {
					return def
				}
			}
			return cur
		case *ctypes.Enum:
			if cur.Opaque {
				if def, ok := r.enums[cur.Tag]; ok {
					return def
				}
			}
			return cur
		default:
			return t
		}
	}
}
