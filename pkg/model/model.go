// Package model defines the canonical in-memory representation of one
// parsed header. The pipeline populates it in a single pass; once built it
// is read-only and both emitters derive their output from the same
// instance, which keeps the two outputs mutually consistent.
package model

import (
	"github.com/raymyers/cbind/pkg/ctypes"
	"github.com/raymyers/cbind/pkg/expr"
)

// Kind is the record type of a top-level entry.
type Kind string

const (
	KindMacro         Kind = "macro"
	KindMacroFunction Kind = "macro_function"
	KindConstant      Kind = "constant"
	KindStruct        Kind = "struct"
	KindEnum          Kind = "enum"
	KindTypedef       Kind = "typedef"
	KindFunction      Kind = "function"
)

// Entry is one top-level item. Which fields are set depends on Kind:
//
//	macro:          Value
//	macro_function: Args, Body
//	constant:       Value (enumerators and object-like macro constants)
//	struct, enum:   Type (*ctypes.Struct / *ctypes.Enum)
//	typedef:        Type (the underlying type)
//	function:       Type (*ctypes.Function)
type Entry struct {
	Kind   Kind
	Name   string
	Value  expr.Node
	Args   []string
	Body   expr.Node
	Raw    string // raw source text, kept when a macro body fails to normalize
	Type   ctypes.CType
	Src    ctypes.SourceLoc
	Errors []string // entry-level diagnostics, e.g. per-macro expansion errors
}

// Model is the ordered sequence of top-level entries for one header.
// Insertion order is preserved and is the emission order.
type Model struct {
	entries []Entry
	byName  map[string]int
}

// New creates an empty model.
func New() *Model {
	return &Model{byName: make(map[string]int)}
}

// Add appends an entry. A later entry with the same name does not displace
// the earlier one in emission order; Lookup returns the latest.
func (m *Model) Add(e Entry) {
	m.byName[e.Name] = len(m.entries)
	m.entries = append(m.entries, e)
}

// Entries returns the entries in insertion order.
func (m *Model) Entries() []Entry {
	return m.entries
}

// Lookup returns the most recent entry with the given name.
func (m *Model) Lookup(name string) (Entry, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Len returns the number of entries.
func (m *Model) Len() int {
	return len(m.entries)
}
