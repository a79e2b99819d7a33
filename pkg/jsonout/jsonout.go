// Package jsonout emits the canonical model as an ordered sequence of
// JSON-compatible records. Records come out in model insertion order and
// object keys serialize in sorted order, so the byte stream is stable
// across runs for the same input.
package jsonout

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/raymyers/cbind/pkg/ctypes"
	"github.com/raymyers/cbind/pkg/expr"
	"github.com/raymyers/cbind/pkg/model"
)

// Options configures record emission.
type Options struct {
	// PathOverride, when non-empty, replaces the file component of every
	// src location. Used to make records diff-stable across machines.
	PathOverride string
}

// Records converts the model into JSON-compatible record maps. Maps and
// slices only; encoding/json serializes map keys in sorted order.
func Records(m *model.Model, opts Options) []map[string]any {
	e := emitter{opts: opts}
	records := make([]map[string]any, 0, m.Len())
	for _, entry := range m.Entries() {
		records = append(records, e.record(entry))
	}
	return records
}

// Marshal renders the model as an indented JSON array.
func Marshal(m *model.Model, opts Options) ([]byte, error) {
	return json.MarshalIndent(Records(m, opts), "", "    ")
}

// Write writes the marshaled records followed by a newline.
func Write(w io.Writer, m *model.Model, opts Options) error {
	data, err := Marshal(m, opts)
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

type emitter struct {
	opts Options
}

func (e *emitter) record(entry model.Entry) map[string]any {
	rec := map[string]any{
		"name": entry.Name,
		"type": string(entry.Kind),
	}
	if len(entry.Errors) > 0 {
		rec["errors"] = entry.Errors
	}

	switch entry.Kind {
	case model.KindMacro:
		rec["value"] = e.valueText(entry)
	case model.KindMacroFunction:
		rec["args"] = stringList(entry.Args)
		if entry.Body != nil {
			rec["body"] = entry.Body.Text()
		} else {
			rec["body"] = entry.Raw
		}
	case model.KindConstant:
		rec["value"] = e.valueText(entry)
	case model.KindStruct:
		s := entry.Type.(*ctypes.Struct)
		rec["fields"] = e.structFields(s)
	case model.KindEnum:
		en := entry.Type.(*ctypes.Enum)
		rec["fields"] = e.enumFields(en)
	case model.KindTypedef:
		rec["ctype"] = e.ctype(entry.Type)
	case model.KindFunction:
		fn := entry.Type.(*ctypes.Function)
		args := make([]any, 0, len(fn.Params))
		for _, p := range fn.Params {
			node := e.ctype(p.Type)
			node["identifier"] = p.Name
			args = append(args, node)
		}
		rec["args"] = args
		rec["return"] = e.ctype(fn.Return)
		rec["variadic"] = fn.Variadic
	}
	return rec
}

func (e *emitter) valueText(entry model.Entry) any {
	if entry.Value != nil {
		return entry.Value.Text()
	}
	return entry.Raw
}

// structFields renders the field list of a struct or enum record. A field
// without a visible name serializes as null, and bitfields additionally
// carry their width as canonical text.
func (e *emitter) structFields(s *ctypes.Struct) []any {
	fields := make([]any, 0, len(s.Members))
	for _, m := range s.Members {
		field := map[string]any{
			"name":  nullableName(m.Name),
			"ctype": e.ctype(m.Type),
		}
		if bf, ok := m.Type.(*ctypes.Bitfield); ok {
			field["bitfield"] = bf.Width.Text()
		}
		fields = append(fields, field)
	}
	return fields
}

func (e *emitter) enumFields(en *ctypes.Enum) []any {
	fields := make([]any, 0, len(en.Enumerators))
	for _, er := range en.Enumerators {
		fields = append(fields, map[string]any{
			"name":  er.Name,
			"ctype": e.expr(er.Value),
		})
	}
	return fields
}

// ctype renders one type node. Every node carries Klass and errors.
func (e *emitter) ctype(t ctypes.CType) map[string]any {
	node := map[string]any{
		"Klass":  t.Klass(),
		"errors": stringList(t.ErrorList()),
	}
	switch t := t.(type) {
	case *ctypes.Simple:
		node["name"] = t.Name
		node["signed"] = t.Signed
		node["longs"] = t.Longs
	case *ctypes.Pointer:
		node["destination"] = e.ctype(t.Dest)
	case *ctypes.Array:
		node["base"] = e.ctype(t.Base)
		if t.Count != nil {
			node["count"] = e.expr(t.Count)
		} else {
			node["count"] = nil
		}
	case *ctypes.Bitfield:
		node["base"] = e.ctype(t.Base)
		node["bitfield"] = e.expr(t.Width)
	case *ctypes.Struct:
		node["tag"] = t.Tag
		node["variety"] = t.Variety
		node["anonymous"] = t.Anonymous
		node["opaque"] = t.Opaque
		node["packed"] = t.Packed
		node["src"] = e.src(t.Src)
		members := make([]any, 0, len(t.Members))
		for _, m := range t.Members {
			members = append(members, []any{nullableName(m.Name), e.ctype(m.Type)})
		}
		node["members"] = members
	case *ctypes.Enum:
		node["tag"] = t.Tag
		node["anonymous"] = t.Anonymous
		node["opaque"] = t.Opaque
		node["src"] = e.src(t.Src)
		enumerators := make([]any, 0, len(t.Enumerators))
		for _, er := range t.Enumerators {
			enumerators = append(enumerators, []any{er.Name, e.expr(er.Value)})
		}
		node["enumerators"] = enumerators
	case *ctypes.Function:
		args := make([]any, 0, len(t.Params))
		for _, p := range t.Params {
			arg := e.ctype(p.Type)
			arg["identifier"] = p.Name
			args = append(args, arg)
		}
		node["args"] = args
		node["return"] = e.ctype(t.Return)
		node["variadic"] = t.Variadic
	case *ctypes.TypedefRef:
		node["name"] = t.Name
	}
	return node
}

// expr renders one expression node.
func (e *emitter) expr(n expr.Node) map[string]any {
	node := map[string]any{
		"Klass":  n.Klass(),
		"errors": stringList(n.ErrorList()),
	}
	switch n := n.(type) {
	case *expr.Constant:
		if n.IsFloat {
			node["value"] = n.FloatValue
		} else {
			node["value"] = n.Value
		}
	case *expr.StringLiteral:
		node["value"] = n.Value
	case *expr.Identifier:
		node["name"] = n.Name
	case *expr.Unary:
		node["name"] = n.Name
		node["format"] = n.Format
		node["operand"] = e.expr(n.Operand)
	case *expr.Binary:
		node["name"] = n.Name
		node["format"] = n.Format
		node["left"] = e.expr(n.Left)
		node["right"] = e.expr(n.Right)
		// Constant-expression operands are values, never type names.
		node["can_be_ctype"] = []bool{false, false}
	case *expr.Conditional:
		node["cond"] = e.expr(n.Cond)
		node["then"] = e.expr(n.Then)
		node["else"] = e.expr(n.Else)
	case *expr.Call:
		node["callee"] = n.Callee
		args := make([]any, 0, len(n.Args))
		for _, a := range n.Args {
			args = append(args, e.expr(a))
		}
		node["args"] = args
	}
	return node
}

// src serializes a source location as a [file, line] pair.
func (e *emitter) src(loc ctypes.SourceLoc) []any {
	file := loc.File
	if e.opts.PathOverride != "" {
		file = e.opts.PathOverride
	}
	return []any{file, loc.Line}
}

func nullableName(name string) any {
	if name == "" {
		return nil
	}
	return name
}

// stringList keeps empty lists as [] rather than null in the output.
func stringList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
