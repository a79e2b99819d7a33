// layout.go computes struct and union layout for the target ABI: member
// offsets, bitfield allocation, total size, and alignment.
package resolve

import (
	"fmt"

	"github.com/raymyers/cbind/pkg/ctypes"
	"github.com/raymyers/cbind/pkg/expr"
)

// Field is one laid-out member. Offset is in bytes from the start of the
// aggregate. For bitfields, BitOffset is the bit position within the
// storage unit at Offset and BitWidth is the field width; both are -1 for
// ordinary members.
type Field struct {
	Name      string
	Offset    int
	BitOffset int
	BitWidth  int
}

// Layout is the computed layout of one struct or union.
type Layout struct {
	Size   int
	Align  int
	Fields []Field
}

// SizeAlign returns the size and alignment of a type in bytes. Typedef
// references are resolved first. Function types have no size; an
// incomplete array contributes zero bytes.
func (r *Resolver) SizeAlign(t ctypes.CType) (int, int, error) {
	switch t := r.Resolve(t).(type) {
	case *ctypes.Simple:
		info, err := r.profile.Scalar(t)
		if err != nil {
			return 0, 0, err
		}
		return info.Size, info.Align, nil
	case *ctypes.Pointer:
		return r.profile.Pointer.Size, r.profile.Pointer.Align, nil
	case *ctypes.Enum:
		return r.profile.Int.Size, r.profile.Int.Align, nil
	case *ctypes.Array:
		size, align, err := r.SizeAlign(t.Base)
		if err != nil {
			return 0, 0, err
		}
		if t.Count == nil {
			return 0, align, nil
		}
		n, err := expr.Eval(t.Count, r.env)
		if err != nil {
			return 0, 0, fmt.Errorf("array size: %w", err)
		}
		if n < 0 {
			return 0, 0, fmt.Errorf("negative array size %d", n)
		}
		return size * int(n), align, nil
	case *ctypes.Struct:
		l, err := r.Layout(t)
		if err != nil {
			return 0, 0, err
		}
		return l.Size, l.Align, nil
	case *ctypes.Function:
		return 0, 0, fmt.Errorf("function type has no size")
	case *ctypes.TypedefRef:
		return 0, 0, fmt.Errorf("unresolved type name %q", t.Name)
	case *ctypes.Bitfield:
		return 0, 0, fmt.Errorf("bitfield outside aggregate")
	}
	return 0, 0, fmt.Errorf("cannot size %T", t)
}

// Layout computes the layout of a struct or union definition. Packed
// aggregates use pack=1 semantics: every member aligns to one byte and the
// total size is not rounded up. Bitfields allocate within storage units of
// their base type; a field that would straddle a unit boundary starts a
// new unit, a zero-width unnamed field closes the current unit, and an
// unnamed nonzero-width field occupies bits without a visible name.
func (r *Resolver) Layout(s *ctypes.Struct) (Layout, error) {
	if s.Opaque {
		if def, ok := r.structs[s.Tag]; ok {
			s = def
		} else {
			return Layout{}, fmt.Errorf("%s %s is opaque", s.Variety, s.Tag)
		}
	}
	if s.Variety == "union" {
		return r.layoutUnion(s)
	}
	return r.layoutStruct(s)
}

func (r *Resolver) layoutStruct(s *ctypes.Struct) (Layout, error) {
	var l Layout
	l.Align = 1
	bitPos := 0

	for _, m := range s.Members {
		mt := r.Resolve(m.Type)

		if bf, ok := mt.(*ctypes.Bitfield); ok {
			base := r.Resolve(bf.Base)
			bsize, balign, err := r.SizeAlign(base)
			if err != nil {
				return Layout{}, fmt.Errorf("member %s: %w", m.Name, err)
			}
			width64, err := expr.Eval(bf.Width, r.env)
			if err != nil {
				return Layout{}, fmt.Errorf("member %s: bitfield width: %w", m.Name, err)
			}
			width := int(width64)
			unit := bsize * 8
			if width > unit {
				return Layout{}, fmt.Errorf("member %s: width %d exceeds storage unit", m.Name, width)
			}
			if width == 0 {
				// Zero-width field forces the next member to a fresh unit.
				bitPos = roundUp(bitPos, unit)
				continue
			}
			if s.Packed {
				// pack=1 allocates bits contiguously with no unit realignment.
				l.Fields = append(l.Fields, Field{
					Name:      m.Name,
					Offset:    bitPos / 8,
					BitOffset: bitPos % 8,
					BitWidth:  width,
				})
				bitPos += width
				continue
			}
			if bitPos%unit+width > unit {
				bitPos = roundUp(bitPos, unit)
			}
			unitStart := bitPos - bitPos%unit
			if !s.Packed {
				l.Align = max(l.Align, balign)
			}
			l.Fields = append(l.Fields, Field{
				Name:      m.Name,
				Offset:    unitStart / 8,
				BitOffset: bitPos - unitStart,
				BitWidth:  width,
			})
			bitPos += width
			continue
		}

		size, malign, err := r.SizeAlign(mt)
		if err != nil {
			return Layout{}, fmt.Errorf("member %s: %w", m.Name, err)
		}
		if s.Packed {
			malign = 1
		}
		bitPos = roundUp(bitPos, malign*8)
		l.Fields = append(l.Fields, Field{
			Name:      m.Name,
			Offset:    bitPos / 8,
			BitOffset: -1,
			BitWidth:  -1,
		})
		bitPos += size * 8
		l.Align = max(l.Align, malign)
	}

	l.Size = roundUp(bitPos, l.Align*8) / 8
	return l, nil
}

func (r *Resolver) layoutUnion(s *ctypes.Struct) (Layout, error) {
	var l Layout
	l.Align = 1
	for _, m := range s.Members {
		mt := r.Resolve(m.Type)
		var size, malign int
		var err error
		if bf, ok := mt.(*ctypes.Bitfield); ok {
			size, malign, err = r.SizeAlign(r.Resolve(bf.Base))
		} else {
			size, malign, err = r.SizeAlign(mt)
		}
		if err != nil {
			return Layout{}, fmt.Errorf("member %s: %w", m.Name, err)
		}
		if s.Packed {
			malign = 1
		}
		field := Field{Name: m.Name, Offset: 0, BitOffset: -1, BitWidth: -1}
		if bf, ok := mt.(*ctypes.Bitfield); ok {
			width64, werr := expr.Eval(bf.Width, r.env)
			if werr != nil {
				return Layout{}, fmt.Errorf("member %s: bitfield width: %w", m.Name, werr)
			}
			field.BitOffset = 0
			field.BitWidth = int(width64)
		}
		l.Fields = append(l.Fields, field)
		l.Size = max(l.Size, size)
		l.Align = max(l.Align, malign)
	}
	l.Size = roundUp(l.Size*8, l.Align*8) / 8
	return l, nil
}

func roundUp(n, to int) int {
	if to <= 0 {
		return n
	}
	return (n + to - 1) / to * to
}
