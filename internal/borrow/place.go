package borrow

import (
	"strings"
)

// BindingID identifies one binding in a function's Table.
type BindingID int32

const NoBindingID BindingID = -1

func (id BindingID) IsValid() bool { return id >= 0 }

type ProjKind uint8

const (
	// ProjField selects a named struct field.
	ProjField ProjKind = iota
	// ProjIndex selects an element; distinct indices are not distinguished,
	// so any two index projections of the same base overlap.
	ProjIndex
	// ProjDeref follows a reference.
	ProjDeref
)

type Proj struct {
	Kind  ProjKind
	Field string
}

// Place is a root binding plus a projection path. Identity is structural;
// places are immutable once constructed.
type Place struct {
	Base BindingID
	Proj []Proj
	// Interior marks places routed through an interior-mutability type;
	// such places are exempt from the static conflict rules.
	Interior bool
}

func PlaceOf(base BindingID) Place {
	return Place{Base: base}
}

func (p Place) IsValid() bool { return p.Base.IsValid() }

func (p Place) WithField(name string) Place {
	return Place{Base: p.Base, Proj: appendProj(p.Proj, Proj{Kind: ProjField, Field: name}), Interior: p.Interior}
}

func (p Place) WithIndex() Place {
	return Place{Base: p.Base, Proj: appendProj(p.Proj, Proj{Kind: ProjIndex}), Interior: p.Interior}
}

func (p Place) WithDeref() Place {
	return Place{Base: p.Base, Proj: appendProj(p.Proj, Proj{Kind: ProjDeref}), Interior: p.Interior}
}

// appendProj copies so sibling places never share backing arrays.
func appendProj(proj []Proj, next Proj) []Proj {
	out := make([]Proj, 0, len(proj)+1)
	out = append(out, proj...)
	return append(out, next)
}

func (p Place) Equal(q Place) bool {
	if p.Base != q.Base || len(p.Proj) != len(q.Proj) {
		return false
	}
	for i := range p.Proj {
		if p.Proj[i] != q.Proj[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether borrowing or mutating one place can observe the
// other: true when one projection path is a prefix of the other. Paths that
// diverge at a field step never overlap, which is what allows simultaneous
// exclusive borrows of p.x and p.y. Index steps are not distinguished from
// each other, so v[i] and v[j] conservatively overlap.
func (p Place) Overlaps(q Place) bool {
	if p.Base != q.Base {
		return false
	}
	if p.Interior || q.Interior {
		return false
	}
	n := min(len(p.Proj), len(q.Proj))
	for i := range n {
		a, b := p.Proj[i], q.Proj[i]
		if a.Kind != b.Kind {
			// A field step against an index step cannot name the same
			// location in a well-typed program.
			return false
		}
		if a.Kind == ProjField && a.Field != b.Field {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether p names a containing location of q (or q itself).
func (p Place) IsPrefixOf(q Place) bool {
	if p.Base != q.Base || len(p.Proj) > len(q.Proj) {
		return false
	}
	for i := range p.Proj {
		if p.Proj[i] != q.Proj[i] {
			return false
		}
	}
	return true
}

// Key returns the canonical string identity, e.g. "b3.x[]" for binding 3's
// field x indexed. Used as the moved-set map key.
func (p Place) Key() string {
	var sb strings.Builder
	sb.WriteByte('b')
	writeInt(&sb, int32(p.Base))
	for _, pr := range p.Proj {
		switch pr.Kind {
		case ProjField:
			sb.WriteByte('.')
			sb.WriteString(pr.Field)
		case ProjIndex:
			sb.WriteString("[]")
		case ProjDeref:
			sb.WriteByte('*')
		}
	}
	return sb.String()
}

// Describe renders the place with its binding name for diagnostics,
// e.g. "point.x".
func (p Place) Describe(tab *Table) string {
	var sb strings.Builder
	if b := tab.Binding(p.Base); b != nil {
		sb.WriteString(b.Name)
	} else {
		sb.WriteByte('?')
	}
	for _, pr := range p.Proj {
		switch pr.Kind {
		case ProjField:
			sb.WriteByte('.')
			sb.WriteString(pr.Field)
		case ProjIndex:
			sb.WriteString("[..]")
		case ProjDeref:
			// Keep the surface syntax order: deref prefixes bind tighter
			// in diagnostics when rendered postfix-free.
			prefixed := "*" + sb.String()
			sb.Reset()
			sb.WriteString(prefixed)
		}
	}
	return sb.String()
}

func writeInt(sb *strings.Builder, v int32) {
	if v < 0 {
		sb.WriteByte('-')
		v = -v
	}
	var buf [12]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	sb.Write(buf[i:])
}
