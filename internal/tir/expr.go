package tir

import "ferro/internal/source"

type ExprKind uint8

const (
	ExprUnit ExprKind = iota
	ExprLitInt
	ExprLitBool
	ExprLitString
	// ExprLocal names a binding or parameter.
	ExprLocal
	// ExprField is Base.Name.
	ExprField
	// ExprIndex is Base[Index].
	ExprIndex
	// ExprRef is &operand or &mut operand (Mut flag).
	ExprRef
	// ExprDeref is *operand.
	ExprDeref
	// ExprCall invokes Callee with Args. By-value args of non-Copy type move.
	ExprCall
	ExprStructLit
	ExprBinary
)

func (k ExprKind) String() string {
	switch k {
	case ExprUnit:
		return "unit"
	case ExprLitInt:
		return "lit_int"
	case ExprLitBool:
		return "lit_bool"
	case ExprLitString:
		return "lit_string"
	case ExprLocal:
		return "local"
	case ExprField:
		return "field"
	case ExprIndex:
		return "index"
	case ExprRef:
		return "ref"
	case ExprDeref:
		return "deref"
	case ExprCall:
		return "call"
	case ExprStructLit:
		return "struct_lit"
	case ExprBinary:
		return "binary"
	default:
		return "?"
	}
}

// FieldInit is one field of a struct literal.
type FieldInit struct {
	Name  string `msgpack:"name"`
	Value ExprID `msgpack:"value"`
}

// Expr is a tagged variant; which fields are meaningful depends on Kind.
// Every expression carries the type resolved by the upstream checker.
type Expr struct {
	Kind ExprKind    `msgpack:"kind"`
	Span source.Span `msgpack:"span"`
	Type TypeID      `msgpack:"type"`

	// Local name, field name, or callee name.
	Name string `msgpack:"name,omitempty"`
	// Literal text.
	Lit string `msgpack:"lit,omitempty"`

	// Primary operand: field/index base, ref/deref operand, binary lhs.
	X ExprID `msgpack:"x,omitempty"`
	// Index operand, binary rhs.
	Y ExprID `msgpack:"y,omitempty"`

	// Call arguments.
	Args []ExprID `msgpack:"args,omitempty"`
	// Struct literal fields.
	Fields []FieldInit `msgpack:"fields,omitempty"`

	// ExprRef exclusivity.
	Mut bool `msgpack:"mut,omitempty"`
	// ExprBinary operator.
	Op string `msgpack:"op,omitempty"`
}
