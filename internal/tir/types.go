package tir

type TypeKind uint8

const (
	TypeUnit TypeKind = iota
	TypeBool
	TypeInt
	TypeString
	// TypeRef is &T or &mut T, possibly lifetime-elided.
	TypeRef
	// TypeSlice is an unsized sequence [T]; it only appears behind a reference.
	TypeSlice
	// TypeArray is an owned growable sequence.
	TypeArray
	TypeStruct
)

func (k TypeKind) String() string {
	switch k {
	case TypeUnit:
		return "unit"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeRef:
		return "ref"
	case TypeSlice:
		return "slice"
	case TypeArray:
		return "array"
	case TypeStruct:
		return "struct"
	default:
		return "?"
	}
}

// Field describes one struct field. Reference-typed fields may declare a
// lifetime param of the owning struct.
type Field struct {
	Name     string `msgpack:"name"`
	Type     TypeID `msgpack:"type"`
	Lifetime string `msgpack:"lifetime,omitempty"`
}

// Type is a tagged variant; which fields are meaningful depends on Kind.
type Type struct {
	Kind TypeKind `msgpack:"kind"`

	// Struct name, or "" for anonymous/composite types.
	Name string `msgpack:"name,omitempty"`

	// Ref/Slice/Array element.
	Elem TypeID `msgpack:"elem,omitempty"`
	// Ref exclusivity.
	Mut bool `msgpack:"mut,omitempty"`
	// Ref annotation, e.g. "'a". Empty means elided.
	Lifetime string `msgpack:"lifetime,omitempty"`

	// Struct payload.
	Fields    []Field  `msgpack:"fields,omitempty"`
	Lifetimes []string `msgpack:"lifetimes,omitempty"`

	// Copy types keep value semantics: use-by-value never moves.
	Copy bool `msgpack:"copy,omitempty"`
	// Interior marks cell-like types whose aliasing is checked at runtime by
	// the language, not statically. The verifier exempts such places from the
	// conflict rules and flags the bindings instead.
	Interior bool `msgpack:"interior,omitempty"`
}
