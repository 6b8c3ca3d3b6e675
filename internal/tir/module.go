package tir

import (
	"ferro/internal/source"
)

// SchemaVersion guards serialized modules; bump when the format changes.
const SchemaVersion uint16 = 1

// SourceFile embeds one originating source so diagnostics can render context
// without re-reading the compiler's working tree.
type SourceFile struct {
	Path    string `msgpack:"path"`
	Content []byte `msgpack:"content"`
}

// Module is the unit handed over by the type checker.
type Module struct {
	Schema  uint16       `msgpack:"schema"`
	Name    string       `msgpack:"name"`
	Sources []SourceFile `msgpack:"sources"`
	Types   []Type       `msgpack:"types"`
	Funcs   []Func       `msgpack:"funcs"`
}

// Type returns the arena node, or nil for an invalid id.
func (m *Module) Type(id TypeID) *Type {
	if !id.IsValid() || int(id) >= len(m.Types) {
		return nil
	}
	return &m.Types[id]
}

// IsCopy reports whether use-by-value of this type preserves the source.
func (m *Module) IsCopy(id TypeID) bool {
	t := m.Type(id)
	return t != nil && t.Copy
}

// IsRef reports whether id is a reference type.
func (m *Module) IsRef(id TypeID) bool {
	t := m.Type(id)
	return t != nil && t.Kind == TypeRef
}

// IsInterior reports whether the type (or the referent of a reference to it)
// opted out of static aliasing checks.
func (m *Module) IsInterior(id TypeID) bool {
	t := m.Type(id)
	if t == nil {
		return false
	}
	if t.Interior {
		return true
	}
	if t.Kind == TypeRef {
		return m.IsInterior(t.Elem)
	}
	return false
}

// FieldType resolves a field access on a struct (or on a reference to one,
// matching the language's auto-deref on field access).
func (m *Module) FieldType(base TypeID, name string) (TypeID, bool) {
	t := m.Type(base)
	if t == nil {
		return NoTypeID, false
	}
	if t.Kind == TypeRef {
		return m.FieldType(t.Elem, name)
	}
	if t.Kind != TypeStruct {
		return NoTypeID, false
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return NoTypeID, false
}

// FuncByName returns the function with the given name, if present.
func (m *Module) FuncByName(name string) (*Func, bool) {
	for i := range m.Funcs {
		if m.Funcs[i].Name == name {
			return &m.Funcs[i], true
		}
	}
	return nil, false
}

// RegisterSources loads the embedded sources into fs in order. File IDs in
// spans are assumed to match registration order, which Save/Load preserve.
func (m *Module) RegisterSources(fs *source.FileSet) {
	for _, src := range m.Sources {
		fs.AddVirtual(src.Path, src.Content)
	}
}
