// Package testkit holds structural invariant checks shared by tests.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"ferro/internal/source"
	"ferro/internal/tir"
)

// CheckModuleInvariants runs a minimal set of well-formedness invariants on a
// typed module:
//  1. every type reference (fields, elements, params, results, expr types)
//     resolves inside the type arena
//  2. every statement and expression id resolves inside its function's arenas
//  3. every span stays within the bounds of an embedded source file
func CheckModuleInvariants(m *tir.Module) error {
	if m == nil {
		return fmt.Errorf("nil module")
	}
	if m.Schema != tir.SchemaVersion {
		return fmt.Errorf("schema mismatch: got=%d want=%d", m.Schema, tir.SchemaVersion)
	}

	bounds := make([]uint32, len(m.Sources))
	for i, src := range m.Sources {
		n, err := safecast.Conv[uint32](len(src.Content))
		if err != nil {
			return fmt.Errorf("source %q too large: %w", src.Path, err)
		}
		bounds[i] = n
	}
	inBounds := func(what string, sp source.Span) error {
		if int(sp.File) >= len(bounds) {
			return fmt.Errorf("%s span points at unknown file %d", what, sp.File)
		}
		if sp.End < sp.Start || sp.End > bounds[sp.File] {
			return fmt.Errorf("%s span %d..%d beyond content (%d bytes)", what, sp.Start, sp.End, bounds[sp.File])
		}
		return nil
	}

	for ti := range m.Types {
		t := &m.Types[ti]
		if t.Elem.IsValid() && m.Type(t.Elem) == nil {
			return fmt.Errorf("type %d: dangling element type %d", ti, t.Elem)
		}
		for _, f := range t.Fields {
			if m.Type(f.Type) == nil {
				return fmt.Errorf("type %d: field %q has dangling type %d", ti, f.Name, f.Type)
			}
		}
	}

	for fi := range m.Funcs {
		fn := &m.Funcs[fi]
		if err := checkFunc(m, fn, inBounds); err != nil {
			return fmt.Errorf("func %q: %w", fn.Name, err)
		}
	}
	return nil
}

func checkFunc(m *tir.Module, fn *tir.Func, inBounds func(string, source.Span) error) error {
	for _, p := range fn.Params {
		if m.Type(p.Type) == nil {
			return fmt.Errorf("param %q has dangling type %d", p.Name, p.Type)
		}
	}
	if fn.Result.IsValid() && m.Type(fn.Result) == nil {
		return fmt.Errorf("dangling result type %d", fn.Result)
	}

	for ei := range fn.Exprs {
		e := &fn.Exprs[ei]
		if e.Type.IsValid() && m.Type(e.Type) == nil {
			return fmt.Errorf("expr %d has dangling type %d", ei, e.Type)
		}
		for _, op := range [...]tir.ExprID{e.X, e.Y} {
			if op.IsValid() && fn.Expr(op) == nil {
				return fmt.Errorf("expr %d references missing operand %d", ei, op)
			}
		}
		for _, a := range e.Args {
			if fn.Expr(a) == nil {
				return fmt.Errorf("expr %d references missing argument %d", ei, a)
			}
		}
		for _, f := range e.Fields {
			if fn.Expr(f.Value) == nil {
				return fmt.Errorf("expr %d field %q references missing value %d", ei, f.Name, f.Value)
			}
		}
		if err := inBounds("expr", e.Span); err != nil {
			return err
		}
	}

	seen := make(map[tir.StmtID]bool, len(fn.Stmts))
	var walk func(ids []tir.StmtID) error
	walk = func(ids []tir.StmtID) error {
		for _, id := range ids {
			s := fn.Stmt(id)
			if s == nil {
				return fmt.Errorf("missing statement %d", id)
			}
			if seen[id] {
				return fmt.Errorf("statement %d appears twice in the tree", id)
			}
			seen[id] = true
			for _, ex := range [...]tir.ExprID{s.Init, s.Target, s.Value, s.Cond} {
				if ex.IsValid() && fn.Expr(ex) == nil {
					return fmt.Errorf("statement %d references missing expr %d", id, ex)
				}
			}
			if err := inBounds("stmt", s.Span); err != nil {
				return err
			}
			if err := walk(s.Then); err != nil {
				return err
			}
			if err := walk(s.Else); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(fn.Body)
}
