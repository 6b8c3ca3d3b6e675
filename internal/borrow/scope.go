package borrow

import (
	"fmt"

	"ferro/internal/diag"
	"ferro/internal/source"
	"ferro/internal/tir"
)

// ScopeID identifies a lexical scope within one function.
type ScopeID int32

const NoScopeID ScopeID = -1

func (id ScopeID) IsValid() bool { return id >= 0 }

type Scope struct {
	ID     ScopeID
	Parent ScopeID
	Depth  int32
}

// Binding is one declared name: a parameter or a let.
type Binding struct {
	ID      BindingID
	Name    string
	Type    tir.TypeID
	Mut     bool
	Scope   ScopeID
	Span    source.Span
	IsParam bool
	// AliasingUnchecked marks interior-mutability bindings: the static
	// conflict rules do not apply and downstream consumers must not assume
	// exclusive access guarantees.
	AliasingUnchecked bool
}

// Table is the resolved binding and scope structure of one function body.
// It is built once by Resolve and read-only afterwards.
type Table struct {
	Bindings []Binding
	Scopes   []Scope

	exprBinding map[tir.ExprID]BindingID
	letBinding  map[tir.StmtID]BindingID
	stmtScope   map[tir.StmtID]ScopeID
}

// Binding returns the record, or nil for an invalid id.
func (t *Table) Binding(id BindingID) *Binding {
	if !id.IsValid() || int(id) >= len(t.Bindings) {
		return nil
	}
	return &t.Bindings[id]
}

// BindingOfExpr returns the binding a resolved ExprLocal refers to.
func (t *Table) BindingOfExpr(id tir.ExprID) BindingID {
	if b, ok := t.exprBinding[id]; ok {
		return b
	}
	return NoBindingID
}

// BindingOfLet returns the binding declared by a StmtLet.
func (t *Table) BindingOfLet(id tir.StmtID) BindingID {
	if b, ok := t.letBinding[id]; ok {
		return b
	}
	return NoBindingID
}

// ScopeOfStmt returns the scope a statement belongs to.
func (t *Table) ScopeOfStmt(id tir.StmtID) ScopeID {
	if s, ok := t.stmtScope[id]; ok {
		return s
	}
	return rootScope
}

// WithinScope reports whether inner is s or one of its descendants.
func (t *Table) WithinScope(inner, s ScopeID) bool {
	for inner.IsValid() {
		if inner == s {
			return true
		}
		inner = t.Scopes[inner].Parent
	}
	return false
}

const rootScope ScopeID = 0

// resolver walks the statement tree with a lexical scope stack, declaring
// bindings and resolving every local reference. Unknown identifiers are
// defensive diagnostics: the type checker should have rejected them already.
type resolver struct {
	mod      *tir.Module
	fn       *tir.Func
	tab      *Table
	reporter diag.Reporter
	// stack of open scopes; names resolve innermost-first so shadowing
	// behaves like the surface language.
	stack []scopeFrame
	// failed is set when resolution hit an unknown identifier; the function
	// output is marked invalid but scanning continues.
	failed bool
}

type scopeFrame struct {
	id    ScopeID
	names map[string]BindingID
}

// Resolve builds the Table for fn, reporting OwnUnknownIdentifier for any
// unresolved name. The boolean result is false when the table is incomplete.
func Resolve(mod *tir.Module, fn *tir.Func, reporter diag.Reporter) (*Table, bool) {
	r := &resolver{
		mod:      mod,
		fn:       fn,
		reporter: reporter,
		tab: &Table{
			exprBinding: make(map[tir.ExprID]BindingID),
			letBinding:  make(map[tir.StmtID]BindingID),
			stmtScope:   make(map[tir.StmtID]ScopeID),
		},
	}
	r.pushScope() // root scope holds the parameters
	for _, p := range fn.Params {
		r.declare(p.Name, p.Type, false, p.Span, true)
	}
	r.resolveList(fn.Body)
	r.popScope()
	return r.tab, !r.failed
}

func (r *resolver) pushScope() ScopeID {
	parent := NoScopeID
	depth := int32(0)
	if len(r.stack) > 0 {
		parent = r.stack[len(r.stack)-1].id
		depth = r.tab.Scopes[parent].Depth + 1
	}
	id := ScopeID(len(r.tab.Scopes)) //nolint:gosec // scope counts stay small
	r.tab.Scopes = append(r.tab.Scopes, Scope{ID: id, Parent: parent, Depth: depth})
	r.stack = append(r.stack, scopeFrame{id: id, names: make(map[string]BindingID)})
	return id
}

func (r *resolver) popScope() {
	r.stack = r.stack[:len(r.stack)-1]
}

func (r *resolver) declare(name string, typ tir.TypeID, mut bool, span source.Span, isParam bool) BindingID {
	frame := &r.stack[len(r.stack)-1]
	id := BindingID(len(r.tab.Bindings)) //nolint:gosec // binding counts stay small
	r.tab.Bindings = append(r.tab.Bindings, Binding{
		ID:                id,
		Name:              name,
		Type:              typ,
		Mut:               mut,
		Scope:             frame.id,
		Span:              span,
		IsParam:           isParam,
		AliasingUnchecked: r.mod.IsInterior(typ),
	})
	frame.names[name] = id
	return id
}

func (r *resolver) lookup(name string) BindingID {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if id, ok := r.stack[i].names[name]; ok {
			return id
		}
	}
	return NoBindingID
}

func (r *resolver) resolveList(stmts []tir.StmtID) {
	for _, id := range stmts {
		r.resolveStmt(id)
	}
}

func (r *resolver) resolveStmt(id tir.StmtID) {
	st := r.fn.Stmt(id)
	if st == nil {
		return
	}
	r.tab.stmtScope[id] = r.stack[len(r.stack)-1].id

	switch st.Kind {
	case tir.StmtLet:
		// Init resolves before the declaration so `let x = x` sees the
		// outer x, matching shadowing semantics.
		r.resolveExpr(st.Init)
		b := r.declare(st.Name, st.Type, st.Mut, st.Span, false)
		r.tab.letBinding[id] = b

	case tir.StmtAssign:
		r.resolveExpr(st.Value)
		r.resolveExpr(st.Target)

	case tir.StmtExpr, tir.StmtReturn:
		r.resolveExpr(st.Value)

	case tir.StmtIf:
		r.resolveExpr(st.Cond)
		r.pushScope()
		r.resolveList(st.Then)
		r.popScope()
		if len(st.Else) > 0 {
			r.pushScope()
			r.resolveList(st.Else)
			r.popScope()
		}

	case tir.StmtWhile:
		r.resolveExpr(st.Cond)
		r.pushScope()
		r.resolveList(st.Then)
		r.popScope()

	case tir.StmtLoop, tir.StmtBlock:
		r.pushScope()
		r.resolveList(st.Then)
		r.popScope()

	case tir.StmtBreak, tir.StmtContinue:
	}
}

func (r *resolver) resolveExpr(id tir.ExprID) {
	e := r.fn.Expr(id)
	if e == nil {
		return
	}
	switch e.Kind {
	case tir.ExprLocal:
		b := r.lookup(e.Name)
		if !b.IsValid() {
			diag.ReportError(r.reporter, diag.OwnUnknownIdentifier, e.Span,
				fmt.Sprintf("unknown identifier '%s'", e.Name))
			r.failed = true
			return
		}
		r.tab.exprBinding[id] = b

	case tir.ExprField, tir.ExprDeref:
		r.resolveExpr(e.X)

	case tir.ExprIndex, tir.ExprBinary:
		r.resolveExpr(e.X)
		r.resolveExpr(e.Y)

	case tir.ExprRef:
		r.resolveExpr(e.X)

	case tir.ExprCall:
		for _, a := range e.Args {
			r.resolveExpr(a)
		}

	case tir.ExprStructLit:
		for _, f := range e.Fields {
			r.resolveExpr(f.Value)
		}
	}
}
