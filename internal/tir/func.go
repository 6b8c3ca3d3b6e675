package tir

import "ferro/internal/source"

// Param is a typed function parameter. IsSelf marks the method receiver,
// which drives lifetime elision rule 3.
type Param struct {
	Name   string      `msgpack:"name"`
	Type   TypeID      `msgpack:"type"`
	Span   source.Span `msgpack:"span"`
	IsSelf bool        `msgpack:"is_self,omitempty"`
}

// Func is one typed function body plus its signature.
type Func struct {
	Name string      `msgpack:"name"`
	Span source.Span `msgpack:"span"`

	// Declared lifetime params, e.g. ["'a", "'b"].
	Lifetimes []string `msgpack:"lifetimes,omitempty"`
	// Declared outlives constraints: pairs of ["'a", "'b"] meaning 'a: 'b.
	Outlives [][2]string `msgpack:"outlives,omitempty"`

	Params     []Param     `msgpack:"params"`
	Result     TypeID      `msgpack:"result"`
	ResultSpan source.Span `msgpack:"result_span"`

	// Arenas.
	Exprs []Expr `msgpack:"exprs"`
	Stmts []Stmt `msgpack:"stmts"`

	// Top-level statement list.
	Body []StmtID `msgpack:"body"`
}

// Expr returns the arena node, or nil for an invalid id.
func (f *Func) Expr(id ExprID) *Expr {
	if !id.IsValid() || int(id) >= len(f.Exprs) {
		return nil
	}
	return &f.Exprs[id]
}

// Stmt returns the arena node, or nil for an invalid id.
func (f *Func) Stmt(id StmtID) *Stmt {
	if !id.IsValid() || int(id) >= len(f.Stmts) {
		return nil
	}
	return &f.Stmts[id]
}
