package borrow

import (
	"fmt"
	"sort"

	"ferro/internal/diag"
	"ferro/internal/tir"
)

const staticLifetime = "'static"

// outlivesGraph records 'a: 'b facts as edges a -> b and answers transitive
// queries over them.
type outlivesGraph struct {
	edges map[string]map[string]bool
}

func newOutlivesGraph() *outlivesGraph {
	return &outlivesGraph{edges: make(map[string]map[string]bool)}
}

func (g *outlivesGraph) add(longer, shorter string) {
	if longer == "" || shorter == "" || longer == shorter {
		return
	}
	set, ok := g.edges[longer]
	if !ok {
		set = make(map[string]bool)
		g.edges[longer] = set
	}
	set[shorter] = true
}

// outlives reports whether 'a: 'b is known, directly or transitively.
// 'static outlives everything.
func (g *outlivesGraph) outlives(a, b string) bool {
	if a == b || a == staticLifetime {
		return true
	}
	seen := map[string]bool{a: true}
	work := []string{a}
	for len(work) > 0 {
		cur := work[0]
		work = work[1:]
		for next := range g.edges[cur] {
			if next == b {
				return true
			}
			if !seen[next] {
				seen[next] = true
				work = append(work, next)
			}
		}
	}
	return false
}

// reachable returns the sorted set of lifetimes name is known to outlive.
func (g *outlivesGraph) reachable(name string) []string {
	seen := map[string]bool{}
	work := []string{name}
	for len(work) > 0 {
		cur := work[0]
		work = work[1:]
		for next := range g.edges[cur] {
			if !seen[next] {
				seen[next] = true
				work = append(work, next)
			}
		}
	}
	delete(seen, name)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// solveLifetimes runs elision, accumulates the outlives constraints of the
// signature and the body, validates every returned reference against the
// result lifetime, and writes the solved table into res.
func solveLifetimes(mod *tir.Module, fn *tir.Func, c *checker, rep diag.Reporter, res *Result) {
	el := elide(mod, fn, rep)

	g := newOutlivesGraph()
	for _, pair := range fn.Outlives {
		g.add(pair[0], pair[1])
	}
	collectFieldConstraints(mod, fn, c, g)

	if el.result != "" {
		checkReturns(mod, fn, c, el, g, rep)
	}

	res.ResultLifetime = el.result
	for _, name := range el.names {
		res.Lifetimes = append(res.Lifetimes, SolvedLifetime{
			Name:     name,
			Elided:   el.elided[name],
			Outlives: g.reachable(name),
		})
	}
}

// collectFieldConstraints adds an edge for every struct literal that stores
// a signature-lifetime reference into a lifetime-annotated field: the stored
// reference must outlive the field's declared lifetime.
func collectFieldConstraints(mod *tir.Module, fn *tir.Func, c *checker, g *outlivesGraph) {
	for i := range fn.Exprs {
		e := &fn.Exprs[i]
		if e.Kind != tir.ExprStructLit {
			continue
		}
		st := mod.Type(e.Type)
		if st == nil || st.Kind != tir.TypeStruct {
			continue
		}
		for _, init := range e.Fields {
			fieldLt := declaredFieldLifetime(st, init.Name)
			if fieldLt == "" {
				continue
			}
			valLt, ok := exprLifetime(mod, fn, c, init.Value)
			if !ok {
				continue
			}
			g.add(valLt, fieldLt)
		}
	}
}

func declaredFieldLifetime(st *tir.Type, name string) string {
	for _, f := range st.Fields {
		if f.Name == name {
			return f.Lifetime
		}
	}
	return ""
}

// checkReturns verifies every returned reference carries a lifetime known to
// outlive the result lifetime.
func checkReturns(mod *tir.Module, fn *tir.Func, c *checker, el *elision, g *outlivesGraph, rep diag.Reporter) {
	for i := range fn.Stmts {
		st := &fn.Stmts[i]
		if st.Kind != tir.StmtReturn || !st.Value.IsValid() {
			continue
		}
		lt, ok := exprLifetime(mod, fn, c, st.Value)
		if !ok {
			continue
		}
		if g.outlives(lt, el.result) {
			continue
		}
		e := fn.Expr(st.Value)
		rep.Report(diag.OwnLifetimeMismatch, diag.SevError, e.Span,
			fmt.Sprintf("returned reference has lifetime %s, which is not known to outlive the result lifetime %s", lt, el.result),
			[]diag.Note{{Span: fn.ResultSpan, Msg: fmt.Sprintf("result lifetime %s declared here", el.result)}})
	}
}

// exprLifetime names the signature lifetime a reference-valued expression
// carries, when it can be traced to the signature: a parameter, a binding
// typed with a named lifetime, a reborrow of one, or a lifetime-annotated
// field load.
func exprLifetime(mod *tir.Module, fn *tir.Func, c *checker, id tir.ExprID) (string, bool) {
	e := fn.Expr(id)
	if e == nil {
		return "", false
	}
	switch e.Kind {
	case tir.ExprLocal:
		b := c.tab.Binding(c.tab.BindingOfExpr(id))
		if b == nil {
			return "", false
		}
		if b.IsParam {
			for i, p := range fn.Params {
				if p.Name == b.Name {
					if lt := paramLifetime(mod, fn, i); lt != "" {
						return lt, true
					}
				}
			}
			return "", false
		}
		if t := mod.Type(b.Type); t != nil && t.Kind == tir.TypeRef && t.Lifetime != "" {
			return t.Lifetime, true
		}
		if lid, ok := c.bindingLoan[b.ID]; ok && c.loans[lid].Named != "" {
			return c.loans[lid].Named, true
		}
		return "", false

	case tir.ExprRef:
		// A reborrow &*x keeps x's lifetime.
		if inner := fn.Expr(e.X); inner != nil && inner.Kind == tir.ExprDeref {
			return exprLifetime(mod, fn, c, inner.X)
		}
		return "", false

	case tir.ExprField:
		baseType := tir.NoTypeID
		if base := fn.Expr(e.X); base != nil {
			baseType = base.Type
		}
		t := mod.Type(baseType)
		if t != nil && t.Kind == tir.TypeRef {
			t = mod.Type(t.Elem)
		}
		if t != nil && t.Kind == tir.TypeStruct {
			if lt := declaredFieldLifetime(t, e.Name); lt != "" {
				return lt, true
			}
		}
		return "", false

	case tir.ExprDeref:
		return exprLifetime(mod, fn, c, e.X)

	default:
		return "", false
	}
}

// paramLifetime is the declared or elided lifetime of a reference parameter.
func paramLifetime(mod *tir.Module, fn *tir.Func, idx int) string {
	t := mod.Type(fn.Params[idx].Type)
	if t == nil || t.Kind != tir.TypeRef {
		return ""
	}
	if t.Lifetime != "" {
		return t.Lifetime
	}
	// Re-derive the elision name: fresh names are minted in parameter order.
	fresh := 0
	for i := range fn.Params {
		pt := mod.Type(fn.Params[i].Type)
		if pt == nil || pt.Kind != tir.TypeRef {
			continue
		}
		if pt.Lifetime == "" {
			if i == idx {
				return fmt.Sprintf("'e%d", fresh)
			}
			fresh++
		}
	}
	return ""
}
