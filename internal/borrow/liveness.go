package borrow

import (
	"ferro/internal/cfg"
	"ferro/internal/tir"
)

// bindingSet is a small set of bindings, used by the dataflow.
type bindingSet map[BindingID]struct{}

func (s bindingSet) has(id BindingID) bool {
	_, ok := s[id]
	return ok
}

func (s bindingSet) add(id BindingID) {
	if id.IsValid() {
		s[id] = struct{}{}
	}
}

func cloneSet(s bindingSet) bindingSet {
	out := make(bindingSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func unionInto(dst, src bindingSet) bool {
	grew := false
	for id := range src {
		if _, ok := dst[id]; !ok {
			dst[id] = struct{}{}
			grew = true
		}
	}
	return grew
}

func setsEqual(a, b bindingSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

// pointUseDef is the per-statement footprint feeding the dataflow.
type pointUseDef struct {
	use bindingSet
	def bindingSet
}

// liveInfo is the result of the backward liveness pass: for every point,
// the set of bindings live immediately before it executes.
type liveInfo struct {
	before map[cfg.Point]bindingSet
}

// liveBefore reports whether b is live just before p: used at p, or used on
// some forward path before any redefinition.
func (li *liveInfo) liveBefore(p cfg.Point, b BindingID) bool {
	set, ok := li.before[p]
	return ok && set.has(b)
}

// computeLiveness runs the standard backward dataflow to a fixpoint,
// iterating in reverse visit order; back-edges make extra rounds until the
// in/out sets stop changing, which keeps loans live across loop bodies when
// their holders are used on the back-edge path.
func computeLiveness(g *cfg.Graph, fn *tir.Func, tab *Table) *liveInfo {
	nblocks := len(g.Blocks)
	useDefs := make([][]pointUseDef, nblocks)
	for i := range g.Blocks {
		blk := &g.Blocks[i]
		useDefs[i] = make([]pointUseDef, len(blk.Stmts))
		for j, stmtID := range blk.Stmts {
			useDefs[i][j] = stmtUseDef(fn, tab, stmtID)
		}
	}

	in := make([]bindingSet, nblocks)
	out := make([]bindingSet, nblocks)
	for i := range nblocks {
		in[i] = make(bindingSet)
		out[i] = make(bindingSet)
	}

	order := g.ReversePostorder()
	changed := true
	for changed {
		changed = false
		for idx := len(order) - 1; idx >= 0; idx-- {
			id := order[idx]
			newOut := make(bindingSet)
			for _, succ := range g.Succs(id) {
				unionInto(newOut, in[succ])
			}
			// Transfer backwards through the block's statements.
			live := cloneSet(newOut)
			uds := useDefs[id]
			for j := len(uds) - 1; j >= 0; j-- {
				for b := range uds[j].def {
					delete(live, b)
				}
				unionInto(live, uds[j].use)
			}
			if !setsEqual(newOut, out[id]) || !setsEqual(live, in[id]) {
				out[id] = newOut
				in[id] = live
				changed = true
			}
		}
	}

	// Expand block summaries into per-point live-before sets.
	li := &liveInfo{before: make(map[cfg.Point]bindingSet)}
	for i := range g.Blocks {
		blk := &g.Blocks[i]
		live := cloneSet(out[i])
		li.before[blk.TermPoint()] = cloneSet(live)
		uds := useDefs[i]
		for j := len(uds) - 1; j >= 0; j-- {
			for b := range uds[j].def {
				delete(live, b)
			}
			unionInto(live, uds[j].use)
			li.before[cfg.Point{Block: blk.ID, Index: int32(j)}] = cloneSet(live) //nolint:gosec // block sizes stay small
		}
	}
	return li
}

// stmtUseDef computes which bindings a statement reads and which it fully
// redefines. A write through a projection (x.f = v) counts as a use of the
// base, matching partial initialization semantics.
func stmtUseDef(fn *tir.Func, tab *Table, id tir.StmtID) pointUseDef {
	ud := pointUseDef{use: make(bindingSet), def: make(bindingSet)}
	st := fn.Stmt(id)
	if st == nil {
		return ud
	}
	switch st.Kind {
	case tir.StmtLet:
		collectReads(fn, tab, st.Init, ud.use)
		ud.def.add(tab.BindingOfLet(id))

	case tir.StmtAssign:
		collectReads(fn, tab, st.Value, ud.use)
		base, projected := assignTarget(fn, tab, st.Target, ud.use)
		if projected {
			ud.use.add(base)
		} else {
			ud.def.add(base)
		}

	case tir.StmtExpr, tir.StmtReturn:
		collectReads(fn, tab, st.Value, ud.use)

	case tir.StmtIf, tir.StmtWhile:
		collectReads(fn, tab, st.Cond, ud.use)
	}
	return ud
}

// assignTarget walks the target place expression, collecting index reads,
// and returns the base binding plus whether the write goes through any
// projection.
func assignTarget(fn *tir.Func, tab *Table, id tir.ExprID, use bindingSet) (BindingID, bool) {
	e := fn.Expr(id)
	if e == nil {
		return NoBindingID, false
	}
	switch e.Kind {
	case tir.ExprLocal:
		return tab.BindingOfExpr(id), false
	case tir.ExprField:
		base, _ := assignTarget(fn, tab, e.X, use)
		return base, true
	case tir.ExprIndex:
		collectReads(fn, tab, e.Y, use)
		base, _ := assignTarget(fn, tab, e.X, use)
		return base, true
	case tir.ExprDeref:
		base, _ := assignTarget(fn, tab, e.X, use)
		return base, true
	default:
		collectReads(fn, tab, id, use)
		return NoBindingID, false
	}
}

// collectReads gathers every binding referenced inside the expression.
func collectReads(fn *tir.Func, tab *Table, id tir.ExprID, into bindingSet) {
	e := fn.Expr(id)
	if e == nil {
		return
	}
	switch e.Kind {
	case tir.ExprLocal:
		into.add(tab.BindingOfExpr(id))
	case tir.ExprField, tir.ExprDeref, tir.ExprRef:
		collectReads(fn, tab, e.X, into)
	case tir.ExprIndex, tir.ExprBinary:
		collectReads(fn, tab, e.X, into)
		collectReads(fn, tab, e.Y, into)
	case tir.ExprCall:
		for _, a := range e.Args {
			collectReads(fn, tab, a, into)
		}
	case tir.ExprStructLit:
		for _, f := range e.Fields {
			collectReads(fn, tab, f.Value, into)
		}
	}
}

// computeLoanRanges fills in LiveAt for every loan: the creation point plus
// each forward-reachable point where some holder of the reference is still
// live. Argument temporaries with no holder die at their own statement.
func computeLoanRanges(g *cfg.Graph, loans []*Loan, li *liveInfo) {
	for _, loan := range loans {
		set := cfg.NewPointSet()
		set.Add(loan.CreatedAt)
		if len(loan.Holders) > 0 {
			for p := range g.ForwardReachable(loan.CreatedAt) {
				for _, h := range loan.Holders {
					if li.liveBefore(p, h) {
						set.Add(p)
						break
					}
				}
			}
		}
		loan.LiveAt = set
	}
}
