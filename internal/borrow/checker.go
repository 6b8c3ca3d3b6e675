package borrow

import (
	"fmt"

	"ferro/internal/cfg"
	"ferro/internal/diag"
	"ferro/internal/source"
	"ferro/internal/tir"
)

// DefaultMaxDiagnostics bounds a function's bag when the caller passes no
// explicit limit.
const DefaultMaxDiagnostics = 64

// checker verifies one function: loans are collected up front, their live
// ranges computed by the liveness pass, and then the ownership state machine
// replays the CFG against them.
type checker struct {
	mod *tir.Module
	fn  *tir.Func
	tab *Table
	g   *cfg.Graph
	rep diag.Reporter

	loans       []*Loan
	loanByExpr  map[tir.ExprID]LoanID
	bindingLoan map[BindingID]LoanID
	pointOfStmt map[tir.StmtID]cfg.Point
	// allPlaces maps every canonical key seen to its place, so the moved-set
	// prefix lookups can reason structurally.
	allPlaces map[string]Place

	// Replay state.
	moved     movedSet
	cur       cfg.Point
	recording bool
	events    []Event
	blockOut  []movedSet
}

// Check verifies a single function and returns its Result. The bag is owned
// by the result; maxDiags <= 0 selects DefaultMaxDiagnostics.
func Check(mod *tir.Module, fn *tir.Func, maxDiags int) *Result {
	if maxDiags <= 0 {
		maxDiags = DefaultMaxDiagnostics
	}
	bag := diag.NewBag(maxDiags)
	rep := diag.Reporter(diag.NewDedupReporter(diag.BagReporter{Bag: bag}))
	res := &Result{Func: fn.Name, Bag: bag}

	tab, ok := Resolve(mod, fn, rep)
	if !ok {
		bag.Sort()
		return res
	}

	c := &checker{
		mod:         mod,
		fn:          fn,
		tab:         tab,
		g:           cfg.Build(fn),
		rep:         rep,
		loanByExpr:  make(map[tir.ExprID]LoanID),
		bindingLoan: make(map[BindingID]LoanID),
		pointOfStmt: make(map[tir.StmtID]cfg.Point),
		allPlaces:   make(map[string]Place),
	}
	c.collect()
	live := computeLiveness(c.g, fn, tab)
	computeLoanRanges(c.g, c.loans, live)

	c.reportInteriorBypass()
	c.replay()
	c.checkLoanExtents()
	solveLifetimes(mod, fn, c, rep, res)

	res.Valid = !bag.HasErrors()
	res.Events = c.events
	res.Bindings = c.bindingSummaries()
	bag.Sort()
	return res
}

// registerPlace memoizes the place under its canonical key.
func (c *checker) registerPlace(p Place) Place {
	c.allPlaces[p.Key()] = p
	return p
}

// bindingPlace is the root place of a binding, interior-flagged when the
// binding opted out of static checking.
func (c *checker) bindingPlace(b BindingID) Place {
	p := PlaceOf(b)
	if bd := c.tab.Binding(b); bd != nil && bd.AliasingUnchecked {
		p.Interior = true
	}
	return c.registerPlace(p)
}

// ---- collect: loans and their holders ----

func (c *checker) collect() {
	for _, bid := range c.g.ReversePostorder() {
		blk := c.g.Block(bid)
		for i, sid := range blk.Stmts {
			p := cfg.Point{Block: bid, Index: int32(i)} //nolint:gosec // block sizes stay small
			c.pointOfStmt[sid] = p
			c.collectStmt(sid, p)
		}
	}
}

func (c *checker) collectStmt(id tir.StmtID, p cfg.Point) {
	st := c.fn.Stmt(id)
	if st == nil {
		return
	}
	switch st.Kind {
	case tir.StmtLet:
		c.collectExpr(st.Init, p)
		c.attachHolder(st.Init, c.tab.BindingOfLet(id), st.Type)

	case tir.StmtAssign:
		c.collectExpr(st.Value, p)
		if tgt := c.fn.Expr(st.Target); tgt != nil && tgt.Kind == tir.ExprLocal {
			c.attachHolder(st.Value, c.tab.BindingOfExpr(st.Target), tir.NoTypeID)
		}

	case tir.StmtExpr, tir.StmtReturn:
		c.collectExpr(st.Value, p)

	case tir.StmtIf, tir.StmtWhile:
		c.collectExpr(st.Cond, p)
	}
}

// collectExpr registers a loan for every reference expression in the tree.
func (c *checker) collectExpr(id tir.ExprID, p cfg.Point) {
	e := c.fn.Expr(id)
	if e == nil {
		return
	}
	switch e.Kind {
	case tir.ExprRef:
		if place, ok := c.placeOf(e.X); ok {
			kind := LoanShared
			if e.Mut {
				kind = LoanExclusive
			}
			lid := LoanID(len(c.loans)) //nolint:gosec // loan counts stay small
			c.loans = append(c.loans, &Loan{
				ID:        lid,
				Place:     c.registerPlace(place),
				Kind:      kind,
				Expr:      id,
				Span:      e.Span,
				CreatedAt: p,
			})
			c.loanByExpr[id] = lid
		}
		c.collectExpr(e.X, p)

	case tir.ExprField, tir.ExprDeref:
		c.collectExpr(e.X, p)

	case tir.ExprIndex, tir.ExprBinary:
		c.collectExpr(e.X, p)
		c.collectExpr(e.Y, p)

	case tir.ExprCall:
		for _, a := range e.Args {
			c.collectExpr(a, p)
		}

	case tir.ExprStructLit:
		for _, f := range e.Fields {
			c.collectExpr(f.Value, p)
		}
	}
}

// attachHolder wires the binding receiving a value to any loan the value
// carries: a fresh borrow, a copied reference, or a struct literal whose
// fields store borrows. declType, when valid, supplies the signature-level
// lifetime name of a freshly held borrow.
func (c *checker) attachHolder(value tir.ExprID, holder BindingID, declType tir.TypeID) {
	if !holder.IsValid() {
		return
	}
	e := c.fn.Expr(value)
	if e == nil {
		return
	}
	switch e.Kind {
	case tir.ExprRef:
		lid, ok := c.loanByExpr[value]
		if !ok {
			return
		}
		c.loans[lid].addHolder(holder)
		c.bindingLoan[holder] = lid
		if t := c.mod.Type(declType); t != nil && t.Kind == tir.TypeRef && t.Lifetime != "" {
			c.loans[lid].Named = t.Lifetime
		}

	case tir.ExprLocal:
		src := c.tab.BindingOfExpr(value)
		if lid, ok := c.bindingLoan[src]; ok {
			c.loans[lid].addHolder(holder)
			c.bindingLoan[holder] = lid
		}

	case tir.ExprStructLit:
		for _, f := range e.Fields {
			if fv := c.fn.Expr(f.Value); fv != nil && fv.Kind == tir.ExprRef {
				if lid, ok := c.loanByExpr[f.Value]; ok {
					c.loans[lid].addHolder(holder)
				}
			}
		}
	}
}

// placeOf resolves a place expression without evaluating or reporting; used
// by the collect pass. Derefs of a binding holding a known loan resolve to
// the loan's underlying place, so a reborrow through a reference conflicts
// with the right location.
func (c *checker) placeOf(id tir.ExprID) (Place, bool) {
	e := c.fn.Expr(id)
	if e == nil {
		return Place{}, false
	}
	switch e.Kind {
	case tir.ExprLocal:
		b := c.tab.BindingOfExpr(id)
		if !b.IsValid() {
			return Place{}, false
		}
		return c.bindingPlace(b), true
	case tir.ExprField:
		base, ok := c.placeOf(e.X)
		if !ok {
			return Place{}, false
		}
		p := base.WithField(e.Name)
		if c.mod.IsInterior(e.Type) {
			p.Interior = true
		}
		return c.registerPlace(p), true
	case tir.ExprIndex:
		base, ok := c.placeOf(e.X)
		if !ok {
			return Place{}, false
		}
		return c.registerPlace(base.WithIndex()), true
	case tir.ExprDeref:
		if inner := c.fn.Expr(e.X); inner != nil && inner.Kind == tir.ExprLocal {
			b := c.tab.BindingOfExpr(e.X)
			if lid, ok := c.bindingLoan[b]; ok {
				return c.loans[lid].Place, true
			}
		}
		base, ok := c.placeOf(e.X)
		if !ok {
			return Place{}, false
		}
		p := base.WithDeref()
		if c.mod.IsInterior(e.Type) {
			p.Interior = true
		}
		return c.registerPlace(p), true
	default:
		return Place{}, false
	}
}

// ---- replay: the ownership state machine ----

// replay runs the dataflow to a fixpoint silently, then re-executes every
// block once against its settled in-state with reporting on. Loop bodies are
// thereby checked against the states flowing around the back edge: a move
// the loop can re-reach surfaces on the second abstract iteration.
func (c *checker) replay() {
	order := c.g.ReversePostorder()
	n := len(c.g.Blocks)
	in := make([]movedSet, n)
	out := make([]movedSet, n)
	c.blockOut = out

	saved := c.rep
	c.rep = diag.NopReporter{}
	c.recording = false
	changed := true
	for changed {
		changed = false
		for _, id := range order {
			newIn := movedSet{}
			for _, pred := range c.g.Preds(id) {
				if out[pred] != nil {
					newIn, _ = newIn.merge(out[pred])
				}
			}
			if in[id] != nil && newIn.equal(in[id]) && out[id] != nil {
				continue
			}
			in[id] = newIn
			newOut := c.execBlock(id, newIn.clone())
			if out[id] == nil || !newOut.equal(out[id]) {
				out[id] = newOut
				changed = true
			}
		}
	}

	c.rep = saved
	c.recording = true
	for _, id := range order {
		state := in[id]
		if state == nil {
			state = movedSet{}
		}
		c.execBlock(id, state.clone())
	}
}

func (c *checker) execBlock(id cfg.BlockID, state movedSet) movedSet {
	c.moved = state
	blk := c.g.Block(id)
	for i, sid := range blk.Stmts {
		c.cur = cfg.Point{Block: id, Index: int32(i)} //nolint:gosec // block sizes stay small
		c.execStmt(sid)
	}
	return c.moved
}

func (c *checker) execStmt(id tir.StmtID) {
	st := c.fn.Stmt(id)
	if st == nil {
		return
	}
	switch st.Kind {
	case tir.StmtLet:
		if st.Init.IsValid() {
			c.evalValue(st.Init)
		}
		b := c.tab.BindingOfLet(id)
		if !b.IsValid() {
			return
		}
		place := c.bindingPlace(b)
		c.moved.clear(place, c.allPlaces)
		if st.Init.IsValid() {
			c.event(EventDefine, st.Span, place, StateOwned)
		} else {
			c.moved[place.Key()] = movedEntry{Span: st.Span, Uninit: true}
			c.event(EventDefine, st.Span, place, StateMoved)
		}

	case tir.StmtAssign:
		c.evalValue(st.Value)
		place, via, ok := c.resolvePlace(st.Target)
		if !ok {
			return
		}
		span := c.exprSpan(st.Target)
		// A whole-place write restores a moved place; a write through a
		// projection needs the base intact.
		if len(place.Proj) > 0 {
			if entry, hit := c.moved.lookup(place, c.allPlaces); hit {
				c.reportMoved(place, span, entry)
			}
		}
		c.checkAccess(place, accessWrite, span, via, NoLoanID)
		c.moved.clear(place, c.allPlaces)
		c.event(EventAssign, st.Span, place, StateOwned)

	case tir.StmtExpr:
		c.evalValue(st.Value)

	case tir.StmtReturn:
		if st.Value.IsValid() {
			c.evalValue(st.Value)
			c.checkReturnEscape(st.Value)
		}

	case tir.StmtIf, tir.StmtWhile:
		c.evalValue(st.Cond)
	}
}

// evalValue checks an expression in value position: reads, moves and borrows
// all validate against the moved set and the live loans.
func (c *checker) evalValue(id tir.ExprID) {
	e := c.fn.Expr(id)
	if e == nil {
		return
	}
	switch e.Kind {
	case tir.ExprUnit, tir.ExprLitInt, tir.ExprLitBool, tir.ExprLitString:

	case tir.ExprLocal, tir.ExprField, tir.ExprIndex:
		place, via, ok := c.resolvePlace(id)
		if !ok {
			return
		}
		c.usePlace(place, via, e)

	case tir.ExprDeref:
		place, via, ok := c.resolvePlace(id)
		if !ok {
			return
		}
		// Reading through a reference never moves the referent.
		if entry, hit := c.moved.lookup(place, c.allPlaces); hit {
			c.reportMoved(place, e.Span, entry)
			return
		}
		c.checkAccess(place, accessRead, e.Span, via, NoLoanID)

	case tir.ExprRef:
		c.evalBorrow(id, e)

	case tir.ExprBinary:
		c.evalValue(e.X)
		c.evalValue(e.Y)

	case tir.ExprCall:
		for _, a := range e.Args {
			c.evalValue(a)
		}

	case tir.ExprStructLit:
		for _, f := range e.Fields {
			c.evalValue(f.Value)
		}
	}
}

// usePlace handles a by-value read: Copy types read, everything else moves.
// A place reached through a reference is never moved out of.
func (c *checker) usePlace(place Place, via LoanID, e *tir.Expr) {
	if entry, hit := c.moved.lookup(place, c.allPlaces); hit {
		c.reportMoved(place, e.Span, entry)
		return
	}
	if c.mod.IsCopy(e.Type) || place.Interior || via.IsValid() {
		c.checkAccess(place, accessRead, e.Span, via, NoLoanID)
		return
	}
	c.checkAccess(place, accessMove, e.Span, via, NoLoanID)
	c.moved[place.Key()] = movedEntry{Span: e.Span}
	c.event(EventMove, e.Span, place, StateMoved)
}

func (c *checker) evalBorrow(id tir.ExprID, e *tir.Expr) {
	place, via, ok := c.resolvePlace(e.X)
	if !ok {
		return
	}
	if entry, hit := c.moved.lookup(place, c.allPlaces); hit {
		c.reportMoved(place, e.Span, entry)
	}
	access := accessShared
	state := StateShared
	if e.Mut {
		access = accessExclusive
		state = StateExclusive
		c.checkBorrowMut(place, via, e.Span)
	}
	own := NoLoanID
	if lid, ok := c.loanByExpr[id]; ok {
		own = lid
	}
	c.checkAccess(place, access, e.Span, via, own)
	c.event(EventBorrow, e.Span, place, state)
}

// checkBorrowMut enforces that an exclusive borrow goes through a mutable
// path: a `mut` binding, or an exclusive reference.
func (c *checker) checkBorrowMut(place Place, via LoanID, span source.Span) {
	if place.Interior {
		return
	}
	if via.IsValid() {
		if c.loans[via].Kind != LoanExclusive {
			diag.ReportError(c.rep, diag.OwnConflictingBorrow, span,
				fmt.Sprintf("cannot borrow '%s' as exclusive through a shared reference", place.Describe(c.tab)))
		}
		return
	}
	if b := c.tab.Binding(place.Base); b != nil && !b.Mut {
		c.rep.Report(diag.OwnConflictingBorrow, diag.SevError, span,
			fmt.Sprintf("cannot borrow '%s' as exclusive: '%s' is not declared mutable",
				place.Describe(c.tab), b.Name),
			[]diag.Note{{Span: b.Span, Msg: "declared here"}})
	}
}

// checkAccess validates the access against every live loan. A borrow passes
// the loan it creates as own; that loan is skipped along with its later
// same-point siblings, which report on their own turn. Loan ids follow
// collection order, so "later" is an id comparison. The via loan, when the
// access travels through a reference, never conflicts with itself either.
func (c *checker) checkAccess(place Place, access accessKind, span source.Span, via, own LoanID) {
	if place.Interior {
		return
	}
	var skips []LoanID
	if via.IsValid() {
		skips = append(skips, via)
	}
	if own.IsValid() {
		skips = append(skips, own)
		for _, l := range c.loans {
			if l.CreatedAt == c.cur && l.ID > own {
				skips = append(skips, l.ID)
			}
		}
	}
	if loan := findConflict(c.loans, c.cur, place, access, skips...); loan != nil {
		reportConflict(c.rep, c.tab, access, place, span, loan)
	}
}

// resolvePlace is the replay-time variant of placeOf: index operands are
// evaluated as reads, and derefs of a moved reference binding are reported.
// The returned LoanID is the loan the place was reached through, if any.
func (c *checker) resolvePlace(id tir.ExprID) (Place, LoanID, bool) {
	e := c.fn.Expr(id)
	if e == nil {
		return Place{}, NoLoanID, false
	}
	switch e.Kind {
	case tir.ExprLocal:
		b := c.tab.BindingOfExpr(id)
		if !b.IsValid() {
			return Place{}, NoLoanID, false
		}
		return c.bindingPlace(b), NoLoanID, true

	case tir.ExprField:
		base, via, ok := c.resolvePlace(e.X)
		if !ok {
			return Place{}, NoLoanID, false
		}
		p := base.WithField(e.Name)
		if c.mod.IsInterior(e.Type) {
			p.Interior = true
		}
		return c.registerPlace(p), via, true

	case tir.ExprIndex:
		c.evalValue(e.Y)
		base, via, ok := c.resolvePlace(e.X)
		if !ok {
			return Place{}, NoLoanID, false
		}
		return c.registerPlace(base.WithIndex()), via, true

	case tir.ExprDeref:
		if inner := c.fn.Expr(e.X); inner != nil && inner.Kind == tir.ExprLocal {
			b := c.tab.BindingOfExpr(e.X)
			if lid, ok := c.bindingLoan[b]; ok {
				refPlace := c.bindingPlace(b)
				if entry, hit := c.moved.lookup(refPlace, c.allPlaces); hit {
					c.reportMoved(refPlace, inner.Span, entry)
				}
				return c.loans[lid].Place, lid, true
			}
		}
		base, via, ok := c.resolvePlace(e.X)
		if !ok {
			return Place{}, NoLoanID, false
		}
		p := base.WithDeref()
		if c.mod.IsInterior(e.Type) {
			p.Interior = true
		}
		return c.registerPlace(p), via, true

	default:
		c.evalValue(id)
		return Place{}, NoLoanID, false
	}
}

func (c *checker) reportMoved(place Place, span source.Span, entry movedEntry) {
	name := place.Describe(c.tab)
	var msg, note string
	if entry.Uninit {
		msg = fmt.Sprintf("use of possibly uninitialized value '%s'", name)
		note = "declared without a value here"
	} else {
		msg = fmt.Sprintf("use of moved value '%s'", name)
		note = "value moved here"
	}
	c.rep.Report(diag.OwnUseAfterMove, diag.SevError, span, msg,
		[]diag.Note{{Span: entry.Span, Msg: note}})
}

// checkReturnEscape rejects returning a reference rooted in a local: the
// owner dies with the frame the caller never sees.
func (c *checker) checkReturnEscape(id tir.ExprID) {
	e := c.fn.Expr(id)
	if e == nil {
		return
	}
	switch e.Kind {
	case tir.ExprRef:
		if lid, ok := c.loanByExpr[id]; ok {
			c.reportEscape(c.loans[lid], e.Span)
		}
	case tir.ExprLocal:
		b := c.tab.BindingOfExpr(id)
		if lid, ok := c.bindingLoan[b]; ok {
			c.reportEscape(c.loans[lid], e.Span)
		}
	case tir.ExprStructLit:
		for _, f := range e.Fields {
			c.checkReturnEscape(f.Value)
		}
	}
}

func (c *checker) reportEscape(loan *Loan, span source.Span) {
	base := c.tab.Binding(loan.Place.Base)
	if base == nil || base.IsParam {
		return
	}
	c.rep.Report(diag.OwnBorrowOutlivesOwner, diag.SevError, span,
		fmt.Sprintf("cannot return a reference to local '%s'", base.Name),
		[]diag.Note{{Span: base.Span, Msg: "owner declared here"}})
}

// checkLoanExtents flags loans whose live range escapes the lexical scope of
// the owner: liveness already shrank the range to the last use, so any point
// left outside the owner's scope is a real dangling use.
func (c *checker) checkLoanExtents() {
	for _, loan := range c.loans {
		base := c.tab.Binding(loan.Place.Base)
		if base == nil || base.IsParam {
			continue
		}
		for _, p := range c.g.SortedPoints(loan.LiveAt) {
			sid := c.g.StmtAt(p)
			if !sid.IsValid() {
				continue
			}
			if c.tab.WithinScope(c.tab.ScopeOfStmt(sid), base.Scope) {
				continue
			}
			st := c.fn.Stmt(sid)
			c.rep.Report(diag.OwnBorrowOutlivesOwner, diag.SevError, loan.Span,
				fmt.Sprintf("borrow of '%s' does not live long enough", loan.Place.Describe(c.tab)),
				[]diag.Note{
					{Span: base.Span, Msg: "owner declared here"},
					{Span: st.Span, Msg: "borrow still needed here"},
				})
			break
		}
	}
}

// reportInteriorBypass emits one warning per binding exempted from static
// checking, so downstream consumers know no exclusivity was proven.
func (c *checker) reportInteriorBypass() {
	for i := range c.tab.Bindings {
		b := &c.tab.Bindings[i]
		if !b.AliasingUnchecked {
			continue
		}
		c.rep.Report(diag.OwnInteriorBypass, diag.SevWarning, b.Span,
			fmt.Sprintf("aliasing of '%s' is not statically checked: interior mutability", b.Name), nil)
	}
}

func (c *checker) event(kind EventKind, span source.Span, place Place, state StateKind) {
	if !c.recording {
		return
	}
	c.events = append(c.events, Event{
		Kind:  kind,
		Point: c.cur,
		Span:  span,
		Place: place.Describe(c.tab),
		State: state,
	})
}

func (c *checker) exprSpan(id tir.ExprID) source.Span {
	if e := c.fn.Expr(id); e != nil {
		return e.Span
	}
	return source.Span{}
}

// bindingSummaries snapshots the final ownership state of every binding,
// merged over all exit blocks.
func (c *checker) bindingSummaries() []BindingSummary {
	final := movedSet{}
	for i := range c.g.Blocks {
		if c.g.Blocks[i].Term.Kind != cfg.TermReturn {
			continue
		}
		if c.blockOut[i] != nil {
			final, _ = final.merge(c.blockOut[i])
		}
	}

	out := make([]BindingSummary, 0, len(c.tab.Bindings))
	for i := range c.tab.Bindings {
		b := &c.tab.Bindings[i]
		state := StateOwned
		if _, hit := final.lookup(c.bindingPlace(b.ID), c.allPlaces); hit {
			state = StateMoved
		}
		out = append(out, BindingSummary{
			Name:              b.Name,
			Span:              b.Span,
			Mut:               b.Mut,
			IsParam:           b.IsParam,
			AliasingUnchecked: b.AliasingUnchecked,
			Final:             state,
		})
	}
	return out
}
