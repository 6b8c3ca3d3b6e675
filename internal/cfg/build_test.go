package cfg

import (
	"testing"

	"ferro/internal/tir"
)

func buildFunc(t *testing.T, assemble func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID) *tir.Func {
	t.Helper()
	mb := tir.NewModuleBuilder("test")
	mb.AddSource("test.fe", "fn main() {}\n")
	fb := mb.NewFunc("main")
	body := assemble(mb, fb)
	fb.Build(body...)
	mod := mb.Module()
	fn, ok := mod.FuncByName("main")
	if !ok {
		t.Fatalf("function not built")
	}
	return fn
}

func TestBuildStraightLine(t *testing.T) {
	fn := buildFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		a := fb.Let("a", mb.IntType(), fb.LitInt("1"))
		b := fb.Let("b", mb.IntType(), fb.LitInt("2"))
		return []tir.StmtID{a, b}
	})
	g := Build(fn)

	if len(g.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(g.Blocks))
	}
	entry := g.Block(g.Entry)
	if len(entry.Stmts) != 2 {
		t.Fatalf("entry stmts = %d, want 2", len(entry.Stmts))
	}
	if entry.Term.Kind != TermReturn {
		t.Fatalf("term = %v, want implicit return", entry.Term.Kind)
	}
}

func TestBuildIfElseJoins(t *testing.T) {
	fn := buildFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		cond := fb.LitBool("true")
		thenStmt := fb.ExprStmt(fb.LitInt("1"))
		elseStmt := fb.ExprStmt(fb.LitInt("2"))
		ifStmt := fb.If(cond, []tir.StmtID{thenStmt}, []tir.StmtID{elseStmt})
		after := fb.ExprStmt(fb.LitInt("3"))
		return []tir.StmtID{ifStmt, after}
	})
	g := Build(fn)

	entry := g.Block(g.Entry)
	if entry.Term.Kind != TermIf {
		t.Fatalf("entry term = %v, want if", entry.Term.Kind)
	}
	succs := g.Succs(g.Entry)
	if len(succs) != 2 {
		t.Fatalf("entry succs = %d, want 2", len(succs))
	}
	// Both arms must reach the same join block.
	thenSuccs := g.Succs(entry.Term.Then)
	elseSuccs := g.Succs(entry.Term.Else)
	if len(thenSuccs) != 1 || len(elseSuccs) != 1 || thenSuccs[0] != elseSuccs[0] {
		t.Fatalf("arms do not join: then->%v else->%v", thenSuccs, elseSuccs)
	}
	join := g.Block(thenSuccs[0])
	if len(join.Stmts) != 1 {
		t.Fatalf("join stmts = %d, want the statement after if", len(join.Stmts))
	}
}

func TestBuildWhileBackEdge(t *testing.T) {
	fn := buildFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		cond := fb.LitBool("true")
		bodyStmt := fb.ExprStmt(fb.LitInt("1"))
		loop := fb.While(cond, []tir.StmtID{bodyStmt})
		return []tir.StmtID{loop}
	})
	g := Build(fn)

	// Find the header: the block holding the while statement.
	var header BlockID = NoBlockID
	for i := range g.Blocks {
		if g.Blocks[i].Term.Kind == TermIf {
			header = g.Blocks[i].ID
		}
	}
	if header == NoBlockID {
		t.Fatalf("no conditional header found")
	}
	body := g.Block(header).Term.Then
	if g.Block(body).Term.Kind != TermGoto || g.Block(body).Term.Target != header {
		t.Fatalf("body does not loop back to header")
	}
}

func TestBuildBreakTargetsExit(t *testing.T) {
	fn := buildFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		brk := fb.Break()
		loop := fb.Loop([]tir.StmtID{brk})
		after := fb.ExprStmt(fb.LitInt("1"))
		return []tir.StmtID{loop, after}
	})
	g := Build(fn)

	// The statement after the loop must be reachable from the entry.
	reach := g.ForwardReachable(Point{Block: g.Entry, Index: 0})
	found := false
	for p := range reach {
		if id := g.StmtAt(p); id.IsValid() {
			if st := fn.Stmt(id); st != nil && st.Kind == tir.StmtExpr {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("statement after loop with break is unreachable")
	}
}

func TestReversePostorderCoversAllBlocks(t *testing.T) {
	fn := buildFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		ret := fb.ReturnVoid()
		dead := fb.ExprStmt(fb.LitInt("1"))
		return []tir.StmtID{ret, dead}
	})
	g := Build(fn)

	order := g.ReversePostorder()
	if len(order) != len(g.Blocks) {
		t.Fatalf("rpo covers %d of %d blocks", len(order), len(g.Blocks))
	}
	if order[0] != g.Entry {
		t.Fatalf("rpo starts at %v, want entry", order[0])
	}
}

func TestForwardReachableStopsAtReturn(t *testing.T) {
	fn := buildFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		first := fb.ExprStmt(fb.LitInt("1"))
		ret := fb.ReturnVoid()
		dead := fb.ExprStmt(fb.LitInt("2"))
		return []tir.StmtID{first, ret, dead}
	})
	g := Build(fn)

	reach := g.ForwardReachable(Point{Block: g.Entry, Index: 0})
	for p := range reach {
		if id := g.StmtAt(p); id.IsValid() {
			st := fn.Stmt(id)
			if st != nil && st.Kind == tir.StmtExpr && fn.Expr(st.Value).Lit == "2" {
				t.Fatalf("reached dead statement after return")
			}
		}
	}
}
