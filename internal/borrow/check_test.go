package borrow

import (
	"testing"

	"ferro/internal/diag"
	"ferro/internal/tir"
)

// checkFunc assembles a single function and runs the verifier on it.
func checkFunc(t *testing.T, setup func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID) *Result {
	t.Helper()
	mb := tir.NewModuleBuilder("test")
	mb.AddSource("test.fe", "")
	fb := mb.NewFunc("f")
	body := setup(mb, fb)
	fb.Build(body...)
	mod := mb.Module()
	return Check(mod, &mod.Funcs[0], 0)
}

func errorCodes(res *Result) []diag.Code {
	var out []diag.Code
	for _, d := range res.Bag.Items() {
		if d.Severity >= diag.SevError {
			out = append(out, d.Code)
		}
	}
	return out
}

func wantErrors(t *testing.T, res *Result, codes ...diag.Code) {
	t.Helper()
	got := errorCodes(res)
	if len(got) != len(codes) {
		t.Fatalf("got %d errors %v, want %v", len(got), got, codes)
	}
	for i, c := range codes {
		if got[i] != c {
			t.Fatalf("error %d = %s, want %s (all: %v)", i, got[i], c, got)
		}
	}
	if res.Valid {
		t.Error("result marked valid despite errors")
	}
}

func wantClean(t *testing.T, res *Result) {
	t.Helper()
	if codes := errorCodes(res); len(codes) > 0 {
		t.Fatalf("unexpected errors: %v (%d diagnostics)", codes, res.Bag.Len())
	}
	if !res.Valid {
		t.Error("clean function not marked valid")
	}
}

func TestUseAfterMoveReportedOnce(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.Let("s", str, fb.LitString("hi")),
			fb.Let("t", str, fb.Local("s", str)),
			fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
		}
	})
	wantErrors(t, res, diag.OwnUseAfterMove)
	d := res.Bag.Items()[0]
	if len(d.Notes) != 1 || d.Notes[0].Msg != "value moved here" {
		t.Fatalf("missing move-site note: %+v", d)
	}
}

func TestCopyTypesNeverMove(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		return []tir.StmtID{
			fb.Let("x", i, fb.LitInt("1")),
			fb.Let("y", i, fb.Local("x", i)),
			fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("x", i))),
		}
	})
	wantClean(t, res)
}

func TestUninitializedUse(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		return []tir.StmtID{
			fb.LetUninit("x", i, true),
			fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("x", i))),
		}
	})
	wantErrors(t, res, diag.OwnUseAfterMove)
}

func TestAssignmentRestoresOwnership(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.LetMut("s", str, fb.LitString("a")),
			fb.Let("t", str, fb.Local("s", str)),
			fb.Assign(fb.Local("s", str), fb.LitString("b")),
			fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
		}
	})
	wantClean(t, res)
}

func TestConflictingExclusiveBorrows(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		ref := mb.RefType(i, true, "")
		return []tir.StmtID{
			fb.LetMut("x", i, fb.LitInt("1")),
			fb.Let("a", ref, fb.Ref(fb.Local("x", i), true)),
			fb.Let("b", ref, fb.Ref(fb.Local("x", i), true)),
			fb.ExprStmt(fb.Deref(fb.Local("a", ref))),
		}
	})
	wantErrors(t, res, diag.OwnConflictingBorrow)
	d := res.Bag.Items()[0]
	if len(d.Notes) != 1 || d.Notes[0].Msg != "previous borrow here" {
		t.Fatalf("missing previous-borrow note: %+v", d)
	}
}

// Sibling borrows created by one statement are live at the same point, so
// the later one must still collide with the earlier.
func TestSameStatementExclusiveBorrowsConflict(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		return []tir.StmtID{
			fb.LetMut("x", i, fb.LitInt("1")),
			fb.ExprStmt(fb.Call("use2", mb.UnitType(),
				fb.Ref(fb.Local("x", i), true),
				fb.Ref(fb.Local("x", i), true))),
		}
	})
	wantErrors(t, res, diag.OwnConflictingBorrow)
	d := res.Bag.Items()[0]
	if len(d.Notes) != 1 || d.Notes[0].Msg != "previous borrow here" {
		t.Fatalf("missing previous-borrow note: %+v", d)
	}
}

func TestSameStatementSharedBorrowsCoexist(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		return []tir.StmtID{
			fb.Let("x", i, fb.LitInt("1")),
			fb.ExprStmt(fb.Call("use2", mb.UnitType(),
				fb.Ref(fb.Local("x", i), false),
				fb.Ref(fb.Local("x", i), false))),
		}
	})
	wantClean(t, res)
}

func TestSameStatementMoveWhileBorrowed(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.LetMut("s", str, fb.LitString("hi")),
			fb.ExprStmt(fb.Call("use2", mb.UnitType(),
				fb.Ref(fb.Local("s", str), true),
				fb.Local("s", str))),
		}
	})
	wantErrors(t, res, diag.OwnConflictingBorrow)
}

func TestSharedBorrowsCoexist(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		ref := mb.RefType(i, false, "")
		return []tir.StmtID{
			fb.Let("x", i, fb.LitInt("1")),
			fb.Let("a", ref, fb.Ref(fb.Local("x", i), false)),
			fb.Let("b", ref, fb.Ref(fb.Local("x", i), false)),
			fb.ExprStmt(fb.Binary("+", fb.Deref(fb.Local("a", ref)), fb.Deref(fb.Local("b", ref)), i)),
		}
	})
	wantClean(t, res)
}

func TestAssignWhileBorrowed(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		ref := mb.RefType(i, false, "")
		return []tir.StmtID{
			fb.LetMut("x", i, fb.LitInt("1")),
			fb.Let("a", ref, fb.Ref(fb.Local("x", i), false)),
			fb.Assign(fb.Local("x", i), fb.LitInt("2")),
			fb.ExprStmt(fb.Deref(fb.Local("a", ref))),
		}
	})
	wantErrors(t, res, diag.OwnConflictingBorrow)
}

func TestExclusiveBorrowRequiresMut(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		return []tir.StmtID{
			fb.Let("x", i, fb.LitInt("1")),
			fb.ExprStmt(fb.Ref(fb.Local("x", i), true)),
		}
	})
	wantErrors(t, res, diag.OwnConflictingBorrow)
}

func TestDisjointFieldBorrows(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		pt := mb.StructType("Point", nil,
			tir.Field{Name: "x", Type: i},
			tir.Field{Name: "y", Type: i},
		)
		ref := mb.RefType(i, true, "")
		local := func() tir.ExprID { return fb.Local("p", pt) }
		return []tir.StmtID{
			fb.LetMut("p", pt, fb.StructLit(pt,
				tir.FieldInit{Name: "x", Value: fb.LitInt("1")},
				tir.FieldInit{Name: "y", Value: fb.LitInt("2")},
			)),
			fb.Let("a", ref, fb.Ref(fb.Field(local(), "x", i), true)),
			fb.Let("b", ref, fb.Ref(fb.Field(local(), "y", i), true)),
			fb.Assign(fb.Deref(fb.Local("a", ref)), fb.LitInt("3")),
			fb.Assign(fb.Deref(fb.Local("b", ref)), fb.LitInt("4")),
		}
	})
	wantClean(t, res)
}

func TestSameFieldExclusiveBorrowsConflict(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		pt := mb.StructType("Point", nil, tir.Field{Name: "x", Type: i})
		ref := mb.RefType(i, true, "")
		return []tir.StmtID{
			fb.LetMut("p", pt, fb.StructLit(pt, tir.FieldInit{Name: "x", Value: fb.LitInt("1")})),
			fb.Let("a", ref, fb.Ref(fb.Field(fb.Local("p", pt), "x", i), true)),
			fb.Let("b", ref, fb.Ref(fb.Field(fb.Local("p", pt), "x", i), true)),
			fb.ExprStmt(fb.Deref(fb.Local("a", ref))),
		}
	})
	wantErrors(t, res, diag.OwnConflictingBorrow)
}

func TestWholeStructBorrowBlocksFieldBorrow(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		pt := mb.StructType("Point", nil, tir.Field{Name: "x", Type: i})
		pref := mb.RefType(pt, true, "")
		fref := mb.RefType(i, true, "")
		return []tir.StmtID{
			fb.LetMut("p", pt, fb.StructLit(pt, tir.FieldInit{Name: "x", Value: fb.LitInt("1")})),
			fb.Let("a", pref, fb.Ref(fb.Local("p", pt), true)),
			fb.Let("b", fref, fb.Ref(fb.Field(fb.Local("p", pt), "x", i), true)),
			fb.ExprStmt(fb.Deref(fb.Local("a", pref))),
		}
	})
	wantErrors(t, res, diag.OwnConflictingBorrow)
}

// A borrow's last use ends it: a later exclusive borrow of the same place is
// fine even inside the same lexical scope.
func TestBorrowExpiresAtLastUse(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		sref := mb.RefType(i, false, "")
		xref := mb.RefType(i, true, "")
		return []tir.StmtID{
			fb.LetMut("x", i, fb.LitInt("1")),
			fb.Let("a", sref, fb.Ref(fb.Local("x", i), false)),
			fb.ExprStmt(fb.Deref(fb.Local("a", sref))),
			fb.Let("b", xref, fb.Ref(fb.Local("x", i), true)),
			fb.Assign(fb.Deref(fb.Local("b", xref)), fb.LitInt("2")),
		}
	})
	wantClean(t, res)
}

// Same expiry rule when the last use sits inside a branch: the shared borrow
// is dead on every path reaching the exclusive one.
func TestBorrowExpiresAcrossBranch(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		b := mb.BoolType()
		sref := mb.RefType(i, false, "")
		xref := mb.RefType(i, true, "")
		return []tir.StmtID{
			fb.LetMut("v", i, fb.LitInt("1")),
			fb.Let("c", b, fb.LitBool("true")),
			fb.Let("r", sref, fb.Ref(fb.Local("v", i), false)),
			fb.If(fb.Local("c", b), []tir.StmtID{
				fb.ExprStmt(fb.Call("use", mb.UnitType(), fb.Deref(fb.Local("r", sref)))),
			}, nil),
			fb.Let("m", xref, fb.Ref(fb.Local("v", i), true)),
			fb.Assign(fb.Deref(fb.Local("m", xref)), fb.LitInt("2")),
		}
	})
	wantClean(t, res)
}

func TestBorrowStillLiveAtNewBorrow(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		sref := mb.RefType(i, false, "")
		xref := mb.RefType(i, true, "")
		return []tir.StmtID{
			fb.LetMut("x", i, fb.LitInt("1")),
			fb.Let("a", sref, fb.Ref(fb.Local("x", i), false)),
			fb.Let("b", xref, fb.Ref(fb.Local("x", i), true)),
			fb.ExprStmt(fb.Deref(fb.Local("a", sref))),
		}
	})
	wantErrors(t, res, diag.OwnConflictingBorrow)
}

// Moving inside a loop body that can run again is a use-after-move on the
// second abstract iteration.
func TestMoveInsideLoop(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.Let("s", str, fb.LitString("x")),
			fb.While(fb.LitBool("true"), []tir.StmtID{
				fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
			}),
		}
	})
	wantErrors(t, res, diag.OwnUseAfterMove)
}

func TestMoveInsideLoopWithReassignment(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.LetMut("s", str, fb.LitString("x")),
			fb.While(fb.LitBool("true"), []tir.StmtID{
				fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
				fb.Assign(fb.Local("s", str), fb.LitString("y")),
			}),
		}
	})
	wantClean(t, res)
}

// Moved on one branch only: the join is not an error, the later use is.
func TestBranchMoveJoins(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.Let("s", str, fb.LitString("x")),
			fb.If(fb.LitBool("true"), []tir.StmtID{
				fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
			}, nil),
			fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
		}
	})
	wantErrors(t, res, diag.OwnUseAfterMove)
}

func TestBranchMoveWithoutLaterUse(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.Let("s", str, fb.LitString("x")),
			fb.If(fb.LitBool("true"), []tir.StmtID{
				fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
			}, nil),
		}
	})
	wantClean(t, res)
}

func TestBorrowOutlivesOwner(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		ref := mb.RefType(i, false, "")
		return []tir.StmtID{
			fb.LetUninit("r", ref, true),
			fb.Block([]tir.StmtID{
				fb.Let("x", i, fb.LitInt("1")),
				fb.Assign(fb.Local("r", ref), fb.Ref(fb.Local("x", i), false)),
			}),
			fb.ExprStmt(fb.Deref(fb.Local("r", ref))),
		}
	})
	wantErrors(t, res, diag.OwnBorrowOutlivesOwner)
}

func TestBorrowDiesWithScope(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		ref := mb.RefType(i, false, "")
		return []tir.StmtID{
			fb.Block([]tir.StmtID{
				fb.Let("x", i, fb.LitInt("1")),
				fb.Let("r", ref, fb.Ref(fb.Local("x", i), false)),
				fb.ExprStmt(fb.Deref(fb.Local("r", ref))),
			}),
		}
	})
	wantClean(t, res)
}

func TestReturnReferenceToLocal(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		fb.Lifetime("'a").Result(mb.RefType(i, false, "'a"))
		return []tir.StmtID{
			fb.Let("x", i, fb.LitInt("1")),
			fb.Return(fb.Ref(fb.Local("x", i), false)),
		}
	})
	wantErrors(t, res, diag.OwnBorrowOutlivesOwner)
}

func TestInteriorMutabilityBypass(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		cell := mb.InteriorType("Cell", i)
		ref := mb.RefType(cell, true, "")
		return []tir.StmtID{
			fb.Let("c", cell, fb.StructLit(cell, tir.FieldInit{Name: "value", Value: fb.LitInt("1")})),
			fb.Let("a", ref, fb.Ref(fb.Local("c", cell), true)),
			fb.Let("b", ref, fb.Ref(fb.Local("c", cell), true)),
			fb.ExprStmt(fb.Deref(fb.Local("a", ref))),
		}
	})
	wantClean(t, res)

	bypass := 0
	for _, d := range res.Bag.Items() {
		if d.Code == diag.OwnInteriorBypass && d.Severity == diag.SevWarning {
			bypass++
		}
	}
	if bypass == 0 {
		t.Fatal("expected an interior-mutability bypass warning")
	}
	found := false
	for _, b := range res.Bindings {
		if b.Name == "c" && b.AliasingUnchecked {
			found = true
		}
	}
	if !found {
		t.Error("binding 'c' not marked AliasingUnchecked")
	}
}

func TestUnknownIdentifierIsDefensive(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		i := mb.IntType()
		return []tir.StmtID{
			fb.ExprStmt(fb.Local("ghost", i)),
		}
	})
	wantErrors(t, res, diag.OwnUnknownIdentifier)
}

func TestShadowingResolvesInnermost(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.Let("s", str, fb.LitString("outer")),
			// let s = s: the init consumes the outer s, the new s owns it.
			fb.Let("s", str, fb.Local("s", str)),
			fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
		}
	})
	wantClean(t, res)
}

func TestTransitionLogRecordsMoves(t *testing.T) {
	res := checkFunc(t, func(mb *tir.ModuleBuilder, fb *tir.FuncBuilder) []tir.StmtID {
		str := mb.StringType()
		return []tir.StmtID{
			fb.Let("s", str, fb.LitString("x")),
			fb.Let("t", str, fb.Local("s", str)),
		}
	})
	wantClean(t, res)

	var kinds []EventKind
	for _, ev := range res.Events {
		kinds = append(kinds, ev.Kind)
	}
	want := []EventKind{EventDefine, EventMove, EventDefine}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
	if res.Events[1].Place != "s" || res.Events[1].State != StateMoved {
		t.Errorf("move event = %+v", res.Events[1])
	}

	for _, b := range res.Bindings {
		switch b.Name {
		case "s":
			if b.Final != StateMoved {
				t.Errorf("s final state = %s", b.Final)
			}
		case "t":
			if b.Final != StateOwned {
				t.Errorf("t final state = %s", b.Final)
			}
		}
	}
}

// Two runs over the same input must produce identical sorted bags.
func TestCheckIsIdempotent(t *testing.T) {
	build := func() (*tir.Module, *tir.Func) {
		mb := tir.NewModuleBuilder("test")
		mb.AddSource("test.fe", "")
		fb := mb.NewFunc("f")
		str := mb.StringType()
		fb.Build(
			fb.Let("s", str, fb.LitString("x")),
			fb.Let("t", str, fb.Local("s", str)),
			fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("s", str))),
			fb.ExprStmt(fb.Call("sink", mb.UnitType(), fb.Local("t", str))),
		)
		mod := mb.Module()
		return mod, &mod.Funcs[0]
	}

	mod1, fn1 := build()
	mod2, fn2 := build()
	a := Check(mod1, fn1, 0)
	b := Check(mod2, fn2, 0)

	da, db := a.Bag.Items(), b.Bag.Items()
	if len(da) != len(db) {
		t.Fatalf("bag sizes differ: %d vs %d", len(da), len(db))
	}
	for i := range da {
		if da[i].Code != db[i].Code || da[i].Message != db[i].Message || da[i].Primary != db[i].Primary {
			t.Fatalf("diagnostic %d differs: %+v vs %+v", i, da[i], db[i])
		}
	}
	if len(a.Events) != len(b.Events) {
		t.Fatalf("event logs differ: %d vs %d", len(a.Events), len(b.Events))
	}
}
