package tir_test

import (
	"path/filepath"
	"strings"
	"testing"

	"ferro/internal/testkit"
	"ferro/internal/tir"
)

func buildSample(t *testing.T) *tir.Module {
	t.Helper()
	mb := tir.NewModuleBuilder("sample")
	mb.AddSource("sample.fe", strings.Repeat(" ", 128))

	intT := mb.IntType()
	pairT := mb.StructType("Pair", nil,
		tir.Field{Name: "a", Type: intT},
		tir.Field{Name: "b", Type: intT},
	)

	refT := mb.RefType(pairT, true, "")
	fb := mb.NewFunc("swap").Param("p", refT).Result(mb.UnitType())
	p := fb.Local("p", refT)
	tmp := fb.Let("tmp", intT, fb.Field(fb.Deref(p), "a", intT))
	fb.Build(
		tmp,
		fb.Assign(fb.Field(fb.Deref(p), "a", intT), fb.Field(fb.Deref(p), "b", intT)),
		fb.Assign(fb.Field(fb.Deref(p), "b", intT), fb.Local("tmp", intT)),
		fb.ReturnVoid(),
	)
	return mb.Module()
}

func TestBuilderProducesWellFormedModules(t *testing.T) {
	mod := buildSample(t)
	if err := testkit.CheckModuleInvariants(mod); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	if _, ok := mod.FuncByName("swap"); !ok {
		t.Fatal("swap not found")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	mod := buildSample(t)
	path := filepath.Join(t.TempDir(), "sample.ftm")

	if err := tir.Save(path, mod); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := tir.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := testkit.CheckModuleInvariants(got); err != nil {
		t.Fatalf("invariants after round trip: %v", err)
	}
	if got.Name != "sample" || len(got.Funcs) != 1 || len(got.Types) != len(mod.Types) {
		t.Fatalf("module changed across round trip: %+v", got)
	}
	fn := &got.Funcs[0]
	if fn.Name != "swap" || len(fn.Body) != 4 {
		t.Fatalf("func changed across round trip: %+v", fn)
	}
}

func TestInvariantsCatchDanglingReferences(t *testing.T) {
	mod := buildSample(t)
	mod.Funcs[0].Body = append(mod.Funcs[0].Body, tir.StmtID(9999))
	if err := testkit.CheckModuleInvariants(mod); err == nil {
		t.Fatal("expected dangling statement to be rejected")
	}

	mod = buildSample(t)
	mod.Funcs[0].Params[0].Type = tir.TypeID(9999)
	if err := testkit.CheckModuleInvariants(mod); err == nil {
		t.Fatal("expected dangling param type to be rejected")
	}
}
