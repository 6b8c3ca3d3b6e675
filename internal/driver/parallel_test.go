package driver

import (
	"context"
	"testing"

	"ferro/internal/diag"
	"ferro/internal/tir"
)

// twoFuncModule builds one clean function and one with a use-after-move.
func twoFuncModule() *tir.Module {
	mb := tir.NewModuleBuilder("demo")
	mb.AddSource("demo.fe", "")
	str := mb.StringType()

	ok := mb.NewFunc("fine")
	ok.Build(
		ok.Let("s", str, ok.LitString("a")),
		ok.ExprStmt(ok.Call("sink", mb.UnitType(), ok.Local("s", str))),
	)

	bad := mb.NewFunc("broken")
	bad.Build(
		bad.Let("s", str, bad.LitString("b")),
		bad.Let("t", str, bad.Local("s", str)),
		bad.ExprStmt(bad.Call("sink", mb.UnitType(), bad.Local("s", str))),
	)

	return mb.Module()
}

func TestCheckModuleIsolatesFunctions(t *testing.T) {
	mod := twoFuncModule()
	res, err := CheckModule(context.Background(), mod, Options{Jobs: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("got %d results", len(res.Results))
	}
	if !res.Results[0].Valid {
		t.Error("clean function dragged down by its sibling")
	}
	if res.Results[1].Valid {
		t.Error("broken function not flagged")
	}
	if !res.HasErrors() {
		t.Error("merged bag lost the error")
	}
	for _, d := range res.Bag.Items() {
		if d.Severity >= diag.SevError && d.Code != diag.OwnUseAfterMove {
			t.Errorf("unexpected error code %s", d.Code)
		}
	}
}

// The same module checked twice must produce byte-equal ordered bags,
// whatever the worker interleaving was.
func TestCheckModuleDeterministic(t *testing.T) {
	run := func() []diag.Diagnostic {
		res, err := CheckModule(context.Background(), twoFuncModule(), Options{Jobs: 8})
		if err != nil {
			t.Fatal(err)
		}
		return res.Bag.Items()
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("bag sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Code != b[i].Code || a[i].Primary != b[i].Primary || a[i].Message != b[i].Message {
			t.Fatalf("diagnostic %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestCheckModuleHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CheckModule(ctx, twoFuncModule(), Options{Jobs: 1}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestResultCacheRoundTrip(t *testing.T) {
	cache, err := OpenResultCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mod := twoFuncModule()

	key, err := FuncDigest(mod, &mod.Funcs[1])
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	first, err := CheckModule(context.Background(), mod, Options{Cache: cache})
	if err != nil {
		t.Fatal(err)
	}
	cached, ok := cache.Get(key)
	if !ok {
		t.Fatal("result not cached")
	}
	if cached.Valid != first.Results[1].Valid || cached.Func != "broken" {
		t.Fatalf("cached result mismatch: %+v", cached)
	}
	if cached.Bag.Len() != first.Results[1].Bag.Len() {
		t.Fatalf("cached diagnostics differ: %d vs %d", cached.Bag.Len(), first.Results[1].Bag.Len())
	}

	// A second run served from the cache must agree with the first.
	second, err := CheckModule(context.Background(), mod, Options{Cache: cache})
	if err != nil {
		t.Fatal(err)
	}
	if second.Bag.Len() != first.Bag.Len() {
		t.Fatalf("cache-served run differs: %d vs %d diagnostics", second.Bag.Len(), first.Bag.Len())
	}
}

func TestFuncDigestTracksTypes(t *testing.T) {
	a := twoFuncModule()
	b := twoFuncModule()
	ka, err := FuncDigest(a, &a.Funcs[0])
	if err != nil {
		t.Fatal(err)
	}
	kb, err := FuncDigest(b, &b.Funcs[0])
	if err != nil {
		t.Fatal(err)
	}
	if ka != kb {
		t.Error("identical inputs should digest identically")
	}
	kOther, err := FuncDigest(a, &a.Funcs[1])
	if err != nil {
		t.Fatal(err)
	}
	if ka == kOther {
		t.Error("different functions should digest differently")
	}
}
