package source

import (
	"testing"
)

func TestAddVirtualAndResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("main.fe", []byte("let a = 1;\nlet b = &a;\n"))

	f := fs.Get(id)
	if f.Flags&FileVirtual == 0 {
		t.Fatalf("expected FileVirtual flag")
	}
	if len(f.LineIdx) != 2 {
		t.Fatalf("expected 2 newlines, got %d", len(f.LineIdx))
	}

	// "let b" starts at offset 11 -> line 2, col 1.
	start, end := fs.Resolve(Span{File: id, Start: 11, End: 16})
	if start.Line != 2 || start.Col != 1 {
		t.Fatalf("start = %+v, want line 2 col 1", start)
	}
	if end.Line != 2 || end.Col != 6 {
		t.Fatalf("end = %+v, want line 2 col 6", end)
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("f.fe", []byte("first\nsecond\nthird"))
	f := fs.Get(id)

	cases := []struct {
		num  uint32
		want string
	}{
		{1, "first"},
		{2, "second"},
		{3, "third"},
		{4, ""},
		{0, ""},
	}
	for _, tc := range cases {
		if got := f.GetLine(tc.num); got != tc.want {
			t.Errorf("GetLine(%d) = %q, want %q", tc.num, got, tc.want)
		}
	}
}

func TestNormalizeCRLF(t *testing.T) {
	out, changed := normalizeCRLF([]byte("a\r\nb\rc\n"))
	if !changed {
		t.Fatalf("expected change")
	}
	if string(out) != "a\nb\rc\n" {
		t.Fatalf("got %q", string(out))
	}

	out, changed = normalizeCRLF([]byte("plain\n"))
	if changed {
		t.Fatalf("unexpected change for %q", string(out))
	}
}

func TestSpanCoverAndBefore(t *testing.T) {
	a := Span{File: 0, Start: 4, End: 8}
	b := Span{File: 0, Start: 2, End: 6}
	c := a.Cover(b)
	if c.Start != 2 || c.End != 8 {
		t.Fatalf("cover = %+v", c)
	}
	if !b.Before(a) {
		t.Fatalf("expected b before a")
	}
	other := Span{File: 1, Start: 0, End: 1}
	if !a.Before(other) {
		t.Fatalf("expected file order to win")
	}
}
