package diag

import (
	"testing"

	"ferro/internal/source"
)

func span(file source.FileID, start, end uint32) source.Span {
	return source.Span{File: file, Start: start, End: end}
}

func TestBagLimit(t *testing.T) {
	bag := NewBag(2)
	if !bag.Add(NewError(OwnUseAfterMove, span(0, 0, 1), "a")) {
		t.Fatalf("first add rejected")
	}
	if !bag.Add(NewError(OwnUseAfterMove, span(0, 1, 2), "b")) {
		t.Fatalf("second add rejected")
	}
	if bag.Add(NewError(OwnUseAfterMove, span(0, 2, 3), "c")) {
		t.Fatalf("expected limit to reject third add")
	}
	if bag.Len() != 2 {
		t.Fatalf("len = %d, want 2", bag.Len())
	}
}

func TestBagSortDeterministic(t *testing.T) {
	bag := NewBag(10)
	bag.Add(NewError(OwnConflictingBorrow, span(0, 20, 25), "later"))
	bag.Add(NewError(OwnUseAfterMove, span(0, 5, 8), "earlier"))
	bag.Add(New(SevWarning, OwnInteriorBypass, span(0, 5, 8), "same span, lower severity"))
	bag.Sort()

	items := bag.Items()
	if items[0].Code != OwnUseAfterMove {
		t.Fatalf("items[0] = %v", items[0].Code)
	}
	if items[1].Code != OwnInteriorBypass {
		t.Fatalf("items[1] = %v, want warning after error at same span", items[1].Code)
	}
	if items[2].Code != OwnConflictingBorrow {
		t.Fatalf("items[2] = %v", items[2].Code)
	}
}

func TestBagDedup(t *testing.T) {
	bag := NewBag(10)
	d := NewError(OwnUseAfterMove, span(0, 3, 4), "use of moved value 'x'")
	bag.Add(d)
	bag.Add(d)
	bag.Add(NewError(OwnUseAfterMove, span(0, 3, 4), "different message"))
	bag.Dedup()
	if bag.Len() != 2 {
		t.Fatalf("len after dedup = %d, want 2", bag.Len())
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	for range 3 {
		ReportError(r, OwnConflictingBorrow, span(0, 1, 2), "cannot borrow `v` as mutable")
	}
	if bag.Len() != 1 {
		t.Fatalf("len = %d, want 1", bag.Len())
	}
}

func TestCodeID(t *testing.T) {
	if got := OwnConflictingBorrow.ID(); got != "OWN4002" {
		t.Fatalf("ID = %q", got)
	}
	if got := UnknownCode.ID(); got != "E0000" {
		t.Fatalf("ID = %q", got)
	}
}
