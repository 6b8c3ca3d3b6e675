package borrow

import (
	"fmt"

	"ferro/internal/cfg"
	"ferro/internal/diag"
	"ferro/internal/source"
)

// accessKind is what an operation does to a place, for compatibility with
// the loans live at that point.
type accessKind uint8

const (
	// accessRead copies the value out; compatible with shared loans.
	accessRead accessKind = iota
	// accessMove empties the place.
	accessMove
	// accessWrite overwrites the place.
	accessWrite
	// accessShared creates a & loan.
	accessShared
	// accessExclusive creates a &mut loan.
	accessExclusive
)

// compatible reports whether an access can coexist with a live loan on an
// overlapping place. Reads and new shared loans tolerate shared loans;
// nothing tolerates an exclusive loan, and moves/writes/exclusive loans
// tolerate nothing.
func compatible(access accessKind, loan LoanKind) bool {
	switch access {
	case accessRead, accessShared:
		return loan == LoanShared
	default:
		return false
	}
}

// findConflict returns the lowest-numbered live loan that overlaps place and
// is incompatible with the access. Loans in skip are exempt: the loan being
// created at this very point, and the loan the access travels through (a
// write via *r must not conflict with r's own loan).
func findConflict(loans []*Loan, p cfg.Point, place Place, access accessKind, skip ...LoanID) *Loan {
	var found *Loan
	for _, loan := range loans {
		if !loan.LiveAtPoint(p) {
			continue
		}
		if skipped(skip, loan.ID) {
			continue
		}
		if !loan.Place.Overlaps(place) {
			continue
		}
		if compatible(access, loan.Kind) {
			continue
		}
		if found == nil || loan.ID < found.ID {
			found = loan
		}
	}
	return found
}

func skipped(skip []LoanID, id LoanID) bool {
	for _, s := range skip {
		if s == id {
			return true
		}
	}
	return false
}

// reportConflict emits the single diagnostic for an op rejected by a live
// loan, with a note pointing at the borrow that wins.
func reportConflict(r diag.Reporter, tab *Table, access accessKind, place Place, span source.Span, loan *Loan) {
	name := place.Describe(tab)
	prior := "borrowed"
	if loan.Kind == LoanExclusive {
		prior = "exclusively borrowed"
	}
	var msg string
	switch access {
	case accessRead:
		msg = fmt.Sprintf("cannot use '%s' while it is %s", name, prior)
	case accessMove:
		msg = fmt.Sprintf("cannot move out of '%s' while it is %s", name, prior)
	case accessWrite:
		msg = fmt.Sprintf("cannot assign to '%s' while it is %s", name, prior)
	case accessShared:
		msg = fmt.Sprintf("cannot borrow '%s' as shared while it is exclusively borrowed", name)
	case accessExclusive:
		msg = fmt.Sprintf("cannot borrow '%s' as exclusive while it is %s", name, prior)
	}
	r.Report(diag.OwnConflictingBorrow, diag.SevError, span, msg, []diag.Note{
		{Span: loan.Span, Msg: "previous borrow here"},
	})
}
