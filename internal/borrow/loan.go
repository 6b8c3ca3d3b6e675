package borrow

import (
	"ferro/internal/cfg"
	"ferro/internal/source"
	"ferro/internal/tir"
)

// LoanID identifies one borrow within a function.
type LoanID int32

const NoLoanID LoanID = -1

func (id LoanID) IsValid() bool { return id >= 0 }

type LoanKind uint8

const (
	// LoanShared is &place.
	LoanShared LoanKind = iota
	// LoanExclusive is &mut place.
	LoanExclusive
)

func (k LoanKind) String() string {
	switch k {
	case LoanShared:
		return "&"
	case LoanExclusive:
		return "&mut"
	default:
		return "?"
	}
}

// Loan is one borrow: a temporary capability over a place, created at a
// reference expression and live for the computed range of points.
type Loan struct {
	ID    LoanID
	Place Place
	Kind  LoanKind
	// Expr is the ExprRef that created the loan.
	Expr tir.ExprID
	Span source.Span
	// CreatedAt is set when the collect pass maps the creating statement to
	// its CFG point.
	CreatedAt cfg.Point
	// Holders are the bindings that carry the reference value: the let
	// binding it initializes, any binding a shared copy lands in, or the
	// struct binding whose field stores it. Empty for argument temporaries
	// that die at their statement.
	Holders []BindingID
	// LiveAt is the computed live-range: the creation point plus every
	// forward-reachable point where some holder is still live. Liveness,
	// not lexical scope, decides where the loan ends.
	LiveAt cfg.PointSet
	// Named is the lifetime annotation of the holder's declared reference
	// type, if any; links the loan to the signature-level solver.
	Named string
}

func (l *Loan) LiveAtPoint(p cfg.Point) bool {
	return l.LiveAt != nil && l.LiveAt.Has(p)
}

func (l *Loan) addHolder(b BindingID) {
	if !b.IsValid() {
		return
	}
	for _, h := range l.Holders {
		if h == b {
			return
		}
	}
	l.Holders = append(l.Holders, b)
}
