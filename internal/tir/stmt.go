package tir

import "ferro/internal/source"

type StmtKind uint8

const (
	// StmtLet declares a binding; Init may be invalid (late initialization).
	StmtLet StmtKind = iota
	// StmtAssign stores Value into the place named by Target.
	StmtAssign
	StmtExpr
	StmtIf
	StmtWhile
	StmtLoop
	StmtBreak
	StmtContinue
	StmtReturn
	StmtBlock
)

func (k StmtKind) String() string {
	switch k {
	case StmtLet:
		return "let"
	case StmtAssign:
		return "assign"
	case StmtExpr:
		return "expr"
	case StmtIf:
		return "if"
	case StmtWhile:
		return "while"
	case StmtLoop:
		return "loop"
	case StmtBreak:
		return "break"
	case StmtContinue:
		return "continue"
	case StmtReturn:
		return "return"
	case StmtBlock:
		return "block"
	default:
		return "?"
	}
}

// Stmt is a tagged variant; which fields are meaningful depends on Kind.
type Stmt struct {
	Kind StmtKind    `msgpack:"kind"`
	Span source.Span `msgpack:"span"`

	// Let payload.
	Name string `msgpack:"name,omitempty"`
	Mut  bool   `msgpack:"mut,omitempty"`
	Type TypeID `msgpack:"type,omitempty"`
	Init ExprID `msgpack:"init,omitempty"`

	// Assign target place expression.
	Target ExprID `msgpack:"target,omitempty"`
	// Assign/expr/return value. Return without value keeps NoExprID.
	Value ExprID `msgpack:"value,omitempty"`

	// If/while condition.
	Cond ExprID `msgpack:"cond,omitempty"`
	// If branches; Then doubles as the body of while/loop/block.
	Then []StmtID `msgpack:"then,omitempty"`
	Else []StmtID `msgpack:"else,omitempty"`
}
