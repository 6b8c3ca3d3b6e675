package cfg

import (
	"ferro/internal/tir"
)

type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermIf
	TermReturn
)

// Terminator closes a block. TermIf branches on the condition already
// evaluated at the block's last statement point.
type Terminator struct {
	Kind   TermKind
	Target BlockID // goto
	Then   BlockID // if
	Else   BlockID // if
}

// Block is a straight-line run of statement IDs into the tir arenas.
type Block struct {
	ID    BlockID
	Stmts []tir.StmtID
	Term  Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// TermPoint addresses the terminator slot of the block.
func (b *Block) TermPoint() Point {
	return Point{Block: b.ID, Index: int32(len(b.Stmts))} //nolint:gosec // block sizes stay small
}
