package cfg

import (
	"ferro/internal/tir"
)

// Build lowers a tir function body into a statement-level CFG.
//
// if/while/loop statements appear as ordinary statements at the end of their
// block: that point is where the condition is evaluated. The terminator then
// routes control without re-evaluating anything.
func Build(fn *tir.Func) *Graph {
	b := &builder{fn: fn}
	b.g.Entry = b.newBlock()
	b.cur = b.g.Entry
	b.lowerList(fn.Body)
	if !b.g.Blocks[b.cur].Terminated() {
		b.g.Blocks[b.cur].Term = Terminator{Kind: TermReturn}
	}
	return &b.g
}

type loopCtx struct {
	cont BlockID // continue target: loop header / while condition
	exit BlockID // break target
}

type builder struct {
	fn    *tir.Func
	g     Graph
	cur   BlockID
	loops []loopCtx
}

func (b *builder) newBlock() BlockID {
	id := BlockID(len(b.g.Blocks)) //nolint:gosec // bounded by statement count
	b.g.Blocks = append(b.g.Blocks, Block{ID: id})
	return id
}

func (b *builder) emit(id tir.StmtID) {
	blk := &b.g.Blocks[b.cur]
	blk.Stmts = append(blk.Stmts, id)
}

func (b *builder) terminate(t Terminator) {
	blk := &b.g.Blocks[b.cur]
	if blk.Terminated() {
		return
	}
	blk.Term = t
}

// startBlock opens a fresh block and makes it current. Statements after a
// return/break/continue land in an unreachable block that is still scanned.
func (b *builder) startBlock() {
	b.cur = b.newBlock()
}

func (b *builder) lowerList(stmts []tir.StmtID) {
	for _, id := range stmts {
		b.lowerStmt(id)
	}
}

func (b *builder) lowerStmt(id tir.StmtID) {
	st := b.fn.Stmt(id)
	if st == nil {
		return
	}
	switch st.Kind {
	case tir.StmtLet, tir.StmtAssign, tir.StmtExpr:
		b.emit(id)

	case tir.StmtBlock:
		b.lowerList(st.Then)

	case tir.StmtIf:
		b.emit(id) // condition point
		thenBlk := b.newBlock()
		var elseBlk BlockID
		join := b.newBlock()
		if len(st.Else) > 0 {
			elseBlk = b.newBlock()
		} else {
			elseBlk = join
		}
		b.terminate(Terminator{Kind: TermIf, Then: thenBlk, Else: elseBlk})

		b.cur = thenBlk
		b.lowerList(st.Then)
		b.terminate(Terminator{Kind: TermGoto, Target: join})

		if len(st.Else) > 0 {
			b.cur = elseBlk
			b.lowerList(st.Else)
			b.terminate(Terminator{Kind: TermGoto, Target: join})
		}
		b.cur = join

	case tir.StmtWhile:
		header := b.newBlock()
		body := b.newBlock()
		exit := b.newBlock()
		b.terminate(Terminator{Kind: TermGoto, Target: header})

		b.cur = header
		b.emit(id) // condition point, re-evaluated each iteration
		b.terminate(Terminator{Kind: TermIf, Then: body, Else: exit})

		b.loops = append(b.loops, loopCtx{cont: header, exit: exit})
		b.cur = body
		b.lowerList(st.Then)
		b.terminate(Terminator{Kind: TermGoto, Target: header})
		b.loops = b.loops[:len(b.loops)-1]

		b.cur = exit

	case tir.StmtLoop:
		header := b.newBlock()
		exit := b.newBlock()
		b.terminate(Terminator{Kind: TermGoto, Target: header})

		b.loops = append(b.loops, loopCtx{cont: header, exit: exit})
		b.cur = header
		b.lowerList(st.Then)
		b.terminate(Terminator{Kind: TermGoto, Target: header})
		b.loops = b.loops[:len(b.loops)-1]

		b.cur = exit

	case tir.StmtBreak:
		if len(b.loops) > 0 {
			b.terminate(Terminator{Kind: TermGoto, Target: b.loops[len(b.loops)-1].exit})
		} else {
			b.terminate(Terminator{Kind: TermReturn})
		}
		b.startBlock()

	case tir.StmtContinue:
		if len(b.loops) > 0 {
			b.terminate(Terminator{Kind: TermGoto, Target: b.loops[len(b.loops)-1].cont})
		} else {
			b.terminate(Terminator{Kind: TermReturn})
		}
		b.startBlock()

	case tir.StmtReturn:
		b.emit(id) // value evaluation point
		b.terminate(Terminator{Kind: TermReturn})
		b.startBlock()
	}
}
