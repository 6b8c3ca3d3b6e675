package cfg

import (
	"sort"

	"ferro/internal/tir"
)

// Graph is the statement-level CFG of one function body.
type Graph struct {
	Blocks []Block
	Entry  BlockID

	preds [][]BlockID
	rpo   []BlockID
	order map[BlockID]int
}

// Block returns the block, or nil for an invalid id.
func (g *Graph) Block(id BlockID) *Block {
	if !id.IsValid() || int(id) >= len(g.Blocks) {
		return nil
	}
	return &g.Blocks[id]
}

// Succs returns the successor block IDs of id.
func (g *Graph) Succs(id BlockID) []BlockID {
	b := g.Block(id)
	if b == nil {
		return nil
	}
	switch b.Term.Kind {
	case TermGoto:
		return []BlockID{b.Term.Target}
	case TermIf:
		if b.Term.Then == b.Term.Else {
			return []BlockID{b.Term.Then}
		}
		return []BlockID{b.Term.Then, b.Term.Else}
	default:
		return nil
	}
}

// Preds returns the predecessor block IDs, computed once on first use.
func (g *Graph) Preds(id BlockID) []BlockID {
	if g.preds == nil {
		g.preds = make([][]BlockID, len(g.Blocks))
		for i := range g.Blocks {
			from := BlockID(i) //nolint:gosec // bounded by block count
			for _, to := range g.Succs(from) {
				g.preds[to] = append(g.preds[to], from)
			}
		}
	}
	if !id.IsValid() || int(id) >= len(g.preds) {
		return nil
	}
	return g.preds[id]
}

// ReversePostorder returns all blocks, reachable ones in reverse postorder
// first, then any unreachable blocks in ID order. Dead code is still scanned
// for independent diagnostics.
func (g *Graph) ReversePostorder() []BlockID {
	if g.rpo != nil {
		return g.rpo
	}
	visited := make([]bool, len(g.Blocks))
	var post []BlockID
	var walk func(BlockID)
	walk = func(id BlockID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, succ := range g.Succs(id) {
			walk(succ)
		}
		post = append(post, id)
	}
	if g.Entry.IsValid() && len(g.Blocks) > 0 {
		walk(g.Entry)
	}

	out := make([]BlockID, 0, len(g.Blocks))
	for i := len(post) - 1; i >= 0; i-- {
		out = append(out, post[i])
	}
	for i := range g.Blocks {
		if !visited[i] {
			out = append(out, BlockID(i)) //nolint:gosec // bounded by block count
		}
	}
	g.rpo = out
	return out
}

// orderIndex gives every block its position in the deterministic visit order.
func (g *Graph) orderIndex(id BlockID) int {
	if g.order == nil {
		g.order = make(map[BlockID]int, len(g.Blocks))
		for i, b := range g.ReversePostorder() {
			g.order[b] = i
		}
	}
	return g.order[id]
}

// StmtAt returns the tir statement at the point, or NoStmtID for a
// terminator slot.
func (g *Graph) StmtAt(p Point) tir.StmtID {
	b := g.Block(p.Block)
	if b == nil || int(p.Index) >= len(b.Stmts) {
		return tir.NoStmtID
	}
	return b.Stmts[p.Index]
}

// ForwardReachable collects every point reachable from p, including p
// itself, following within-block order and terminator edges.
func (g *Graph) ForwardReachable(p Point) PointSet {
	out := NewPointSet()
	seenBlocks := make(map[BlockID]bool)

	var visitBlock func(id BlockID, from int32)
	visitBlock = func(id BlockID, from int32) {
		b := g.Block(id)
		if b == nil {
			return
		}
		// A block entered from its start is fully covered once.
		if from == 0 {
			if seenBlocks[id] {
				return
			}
			seenBlocks[id] = true
		}
		last := int32(len(b.Stmts)) //nolint:gosec // block sizes stay small
		for i := from; i <= last; i++ {
			out.Add(Point{Block: id, Index: i})
		}
		for _, succ := range g.Succs(id) {
			visitBlock(succ, 0)
		}
	}
	visitBlock(p.Block, p.Index)
	return out
}

// SortedPoints returns the points of set ordered by visit order and
// statement index, for deterministic reporting.
func (g *Graph) SortedPoints(set PointSet) []Point {
	out := make([]Point, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := g.orderIndex(out[i].Block), g.orderIndex(out[j].Block)
		if oi != oj {
			return oi < oj
		}
		return out[i].Index < out[j].Index
	})
	return out
}
