package cfg

import "fmt"

// BlockID identifies a basic block within one function's graph.
type BlockID int32

const NoBlockID BlockID = -1

func (id BlockID) IsValid() bool { return id >= 0 }

// Point addresses one statement slot inside a block. Index == len(stmts)
// addresses the block's terminator. Points are totally ordered within a
// block and partially ordered across branches.
type Point struct {
	Block BlockID
	Index int32
}

func (p Point) String() string {
	return fmt.Sprintf("bb%d[%d]", p.Block, p.Index)
}

// PointSet is the unit of live-range bookkeeping.
type PointSet map[Point]struct{}

func NewPointSet() PointSet {
	return make(PointSet)
}

func (s PointSet) Add(p Point) {
	s[p] = struct{}{}
}

func (s PointSet) Has(p Point) bool {
	_, ok := s[p]
	return ok
}

func (s PointSet) Len() int {
	return len(s)
}

// Union adds every point of other into s and reports whether s grew.
func (s PointSet) Union(other PointSet) bool {
	grew := false
	for p := range other {
		if _, ok := s[p]; !ok {
			s[p] = struct{}{}
			grew = true
		}
	}
	return grew
}

func (s PointSet) Clone() PointSet {
	out := make(PointSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

func (s PointSet) Equal(other PointSet) bool {
	if len(s) != len(other) {
		return false
	}
	for p := range s {
		if _, ok := other[p]; !ok {
			return false
		}
	}
	return true
}

// Subset reports whether every point of s is in other.
func (s PointSet) Subset(other PointSet) bool {
	for p := range s {
		if _, ok := other[p]; !ok {
			return false
		}
	}
	return true
}
