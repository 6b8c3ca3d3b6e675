package borrow

import (
	"ferro/internal/source"
)

// StateKind is the per-place ownership state observed at one point.
// Owned/Moved propagate through the dataflow; the two borrowed states are
// derived from the live-loan set rather than stored.
type StateKind uint8

const (
	StateOwned StateKind = iota
	StateMoved
	StateShared
	StateExclusive
)

func (k StateKind) String() string {
	switch k {
	case StateOwned:
		return "owned"
	case StateMoved:
		return "moved"
	case StateShared:
		return "shared-borrowed"
	case StateExclusive:
		return "exclusive-borrowed"
	default:
		return "?"
	}
}

// movedEntry records why a place is unusable: moved away, or never
// initialized.
type movedEntry struct {
	Span   source.Span
	Uninit bool
}

// movedSet is the flow state the replay propagates across blocks: canonical
// place key -> the move (or missing initialization) that emptied it.
type movedSet map[string]movedEntry

func (m movedSet) clone() movedSet {
	out := make(movedSet, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// merge unifies the states flowing into a join. Moved on any path dominates:
// the join itself is never an error, only a later use under the dominant
// state is.
func (m movedSet) merge(other movedSet) (movedSet, bool) {
	changed := false
	out := m.clone()
	for k, v := range other {
		if _, ok := out[k]; !ok {
			out[k] = v
			changed = true
		}
	}
	return out, changed
}

func (m movedSet) equal(other movedSet) bool {
	if len(m) != len(other) {
		return false
	}
	for k := range m {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// lookup finds the moved entry that poisons place, if any: an exact entry,
// a moved prefix (moving a struct empties its fields), or a moved
// subplace (a struct with a moved-out field cannot be used whole).
func (m movedSet) lookup(place Place, all map[string]Place) (movedEntry, bool) {
	if e, ok := m[place.Key()]; ok {
		return e, true
	}
	for key, entry := range m {
		p, ok := all[key]
		if !ok {
			continue
		}
		if p.IsPrefixOf(place) || place.IsPrefixOf(p) {
			return entry, true
		}
	}
	return movedEntry{}, false
}

// clear removes every entry overlapping place: reassignment restores
// ownership of the place and everything beneath it.
func (m movedSet) clear(place Place, all map[string]Place) {
	delete(m, place.Key())
	for key := range m {
		p, ok := all[key]
		if !ok {
			continue
		}
		if place.IsPrefixOf(p) {
			delete(m, key)
		}
	}
}
