package borrow

import (
	"ferro/internal/cfg"
	"ferro/internal/diag"
	"ferro/internal/source"
)

// EventKind classifies one ownership state transition in the log.
type EventKind uint8

const (
	// EventDefine is a let introducing an owned (or uninitialized) binding.
	EventDefine EventKind = iota
	// EventMove empties a place.
	EventMove
	// EventAssign restores ownership of a place.
	EventAssign
	// EventBorrow creates a loan over a place.
	EventBorrow
)

func (k EventKind) String() string {
	switch k {
	case EventDefine:
		return "define"
	case EventMove:
		return "move"
	case EventAssign:
		return "assign"
	case EventBorrow:
		return "borrow"
	default:
		return "?"
	}
}

// Event is one entry of the per-function transition log, ordered by the
// deterministic block visit order. The downstream IR builder replays these to
// know where drops and moves land.
type Event struct {
	Kind  EventKind   `msgpack:"kind"`
	Point cfg.Point   `msgpack:"point"`
	Span  source.Span `msgpack:"span"`
	// Place is the rendered place, e.g. "point.x".
	Place string `msgpack:"place"`
	// State the place is in after the transition.
	State StateKind `msgpack:"state"`
}

// BindingSummary is the annotated output for one binding: its declaration
// facts plus the state it ends the function in.
type BindingSummary struct {
	Name              string      `msgpack:"name"`
	Span              source.Span `msgpack:"span"`
	Mut               bool        `msgpack:"mut,omitempty"`
	IsParam           bool        `msgpack:"is_param,omitempty"`
	AliasingUnchecked bool        `msgpack:"aliasing_unchecked,omitempty"`
	Final             StateKind   `msgpack:"final"`
}

// SolvedLifetime is one signature lifetime after elision and constraint
// propagation: the full set of lifetimes it is known to outlive.
type SolvedLifetime struct {
	Name     string   `msgpack:"name"`
	Elided   bool     `msgpack:"elided,omitempty"`
	Outlives []string `msgpack:"outlives,omitempty"`
}

// Result is the per-function verdict. Valid functions carry the annotated
// binding table, the transition log and the solved lifetimes; invalid ones
// carry the diagnostics that sank them. One function's failure never blocks
// a sibling's result.
type Result struct {
	Func  string `msgpack:"func"`
	Valid bool   `msgpack:"valid"`

	Bindings  []BindingSummary `msgpack:"bindings,omitempty"`
	Events    []Event          `msgpack:"events,omitempty"`
	Lifetimes []SolvedLifetime `msgpack:"lifetimes,omitempty"`
	// ResultLifetime is the lifetime of the returned reference, if the
	// function returns one ("" otherwise).
	ResultLifetime string `msgpack:"result_lifetime,omitempty"`

	Bag *diag.Bag `msgpack:"-"`
}
