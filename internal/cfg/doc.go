// Package cfg builds the statement-level control-flow graph the borrow
// verifier analyses.
//
// The unit of the graph is the Point: (block, statement index), with the
// index one past the statements addressing the terminator. Liveness and
// live-range computation in internal/borrow work entirely in Points, which
// is what makes borrows expire at their last use instead of at the closing
// brace of their lexical scope.
//
// Branch statements (if/while) occupy a real statement slot at the end of
// their block so the condition's reads and borrows have a Point of their
// own; the terminator only routes control.
package cfg
