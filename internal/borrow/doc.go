// Package borrow implements the ownership, borrowing, and lifetime verifier.
//
// Each function is checked by a fresh, independently owned Checker over the
// read-only typed input (internal/tir) and its statement-level CFG
// (internal/cfg). The analysis proceeds in passes over one shared traversal
// of the function body:
//
//  1. resolve   – build the scope tree and binding table, resolve every
//     local reference (scope.go).
//  2. collect   – create loan records at borrow sites and attribute them to
//     the bindings that hold the resulting references (loan.go).
//  3. liveness  – backward dataflow over the CFG computing, per loan, the
//     exact set of points where it is live; a borrow expires at its last
//     use, not at the closing brace (liveness.go).
//  4. replay    – the ownership state machine walks blocks in reverse
//     postorder (loops twice, to a fixpoint on moved-state merges) and asks
//     the conflict validator about every read, move, borrow and assignment
//     (checker.go, state.go, conflict.go).
//  5. lifetimes – elision of unannotated signature references and the
//     outlives-constraint solve (elide.go, lifetime.go).
//
// Places, not variables, are the unit of conflict: `p.x` and `p.y` never
// alias, so two exclusive borrows of distinct fields coexist. Places of
// interior-mutability types are exempt from the static rules and flagged in
// the output binding table instead.
//
// The verifier only produces data: diagnostics in a diag.Bag and a Result
// with the annotated binding table, transition log, and solved lifetimes for
// the downstream IR builder.
package borrow
