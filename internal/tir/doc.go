// Package tir holds the Typed Input Representation: the contract between
// the type checker and the borrow/lifetime verifier.
//
// A tir.Module arrives with every expression fully typed. Reference types may
// still be lifetime-elided ("" annotation); resolving those is the verifier's
// job, not the type checker's. Function bodies are statement trees, not a
// CFG; internal/cfg lowers them to the statement-level graph the analysis
// runs on.
//
// The representation is arena-based: expressions and statements live in
// per-function slices addressed by ExprID/StmtID, types in a per-module slice
// addressed by TypeID. All structures carry msgpack tags so a module can be
// read from the type checker's serialized output (see decode.go); source text
// is embedded so diagnostics can still show context.
//
// tir is read-only for the verifier. Nothing in this package mutates a
// module after construction, which is what makes the per-function fan-out in
// internal/driver safe without locking.
package tir
