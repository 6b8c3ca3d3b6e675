// Package diag defines the diagnostic model produced by the borrow and
// lifetime verifier.
//
// The verifier itself never formats or colorizes output: it emits
// deterministic, serialisable Diagnostic records through a Reporter, and the
// rendering collaborators (internal/diagfmt, the CLI) turn them into text or
// JSON with source context.
//
// Diagnostic is the central record:
//
//   - Severity – tri-level enum (Info, Warning, Error).
//   - Code – compact numeric identifier with a stable string form (codes.go).
//   - Message – short, human oriented text.
//   - Primary – the source.Span of the violation itself.
//   - Notes – secondary spans, e.g. "previous borrow of `v` occurs here".
//
// Producers emit through the Reporter interface so storage stays decoupled
// from analysis. BagReporter collects into a Bag, which supports merging
// across functions, a deterministic sort (file, start, end, severity, code)
// and duplicate suppression. DedupReporter filters repeats at emission time;
// Bag.Dedup covers merged bags.
//
// Keep the model data-only: the same bags are compared byte-for-byte in the
// idempotence tests and may be cached between runs.
package diag
