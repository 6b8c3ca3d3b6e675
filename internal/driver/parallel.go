// Package driver fans the verifier out over a module's functions.
package driver

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"ferro/internal/borrow"
	"ferro/internal/diag"
	"ferro/internal/observ"
	"ferro/internal/tir"
	"ferro/internal/trace"
)

// Options configures one module run.
type Options struct {
	// MaxDiagnostics caps each function's bag; <= 0 uses the checker default.
	MaxDiagnostics int
	// Jobs is the worker limit; <= 0 uses GOMAXPROCS.
	Jobs int
	// Cache, when set, short-circuits functions whose digest is already
	// verified.
	Cache *ResultCache
	// Timer, when set, records the phase timings.
	Timer *observ.Timer
}

// ModuleResult aggregates the per-function results in declaration order plus
// the merged, sorted diagnostic bag.
type ModuleResult struct {
	Module  string
	Results []*borrow.Result
	Bag     *diag.Bag
}

// HasErrors reports whether any function failed verification.
func (r *ModuleResult) HasErrors() bool {
	return r.Bag != nil && r.Bag.HasErrors()
}

// CheckModule verifies every function of the module in parallel. Each worker
// gets a fresh checker, so one function's state never leaks into another;
// results land at the function's own index, which keeps the merged output
// deterministic regardless of completion order.
func CheckModule(ctx context.Context, mod *tir.Module, opts Options) (*ModuleResult, error) {
	tr := trace.FromContext(ctx)
	tr.Emit(trace.ScopeDriver, "check-module", mod.Name)

	phase := -1
	if opts.Timer != nil {
		phase = opts.Timer.Begin("borrow")
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if jobs > len(mod.Funcs) && len(mod.Funcs) > 0 {
		jobs = len(mod.Funcs)
	}

	results := make([]*borrow.Result, len(mod.Funcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := range mod.Funcs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			fn := &mod.Funcs[i]
			tr.Emit(trace.ScopeFunc, "check", fn.Name)
			results[i] = checkOne(mod, fn, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ModuleResult{
		Module:  mod.Name,
		Results: results,
		Bag:     mergeBags(results, opts.MaxDiagnostics),
	}
	if opts.Timer != nil {
		opts.Timer.End(phase, fmt.Sprintf("%d functions", len(mod.Funcs)))
	}
	return out, nil
}

func checkOne(mod *tir.Module, fn *tir.Func, opts Options) *borrow.Result {
	if opts.Cache == nil {
		return borrow.Check(mod, fn, opts.MaxDiagnostics)
	}
	key, err := FuncDigest(mod, fn)
	if err != nil {
		return borrow.Check(mod, fn, opts.MaxDiagnostics)
	}
	if res, ok := opts.Cache.Get(key); ok {
		return res
	}
	res := borrow.Check(mod, fn, opts.MaxDiagnostics)
	// Cache failures are not verification failures.
	_ = opts.Cache.Put(key, res)
	return res
}

// mergeBags concatenates the per-function bags in declaration order and
// applies the canonical sort and dedup.
func mergeBags(results []*borrow.Result, maxDiags int) *diag.Bag {
	if maxDiags <= 0 {
		maxDiags = borrow.DefaultMaxDiagnostics
	}
	merged := diag.NewBag(maxDiags)
	for _, res := range results {
		if res != nil {
			merged.Merge(res.Bag)
		}
	}
	merged.Sort()
	merged.Dedup()
	return merged
}
