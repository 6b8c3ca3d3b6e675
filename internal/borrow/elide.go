package borrow

import (
	"fmt"

	"ferro/internal/diag"
	"ferro/internal/tir"
)

// elision is the signature after lifetime elision: every reference input has
// a name, declared or freshly minted, and the result reference (if any) is
// tied to one of them.
type elision struct {
	// params holds one lifetime name per parameter, "" for non-reference
	// parameters.
	params []string
	// result is the lifetime of the returned reference, "" when the function
	// does not return one.
	result string
	// names lists every signature lifetime: declared ones first, then the
	// minted elision names in parameter order.
	names  []string
	elided map[string]bool
	ok     bool
}

// elide applies the elision rules to fn's signature. Unannotated reference
// parameters each get a fresh lifetime. An unannotated reference result
// takes the receiver's lifetime if the function has a reference `self`,
// otherwise the single input lifetime; with zero or several candidates and
// no receiver, the signature is rejected.
func elide(mod *tir.Module, fn *tir.Func, rep diag.Reporter) *elision {
	el := &elision{
		params: make([]string, len(fn.Params)),
		elided: make(map[string]bool),
		ok:     true,
	}
	el.names = append(el.names, fn.Lifetimes...)

	fresh := 0
	selfLifetime := ""
	for i, p := range fn.Params {
		t := mod.Type(p.Type)
		if t == nil || t.Kind != tir.TypeRef {
			continue
		}
		name := t.Lifetime
		if name == "" {
			name = fmt.Sprintf("'e%d", fresh)
			fresh++
			el.elided[name] = true
			el.names = append(el.names, name)
		}
		el.params[i] = name
		if p.IsSelf {
			selfLifetime = name
		}
	}

	rt := mod.Type(fn.Result)
	if rt == nil || rt.Kind != tir.TypeRef {
		return el
	}
	if rt.Lifetime != "" {
		el.result = rt.Lifetime
		return el
	}

	// Receiver rule first, then the single-input rule.
	if selfLifetime != "" {
		el.result = selfLifetime
		return el
	}
	distinct := make(map[string]bool)
	for _, name := range el.params {
		if name != "" {
			distinct[name] = true
		}
	}
	if len(distinct) == 1 {
		for name := range distinct {
			el.result = name
		}
		return el
	}

	el.ok = false
	msg := "cannot elide the result lifetime: no reference inputs to borrow from"
	if len(distinct) > 1 {
		msg = fmt.Sprintf("cannot elide the result lifetime: %d candidate input lifetimes", len(distinct))
	}
	diag.ReportError(rep, diag.OwnUnelidableLifetime, fn.ResultSpan, msg)
	return el
}
