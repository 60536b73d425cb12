// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

// Shift algebra over *int annotations.
//
// The pandas sign convention applies throughout: positive values are
// lags (past data, safe), negative values are leads (future data,
// unsafe), and nil means the value was never shifted. nil is not zero:
// an explicit shift(0) is a known no-op, while nil is unknown
// provenance, and the rules treat neither as protective.

// Apply adds a shift applied at a call site to an existing annotation.
//
// Applying .shift(k) to an unannotated value yields a known shift of k:
// lagging a raw column produces a known lag. Applying on top of an
// existing annotation sums.
func Apply(base *int, k int) *int {
	if base == nil {
		return &k
	}
	sum := *base + k
	return &sum
}

// Combine folds a read-site annotation with its producer's chain shift
// into the net shift of the dependency.
//
// A nil on either side passes the other through; two known shifts sum.
// Both nil means the value reached this read without ever being
// shifted.
func Combine(read, producer *int) *int {
	switch {
	case read == nil:
		return clone(producer)
	case producer == nil:
		return clone(read)
	default:
		sum := *read + *producer
		return &sum
	}
}

// Fold reduces the net shifts of an expression's reads into the
// effective chain shift of its target.
//
// The worst input wins: any negative (future) shift dominates, then
// any nil (never shifted) input, then the minimum known non-negative
// lag. An expression with no reads folds to nil.
func Fold(shifts []*int) *int {
	var min *int
	hasNil := false

	for _, s := range shifts {
		if s == nil {
			hasNil = true
			continue
		}
		if min == nil || *s < *min {
			min = s
		}
	}

	if min != nil && *min < 0 {
		return clone(min)
	}
	if hasNil {
		return nil
	}
	return clone(min)
}

// clone copies an annotation so graph nodes never alias read fields.
func clone(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
