// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"strconv"
	"testing"
)

func intPtr(v int) *int {
	return &v
}

func shiftEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func shiftString(p *int) string {
	if p == nil {
		return "nil"
	}
	return strconv.Itoa(*p)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		base *int
		k    int
		want *int
	}{
		{"lag onto raw column", nil, 1, intPtr(1)},
		{"lead onto raw column", nil, -1, intPtr(-1)},
		{"lags sum", intPtr(1), 1, intPtr(2)},
		{"lead cancels lag", intPtr(2), -3, intPtr(-1)},
		{"zero is a known no-op", nil, 0, intPtr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.base, tt.k)
			if !shiftEqual(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name           string
		read, producer *int
		want           *int
	}{
		{"both unshifted", nil, nil, nil},
		{"read shift passes through", intPtr(1), nil, intPtr(1)},
		{"producer chain passes through", nil, intPtr(1), intPtr(1)},
		{"chains sum", intPtr(1), intPtr(1), intPtr(2)},
		{"lead through lagged producer", intPtr(-2), intPtr(1), intPtr(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine(tt.read, tt.producer)
			if !shiftEqual(got, tt.want) {
				t.Errorf("Combine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCombine_DoesNotAlias(t *testing.T) {
	read := intPtr(3)
	got := Combine(read, nil)
	if got == read {
		t.Error("expected Combine to return a copy, not the input pointer")
	}
	*got = 99
	if *read != 3 {
		t.Error("expected input annotation to be unchanged")
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		name   string
		shifts []*int
		want   *int
	}{
		{"no reads", nil, nil},
		{"single nil", []*int{nil}, nil},
		{"single lag", []*int{intPtr(1)}, intPtr(1)},
		{"negative dominates nil", []*int{nil, intPtr(-1)}, intPtr(-1)},
		{"negative dominates positive", []*int{intPtr(5), intPtr(-2)}, intPtr(-2)},
		{"most negative wins", []*int{intPtr(-1), intPtr(-3)}, intPtr(-3)},
		{"nil dominates positive", []*int{intPtr(1), nil, intPtr(2)}, nil},
		{"minimum lag wins", []*int{intPtr(3), intPtr(1), intPtr(2)}, intPtr(1)},
		{"explicit zero beats lags", []*int{intPtr(2), intPtr(0)}, intPtr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fold(tt.shifts)
			if !shiftEqual(got, tt.want) {
				t.Errorf("Fold(%s) = %s, want %s", shiftsString(tt.shifts), shiftString(got), shiftString(tt.want))
			}
		})
	}
}

func shiftsString(shifts []*int) string {
	out := "["
	for i, s := range shifts {
		if i > 0 {
			out += " "
		}
		out += shiftString(s)
	}
	return out + "]"
}
