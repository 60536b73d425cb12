// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package autofix

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// contextLines is the unified-diff context on each side of a change.
const contextLines = 3

// renderDiff builds a unified diff between the original and rewritten
// unit.
//
// Both fix kinds are intra-line, so the rewrite never changes the line
// count; the diff is built line-by-line on that invariant.
func renderDiff(path string, original, fixed []byte) (string, error) {
	if bytes.Equal(original, fixed) {
		return "", nil
	}

	orig := splitLines(original)
	updated := splitLines(fixed)
	if len(orig) != len(updated) {
		return "", fmt.Errorf("rewrite changed line count: %d to %d", len(orig), len(updated))
	}

	fd := &diff.FileDiff{
		OrigName: "a/" + path,
		NewName:  "b/" + path,
		Hunks:    buildHunks(orig, updated),
	}

	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("printing diff: %w", err)
	}
	return string(out), nil
}

// buildHunks groups changed lines into hunks, merging changes whose
// context windows would touch.
func buildHunks(orig, updated []string) []*diff.Hunk {
	var changed []int
	for i := range orig {
		if orig[i] != updated[i] {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	var hunks []*diff.Hunk
	groupStart := 0
	for g := 1; g <= len(changed); g++ {
		if g < len(changed) && changed[g]-changed[g-1] <= 2*contextLines {
			continue
		}
		hunks = append(hunks, makeHunk(orig, updated, changed[groupStart], changed[g-1]))
		groupStart = g
	}
	return hunks
}

// makeHunk renders one hunk covering the changed lines [first, last]
// plus surrounding context. Within the hunk, each run of changed lines
// prints its removals before its additions.
func makeHunk(orig, updated []string, first, last int) *diff.Hunk {
	start := first - contextLines
	if start < 0 {
		start = 0
	}
	end := last + 1 + contextLines
	if end > len(orig) {
		end = len(orig)
	}

	var body bytes.Buffer
	k := start
	for k < end {
		if orig[k] == updated[k] {
			body.WriteString(" " + orig[k] + "\n")
			k++
			continue
		}

		run := k
		for run < end && orig[run] != updated[run] {
			run++
		}
		for m := k; m < run; m++ {
			body.WriteString("-" + orig[m] + "\n")
		}
		for m := k; m < run; m++ {
			body.WriteString("+" + updated[m] + "\n")
		}
		k = run
	}

	lines := int32(end - start)
	return &diff.Hunk{
		OrigStartLine: int32(start + 1),
		OrigLines:     lines,
		NewStartLine:  int32(start + 1),
		NewLines:      lines,
		Body:          body.Bytes(),
	}
}

// splitLines splits on newlines, dropping the empty tail a trailing
// newline produces.
func splitLines(b []byte) []string {
	lines := strings.Split(string(b), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
