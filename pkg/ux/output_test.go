// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// Helper to capture stdout
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// Helper to capture stderr
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// withLevel runs f with the personality level pinned, restoring after.
func withLevel(level PersonalityLevel, f func()) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(level)
	f()
}

// =============================================================================
// Message Printer Tests
// =============================================================================

func TestSuccess_MachineFormat(t *testing.T) {
	var out string
	withLevel(PersonalityMachine, func() {
		out = captureStdout(func() { Success("fix verified") })
	})

	if out != "OK: fix verified\n" {
		t.Errorf("unexpected machine output: %q", out)
	}
}

func TestWarning_MachineGoesToStderr(t *testing.T) {
	var out string
	withLevel(PersonalityMachine, func() {
		out = captureStderr(func() { Warning("heuristic fallback") })
	})

	if out != "WARN: heuristic fallback\n" {
		t.Errorf("unexpected machine output: %q", out)
	}
}

func TestError_MachineGoesToStderr(t *testing.T) {
	var out string
	withLevel(PersonalityMachine, func() {
		out = captureStderr(func() { Error("parse failed") })
	})

	if out != "ERROR: parse failed\n" {
		t.Errorf("unexpected machine output: %q", out)
	}
}

func TestTitle_SuppressedAtMachineLevel(t *testing.T) {
	var out string
	withLevel(PersonalityMachine, func() {
		out = captureStdout(func() { Title("Hindsight") })
	})

	if out != "" {
		t.Errorf("expected no title output at machine level, got %q", out)
	}
}

func TestInfo_MachinePlainText(t *testing.T) {
	var out string
	withLevel(PersonalityMachine, func() {
		out = captureStdout(func() { Info("loading rules") })
	})

	if out != "loading rules\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

// =============================================================================
// Finding / Verdict / Summary Tests
// =============================================================================

func TestFinding_MachineTabSeparated(t *testing.T) {
	var out string
	withLevel(PersonalityMachine, func() {
		out = captureStdout(func() {
			Finding("STOP", "HS001", "strategy.py", 14, "signal used without shift")
		})
	})

	want := "STOP\tHS001\tstrategy.py:14\tsignal used without shift\n"
	if out != want {
		t.Errorf("Finding output = %q, want %q", out, want)
	}
}

func TestFinding_FullIncludesRuleID(t *testing.T) {
	var out string
	withLevel(PersonalityFull, func() {
		out = captureStdout(func() {
			Finding("WARN", "HS101", "alpha.py", 3, "raw close in signal expression")
		})
	})

	if !strings.Contains(out, "HS101") || !strings.Contains(out, "alpha.py:3") {
		t.Errorf("full output missing rule or location: %q", out)
	}
}

func TestVerdict_Machine(t *testing.T) {
	var out string
	withLevel(PersonalityMachine, func() {
		out = captureStdout(func() { Verdict(true, "all gates passed") })
	})
	if out != "VERDICT: pass\n" {
		t.Errorf("unexpected pass output: %q", out)
	}

	withLevel(PersonalityMachine, func() {
		out = captureStdout(func() { Verdict(false, "PBO above threshold") })
	})
	if out != "VERDICT: fail\tPBO above threshold\n" {
		t.Errorf("unexpected fail output: %q", out)
	}
}

func TestSummary_Machine(t *testing.T) {
	var out string
	withLevel(PersonalityMachine, func() {
		out = captureStdout(func() { Summary(2, 1, 1) })
	})

	if out != "SUMMARY: stop=2 warn=1 fixable=1\n" {
		t.Errorf("unexpected summary: %q", out)
	}
}

// =============================================================================
// Icon Tests
// =============================================================================

func TestIcon_RenderContainsGlyph(t *testing.T) {
	tests := []struct {
		icon Icon
		want string
	}{
		{IconPass, "✓"},
		{IconWarn, "⚠"},
		{IconStop, "✗"},
		{IconInfo, "○"},
		{IconArrow, "→"},
	}

	for _, tt := range tests {
		if got := tt.icon.Render(); !strings.Contains(got, tt.want) {
			t.Errorf("Icon(%q).Render() = %q, missing glyph", tt.want, got)
		}
	}
}

func TestSeverityIcon(t *testing.T) {
	if severityIcon("STOP") != IconStop {
		t.Error("STOP should map to IconStop")
	}
	if severityIcon("WARN") != IconWarn {
		t.Error("WARN should map to IconWarn")
	}
	if severityIcon("other") != IconInfo {
		t.Error("unknown severity should map to IconInfo")
	}
}
