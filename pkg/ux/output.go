// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides rich terminal output styling for the Hindsight CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Hindsight color palette - amber signal tones over graphite
var (
	// Primary palette (brightest to darkest)
	ColorAmberBright  = lipgloss.Color("#FFB454") // Bright amber - highlights
	ColorAmberPrimary = lipgloss.Color("#E8A33D") // Primary amber - main brand color
	ColorAmberDeep    = lipgloss.Color("#C77F2A") // Deep amber - borders, accents
	ColorRust         = lipgloss.Color("#B3542E") // Rust - subtle accents

	// Dark palette (for backgrounds, muted elements)
	ColorGraphite = lipgloss.Color("#3B4252") // Graphite - muted text, borders
	ColorInk      = lipgloss.Color("#1C232B") // Ink - near black

	// Semantic colors (severity conventions)
	ColorPass  = lipgloss.Color("#4CC38A") // Green for clean verdicts
	ColorStop  = lipgloss.Color("#E5484D") // Red for blocking findings
	ColorWarn  = lipgloss.Color("#F4BF4F") // Amber for advisory findings
	ColorMuted = lipgloss.Color("#3B4252") // Graphite for muted text
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Pass      lipgloss.Style
	Warn      lipgloss.Style
	Stop      lipgloss.Style
	Highlight lipgloss.Style

	// Box styles
	Box     lipgloss.Style
	PassBox lipgloss.Style
	WarnBox lipgloss.Style
	StopBox lipgloss.Style

	// Status indicators
	StatusPass lipgloss.Style
	StatusWarn lipgloss.Style
	StatusStop lipgloss.Style
	StatusInfo lipgloss.Style
}{
	// Text styles
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAmberBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorAmberPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorGraphite),
	Pass:      lipgloss.NewStyle().Foreground(ColorPass),
	Warn:      lipgloss.NewStyle().Foreground(ColorWarn),
	Stop:      lipgloss.NewStyle().Foreground(ColorStop),
	Highlight: lipgloss.NewStyle().Foreground(ColorAmberBright).Bold(true),

	// Box styles
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAmberDeep).
		Padding(0, 1),
	PassBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPass).
		Padding(0, 1),
	WarnBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarn).
		Padding(0, 1),
	StopBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorStop).
		Padding(0, 1),

	// Status indicators
	StatusPass: lipgloss.NewStyle().SetString("✓").Foreground(ColorPass),
	StatusWarn: lipgloss.NewStyle().SetString("⚠").Foreground(ColorWarn),
	StatusStop: lipgloss.NewStyle().SetString("✗").Foreground(ColorStop),
	StatusInfo: lipgloss.NewStyle().SetString("○").Foreground(ColorGraphite),
}

// Icon provides themed status icons
type Icon string

const (
	IconPass   Icon = "✓"
	IconWarn   Icon = "⚠"
	IconStop   Icon = "✗"
	IconInfo   Icon = "○"
	IconArrow  Icon = "→"
	IconBullet Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconPass:
		return Styles.Pass.Render(string(i))
	case IconWarn:
		return Styles.Warn.Render(string(i))
	case IconStop:
		return Styles.Stop.Render(string(i))
	case IconInfo:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Print helpers that respect personality level

// Title prints a styled title
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconPass.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconPass.Render(), Styles.Pass.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconWarn.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconWarn.Render(), Styles.Warn.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconStop.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconStop.Render(), Styles.Stop.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Println(text)
	default:
		fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
	}
}

// Muted prints muted/secondary text
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints text in a rounded box
func Box(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(60)
	titleLine := Styles.Title.Render(title)
	fmt.Println(boxStyle.Render(titleLine + "\n" + content))
}

// Finding prints a single rule finding with its location.
//
// Severity is the finding's severity name ("STOP" or "WARN"); machine
// output is tab-separated for easy parsing.
func Finding(severity, ruleID, path string, line int, message string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Printf("%s\t%s\t%s:%d\t%s\n", severity, ruleID, path, line, message)
	case PersonalityMinimal:
		fmt.Printf("%s %s:%d %s\n", severityIcon(severity).Render(), path, line, message)
	default:
		fmt.Printf("%s %s %s %s\n",
			severityIcon(severity).Render(),
			Styles.Bold.Render(fmt.Sprintf("%s:%d", path, line)),
			Styles.Muted.Render("["+ruleID+"]"),
			message,
		)
	}
}

// Verdict prints the final pass/fail verdict in a box.
func Verdict(passed bool, reason string) {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		if passed {
			fmt.Printf("VERDICT: pass\n")
		} else {
			fmt.Printf("VERDICT: fail\t%s\n", reason)
		}
		return
	}

	if passed {
		boxStyle := Styles.PassBox.Width(60)
		title := Styles.Pass.Bold(true).Render("PASS")
		fmt.Println(boxStyle.Render(title + "\n" + reason))
		return
	}
	boxStyle := Styles.StopBox.Width(60)
	title := Styles.Stop.Bold(true).Render("FAIL")
	fmt.Println(boxStyle.Render(title + "\n" + reason))
}

// Summary prints finding counts after an analysis run
func Summary(stops, warns, fixable int) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Printf("SUMMARY: stop=%d warn=%d fixable=%d\n", stops, warns, fixable)
	default:
		fmt.Printf("\n%s %s  %s %s  %s %s\n",
			Styles.Stop.Render(fmt.Sprintf("%d", stops)), Styles.Muted.Render("stop"),
			Styles.Warn.Render(fmt.Sprintf("%d", warns)), Styles.Muted.Render("warn"),
			Styles.Bold.Render(fmt.Sprintf("%d", fixable)), Styles.Muted.Render("fixable"),
		)
	}
}

func severityIcon(severity string) Icon {
	switch severity {
	case "STOP":
		return IconStop
	case "WARN":
		return IconWarn
	default:
		return IconInfo
	}
}
