// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsightlabs/hindsight/services/validator/rules"
	"github.com/hindsightlabs/hindsight/services/validator/stats"
)

func sampleFindings() []rules.Finding {
	return []rules.Finding{
		{RuleID: "HS101", Severity: rules.SeverityWarn, Path: "s.py", LineStart: 9, LineEnd: 9},
		{RuleID: "HS001", Severity: rules.SeverityStop, Path: "s.py", LineStart: 3, LineEnd: 3},
		{RuleID: "HS003", Severity: rules.SeverityStop, Path: "s.py", LineStart: 3, LineEnd: 3},
	}
}

func TestNew_SortsAndCopiesFindings(t *testing.T) {
	input := sampleFindings()
	rep := New("s.py", input, nil)

	require.Len(t, rep.Findings, 3)
	assert.Equal(t, "HS001", rep.Findings[0].RuleID)
	assert.Equal(t, "HS003", rep.Findings[1].RuleID)
	assert.Equal(t, "HS101", rep.Findings[2].RuleID)

	// The caller's slice is left alone, and later caller mutation does
	// not reach the report.
	assert.Equal(t, "HS101", input[0].RuleID)
	input[0].RuleID = "HS999"
	assert.Equal(t, "HS101", rep.Findings[2].RuleID)
}

func TestNew_IdentityFields(t *testing.T) {
	rep := New("s.py", nil, nil)

	_, err := uuid.Parse(rep.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), rep.GeneratedAt, 5*time.Second)
	assert.Equal(t, "s.py", rep.Path)

	other := New("s.py", nil, nil)
	assert.NotEqual(t, rep.ID, other.ID)
}

func TestReport_HasStopAndCounts(t *testing.T) {
	rep := New("s.py", sampleFindings(), nil)
	assert.True(t, rep.HasStop())

	stops, warnings := rep.Counts()
	assert.Equal(t, 2, stops)
	assert.Equal(t, 1, warnings)

	clean := New("s.py", []rules.Finding{
		{RuleID: "HS101", Severity: rules.SeverityWarn, LineStart: 1},
	}, nil)
	assert.False(t, clean.HasStop())
}

func TestReport_Passed(t *testing.T) {
	warnOnly := []rules.Finding{{RuleID: "HS101", Severity: rules.SeverityWarn, LineStart: 1}}

	assert.True(t, New("s.py", warnOnly, nil).Passed())
	assert.False(t, New("s.py", sampleFindings(), nil).Passed())

	assert.True(t, New("", warnOnly, &stats.Verdict{Passed: true}).Passed())
	assert.False(t, New("", warnOnly, &stats.Verdict{Passed: false}).Passed())
	assert.False(t, New("", sampleFindings(), &stats.Verdict{Passed: true}).Passed())
}

func TestReport_EmptyFindingsMarshalAsArray(t *testing.T) {
	rep := New("s.py", nil, nil)
	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"findings":[]`)
	assert.NotContains(t, string(data), `"verdict"`)
}
