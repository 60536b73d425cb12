// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

// TStatStep pairs a trial count with the t-statistic required at that
// scale of search.
type TStatStep struct {
	Trials   int     `json:"trials"`
	Required float64 `json:"required"`
}

// tStatSteps is the multiple-testing significance ladder. The more
// configurations were tried, the stronger the evidence the surviving
// one must show. Values between steps take the last step reached; no
// interpolation.
var tStatSteps = []TStatStep{
	{Trials: 1, Required: 2.0},
	{Trials: 10, Required: 2.5},
	{Trials: 100, Required: 3.0},
	{Trials: 1000, Required: 3.78},
}

// RequiredTStat returns the significance bar for the given trial
// count. Counts below 1 are treated as a single trial.
func RequiredTStat(trials int) float64 {
	required := tStatSteps[0].Required
	for _, step := range tStatSteps {
		if trials >= step.Trials {
			required = step.Required
		}
	}
	return required
}

// TStatSteps returns a copy of the significance ladder in ascending
// trial-count order.
func TStatSteps() []TStatStep {
	out := make([]TStatStep, len(tStatSteps))
	copy(out, tStatSteps)
	return out
}
