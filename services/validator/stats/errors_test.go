// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientDataError_Messages(t *testing.T) {
	short := &InsufficientDataError{Field: "returns", Minimum: 2, Got: 1}
	assert.Equal(t, "returns: need at least 2 observations, got 1", short.Error())

	ragged := &InsufficientDataError{Field: "variant_returns", Divisor: 16, Got: 30}
	assert.Equal(t, "variant_returns: length 30 does not divide into 16 equal blocks", ragged.Error())
}

func TestIsInsufficientData(t *testing.T) {
	err := fmt.Errorf("evaluate: %w", &InsufficientDataError{Field: "returns", Minimum: 2, Got: 0})
	assert.True(t, IsInsufficientData(err))
	assert.False(t, IsInsufficientData(errors.New("plain")))
	assert.False(t, IsInsufficientData(nil))
}

func TestCancelledError(t *testing.T) {
	err := &CancelledError{Operation: "pbo", Completed: 3, Cause: context.Canceled}
	assert.Equal(t, "pbo: cancelled after 3 batches: context canceled", err.Error())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestIsCancelled(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", &CancelledError{Operation: "evaluate", Cause: context.DeadlineExceeded})
	require.True(t, IsCancelled(wrapped))
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.False(t, IsCancelled(context.Canceled))
	assert.False(t, IsCancelled(nil))
}
