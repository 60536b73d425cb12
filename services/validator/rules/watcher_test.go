// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watcherDebounce = 50 * time.Millisecond

func startWatcher(t *testing.T, path string, engine *Engine) *ConfigWatcher {
	t.Helper()

	w, err := NewConfigWatcher(path, engine, WithDebounce(watcherDebounce))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func TestNewConfigWatcher_Validation(t *testing.T) {
	_, err := NewConfigWatcher("", NewEngine(nil))
	require.Error(t, err)

	_, err = NewConfigWatcher("hindsight.yaml", nil)
	require.Error(t, err)
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hindsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disabled_rules: []\n"), 0o644))

	engine := NewEngine(nil)
	startWatcher(t, path, engine)

	require.NoError(t, os.WriteFile(path, []byte("disabled_rules:\n  - HS001\n"), 0o644))

	require.Eventually(t, func() bool {
		return !engine.Config().RuleEnabled("HS001")
	}, 2*time.Second, 20*time.Millisecond, "reload should disable HS001")
}

func TestConfigWatcher_KeepsConfigOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hindsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signal_patterns:\n  - indicator\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	engine := NewEngine(cfg)
	startWatcher(t, path, engine)

	require.NoError(t, os.WriteFile(path, []byte("signal_patterns: [broken\n"), 0o644))

	time.Sleep(6 * watcherDebounce)
	assert.True(t, engine.Config().IsSignalLike("indicator"),
		"a config that no longer parses must not replace the live one")
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hindsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disabled_rules: []\n"), 0o644))

	engine := NewEngine(nil)
	before := engine.Config()
	startWatcher(t, path, engine)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.yaml"),
		[]byte("disabled_rules:\n  - HS001\n"), 0o644))

	time.Sleep(6 * watcherDebounce)
	assert.Same(t, before, engine.Config())
}

func TestConfigWatcher_StopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hindsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disabled_rules: []\n"), 0o644))

	w, err := NewConfigWatcher(path, NewEngine(nil), WithDebounce(watcherDebounce))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
}

func TestConfigWatcher_ContextCancelStopsLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hindsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disabled_rules: []\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(nil)
	w, err := NewConfigWatcher(path, engine, WithDebounce(watcherDebounce))
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	cancel()
	time.Sleep(2 * watcherDebounce)

	require.NoError(t, os.WriteFile(path, []byte("disabled_rules:\n  - HS001\n"), 0o644))
	time.Sleep(6 * watcherDebounce)
	assert.True(t, engine.Config().RuleEnabled("HS001"),
		"writes after cancellation should not reload")
}
