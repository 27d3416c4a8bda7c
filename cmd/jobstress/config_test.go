package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), `jobstress.toml`)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
workers = 3
poll_interval = "5ms"
pinning = false
log_level = "debug"

[fan_out]
jobs = 10

[tree]
depth = 2

[backup]
workers = 1
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.Workers = 3
	want.PollInterval = Duration{5 * time.Millisecond}
	want.Pinning = false
	want.LogLevel = `debug`
	want.FanOut.Jobs = 10
	want.Tree.Depth = 2
	want.Backup.Workers = 1

	if diff := cmp.Diff(want, cfg); diff != `` {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_unknownKey(t *testing.T) {
	path := writeConfig(t, "workers = 1\nworkerz = 2\n")
	_, err := LoadConfig(path)
	assert.EqualError(t, err, `jobstress: unknown config keys: workerz`)
}

func TestLoadConfig_invalidDuration(t *testing.T) {
	path := writeConfig(t, `timeout = "soon"`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	path := writeConfig(t, "workers = 3\n[fan_out]\njobs = 10\nsubmitters = 2\n")
	cfg, err := parseFlags([]string{`-config`, path, `-jobs`, `20`, `-pinning=false`, `-timeout`, `1s`})
	require.NoError(t, err)

	want := DefaultConfig()
	want.Workers = 3
	want.FanOut = FanOutConfig{Jobs: 20, Submitters: 2}
	want.Pinning = false
	want.Timeout = Duration{time.Second}

	if diff := cmp.Diff(want, cfg); diff != `` {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestParseFlags_defaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != `` {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestParseFlags_invalid(t *testing.T) {
	for _, args := range [][]string{
		{`-workers`, `256`},
		{`-submitters`, `0`},
		{`-log-level`, `loud`},
		{`-config`, filepath.Join(t.TempDir(), `missing.toml`)},
	} {
		_, err := parseFlags(args)
		assert.Error(t, err, args)
	}
}

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]logiface.Level{
		`err`:      logiface.LevelError,
		`info`:     logiface.LevelInformational,
		`trace`:    logiface.LevelTrace,
		`disabled`: logiface.LevelDisabled,
	} {
		level, err := parseLevel(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, level, s)
	}
	_, err := parseLevel(`verbose`)
	assert.Error(t, err)
}
