package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("plan flag", func(t *testing.T) {
		cfg, exit, err := Parse([]string{"-plan", "run.hcl"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "run.hcl", cfg.PlanPath)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 10, cfg.WorkerCount)
	})

	t.Run("shorthand flag", func(t *testing.T) {
		cfg, exit, err := Parse([]string{"-p", "run.hcl"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "run.hcl", cfg.PlanPath)
	})

	t.Run("positional argument", func(t *testing.T) {
		cfg, exit, err := Parse([]string{"run.hcl"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "run.hcl", cfg.PlanPath)
	})

	t.Run("all options", func(t *testing.T) {
		cfg, exit, err := Parse([]string{
			"-plan", "run.hcl",
			"-log-format", "text",
			"-log-level", "debug",
			"-workers", "4",
			"-memory-limit", "1024",
			"-feed-capacity", "8",
			"-trace-endpoint", "localhost:4317",
		}, &bytes.Buffer{})
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 4, cfg.WorkerCount)
		assert.Equal(t, int64(1024), cfg.MemoryLimit)
		assert.Equal(t, 8, cfg.FeedCapacity)
		assert.Equal(t, "localhost:4317", cfg.TraceEndpoint)
	})

	t.Run("no plan path prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("help exits cleanly", func(t *testing.T) {
		_, exit, err := Parse([]string{"-h"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.True(t, exit)
	})

	t.Run("invalid log format", func(t *testing.T) {
		_, _, err := Parse([]string{"-plan", "run.hcl", "-log-format", "xml"}, &bytes.Buffer{})
		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, _, err := Parse([]string{"-plan", "run.hcl", "-log-level", "loud"}, &bytes.Buffer{})
		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, _, err := Parse([]string{"-bogus"}, &bytes.Buffer{})
		require.Error(t, err)
		var exitErr *ExitError
		assert.ErrorAs(t, err, &exitErr)
	})
}
