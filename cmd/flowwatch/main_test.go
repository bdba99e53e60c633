package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_InvalidConfigFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	invalidHCL := `
		live {
			url = "ws://localhost:1/ws"
		// Missing closing brace here
	`
	filePath := filepath.Join(t.TempDir(), "flowwatch.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0600), "failed to set up test file")

	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"--config", filePath})

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), "startup failed")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_StopsWithContext(t *testing.T) {
	t.Parallel()

	// Nothing listens on these ports: the viewer keeps retrying until the
	// context ends, then shuts down cleanly.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out := &bytes.Buffer{}
	err := run(ctx, out, &bytes.Buffer{}, []string{
		"--url", "ws://127.0.0.1:1/ws",
		"--api", "http://127.0.0.1:1/api",
		"--output", "json",
		"root-1",
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), `"root_id":"root-1"`)
}
