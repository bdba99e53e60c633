package cli

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowwatch/internal/app"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, exit, err := Parse(nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	want := &app.Config{Output: app.OutputText, LogFormat: "text", LogLevel: "info"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_AllFlags(t *testing.T) {
	t.Parallel()

	cfg, exit, err := Parse([]string{
		"--config", "flowwatch.hcl",
		"--url", "wss://example.com/ws",
		"--api", "https://example.com/api",
		"--transport", "SocketIO",
		"--output", "json",
		"--plain",
		"--healthcheck-port", "8081",
		"--log-format", "JSON",
		"--log-level", "debug",
		"root-1",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	want := &app.Config{
		ConfigPath:      "flowwatch.hcl",
		RootID:          "root-1",
		LiveURL:         "wss://example.com/ws",
		APIURL:          "https://example.com/api",
		Transport:       "socketio",
		Output:          app.OutputJSON,
		Plain:           true,
		LogFormat:       "json",
		LogLevel:        "debug",
		HealthcheckPort: 8081,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RootFlagWins(t *testing.T) {
	t.Parallel()

	cfg, _, err := Parse([]string{"--root", "from-flag", "from-arg"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.RootID)
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, exit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"unknown flag", []string{"--nope"}, "flag provided but not defined"},
		{"bad log format", []string{"--log-format", "xml"}, "invalid log-format"},
		{"bad log level", []string{"--log-level", "loud"}, "invalid log-level"},
		{"bad output", []string{"--output", "yaml"}, "output must be"},
		{"bad transport", []string{"--transport", "smoke"}, "transport must be"},
		{"two roots", []string{"a", "b"}, "at most one ROOT_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, exit, err := Parse(tt.args, &bytes.Buffer{})
			assert.False(t, exit)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.msg)
		})
	}
}
