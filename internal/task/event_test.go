package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_FullPayload(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"task_id": "abc-123",
		"name": "myapp.tasks.process",
		"state": "STARTED",
		"timestamp": "2024-05-01T12:30:00.123456+00:00",
		"parent_id": "root-1",
		"root_id": "root-1",
		"trace_id": null,
		"retries": 2,
		"args": [1, "two"],
		"kwargs": {"k": "v"},
		"result": null,
		"exception": null,
		"traceback": null
	}`)

	ev, err := ParseEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, "abc-123", ev.TaskID)
	assert.Equal(t, StateStarted, ev.State)
	assert.Equal(t, 2, ev.Retries)
	require.NotNil(t, ev.ParentID)
	assert.Equal(t, "root-1", *ev.ParentID)
	assert.Nil(t, ev.TraceID)
	assert.JSONEq(t, `[1, "two"]`, string(ev.Args))
	assert.JSONEq(t, `{"k": "v"}`, string(ev.Kwargs))
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.UTC), ev.Timestamp.UTC())
}

func TestParseEvent_NaiveTimestampIsUTC(t *testing.T) {
	t.Parallel()

	ev, err := ParseEvent([]byte(`{"task_id":"a","state":"SUCCESS","timestamp":"2024-05-01T08:00:00.5"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 500000000, time.UTC), ev.Timestamp.Time)
}

func TestParseEvent_UnknownStatePassesThrough(t *testing.T) {
	t.Parallel()

	ev, err := ParseEvent([]byte(`{"task_id":"a","state":"SCHEDULED"}`))
	require.NoError(t, err)
	assert.Equal(t, State("SCHEDULED"), ev.State)
	assert.False(t, ev.State.Known())
}

func TestParseEvent_Malformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":      "hello world",
		"empty":         "",
		"null":          "null",
		"array":         `[{"task_id":"a"}]`,
		"string":        `"task"`,
		"truncated":     `{"task_id": "a"`,
		"number":        `42`,
		"trailing junk": `{"task_id": "a"} x`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseEvent([]byte(payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestParseEvent_LenientFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		payload     string
		wantTime    time.Time
		wantRetries int
		wantIgnored []string
	}{
		{
			name:     "epoch seconds",
			payload:  `{"task_id":"a","state":"STARTED","timestamp":1714566600.5}`,
			wantTime: time.Date(2024, 5, 1, 12, 30, 0, 500000000, time.UTC),
		},
		{
			name:     "compact zone offset",
			payload:  `{"task_id":"a","state":"STARTED","timestamp":"2024-05-01T12:30:00+0000"}`,
			wantTime: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name:        "numeric string retries",
			payload:     `{"task_id":"a","state":"RETRY","retries":"1"}`,
			wantRetries: 1,
		},
		{
			name:        "unparseable values are ignored",
			payload:     `{"task_id":"a","state":"RETRY","retries":"many","timestamp":"yesterday","parent_id":{"x":1}}`,
			wantIgnored: []string{"parent_id", "retries", "timestamp"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev, err := ParseEvent([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, "a", ev.TaskID)
			assert.True(t, tt.wantTime.Equal(ev.Timestamp.Time), "got %v", ev.Timestamp.Time)
			assert.Equal(t, tt.wantRetries, ev.Retries)
			assert.Equal(t, tt.wantIgnored, ev.Ignored)
			assert.Nil(t, ev.ParentID)
		})
	}
}

func TestParseEvent_NumericIDs(t *testing.T) {
	t.Parallel()

	ev, err := ParseEvent([]byte(`{"task_id":17,"name":"n","state":"SUCCESS","root_id":3}`))
	require.NoError(t, err)
	assert.Equal(t, "17", ev.TaskID)
	require.NotNil(t, ev.RootID)
	assert.Equal(t, "3", *ev.RootID)
	assert.Empty(t, ev.Ignored)
}

func TestState_Predicates(t *testing.T) {
	t.Parallel()

	for _, s := range States {
		assert.True(t, s.Known(), s)
		assert.Equal(t, s == StateStarted, s.Active(), s)
	}
	assert.True(t, StateSuccess.Terminal())
	assert.False(t, StateRetry.Terminal())
}

func TestShortNameAndID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "process", ShortName("myapp.tasks.process"))
	assert.Equal(t, "plain", ShortName("plain"))
	assert.Equal(t, "", ShortName("trailing."))
	assert.Equal(t, "12345678", ShortID("1234567890abcdef"))
	assert.Equal(t, "short", ShortID("short"))
}
