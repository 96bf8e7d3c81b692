package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"picharvest/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	l.WithField("phase", "base").
		WithError(errors.New("boom")).
		InfoWithFields("Phase started", map[string]interface{}{
			"downloads": 3,
			"elapsed":   2 * time.Second,
			"ok":        true,
		})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "Phase started", lines[0]["message"])
	assert.Equal(t, "picharvest", lines[0]["app"])
	assert.Equal(t, "base", lines[0]["phase"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, float64(3), lines[0]["downloads"])
	assert.Equal(t, true, lines[0]["ok"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "warn")
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent, err := NewWithWriter(&buf, "info")
	require.NoError(t, err)

	_ = parent.WithField("child_only", 1)
	parent.Info("parent line")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, found := lines[0]["child_only"]
	assert.False(t, found)
}

func TestForRunTagsRunAndQuery(t *testing.T) {
	tl := NewTestLogger()
	runID := NewRunID()

	ForRun(tl, runID, "ada lovelace").Info("hello")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, runID, msgs[0].Fields["run_id"])
	assert.Equal(t, "ada lovelace", msgs[0].Fields["query"])
	assert.Len(t, runID, 36)
	assert.NotEqual(t, runID, NewRunID())
}

func TestTestLoggerCapture(t *testing.T) {
	tl := NewTestLogger()

	LogURLVisit(tl, "https://example.org/a", "error", 0, 0, errors.New("timeout"))
	LogURLVisit(tl, "https://example.org/b", "images_found", 4, 3, nil)
	LogPhase(tl, "variations", 7, 10)

	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Equal(t, "timeout", tl.GetMessagesByLevel("WARN")[0].Error)
	require.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Equal(t, 4, tl.GetMessagesByLevel("DEBUG")[0].Fields["images_found"])
	assert.Equal(t, 3, tl.GetMessagesByLevel("DEBUG")[0].Fields["images_saved"])
	assert.True(t, tl.HasMessage("Phase started"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "50.0%", Percent(5, 10))
	assert.Equal(t, "0.0%", Percent(3, 0))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("k", "v").WithError(errors.New("x")).InfoWithFields("m", nil)
	})
}
