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

	"enricher/pkg/config"
)

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: level}, &buf)
	require.NoError(t, err)
	return l, &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
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

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info console", &config.LoggingConfig{Level: "info"}, false},
		{"debug json", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "enricher.log")}, false},
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

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "", "warn", "warning", "error", "fatal", "disabled"} {
		_, err := parseLogLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := parseLogLevel("verbose")
	assert.Error(t, err)
}

func TestDefaultFieldsAndLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn")

	l.Info("dropped")
	l.Warn("kept")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0]["message"])
	assert.Equal(t, "warn", got[0]["level"])
	assert.Equal(t, "enricher", got[0]["app"])
	assert.Equal(t, Version, got[0]["version"])
}

func TestDerivedLoggersDoNotLeakFields(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	stage := l.WithField("stage", "scrape")
	batch := stage.WithFields(map[string]interface{}{"batch": 2})
	batch.WithError(errors.New("boom")).Error("batch failed")
	stage.Info("stage message")

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "scrape", got[0]["stage"])
	assert.Equal(t, float64(2), got[0]["batch"])
	assert.Equal(t, "boom", got[0]["error"])

	assert.Equal(t, "scrape", got[1]["stage"])
	assert.NotContains(t, got[1], "batch")
	assert.NotContains(t, got[1], "error")
}

func TestWithFieldsMethods(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	l.InfoWithFields("Batch committed", map[string]interface{}{
		"processed": 4,
		"total":     5,
		"delay":     time.Second,
	})

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, float64(4), got[0]["processed"])
	assert.Equal(t, float64(5), got[0]["total"])
}

func TestWithErrorNil(t *testing.T) {
	l, _ := newBufferLogger(t, "info")
	assert.Same(t, l, l.WithError(nil))
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "/health", 200, 5*time.Millisecond, "127.0.0.1")
	LogRequest(tl, "GET", "/status/x", 404, time.Millisecond, "127.0.0.1")
	LogRequest(tl, "POST", "/extract", 500, time.Millisecond, "127.0.0.1")
	LogJobTransition(tl, "job_1", "scrape", "queued", "running")
	LogStageStop(tl, "clean", time.Second, errors.New("input missing"))

	assert.Len(t, tl.GetMessagesByLevel("INFO"), 2)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 2)
	assert.True(t, tl.HasMessage("Job status changed"))

	failed := tl.GetMessagesByLevel("ERROR")[1]
	assert.Equal(t, "Stage failed", failed.Message)
	assert.Equal(t, "clean", failed.Fields["stage"])
	assert.EqualError(t, failed.Error, "input missing")
}

func TestTestLoggerSharesCapture(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("job_id", "job_1").WithFields(map[string]interface{}{"kind": "traits"})
	child.Warn("unit skipped")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "job_1", msgs[0].Fields["job_id"])
	assert.Equal(t, "traits", msgs[0].Fields["kind"])
	assert.Contains(t, tl.String(), "[WARN] unit skipped")

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	t.Cleanup(func() { SetLogger(nil) })

	Info("global info")
	WithField("k", "v").Warn("global warn")

	assert.True(t, tl.HasMessage("global info"))
	assert.True(t, tl.HasMessage("global warn"))
}

func TestNopLogger(t *testing.T) {
	n := NewNopLogger()
	n.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
	assert.NotNil(t, n.GetZerolog())
}
