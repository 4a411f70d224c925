package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"enricher/pkg/pipeline"
)

var (
	_ pipeline.Reporter      = (*Console)(nil)
	_ pipeline.StageObserver = (*Console)(nil)
)

type fakeSender struct {
	titles []string
	err    error
}

func (f *fakeSender) Send(title, message string) error {
	f.titles = append(f.titles, title)
	return f.err
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "━━━━━─────", RenderBar(5, 10, 10))
	assert.Equal(t, "──────────", RenderBar(0, 0, 10))
	assert.Equal(t, "━━━━━━━━━━", RenderBar(15, 10, 10))
}

func TestETAAndDuration(t *testing.T) {
	assert.Equal(t, "calculating...", ETA(0, 10, time.Minute))
	assert.Equal(t, "1m0s", ETA(5, 10, time.Minute))
	assert.Equal(t, "0s", ETA(10, 10, time.Minute))
	assert.Equal(t, "1h20m", FormatDuration(80*time.Minute))
	assert.InDelta(t, 30.0, Rate(60, 2*time.Minute), 0.001)
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsole(ctx, &buf, false)

	c.StageStarted("clean")
	c.Progress(2, 4, "Batch 1")
	c.Log("DEBUG", "hidden")
	c.Log("ERROR", "record failed")
	c.Progress(4, 4, "Batch 2")
	c.StageFinished("clean", nil)
	c.StageFinished("traits", errors.New("rate limited"))

	out := buf.String()
	assert.Contains(t, out, "clean")
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "1 errors")
	assert.Contains(t, out, "record failed")
	assert.Contains(t, out, "rate limited")
	assert.NotContains(t, out, "hidden")

	assert.False(t, c.Cancelled())
	cancel()
	assert.True(t, c.Cancelled())
	<-c.Done()
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	sender := &fakeSender{err: errors.New("no daemon")}
	n := NewNotifierWithSender(sender, &buf)

	n.RunFinished("run", nil)
	n.RunFinished("traits", errors.New("quota exceeded"))

	assert.Equal(t, []string{"Enricher: run finished", "Enricher: traits failed"}, sender.titles)
	assert.True(t, strings.Contains(buf.String(), "quota exceeded"))

	NewNotifierWithSender(nil, &buf).SendNotification("title", "no sender")
	assert.Contains(t, buf.String(), "no sender")
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"say \"hi\""`, appleScriptQuote(`say "hi"`))
	assert.Equal(t, "a &amp; &lt;b&gt;", xmlEscape("a & <b>"))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	defer func() { Output = prev }()

	PrintSummary("Cleaner", map[string]interface{}{"total_profiles": 3, "output_file": "cleaned.json"})
	out := buf.String()
	assert.Less(t, strings.Index(out, "output_file"), strings.Index(out, "total_profiles"))
}
