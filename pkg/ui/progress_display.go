package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Console is a plain-terminal pipeline reporter: one rewritten progress line
// per stage plus log lines above it. It satisfies pipeline.Reporter and
// pipeline.StageObserver.
type Console struct {
	mu      sync.Mutex
	ctx     context.Context
	out     io.Writer
	debug   bool
	now     func() time.Time
	stage   string
	started time.Time
	current int
	total   int
	lineLen int
	errors  int
}

// NewConsole reports to out until ctx is cancelled. debug shows DEBUG lines.
func NewConsole(ctx context.Context, out io.Writer, debug bool) *Console {
	return &Console{ctx: ctx, out: out, debug: debug, now: time.Now, started: time.Now()}
}

func (c *Console) Cancelled() bool { return c.ctx.Err() != nil }

func (c *Console) Done() <-chan struct{} { return c.ctx.Done() }

func (c *Console) Progress(current, total int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current, c.total = current, total
	elapsed := c.now().Sub(c.started)

	label := c.stage
	if label == "" {
		label = "progress"
	}
	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min • %s",
		Cyan(label),
		RenderBar(current, total, 20),
		current,
		total,
		Rate(current, elapsed),
		ETA(current, total, elapsed),
	)
	if message != "" {
		line += " • " + message
	}
	if c.errors > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", c.errors))
	}

	c.clearLine()
	fmt.Fprint(c.out, line)
	c.lineLen = len(line)
}

func (c *Console) Log(level, message string) {
	level = strings.ToUpper(level)
	if level == "DEBUG" && !c.debug {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLine()
	switch level {
	case "ERROR":
		c.errors++
		fmt.Fprintln(c.out, Red("✗ "+message))
	case "WARN", "WARNING":
		fmt.Fprintln(c.out, Yellow("! "+message))
	case "SUCCESS":
		fmt.Fprintln(c.out, Green("✓ "+message))
	case "DEBUG":
		fmt.Fprintln(c.out, Dim(message))
	default:
		fmt.Fprintln(c.out, message)
	}
}

func (c *Console) StageStarted(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLine()
	c.stage = stage
	c.started = c.now()
	c.current, c.total, c.errors = 0, 0, 0
	fmt.Fprintf(c.out, "%s %s\n", Magenta("▶"), Magenta(stage))
}

func (c *Console) StageFinished(stage string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLine()
	elapsed := FormatDuration(c.now().Sub(c.started))
	if err != nil {
		fmt.Fprintf(c.out, "%s %s failed after %s: %v\n", Red("✗"), stage, elapsed, err)
	} else {
		fmt.Fprintf(c.out, "%s %s done in %s\n", Green("✓"), stage, elapsed)
	}
	c.stage = ""
}

// clearLine blanks a pending progress line. Callers hold mu.
func (c *Console) clearLine() {
	if c.lineLen == 0 {
		return
	}
	fmt.Fprintf(c.out, "\r%s\r", strings.Repeat(" ", c.lineLen))
	c.lineLen = 0
}
