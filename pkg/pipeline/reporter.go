package pipeline

import (
	"context"
	"strings"

	"enricher/pkg/logger"
)

// LogReporter writes progress to a logger and is cancelled with its
// context.
type LogReporter struct {
	ctx context.Context
	log logger.Logger
}

// NewLogReporter creates a reporter bound to ctx.
func NewLogReporter(ctx context.Context, log logger.Logger) *LogReporter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LogReporter{ctx: ctx, log: log}
}

func (r *LogReporter) Cancelled() bool { return r.ctx.Err() != nil }

func (r *LogReporter) Done() <-chan struct{} { return r.ctx.Done() }

func (r *LogReporter) Progress(current, total int, message string) {
	r.log.InfoWithFields(message, map[string]interface{}{
		"current": current,
		"total":   total,
	})
}

func (r *LogReporter) Log(level, message string) {
	switch strings.ToUpper(level) {
	case "ERROR":
		r.log.Error(message)
	case "WARN", "WARNING":
		r.log.Warn(message)
	case "DEBUG":
		r.log.Debug(message)
	default:
		r.log.Info(message)
	}
}
