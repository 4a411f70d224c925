package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs one served HTTP request at a level matching its status.
func LogRequest(l Logger, method, path string, statusCode int, duration time.Duration, clientIP string) {
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
		"client_ip":   clientIP,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.InfoWithFields("HTTP request completed", fields)
	}
}

// LogBatch logs a committed batch of a resumable run.
func LogBatch(l Logger, batch, batches, committed, processed, total int) {
	l.InfoWithFields("Batch committed", map[string]interface{}{
		"batch":     batch,
		"batches":   batches,
		"committed": committed,
		"processed": processed,
		"total":     total,
	})
}

// LogStageStart logs the beginning of a pipeline stage.
func LogStageStart(l Logger, stage string, fields map[string]interface{}) {
	l.WithField("stage", stage).InfoWithFields("Stage started", fields)
}

// LogStageStop logs the end of a pipeline stage, at error level when err is set.
func LogStageStop(l Logger, stage string, duration time.Duration, err error) {
	sl := l.WithField("stage", stage).WithField("duration", duration.String())
	if err != nil {
		sl.WithError(err).Error("Stage failed")
		return
	}
	sl.Info("Stage completed")
}

// LogJobTransition logs a job status change.
func LogJobTransition(l Logger, jobID, kind, from, to string) {
	l.InfoWithFields("Job status changed", map[string]interface{}{
		"job_id": jobID,
		"kind":   kind,
		"from":   from,
		"to":     to,
	})
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
