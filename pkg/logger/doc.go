// Package logger provides the structured logging interface used across the
// enrichment pipeline.
//
// It wraps zerolog with a small interface so components can be handed a
// logger (or a TestLogger in tests) instead of reaching for globals:
//
//	cfg := &config.LoggingConfig{Level: "info", Format: "console"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger().WithField("stage", "scrape")
//	log.InfoWithFields("Batch committed", map[string]interface{}{
//	    "batch": 2,
//	    "processed": 100,
//	})
//
// Console output uses four-letter level tags (DEBG, INFO, WARN, ERRO, FATL);
// Format "json" emits one JSON object per line. When File is set, lines are
// written to both stderr and the file.
package logger
