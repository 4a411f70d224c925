package pipeline

import (
	"context"

	"enricher/pkg/apify"
	"enricher/pkg/extract"
	"enricher/pkg/runner"
	"enricher/pkg/updater"
)

// Table is the roster table every Airtable-facing stage works on.
type Table interface {
	extract.Source
	updater.RecordUpdater
	updater.FieldCreator
}

// Scraper fetches raw profiles for a batch of URLs.
type Scraper interface {
	Submit(ctx context.Context, urls []string) ([]apify.Profile, error)
}

// Reporter receives a stage's progress and is polled for cancellation.
// jobs.Handle and the terminal reporters in pkg/ui satisfy it.
type Reporter interface {
	runner.Token
	Progress(current, total int, message string)
	Log(level, message string)
}

// StageObserver is implemented by reporters that track stage boundaries.
// RunAll calls it around every stage it runs.
type StageObserver interface {
	StageStarted(stage string)
	StageFinished(stage string, err error)
}
