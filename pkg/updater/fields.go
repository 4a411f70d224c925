package updater

import (
	"context"
	"fmt"
	"time"

	"enricher/pkg/airtable"
	errs "enricher/pkg/errors"
	"enricher/pkg/logger"
	"enricher/pkg/ratelimit"
)

// FieldCreator adds a column to the table.
type FieldCreator interface {
	CreateField(ctx context.Context, spec airtable.FieldSpec) error
}

// FieldsResult summarises a field creation run.
type FieldsResult struct {
	TotalFields int      `json:"total_fields"`
	Created     int      `json:"created"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors"`
}

// CreateFields creates each field, waiting delay between requests. A field
// that fails (usually because it already exists) is recorded and the run
// continues.
func CreateFields(ctx context.Context, table FieldCreator, specs []airtable.FieldSpec, delay time.Duration, token Canceller, log logger.Logger) (*FieldsResult, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "fields")
	limiter := ratelimit.NewInterval(delay)

	res := &FieldsResult{TotalFields: len(specs), Errors: []string{}}
	for i, spec := range specs {
		if token != nil && token.Cancelled() {
			return res, errs.Cancelled("field creation cancelled after %d of %d fields", i, len(specs))
		}
		if err := limiter.Wait(ctx); err != nil {
			return res, err
		}

		if err := table.CreateField(ctx, spec); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to create field %s: %v", spec.Name, err))
			log.WithError(err).WithField("field", spec.Name).Warn("Field creation failed")
			continue
		}
		res.Created++
		log.WithFields(map[string]interface{}{"field": spec.Name, "type": spec.Type}).Info("Field created")
	}

	log.InfoWithFields("Field creation finished", map[string]interface{}{
		"created": res.Created,
		"failed":  res.Failed,
	})
	return res, nil
}
