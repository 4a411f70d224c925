package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	errs "enricher/pkg/errors"
	"enricher/pkg/jobs"
	"enricher/pkg/logger"
	"enricher/pkg/pipeline"
)

// jobRequest is the body of every job submission. Both fields are optional.
type jobRequest[T any] struct {
	Config T      `json:"config"`
	JobID  string `json:"job_id,omitempty"`
}

// bindJob decodes a submission. An empty body selects the defaults.
func bindJob[T any](c *gin.Context) (jobRequest[T], error) {
	var req jobRequest[T]
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		return req, errs.Wrap(errs.ErrorTypeParsing, err, "invalid request body")
	}
	return req, nil
}

// fail answers with the error's status and a {"detail": ...} body.
func (s *Server) fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
	}
	c.JSON(status, gin.H{"detail": detail(err)})
}

func detail(err error) string {
	var e *errs.Error
	if !stderrors.As(err, &e) {
		return err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Airtable LinkedIn URL Extractor API",
		"version": logger.Version,
		"status":  "running",
		"endpoints": gin.H{
			"health":   "/health",
			"jobs":     "/jobs",
			"extract":  "/extract",
			"apify":    "/apify/process",
			"cleaner":  "/cleaner/process",
			"traits":   "/traits/process",
			"airtable": "/airtable/update",
			"fields":   "/airtable/fields",
		},
	})
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "API is responsive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) health(c *gin.Context) {
	stats := s.registry.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":                       "healthy",
		"timestamp":                    time.Now().Format(time.RFC3339),
		"active_jobs":                  stats[jobs.KindExtract].Active,
		"total_jobs":                   stats[jobs.KindExtract].Total,
		"active_apify_jobs":            stats[jobs.KindScrape].Active,
		"total_apify_jobs":             stats[jobs.KindScrape].Total,
		"active_cleaner_jobs":          stats[jobs.KindClean].Active,
		"total_cleaner_jobs":           stats[jobs.KindClean].Total,
		"active_trait_jobs":            stats[jobs.KindTraits].Active,
		"total_trait_jobs":             stats[jobs.KindTraits].Total,
		"active_airtable_updater_jobs": stats[jobs.KindUpdate].Active,
		"total_airtable_updater_jobs":  stats[jobs.KindUpdate].Total,
		"active_field_jobs":            stats[jobs.KindFields].Active,
		"total_field_jobs":             stats[jobs.KindFields].Total,
		"queued_tasks":                 s.pool.QueueSize(),
		"busy_workers":                 s.pool.ActiveWorkers(),
		"finished_tasks":               s.finished.Load(),
		"panicked_tasks":               s.panicked.Load(),
	})
}

// submit registers the job and answers with its id.
func (s *Server) submit(c *gin.Context, kind jobs.Kind, id string, config interface{}, task jobs.Task, what string) {
	snap, err := s.registry.Submit(kind, id, config, task)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":  snap.JobID,
		"status":  snap.Status,
		"message": what + " job started successfully",
	})
}

func (s *Server) startExtract(c *gin.Context) {
	req, err := bindJob[pipeline.ExtractRequest](c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, jobs.KindExtract, req.JobID, req.Config, func(ctx context.Context, h *jobs.Handle) (interface{}, error) {
		return s.pipeline.Extract(ctx, req.Config, h)
	}, "Extraction")
}

func (s *Server) startScrape(c *gin.Context) {
	req, err := bindJob[pipeline.ScrapeRequest](c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, jobs.KindScrape, req.JobID, req.Config, func(ctx context.Context, h *jobs.Handle) (interface{}, error) {
		return s.pipeline.Scrape(ctx, req.Config, h)
	}, "Apify processing")
}

func (s *Server) startClean(c *gin.Context) {
	req, err := bindJob[pipeline.CleanRequest](c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, jobs.KindClean, req.JobID, req.Config, func(ctx context.Context, h *jobs.Handle) (interface{}, error) {
		return s.pipeline.Clean(ctx, req.Config, h)
	}, "Data cleaning")
}

func (s *Server) startTraits(c *gin.Context) {
	req, err := bindJob[pipeline.TraitsRequest](c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, jobs.KindTraits, req.JobID, req.Config, func(ctx context.Context, h *jobs.Handle) (interface{}, error) {
		return s.pipeline.Traits(ctx, req.Config, h)
	}, "Trait extraction")
}

func (s *Server) startUpdate(c *gin.Context) {
	req, err := bindJob[pipeline.UpdateRequest](c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, jobs.KindUpdate, req.JobID, req.Config, func(ctx context.Context, h *jobs.Handle) (interface{}, error) {
		return s.pipeline.Update(ctx, req.Config, h)
	}, "Airtable update")
}

func (s *Server) startFields(c *gin.Context) {
	req, err := bindJob[pipeline.FieldsRequest](c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, jobs.KindFields, req.JobID, req.Config, func(ctx context.Context, h *jobs.Handle) (interface{}, error) {
		return s.pipeline.Fields(ctx, req.Config, h)
	}, "Field creation")
}

func (s *Server) traitsProgress(c *gin.Context) {
	stats, err := s.pipeline.TraitsProgress(pipeline.TraitsRequest{
		InputFile:  c.Query("input_file"),
		OutputFile: c.Query("output_file"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) jobStatus(kind jobs.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.registry.Get(kind, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func (s *Server) jobResults(kind jobs.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := s.registry.Results(kind, c.Param("id"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

type jobSummary struct {
	JobID       string      `json:"job_id"`
	Status      jobs.Status `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}

func (s *Server) listJobs(kind jobs.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		snaps := s.registry.List(kind)
		list := make([]jobSummary, 0, len(snaps))
		for _, snap := range snaps {
			list = append(list, jobSummary{
				JobID:       snap.JobID,
				Status:      snap.Status,
				StartedAt:   snap.StartedAt,
				CompletedAt: snap.CompletedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"total_jobs": len(list), "jobs": list})
	}
}

func (s *Server) deleteJob(kind jobs.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := s.registry.Delete(kind, id); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s '%s' deleted successfully", kind.Label(), id)})
	}
}

func (s *Server) cancelJob(kind jobs.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		snap, err := s.registry.Cancel(kind, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"job_id":  snap.JobID,
			"status":  snap.Status,
			"message": fmt.Sprintf("%s '%s' cancelled successfully", kind.Label(), id),
		})
	}
}

func (s *Server) cancelAll(c *gin.Context) {
	n := s.registry.CancelAll()
	c.JSON(http.StatusOK, gin.H{
		"message":        fmt.Sprintf("Cancelled %d running jobs", n),
		"cancelled_jobs": n,
	})
}

func (s *Server) terminalLogs(c *gin.Context) {
	activity := s.registry.Activity()
	c.JSON(http.StatusOK, gin.H{
		"logs":       activity.Entries(),
		"total_logs": activity.Len(),
		"max_logs":   activity.Max(),
	})
}

func (s *Server) clearTerminalLogs(c *gin.Context) {
	s.registry.Activity().Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Terminal logs cleared successfully"})
}
