package server

import (
	"github.com/gin-gonic/gin"

	"enricher/pkg/jobs"
)

func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/", s.root)
	router.GET("/test", s.ping)
	router.GET("/health", s.health)

	router.POST("/extract", s.startExtract)
	router.POST("/apify/process", s.startScrape)
	router.POST("/cleaner/process", s.startClean)
	router.POST("/traits/process", s.startTraits)
	router.POST("/airtable/update", s.startUpdate)
	router.POST("/airtable/fields", s.startFields)

	router.GET("/traits/progress", s.traitsProgress)
	router.POST("/cancel-all-jobs", s.cancelAll)
	router.GET("/terminal-logs", s.terminalLogs)
	router.DELETE("/terminal-logs", s.clearTerminalLogs)

	// Extraction jobs keep the unprefixed routes.
	s.jobRoutes(router.Group(""), jobs.KindExtract)
	s.jobRoutes(router.Group("/apify"), jobs.KindScrape)
	s.jobRoutes(router.Group("/cleaner"), jobs.KindClean)
	s.jobRoutes(router.Group("/traits"), jobs.KindTraits)
	s.jobRoutes(router.Group("/airtable"), jobs.KindUpdate)
	s.jobRoutes(router.Group("/fields"), jobs.KindFields)
}

func (s *Server) jobRoutes(g *gin.RouterGroup, kind jobs.Kind) {
	g.GET("/status/:id", s.jobStatus(kind))
	g.GET("/results/:id", s.jobResults(kind))
	g.GET("/jobs", s.listJobs(kind))
	g.DELETE("/jobs/:id", s.deleteJob(kind))
	g.POST("/jobs/:id/cancel", s.cancelJob(kind))
}
