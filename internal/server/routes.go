package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Cron triggered sweeps (bearer secret)
	mux.HandleFunc("/api/cron/batch-analyze", s.app.CronHandler.BatchAnalyzeHandler)
	mux.HandleFunc("/api/cron/check-and-do", s.app.CronHandler.BatchAnalyzeHandler)

	// API routes - Analysis jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)  // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // /api/jobs/{id}, /results, /run

	// API routes - System
	mux.HandleFunc("/api/scheduler/status", s.app.APIHandler.SchedulerStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsRoute routes /api/jobs requests (list and create)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	case http.MethodPost:
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes job-related requests to the appropriate handler
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	suffix := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if suffix == "" {
		s.handleJobsRoute(w, r)
		return
	}

	parts := strings.Split(suffix, "/")
	switch {
	case len(parts) == 1:
		s.app.JobHandler.GetJobHandler(w, r)
	case len(parts) == 2 && parts[1] == "results":
		s.app.JobHandler.GetJobResultsHandler(w, r)
	case len(parts) == 2 && parts[1] == "run":
		s.app.JobHandler.RunJobHandler(w, r)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
