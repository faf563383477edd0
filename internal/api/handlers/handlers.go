package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/copanyhq/revenue-sync/internal/api/middleware"
	"github.com/copanyhq/revenue-sync/internal/jobs"
	"github.com/copanyhq/revenue-sync/internal/syncer"
	"github.com/rs/zerolog"
)

// SyncResponse is the envelope returned by the sync endpoints.
type SyncResponse struct {
	Success           bool     `json:"success"`
	Message           string   `json:"message"`
	Processed         int      `json:"processed"`
	Successful        int      `json:"successful"`
	Failed            int      `json:"failed"`
	TotalNewReports   int      `json:"totalNewReports"`
	TotalNewChartData int      `json:"totalNewChartData"`
	Errors            []string `json:"errors"`
	Timestamp         string   `json:"timestamp"`
}

// SyncHandler handles batch sync endpoints.
type SyncHandler struct {
	svc       *syncer.Service
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(svc *syncer.Service, publisher jobs.Publisher, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		svc:       svc,
		publisher: publisher,
		log:       log,
	}
}

// RunSync handles POST /api/sync
//
// Runs the full batch synchronously and returns a per-tenant summary.
// Partial tenant failures still produce a 200 with success=true; only
// a failure to set the batch up at all yields a 500.
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.svc.RunBatch(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Batch sync failed")
		middleware.WriteJSON(w, http.StatusInternalServerError, SyncResponse{
			Success:   false,
			Message:   err.Error(),
			Errors:    []string{err.Error()},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, e.String())
	}

	middleware.WriteJSON(w, http.StatusOK, SyncResponse{
		Success:           true,
		Message:           "Sync completed",
		Processed:         result.Processed,
		Successful:        result.Successful,
		Failed:            result.Failed,
		TotalNewReports:   result.TotalNewReports,
		TotalNewChartData: result.TotalNewChartData,
		Errors:            errs,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	})
}

// EnqueueTenantSync handles POST /api/sync/tenants
func (h *SyncHandler) EnqueueTenantSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.TenantID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	ctx := r.Context()

	job := &jobs.SyncTenantJob{
		TenantID: req.TenantID,
	}

	if err := h.publisher.PublishSyncTenant(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("tenant_id", req.TenantID).Msg("Sync job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"tenant_id": req.TenantID,
		"status":    string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		TenantID: query.Get("tenant_id"),
		Status:   jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
