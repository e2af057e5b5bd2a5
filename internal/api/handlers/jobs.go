package handlers

import (
	"net/http"
	"strconv"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/assist"
	"github.com/dvloznov/bookkeeper/internal/extraction"
	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/rs/zerolog"
)

// JobsHandler handles suggestion and statement extraction jobs.
type JobsHandler struct {
	assistant *assist.Assistant
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(assistant *assist.Assistant, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{assistant: assistant, log: log}
}

// RequestSuggestion handles POST /api/suggestions
func (h *JobsHandler) RequestSuggestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionIDs []string `json:"transactionIds"`
		BankAccountID  string   `json:"bankAccountId"`
		Memo           string   `json:"memo"`
	}
	if !decode(w, r, &req) {
		return
	}
	job, err := h.assistant.RequestSuggestion(r.Context(), req.TransactionIDs, req.BankAccountID, req.Memo)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// ExtractStatement handles POST /api/statements. Binary documents are sent
// base64-encoded in data; plain text statements in text.
func (h *JobsHandler) ExtractStatement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		MIMEType string `json:"mimeType"`
		Data     []byte `json:"data"`
		Text     string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	job, err := h.assistant.RequestStatementExtraction(r.Context(), extraction.Document{
		Name:     req.Name,
		MIMEType: req.MIMEType,
		Data:     req.Data,
		Text:     req.Text,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.log.Info().Str("job_id", job.JobID).Str("document", req.Name).Msg("Statement extraction queued")
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.assistant.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Type:   jobs.JobType(query.Get("type")),
		Status: jobs.JobStatus(query.Get("status")),
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

	jobsList, err := h.assistant.Jobs(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// ApplyJob handles POST /api/jobs/{id}/apply
func (h *JobsHandler) ApplyJob(w http.ResponseWriter, r *http.Request) {
	res, err := h.assistant.Apply(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// DismissJob handles POST /api/jobs/{id}/dismiss
func (h *JobsHandler) DismissJob(w http.ResponseWriter, r *http.Request) {
	if err := h.assistant.Dismiss(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
