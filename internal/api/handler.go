package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/btq-lab/batch-watcher/internal/config"
	"github.com/btq-lab/batch-watcher/internal/cron"
	"github.com/btq-lab/batch-watcher/internal/notifications"
	"github.com/btq-lab/batch-watcher/internal/preflight"
	"github.com/btq-lab/batch-watcher/internal/registry"
	"github.com/btq-lab/batch-watcher/internal/script"
	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/btq-lab/batch-watcher/pkg/templates"
	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	registry  *registry.JobRegistry
	client    *slurm.Client
	checker   *preflight.Checker
	logger    *logrus.Logger
	config    *config.Config
	Scheduler *cron.Scheduler
}

// SubmitRequest names a template to submit, or carries an inline
// descriptor+workload pair.
type SubmitRequest struct {
	Template   string               `json:"template,omitempty"`
	Descriptor *types.JobDescriptor `json:"descriptor,omitempty"`
	Workload   *types.WorkloadSpec  `json:"workload,omitempty"`
}

type SubmitResponse struct {
	JobID        string `json:"job_id"`
	SubmissionID string `json:"submission_id"`
	State        string `json:"state"`
}

func NewHandler(reg *registry.JobRegistry, client *slurm.Client, notifier notifications.Notifier, logger *logrus.Logger, cfg *config.Config) *Handler {
	scheduler := cron.NewScheduler(logger, cfg.Jobs)

	checker := preflight.NewChecker(logger)

	trialsJob := cron.NewSubmitTrialsJob(client, reg, checker, logger, cfg.Templates.Path)
	scheduler.RegisterTask("submit-trials", trialsJob.Run)

	staleChecker := cron.NewStaleChecker(reg, notifier, logger)
	scheduler.RegisterTask("stale-check", staleChecker.Run)

	if err := scheduler.LoadPredefinedJobs(cfg.Jobs.Predefined); err != nil {
		logger.Fatalf("Failed to load predefined jobs: %v", err)
	}

	return &Handler{
		registry:  reg,
		client:    client,
		checker:   checker,
		logger:    logger,
		config:    cfg,
		Scheduler: scheduler,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// SubmitJob accepts a template name or an inline descriptor, renders
// the batch script, preflights it and hands it to the scheduler.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	var template string
	var desc types.JobDescriptor
	var workload types.WorkloadSpec

	switch {
	case req.Template != "":
		file, err := templates.Load(h.config.Templates.Path)
		if err != nil {
			h.handleError(w, err, http.StatusInternalServerError)
			return
		}
		tmpl, err := file.Get(req.Template)
		if err != nil {
			h.handleError(w, err, http.StatusNotFound)
			return
		}
		template = tmpl.Name
		desc = tmpl.Descriptor
		workload = tmpl.Workload
	case req.Descriptor != nil && req.Workload != nil:
		desc = *req.Descriptor
		workload = *req.Workload
	default:
		h.handleError(w, fmt.Errorf("request must name a template or carry descriptor and workload"), http.StatusBadRequest)
		return
	}

	text, err := script.Render(desc, workload)
	if err != nil {
		h.handleError(w, err, http.StatusBadRequest)
		return
	}

	if err := h.checker.Check(workload); err != nil {
		h.handleError(w, err, http.StatusUnprocessableEntity)
		return
	}

	jobID, err := h.client.Submit(r.Context(), text)
	if err != nil {
		h.handleError(w, err, http.StatusBadGateway)
		return
	}

	job, err := h.registry.Register(template, jobID, desc, workload)
	if err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SubmitResponse{
		JobID:        job.JobID,
		SubmissionID: job.SubmissionID,
		State:        string(job.State),
	})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.registry.List()

	active := 0
	for _, job := range jobs {
		if !job.State.Terminal() {
			active++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobs":        jobs,
		"active_jobs": active,
	})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["jobID"]

	job, _, err := h.registry.Refresh(r.Context(), jobID)
	if err != nil {
		if job == nil {
			h.handleError(w, err, http.StatusNotFound)
			return
		}
		// Scheduler lookup failed; serve the last known state.
		h.logger.Warnf("Serving stale state for job %s: %v", jobID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["jobID"]

	job, ok := h.registry.Get(jobID)
	if !ok {
		h.handleError(w, fmt.Errorf("job %s not found", jobID), http.StatusNotFound)
		return
	}
	if job.State.Terminal() {
		h.handleError(w, fmt.Errorf("job %s already %s", jobID, job.State), http.StatusConflict)
		return
	}

	if err := h.client.Cancel(r.Context(), jobID); err != nil {
		h.handleError(w, err, http.StatusBadGateway)
		return
	}

	if _, err := h.registry.UpdateState(jobID, types.StateCancelled, "cancelled via API"); err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancelled",
		"job_id": jobID,
	})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	file, err := templates.Load(h.config.Templates.Path)
	if err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"templates": file.Templates,
	})
}

func (h *Handler) ListScheduledJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.Scheduler.ListJobs()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobs":    jobs,
		"running": h.Scheduler.IsRunning(),
	})
}

func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.Scheduler.Start(); err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "scheduler started successfully",
	})
}

func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	h.Scheduler.Stop()
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "scheduler stopped successfully",
	})
}

func (h *Handler) handleError(w http.ResponseWriter, err error, code int) {
	h.logger.Error(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	})
}
