// Package registry tracks every job this service has submitted, from
// sbatch acceptance to terminal state.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	statusCacheTTL     = 30 * time.Second
	statusCacheCleanup = 5 * time.Minute
)

type JobRegistry struct {
	client *slurm.Client
	logger *logrus.Logger
	cache  *cache.Cache

	mu   sync.RWMutex
	jobs map[string]*types.SubmittedJob
}

func NewJobRegistry(client *slurm.Client, logger *logrus.Logger) *JobRegistry {
	return &JobRegistry{
		client: client,
		logger: logger,
		cache:  cache.New(statusCacheTTL, statusCacheCleanup),
		jobs:   make(map[string]*types.SubmittedJob),
	}
}

// Register records a freshly submitted job. The descriptor and
// workload are copied in and never touched again.
func (r *JobRegistry) Register(template, jobID string, desc types.JobDescriptor, workload types.WorkloadSpec) (*types.SubmittedJob, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[jobID]; exists {
		return nil, fmt.Errorf("job %s already registered", jobID)
	}

	now := time.Now()
	job := &types.SubmittedJob{
		SubmissionID: uuid.NewString(),
		JobID:        jobID,
		Template:     template,
		Descriptor:   desc,
		Workload:     workload,
		State:        types.StatePending,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	r.jobs[jobID] = job

	r.logger.WithFields(logrus.Fields{
		"job_id":        jobID,
		"submission_id": job.SubmissionID,
		"job_name":      desc.JobName,
		"template":      template,
	}).Info("Job registered")

	return copyJob(job), nil
}

// Get returns a snapshot of one job.
func (r *JobRegistry) Get(jobID string) (*types.SubmittedJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, false
	}
	return copyJob(job), true
}

// List returns snapshots of all jobs, oldest submission first.
func (r *JobRegistry) List() []*types.SubmittedJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*types.SubmittedJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, copyJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].SubmittedAt.Equal(jobs[j].SubmittedAt) {
			return jobs[i].JobID < jobs[j].JobID
		}
		return jobs[i].SubmittedAt.Before(jobs[j].SubmittedAt)
	})
	return jobs
}

// Active returns the jobs still waiting or running.
func (r *JobRegistry) Active() []*types.SubmittedJob {
	var active []*types.SubmittedJob
	for _, job := range r.List() {
		if !job.State.Terminal() {
			active = append(active, job)
		}
	}
	return active
}

// UpdateState moves a job to a new state. Terminal states stick: a
// later update can never overwrite one.
func (r *JobRegistry) UpdateState(jobID string, state types.JobState, reason string) (changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, fmt.Errorf("job %s not found", jobID)
	}

	if job.State.Terminal() {
		return false, nil
	}
	if job.State == state && job.Reason == reason {
		return false, nil
	}

	r.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"from":   job.State,
		"to":     state,
		"reason": reason,
	}).Info("Job state changed")

	job.State = state
	job.Reason = reason
	job.UpdatedAt = time.Now()
	return true, nil
}

// Refresh asks the scheduler for the job's current state and records
// it. Lookups are cached briefly so API reads and the poller do not
// hammer sacct.
func (r *JobRegistry) Refresh(ctx context.Context, jobID string) (*types.SubmittedJob, bool, error) {
	job, ok := r.Get(jobID)
	if !ok {
		return nil, false, fmt.Errorf("job %s not found", jobID)
	}
	if job.State.Terminal() {
		return job, false, nil
	}

	var state types.JobState
	var reason string
	if cached, found := r.cache.Get(jobID); found {
		cs := cached.(cachedStatus)
		state, reason = cs.state, cs.reason
	} else {
		var err error
		state, reason, err = r.client.Status(ctx, jobID)
		if err != nil {
			return job, false, err
		}
		r.cache.Set(jobID, cachedStatus{state: state, reason: reason}, cache.DefaultExpiration)
	}

	changed, err := r.UpdateState(jobID, state, reason)
	if err != nil {
		return job, false, err
	}

	job, _ = r.Get(jobID)
	return job, changed, nil
}

type cachedStatus struct {
	state  types.JobState
	reason string
}

func copyJob(job *types.SubmittedJob) *types.SubmittedJob {
	c := *job
	return &c
}
