package cron

import (
	"sync"
	"time"

	"github.com/btq-lab/batch-watcher/internal/notifications"
	"github.com/btq-lab/batch-watcher/internal/registry"
	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/btq-lab/batch-watcher/pkg/utils"
	"github.com/sirupsen/logrus"
)

// staleGrace is how far past its wall-clock limit a job may run before
// it is flagged. Enforcement of the limit itself belongs to the
// scheduler; this sweep only catches accounting that never caught up.
const staleGrace = 5 * time.Minute

// StaleChecker flags jobs that should have hit their wall-clock limit
// but are still reported as active. It is what the "stale-check" cron
// task runs.
type StaleChecker struct {
	registry *registry.JobRegistry
	notifier notifications.Notifier
	logger   *logrus.Logger
	grace    time.Duration

	mu      sync.Mutex
	flagged map[string]bool
}

func NewStaleChecker(reg *registry.JobRegistry, notifier notifications.Notifier, logger *logrus.Logger) *StaleChecker {
	return &StaleChecker{
		registry: reg,
		notifier: notifier,
		logger:   logger,
		grace:    staleGrace,
		flagged:  make(map[string]bool),
	}
}

func (c *StaleChecker) Run() error {
	now := time.Now()
	for _, job := range c.registry.Active() {
		// Pending jobs accrue queue wait, not wall-clock time.
		if job.State != types.StateRunning {
			continue
		}

		walltime, err := utils.ParseWalltime(job.Descriptor.Walltime)
		if err != nil {
			c.logger.Warnf("Job %s has unparseable walltime %q, skipping stale check",
				job.JobID, job.Descriptor.Walltime)
			continue
		}

		// UpdatedAt is when the job was last seen transitioning, i.e.
		// when it went RUNNING; wall-clock time counts from dispatch.
		started := job.UpdatedAt
		deadline := started.Add(walltime + c.grace)
		if now.Before(deadline) {
			continue
		}

		overBy := now.Sub(started.Add(walltime))
		c.flag(job, overBy)
	}
	return nil
}

func (c *StaleChecker) flag(job *types.SubmittedJob, overBy time.Duration) {
	c.mu.Lock()
	already := c.flagged[job.JobID]
	c.flagged[job.JobID] = true
	c.mu.Unlock()

	if already {
		return
	}

	c.logger.WithFields(logrus.Fields{
		"job_id":   job.JobID,
		"job_name": job.Descriptor.JobName,
		"state":    job.State,
		"over_by":  overBy.String(),
	}).Warn("Job still active past its wall-clock limit")

	if c.notifier != nil {
		c.notifier.NotifyStaleJob(job, overBy)
	}
}
