package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/btq-lab/batch-watcher/internal/preflight"
	"github.com/btq-lab/batch-watcher/internal/registry"
	"github.com/btq-lab/batch-watcher/internal/script"
	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/btq-lab/batch-watcher/pkg/templates"
	"github.com/sirupsen/logrus"
)

// SubmitTrialsJob re-submits every enabled job template. It is what
// the "submit-trials" cron task runs.
type SubmitTrialsJob struct {
	client        *slurm.Client
	registry      *registry.JobRegistry
	checker       *preflight.Checker
	logger        *logrus.Logger
	templatesPath string
	timeout       time.Duration
}

func NewSubmitTrialsJob(client *slurm.Client, reg *registry.JobRegistry, checker *preflight.Checker, logger *logrus.Logger, templatesPath string) *SubmitTrialsJob {
	return &SubmitTrialsJob{
		client:        client,
		registry:      reg,
		checker:       checker,
		logger:        logger,
		templatesPath: templatesPath,
		timeout:       time.Minute,
	}
}

func (j *SubmitTrialsJob) Run() error {
	file, err := templates.Load(j.templatesPath)
	if err != nil {
		j.logger.Errorf("Failed to load job templates: %v", err)
		return err
	}

	enabled := file.Enabled()
	if len(enabled) == 0 {
		j.logger.Info("No enabled job templates, nothing to submit")
		return nil
	}

	j.logger.Infof("Submitting %d job templates: %s",
		len(enabled), strings.Join(file.Names(), ", "))

	var failed []string
	for _, tmpl := range enabled {
		if err := j.submitOne(tmpl.Name, file); err != nil {
			j.logger.Errorf("Failed to submit template %s: %v", tmpl.Name, err)
			failed = append(failed, tmpl.Name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to submit %d of %d templates: %s",
			len(failed), len(enabled), strings.Join(failed, ", "))
	}
	return nil
}

func (j *SubmitTrialsJob) submitOne(name string, file *templates.File) error {
	tmpl, err := file.Get(name)
	if err != nil {
		return err
	}

	text, err := script.Render(tmpl.Descriptor, tmpl.Workload)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if err := j.checker.Check(tmpl.Workload); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	jobID, err := j.client.Submit(ctx, text)
	if err != nil {
		return err
	}

	job, err := j.registry.Register(name, jobID, tmpl.Descriptor, tmpl.Workload)
	if err != nil {
		return err
	}

	j.logger.WithFields(logrus.Fields{
		"template":      name,
		"job_id":        jobID,
		"submission_id": job.SubmissionID,
	}).Info("Template submitted")
	return nil
}
