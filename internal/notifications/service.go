package notifications

import (
	"time"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/sirupsen/logrus"
)

// Notifier is what the poller and cron tasks talk to. A nil-safe
// wrapper around the Slack service so the watcher runs fine without a
// webhook configured.
type Notifier interface {
	NotifyJobState(job *types.SubmittedJob)
	NotifyStaleJob(job *types.SubmittedJob, overBy time.Duration)
}

type NotificationService struct {
	slack  *SlackService
	logger *logrus.Logger
}

func NewNotificationService(slack *SlackService, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		slack:  slack,
		logger: logger,
	}
}

func (s *NotificationService) NotifyJobState(job *types.SubmittedJob) {
	if s.slack == nil {
		s.logger.WithFields(logrus.Fields{
			"job_id": job.JobID,
			"state":  job.State,
		}).Debug("Slack not configured, skipping job state notification")
		return
	}

	if err := s.slack.SendJobStateNotification(job); err != nil {
		s.logger.Errorf("Failed to send job state notification for %s: %v", job.JobID, err)
	}
}

func (s *NotificationService) NotifyStaleJob(job *types.SubmittedJob, overBy time.Duration) {
	if s.slack == nil {
		return
	}

	if err := s.slack.SendStaleJobAlert(job, overBy); err != nil {
		s.logger.Errorf("Failed to send stale job alert for %s: %v", job.JobID, err)
	}
}
