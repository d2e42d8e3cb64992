package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/sirupsen/logrus"
)

type StartupNotifier struct {
	slack        *SlackService
	logger       *logrus.Logger
	initialDelay time.Duration
}

func NewStartupNotifier(slack *SlackService, logger *logrus.Logger) *StartupNotifier {
	return &StartupNotifier{
		slack:        slack,
		logger:       logger,
		initialDelay: 5 * time.Second,
	}
}

// NotifyStartup announces the service, the scheduler it found, and the
// job templates it will manage.
func (n *StartupNotifier) NotifyStartup(info slurm.Info, templateNames []string) error {
	time.Sleep(n.initialDelay)

	mode := "watch-only (sbatch not found)"
	if info.Available {
		mode = fmt.Sprintf("submitting via %s", info.Binary)
	}

	templates := "none"
	if len(templateNames) > 0 {
		templates = strings.Join(templateNames, ", ")
	}

	n.logger.WithFields(logrus.Fields{
		"mode":      mode,
		"templates": templates,
	}).Info("Batch watcher started")

	if n.slack == nil {
		return nil
	}

	return n.slack.SendText(fmt.Sprintf("🛰️ Batch watcher started — %s. Templates: %s", mode, templates))
}
