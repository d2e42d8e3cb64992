package poller

import (
	"context"
	"sync"
	"time"

	"github.com/btq-lab/batch-watcher/internal/notifications"
	"github.com/btq-lab/batch-watcher/internal/registry"
	"github.com/sirupsen/logrus"
)

// Poller sweeps the registry's active jobs at a fixed interval, asks
// the scheduler where each one stands, and notifies on transitions.
type Poller struct {
	registry *registry.JobRegistry
	notifier notifications.Notifier
	logger   *logrus.Logger
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(registry *registry.JobRegistry, notifier notifications.Notifier, logger *logrus.Logger, interval time.Duration) *Poller {
	return &Poller{
		registry: registry,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (p *Poller) Start() {
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.update()
		case <-p.stop:
			return
		}
	}
}

func (p *Poller) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Poller) update() {
	p.logger.Debug("Starting poller update cycle")

	active := p.registry.Active()
	if len(active) == 0 {
		p.logger.Debug("No active jobs to poll")
		return
	}

	p.logger.Debugf("Polling %d active jobs", len(active))
	for _, job := range active {
		ctx, cancel := context.WithTimeout(context.Background(), p.interval)
		refreshed, changed, err := p.registry.Refresh(ctx, job.JobID)
		cancel()

		if err != nil {
			p.logger.Errorf("Failed to refresh job %s: %v", job.JobID, err)
			continue
		}

		if changed {
			p.logger.Infof("Job %s: %s -> %s", job.JobID, job.State, refreshed.State)
			if p.notifier != nil {
				p.notifier.NotifyJobState(refreshed)
			}
		}
	}
	p.logger.Debug("Completed poller update cycle")
}
