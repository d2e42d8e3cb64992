package poller

import (
	"sync"
	"testing"
	"time"

	"github.com/btq-lab/batch-watcher/internal/registry"
	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/btq-lab/batch-watcher/internal/testutil"
	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	states []types.JobState
}

func (n *recordingNotifier) NotifyJobState(job *types.SubmittedJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, job.State)
}

func (n *recordingNotifier) NotifyStaleJob(*types.SubmittedJob, time.Duration) {}

func (n *recordingNotifier) recorded() []types.JobState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.JobState(nil), n.states...)
}

func newTestPoller(t *testing.T, runner slurm.Runner, interval time.Duration) (*Poller, *registry.JobRegistry, *recordingNotifier) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	client := slurm.NewClientWithRunner(logger, runner, time.Second)
	reg := registry.NewJobRegistry(client, logger)
	notifier := &recordingNotifier{}
	return New(reg, notifier, logger, interval), reg, notifier
}

func TestPollerRecordsTransitions(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.SetOutput("squeue", "")
	runner.SetOutput("sacct", "COMPLETED|0:0\n")

	p, reg, notifier := newTestPoller(t, runner, 20*time.Millisecond)
	_, err := reg.Register("btq-trial", "12345", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)

	go p.Start()
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	job, ok := reg.Get("12345")
	require.True(t, ok)
	assert.Equal(t, types.StateCompleted, job.State)

	states := notifier.recorded()
	require.Len(t, states, 1, "terminal state must be notified exactly once")
	assert.Equal(t, types.StateCompleted, states[0])
}

func TestPollerIdleWithoutJobs(t *testing.T) {
	runner := testutil.NewFakeRunner()
	p, _, _ := newTestPoller(t, runner, 10*time.Millisecond)

	go p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.Empty(t, runner.Calls(), "no scheduler calls without active jobs")
}

func TestPollerToleratesStatusErrors(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.SetError("squeue", assert.AnError)
	runner.SetError("sacct", assert.AnError)

	p, reg, notifier := newTestPoller(t, runner, 10*time.Millisecond)
	_, err := reg.Register("", "777", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)

	go p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	job, ok := reg.Get("777")
	require.True(t, ok)
	assert.Equal(t, types.StatePending, job.State, "state unchanged while lookups fail")
	assert.Empty(t, notifier.recorded())
}
