package registry

import (
	"context"
	"testing"
	"time"

	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/btq-lab/batch-watcher/internal/testutil"
	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(runner slurm.Runner) *JobRegistry {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	client := slurm.NewClientWithRunner(logger, runner, time.Second)
	return NewJobRegistry(client, logger)
}

func TestRegisterAndGet(t *testing.T) {
	r := newTestRegistry(testutil.NewFakeRunner())

	job, err := r.Register("btq-trial", "12345", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)
	assert.NotEmpty(t, job.SubmissionID)
	assert.Equal(t, types.StatePending, job.State)

	got, ok := r.Get("12345")
	require.True(t, ok)
	assert.Equal(t, "btq_trial_runs", got.Descriptor.JobName)
	assert.Equal(t, job.SubmissionID, got.SubmissionID)

	_, ok = r.Get("99999")
	assert.False(t, ok)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(testutil.NewFakeRunner())

	_, err := r.Register("", "12345", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)

	_, err = r.Register("", "12345", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	assert.ErrorContains(t, err, "already registered")

	_, err = r.Register("", "", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	assert.ErrorContains(t, err, "job id is required")
}

func TestListOrdering(t *testing.T) {
	r := newTestRegistry(testutil.NewFakeRunner())

	for _, id := range []string{"3", "1", "2"} {
		_, err := r.Register("", id, types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
		require.NoError(t, err)
	}

	jobs := r.List()
	require.Len(t, jobs, 3)
	// Same-instant submissions fall back to job id order.
	prev := jobs[0]
	for _, job := range jobs[1:] {
		assert.False(t, job.SubmittedAt.Before(prev.SubmittedAt))
		prev = job
	}
}

func TestUpdateStateTerminalSticks(t *testing.T) {
	r := newTestRegistry(testutil.NewFakeRunner())
	_, err := r.Register("", "12345", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)

	changed, err := r.UpdateState("12345", types.StateRunning, "")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.UpdateState("12345", types.StateCompleted, "")
	require.NoError(t, err)
	assert.True(t, changed)

	// A stale RUNNING observation must not resurrect a finished job.
	changed, err = r.UpdateState("12345", types.StateRunning, "")
	require.NoError(t, err)
	assert.False(t, changed)

	job, _ := r.Get("12345")
	assert.Equal(t, types.StateCompleted, job.State)

	_, err = r.UpdateState("99999", types.StateRunning, "")
	assert.ErrorContains(t, err, "not found")
}

func TestActive(t *testing.T) {
	r := newTestRegistry(testutil.NewFakeRunner())

	_, err := r.Register("", "1", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)
	_, err = r.Register("", "2", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)

	_, err = r.UpdateState("1", types.StateFailed, "exit code 1:0")
	require.NoError(t, err)

	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "2", active[0].JobID)
}

func TestRefresh(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.SetOutput("squeue", "RUNNING|None\n")
	r := newTestRegistry(runner)

	_, err := r.Register("", "12345", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)

	job, changed, err := r.Refresh(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, types.StateRunning, job.State)

	// Second refresh inside the cache window: no change, no new call.
	calls := runner.Calls()
	job, changed, err = r.Refresh(context.Background(), "12345")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, types.StateRunning, job.State)
	assert.Equal(t, calls, runner.Calls())
}

func TestRefreshTerminalSkipsScheduler(t *testing.T) {
	runner := testutil.NewFakeRunner()
	r := newTestRegistry(runner)

	_, err := r.Register("", "12345", types.DefaultTrialDescriptor(), types.DefaultTrialWorkload())
	require.NoError(t, err)
	_, err = r.UpdateState("12345", types.StateCompleted, "")
	require.NoError(t, err)

	job, changed, err := r.Refresh(context.Background(), "12345")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, types.StateCompleted, job.State)
	assert.Empty(t, runner.Calls())
}
