package cron

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btq-lab/batch-watcher/internal/preflight"
	"github.com/btq-lab/batch-watcher/internal/registry"
	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/btq-lab/batch-watcher/internal/testutil"
	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTrialTemplates(t *testing.T, enabled bool) string {
	t.Helper()

	root := t.TempDir()
	venv := filepath.Join(root, "venv")
	require.NoError(t, os.MkdirAll(filepath.Join(venv, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venv, "bin", "activate"), []byte("# venv"), 0o644))
	workdir := filepath.Join(root, "btq")
	require.NoError(t, os.MkdirAll(workdir, 0o755))

	content := fmt.Sprintf(`
templates:
  - name: btq-trial
    enabled: %t
    descriptor:
      job_name: btq_trial_runs
      qos: debug
      nodes: 1
      walltime: "00:10:00"
      licenses: cfs
      constraint: cpu
      account: m3930
      output: job-btq.o%%j
      error: job-btq.e%%j
    workload:
      modules: [python, conda]
      venv: %s
      workdir: %s
      command: python framework.py
`, enabled, venv, workdir)

	path := filepath.Join(root, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTrialsJob(t *testing.T, runner slurm.Runner, templatesPath string) (*SubmitTrialsJob, *registry.JobRegistry) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	client := slurm.NewClientWithRunner(logger, runner, time.Second)
	reg := registry.NewJobRegistry(client, logger)
	checker := preflight.NewChecker(logger)
	return NewSubmitTrialsJob(client, reg, checker, logger, templatesPath), reg
}

func TestSubmitTrialsJob(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.SetOutput("sbatch", "12345\n")

	job, reg := newTrialsJob(t, runner, writeTrialTemplates(t, true))
	require.NoError(t, job.Run())

	jobs := reg.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, "12345", jobs[0].JobID)
	assert.Equal(t, "btq-trial", jobs[0].Template)
	assert.Equal(t, types.StatePending, jobs[0].State)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sbatch", calls[0].Name)
	assert.Contains(t, calls[0].Stdin, "#SBATCH --job-name=btq_trial_runs")
	assert.Contains(t, calls[0].Stdin, "python framework.py")
}

func TestSubmitTrialsJobNothingEnabled(t *testing.T) {
	runner := testutil.NewFakeRunner()
	job, reg := newTrialsJob(t, runner, writeTrialTemplates(t, false))

	require.NoError(t, job.Run())
	assert.Empty(t, reg.List())
	assert.Empty(t, runner.Calls())
}

func TestSubmitTrialsJobSubmissionFailure(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.SetError("sbatch", fmt.Errorf("sbatch: error: Invalid account"))

	job, reg := newTrialsJob(t, runner, writeTrialTemplates(t, true))

	err := job.Run()
	assert.ErrorContains(t, err, "btq-trial")
	assert.Empty(t, reg.List())
}

func TestSubmitTrialsJobMissingTemplatesFile(t *testing.T) {
	runner := testutil.NewFakeRunner()
	job, _ := newTrialsJob(t, runner, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, job.Run())
}

func TestStaleChecker(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	runner := testutil.NewFakeRunner()
	client := slurm.NewClientWithRunner(logger, runner, time.Second)
	reg := registry.NewJobRegistry(client, logger)

	desc := types.DefaultTrialDescriptor()
	desc.Walltime = "00:00:01"
	_, err := reg.Register("", "1", desc, types.DefaultTrialWorkload())
	require.NoError(t, err)
	_, err = reg.UpdateState("1", types.StateRunning, "")
	require.NoError(t, err)

	notifier := &staleRecorder{}
	checker := NewStaleChecker(reg, notifier, logger)
	checker.grace = 0

	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, checker.Run())
	assert.Equal(t, []string{"1"}, notifier.jobIDs)

	// A second sweep must not re-alert the same job.
	require.NoError(t, checker.Run())
	assert.Equal(t, []string{"1"}, notifier.jobIDs)
}

func TestStaleCheckerIgnoresPending(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	runner := testutil.NewFakeRunner()
	client := slurm.NewClientWithRunner(logger, runner, time.Second)
	reg := registry.NewJobRegistry(client, logger)

	desc := types.DefaultTrialDescriptor()
	desc.Walltime = "00:00:01"
	_, err := reg.Register("", "1", desc, types.DefaultTrialWorkload())
	require.NoError(t, err)

	notifier := &staleRecorder{}
	checker := NewStaleChecker(reg, notifier, logger)
	checker.grace = 0

	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, checker.Run())
	assert.Empty(t, notifier.jobIDs, "queued jobs accrue no wall-clock time")
}

type staleRecorder struct {
	jobIDs []string
}

func (r *staleRecorder) NotifyJobState(*types.SubmittedJob) {}

func (r *staleRecorder) NotifyStaleJob(job *types.SubmittedJob, _ time.Duration) {
	r.jobIDs = append(r.jobIDs, job.JobID)
}
