// Package slurm drives the cluster scheduler through its command-line
// tools: sbatch for submission, squeue and sacct for state, scancel
// for cancellation.
package slurm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/sirupsen/logrus"
)

// ErrSchedulerUnavailable is returned when sbatch cannot be found on
// PATH. The watcher still runs; only submission is degraded.
var ErrSchedulerUnavailable = errors.New("scheduler not available: sbatch not found")

// ErrJobNotFound is returned when neither squeue nor sacct knows the
// job id.
var ErrJobNotFound = errors.New("job not found")

// Runner executes one scheduler command. Tests swap in a fake.
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", name, msg)
	}
	return stdout.String(), nil
}

// Info describes the detected scheduler installation.
type Info struct {
	Binary    string `json:"binary,omitempty"`
	Available bool   `json:"available"`
}

type Client struct {
	runner  Runner
	logger  *logrus.Logger
	timeout time.Duration
}

func NewClient(logger *logrus.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		runner:  execRunner{},
		logger:  logger,
		timeout: timeout,
	}
}

// NewClientWithRunner is used by tests to inject a fake runner.
func NewClientWithRunner(logger *logrus.Logger, runner Runner, timeout time.Duration) *Client {
	c := NewClient(logger, timeout)
	c.runner = runner
	return c
}

// Detect probes PATH for the submission binary.
func (c *Client) Detect() Info {
	path, err := exec.LookPath("sbatch")
	if err != nil {
		c.logger.Warn("sbatch not found on PATH, running in watch-only mode")
		return Info{Available: false}
	}
	c.logger.Debugf("Scheduler binary: %s", path)
	return Info{Binary: path, Available: true}
}

// Submit feeds a rendered batch script to sbatch and returns the job
// id the scheduler assigned. No retries: a failed submission surfaces
// as an error (spelled out by sbatch's stderr).
func (c *Client) Submit(ctx context.Context, scriptText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.runner.Run(ctx, scriptText, "sbatch", "--parsable")
	if err != nil {
		return "", fmt.Errorf("submission failed: %w", err)
	}

	jobID := parseSubmitOutput(out)
	if jobID == "" {
		return "", fmt.Errorf("submission returned no job id (output %q)", strings.TrimSpace(out))
	}

	c.logger.WithField("job_id", jobID).Info("Job submitted")
	return jobID, nil
}

// Status asks squeue for a live job and falls back to sacct once the
// job has left the queue.
func (c *Client) Status(ctx context.Context, jobID string) (types.JobState, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.runner.Run(ctx, "", "squeue", "--noheader", "--jobs", jobID, "--format", "%T|%r")
	if err == nil {
		if state, reason, ok := parseSqueueOutput(out); ok {
			return state, reason, nil
		}
	} else {
		c.logger.Debugf("squeue lookup for %s failed, trying sacct: %v", jobID, err)
	}

	out, err = c.runner.Run(ctx, "", "sacct", "--noheader", "--parsable2",
		"--jobs", jobID, "--format", "State,ExitCode", "--allocations")
	if err != nil {
		return types.StateUnknown, "", fmt.Errorf("status lookup for job %s failed: %w", jobID, err)
	}

	state, reason, ok := parseSacctOutput(out)
	if !ok {
		return types.StateUnknown, "", fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return state, reason, nil
}

// Cancel issues scancel for the job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.runner.Run(ctx, "", "scancel", jobID); err != nil {
		return fmt.Errorf("cancel of job %s failed: %w", jobID, err)
	}
	c.logger.WithField("job_id", jobID).Info("Job cancelled")
	return nil
}

// parseSubmitOutput handles sbatch --parsable output: "jobid" or
// "jobid;cluster".
func parseSubmitOutput(out string) string {
	line := strings.TrimSpace(out)
	if line == "" {
		return ""
	}
	if i := strings.Index(line, ";"); i >= 0 {
		line = line[:i]
	}
	for _, r := range line {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return line
}

func parseSqueueOutput(out string) (types.JobState, string, bool) {
	line := strings.TrimSpace(out)
	if line == "" {
		return types.StateUnknown, "", false
	}
	state, reason, _ := strings.Cut(line, "|")
	if reason == "None" {
		reason = ""
	}
	return MapState(state), reason, true
}

func parseSacctOutput(out string) (types.JobState, string, bool) {
	line := strings.TrimSpace(out)
	if line == "" {
		return types.StateUnknown, "", false
	}
	// Only the first (allocation) record matters.
	if i := strings.Index(line, "\n"); i >= 0 {
		line = line[:i]
	}
	state, exitCode, _ := strings.Cut(line, "|")
	mapped := MapState(state)

	reason := ""
	if mapped == types.StateFailed && exitCode != "" {
		reason = "exit code " + exitCode
	}
	return mapped, reason, true
}

// MapState folds the scheduler's state vocabulary into ours.
func MapState(raw string) types.JobState {
	state := strings.ToUpper(strings.TrimSpace(raw))
	// sacct suffixes cancelled states with the requesting user.
	if strings.HasPrefix(state, "CANCELLED") {
		return types.StateCancelled
	}

	switch state {
	case "PENDING", "CONFIGURING", "REQUEUED", "SUSPENDED":
		return types.StatePending
	case "RUNNING", "COMPLETING", "STAGE_OUT":
		return types.StateRunning
	case "COMPLETED":
		return types.StateCompleted
	case "FAILED", "NODE_FAIL", "BOOT_FAIL", "OUT_OF_MEMORY", "PREEMPTED":
		return types.StateFailed
	case "TIMEOUT", "DEADLINE":
		return types.StateTimeout
	default:
		return types.StateUnknown
	}
}
