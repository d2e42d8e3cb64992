package notifications

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// TestSlackManual posts against a real webhook. It only runs when
// SLACK_WEBHOOK_URL is set (directly or via .env.test two levels up).
func TestSlackManual(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	rootDir := filepath.Dir(filepath.Dir(wd))
	if err := godotenv.Load(filepath.Join(rootDir, ".env.test")); err != nil {
		t.Log("No .env.test file found, using environment variables")
	}

	if os.Getenv("SLACK_WEBHOOK_URL") == "" {
		t.Skip("SLACK_WEBHOOK_URL not set")
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	slack, err := NewSlackService(logger)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	job := &types.SubmittedJob{
		SubmissionID: "manual-test",
		JobID:        "424242",
		Descriptor:   types.DefaultTrialDescriptor(),
		Workload:     types.DefaultTrialWorkload(),
		State:        types.StatePending,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}

	if err := slack.SendJobStateNotification(job); err != nil {
		t.Fatalf("Failed to send notification: %v", err)
	}

	job.State = types.StateCompleted
	job.UpdatedAt = now.Add(8 * time.Minute)
	if err := slack.SendJobStateNotification(job); err != nil {
		t.Fatalf("Failed to send notification: %v", err)
	}
}
