package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/btq-lab/batch-watcher/pkg/calendar"
	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/btq-lab/batch-watcher/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type SlackService struct {
	logger     *logrus.Logger
	webhookURL string
	client     *http.Client
}

type SlackMessage struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Color  string  `json:"color,omitempty"`
	Text   string  `json:"text,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Footer string  `json:"footer,omitempty"`
	Ts     int64   `json:"ts,omitempty"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func NewSlackService(logger *logrus.Logger) (*SlackService, error) {
	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")
	if webhookURL == "" {
		return nil, fmt.Errorf("SLACK_WEBHOOK_URL environment variable is not set")
	}

	return &SlackService{
		logger:     logger,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// SendJobStateNotification posts a lifecycle update for a submitted
// job. Submission messages carry a calendar link for the allocation
// window; terminal messages carry the elapsed time and exit reason.
func (s *SlackService) SendJobStateNotification(job *types.SubmittedJob) error {
	title := cases.Title(language.English).String(strings.ReplaceAll(job.Descriptor.JobName, "_", " "))

	var color, icon, headline string
	switch job.State {
	case types.StatePending:
		color = "#439fe0"
		icon = "📬"
		headline = fmt.Sprintf("Job %s queued", job.JobID)
	case types.StateRunning:
		color = "#ffcc00"
		icon = "🏃"
		headline = fmt.Sprintf("Job %s dispatched", job.JobID)
	case types.StateCompleted:
		color = "#36a64f"
		icon = "✅"
		headline = fmt.Sprintf("Job %s completed", job.JobID)
	case types.StateTimeout:
		color = "#ff0000"
		icon = "⏰"
		headline = fmt.Sprintf("Job %s hit its wall-clock limit", job.JobID)
	case types.StateCancelled:
		color = "#808080"
		icon = "🚫"
		headline = fmt.Sprintf("Job %s cancelled", job.JobID)
	default:
		color = "#ff0000"
		icon = "❌"
		headline = fmt.Sprintf("Job %s failed", job.JobID)
	}

	fields := []Field{
		{Title: "Account", Value: job.Descriptor.Account, Short: true},
		{Title: "QOS", Value: job.Descriptor.QOS, Short: true},
		{Title: "Nodes", Value: fmt.Sprintf("%d", job.Descriptor.Nodes), Short: true},
		{Title: "Walltime", Value: job.Descriptor.Walltime, Short: true},
	}

	if job.State.Terminal() {
		fields = append(fields, Field{
			Title: "Elapsed",
			Value: utils.FormatDuration(job.UpdatedAt.Sub(job.SubmittedAt)),
			Short: true,
		})
		if job.Reason != "" {
			fields = append(fields, Field{Title: "Reason", Value: job.Reason, Short: true})
		}
	}

	var links []string
	if job.State == types.StatePending {
		if eventURL, err := calendar.CreateAllocationCalendarURL(job); err == nil {
			links = append(links, fmt.Sprintf("📅 <%s|Add allocation window to calendar>", eventURL))
		}
	}

	attachment := Attachment{
		Color:  color,
		Fields: fields,
		Footer: fmt.Sprintf("submission %s", job.SubmissionID),
		Ts:     job.UpdatedAt.Unix(),
	}
	if len(links) > 0 {
		attachment.Text = strings.Join(links, "\n")
	}

	message := &SlackMessage{
		Text:        fmt.Sprintf("%s %s: %s", icon, title, headline),
		Attachments: []Attachment{attachment},
	}

	return s.send(message)
}

// SendStaleJobAlert warns about a job still reported as running past
// its declared wall-clock budget.
func (s *SlackService) SendStaleJobAlert(job *types.SubmittedJob, overBy time.Duration) error {
	message := &SlackMessage{
		Text: fmt.Sprintf("⚠️ Job %s (%s) is %s past its wall-clock limit of %s and still not terminal",
			job.JobID, job.Descriptor.JobName, utils.FormatDuration(overBy), job.Descriptor.Walltime),
		Attachments: []Attachment{{
			Color: "#ff0000",
			Fields: []Field{
				{Title: "Account", Value: job.Descriptor.Account, Short: true},
				{Title: "State", Value: string(job.State), Short: true},
				{Title: "Submitted", Value: job.SubmittedAt.Format(time.RFC1123), Short: true},
			},
			Footer: fmt.Sprintf("submission %s", job.SubmissionID),
			Ts:     time.Now().Unix(),
		}},
	}

	return s.send(message)
}

// SendText posts a bare text message.
func (s *SlackService) SendText(text string) error {
	return s.send(&SlackMessage{Text: text})
}

func (s *SlackService) send(message *SlackMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	s.logger.Debug("Slack notification sent")
	return nil
}
