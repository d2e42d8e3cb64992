package calendar

import (
	"fmt"
	"net/url"
	"time"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/btq-lab/batch-watcher/pkg/utils"
)

type CalendarService struct{}

func NewCalendarService() *CalendarService {
	return &CalendarService{}
}

func (s *CalendarService) CreateEventURL(title, description string, startTime, endTime time.Time, location string) (string, error) {
	if title == "" {
		return "", fmt.Errorf("title cannot be empty")
	}

	if endTime.Before(startTime) {
		return "", fmt.Errorf("end time cannot be before start time")
	}

	if startTime.Equal(endTime) {
		return "", fmt.Errorf("start time and end time cannot be the same")
	}

	start := startTime.UTC().Format("20060102T150405Z")
	end := endTime.UTC().Format("20060102T150405Z")

	u := url.URL{
		Scheme: "https",
		Host:   "calendar.google.com",
		Path:   "calendar/render",
	}

	params := url.Values{}
	params.Add("action", "TEMPLATE")
	params.Add("text", title)
	params.Add("details", description)
	params.Add("dates", fmt.Sprintf("%s/%s", start, end))
	params.Add("location", location)

	u.RawQuery = params.Encode()

	return u.String(), nil
}

// CreateAllocationEvent builds a calendar link covering the job's
// allocation window: submit time through submit time + walltime.
func (s *CalendarService) CreateAllocationEvent(job *types.SubmittedJob) (string, error) {
	if job == nil {
		return "", fmt.Errorf("job cannot be nil")
	}

	if job.Descriptor.JobName == "" {
		return "", fmt.Errorf("job name cannot be empty")
	}

	walltime, err := utils.ParseWalltime(job.Descriptor.Walltime)
	if err != nil {
		return "", fmt.Errorf("invalid walltime for job %s: %w", job.JobID, err)
	}

	title := fmt.Sprintf("%s allocation (job %s)", job.Descriptor.JobName, job.JobID)
	description := fmt.Sprintf("Job: %s\nAccount: %s\nQOS: %s\nNodes: %d\nWalltime: %s",
		job.Descriptor.JobName, job.Descriptor.Account, job.Descriptor.QOS,
		job.Descriptor.Nodes, job.Descriptor.Walltime)

	endTime := job.SubmittedAt.Add(walltime)

	return s.CreateEventURL(title, description, job.SubmittedAt, endTime, job.Descriptor.Constraint)
}

func CreateAllocationCalendarURL(job *types.SubmittedJob) (string, error) {
	service := NewCalendarService()
	return service.CreateAllocationEvent(job)
}
