package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"image-crawler/pkg/download"
	"image-crawler/pkg/models"
)

// JobStatus represents the current state of a download job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed" // rejected before any item was fetched
)

// Job is a point-in-time view of a background download job
type Job struct {
	ID           string                   `json:"id"`
	PageURL      string                   `json:"page_url,omitempty"`
	Destination  string                   `json:"destination"`
	Status       JobStatus                `json:"status"`
	StartedAt    time.Time                `json:"started_at"`
	CompletedAt  time.Time                `json:"completed_at,omitempty"`
	Completed    int                      `json:"completed"`
	Total        int                      `json:"total"`
	Succeeded    int                      `json:"succeeded"`
	Failed       int                      `json:"failed"`
	ErrorMessage string                   `json:"error_message,omitempty"`
	Failures     []models.DownloadOutcome `json:"failures,omitempty"`
}

type jobEntry struct {
	job    Job
	batch  *download.Batch // set once the batch is running
	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background download jobs. Live counters are read from each
// job's batch handle, so nothing polls the engine.
type JobManager struct {
	jobs map[string]*jobEntry
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*jobEntry),
	}
}

// CreateJob registers a pending job and returns its ID and the context its batch must run under
func (m *JobManager) CreateJob(pageURL, destination string) (string, context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	entry := &jobEntry{
		job: Job{
			ID:          uuid.New().String(),
			PageURL:     pageURL,
			Destination: destination,
			Status:      JobStatusPending,
			StartedAt:   time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	m.jobs[entry.job.ID] = entry
	return entry.job.ID, ctx
}

// Attach marks a pending job running and follows batch until it completes
func (m *JobManager) Attach(jobID string, batch *download.Batch) bool {
	m.mu.Lock()
	entry, exists := m.jobs[jobID]
	if !exists || entry.job.Status != JobStatusPending {
		m.mu.Unlock()
		return false
	}
	entry.batch = batch
	entry.job.Status = JobStatusRunning
	m.mu.Unlock()

	go func() {
		result := batch.Wait()
		m.complete(jobID, result)
	}()
	return true
}

func (m *JobManager) complete(jobID string, result models.BatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.jobs[jobID]
	if !exists || entry.job.Status != JobStatusRunning {
		return
	}
	entry.job.Status = JobStatusCompleted
	entry.job.CompletedAt = result.FinishedAt
	entry.job.Completed = result.Total()
	entry.job.Total = result.Total()
	entry.job.Succeeded = result.SuccessCount
	entry.job.Failed = result.FailureCount
	entry.job.Failures = result.Failures()
	entry.cancel()
}

// Fail records a pre-flight rejection. Only pending jobs can fail.
func (m *JobManager) Fail(jobID, errorMsg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.jobs[jobID]
	if !exists || entry.job.Status != JobStatusPending {
		return false
	}
	entry.job.Status = JobStatusFailed
	entry.job.CompletedAt = time.Now()
	entry.job.ErrorMessage = errorMsg
	entry.cancel()
	return true
}

// GetJob returns a snapshot of a job
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.jobs[jobID]
	if !exists {
		return Job{}, false
	}
	return entry.view(), true
}

// ListJobs returns snapshots of all jobs, oldest first
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, entry := range m.jobs {
		jobs = append(jobs, entry.view())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})
	return jobs
}

// CancelAll cancels the context of every unfinished job. Running batches drain and
// still complete with an outcome per item.
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.jobs {
		entry.cancel()
	}
}

// view must be called with the manager's lock held
func (e *jobEntry) view() Job {
	job := e.job
	if job.Status == JobStatusRunning && e.batch != nil {
		tally := e.batch.Tally()
		job.Completed = tally.Completed
		job.Total = tally.Total
		job.Succeeded = tally.Succeeded
		job.Failed = tally.Failed
	}
	job.Failures = append([]models.DownloadOutcome(nil), e.job.Failures...)
	return job
}
