// internal/batch/types.go - Prefetch job types
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akkana/pytopo/pkg/geo"
)

// Job is one prefetch request: download every tile of one source
// covering a bounding box across a zoom range, so the area works
// offline later. Status, Progress and Err are written by the runner's
// goroutine under mu; other goroutines read them through Snapshot,
// IsComplete and Failure rather than touching the fields.
type Job struct {
	ID          string           `json:"id"`
	Source      string           `json:"source"`
	Box         geo.BoundingBox  `json:"box"`
	MinZoom     int              `json:"min_zoom"`
	MaxZoom     int              `json:"max_zoom"`
	Config      *JobConfig       `json:"config"`
	Status      JobStatus        `json:"status"`
	Progress    *JobProgress     `json:"progress"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Err         error            `json:"-"`

	mu sync.Mutex
}

// JobConfig contains the tunables for one prefetch job.
type JobConfig struct {
	Concurrency int           `json:"concurrency"`
	ChunkSize   int           `json:"chunk_size"`
	Timeout     time.Duration `json:"timeout"`
	Force       bool          `json:"force"`
	FailFast    bool          `json:"fail_fast"`
}

// JobStatus represents the current state of a prefetch job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

func (s JobStatus) String() string {
	return string(s)
}

// JobProgress tracks how far a prefetch job has come. Skipped tiles
// were already fresh in the cache; failed ones could not be fetched.
type JobProgress struct {
	TotalTiles     int64      `json:"total_tiles"`
	ProcessedTiles int64      `json:"processed_tiles"`
	FetchedTiles   int64      `json:"fetched_tiles"`
	SkippedTiles   int64      `json:"skipped_tiles"`
	FailedTiles    int64      `json:"failed_tiles"`
	CurrentChunk   int        `json:"current_chunk"`
	TotalChunks    int        `json:"total_chunks"`
	StartTime      time.Time  `json:"start_time"`
	EstimatedEnd   *time.Time `json:"estimated_end,omitempty"`
	Throughput     float64    `json:"throughput"` // tiles per second
}

// Runner executes a prefetch job against one map source.
type Runner interface {
	Process(ctx context.Context, job *Job) error
}

// Reporter receives progress callbacks while a job runs.
type Reporter interface {
	ReportProgress(job *Job)
	ReportJobComplete(job *Job)
	ReportJobFailed(job *Job, err error)
}

// NewJob creates a pending prefetch job with a fresh ID.
func NewJob(source string, box geo.BoundingBox, minZoom, maxZoom int, config *JobConfig) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Source:    source,
		Box:       box,
		MinZoom:   minZoom,
		MaxZoom:   maxZoom,
		Config:    config,
		Status:    JobStatusPending,
		Progress:  NewJobProgress(),
		CreatedAt: time.Now(),
	}
}

// NewJobConfig creates a job configuration with default values.
func NewJobConfig() *JobConfig {
	return &JobConfig{
		Concurrency: 4,
		ChunkSize:   64,
		Timeout:     30 * time.Minute,
	}
}

// NewJobProgress creates an empty progress tracker.
func NewJobProgress() *JobProgress {
	return &JobProgress{StartTime: time.Now()}
}

// IsComplete returns true once the job has finished for any reason.
func (j *Job) IsComplete() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCanceled
}

// IsRunning returns true while the job is being processed.
func (j *Job) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status == JobStatusRunning
}

// Snapshot returns the status and a copy of the progress, consistent
// with each other. Pollers use this while the runner is writing.
func (j *Job) Snapshot() (JobStatus, JobProgress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status, *j.Progress
}

// Failure returns the error a failed or canceled job finished with.
func (j *Job) Failure() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Err
}

// CalculateProgress returns the completion percentage.
func (p *JobProgress) CalculateProgress() float64 {
	if p.TotalTiles == 0 {
		return 0
	}
	return float64(p.ProcessedTiles) / float64(p.TotalTiles) * 100
}

// UpdateThroughput recomputes tiles per second from elapsed time.
func (p *JobProgress) UpdateThroughput() {
	elapsed := time.Since(p.StartTime)
	if elapsed.Seconds() > 0 && p.ProcessedTiles > 0 {
		p.Throughput = float64(p.ProcessedTiles) / elapsed.Seconds()
	}
}

// EstimateCompletion projects the finish time from current throughput.
func (p *JobProgress) EstimateCompletion() time.Time {
	if p.Throughput == 0 {
		return time.Now().Add(time.Hour)
	}
	remaining := p.TotalTiles - p.ProcessedTiles
	if remaining <= 0 {
		return time.Now()
	}
	return time.Now().Add(time.Duration(float64(remaining)/p.Throughput) * time.Second)
}
