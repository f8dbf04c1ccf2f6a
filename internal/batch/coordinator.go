// internal/batch/coordinator.go - Prefetch job coordination
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akkana/pytopo/internal"
)

// RunnerFactory builds the runner for a job's source, or fails when
// the source does not exist or cannot be prefetched.
type RunnerFactory func(source string) (Runner, error)

// Coordinator tracks prefetch jobs and runs them asynchronously, one
// goroutine per job.
type Coordinator struct {
	jobs     map[string]*Job
	cancels  map[string]context.CancelFunc
	runnerFn RunnerFactory
	reporter Reporter
	mutex    sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCoordinator creates a coordinator. The reporter may be nil.
func NewCoordinator(runnerFn RunnerFactory, reporter Reporter) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		jobs:     make(map[string]*Job),
		cancels:  make(map[string]context.CancelFunc),
		runnerFn: runnerFn,
		reporter: reporter,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SubmitJob validates a job and starts it in the background.
func (c *Coordinator) SubmitJob(job *Job) error {
	if job.ID == "" {
		return internal.NewError(internal.ErrorCodeConfig, "job ID is required", nil)
	}
	if err := c.validateJob(job); err != nil {
		return err
	}

	runner, err := c.runnerFn(job.Source)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	if _, exists := c.jobs[job.ID]; exists {
		c.mutex.Unlock()
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("job %s already exists", job.ID), nil)
	}
	job.mu.Lock()
	job.Status = JobStatusPending
	job.CreatedAt = time.Now()
	job.mu.Unlock()
	c.jobs[job.ID] = job

	jobCtx, jobCancel := context.WithTimeout(c.ctx, job.Config.Timeout)
	c.cancels[job.ID] = jobCancel
	c.mutex.Unlock()

	go func() {
		defer jobCancel()
		err := runner.Process(jobCtx, job)

		if c.reporter != nil {
			if err != nil {
				c.reporter.ReportJobFailed(job, err)
			} else {
				c.reporter.ReportJobComplete(job)
			}
		}

		c.mutex.Lock()
		delete(c.cancels, job.ID)
		c.mutex.Unlock()
	}()

	return nil
}

// GetJob retrieves a job by its ID.
func (c *Coordinator) GetJob(id string) (*Job, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	job, exists := c.jobs[id]
	if !exists {
		return nil, internal.NewError(internal.ErrorCodeNotFound,
			fmt.Sprintf("job %s not found", id), nil)
	}
	return job, nil
}

// CancelJob stops a running or pending job.
func (c *Coordinator) CancelJob(id string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	job, exists := c.jobs[id]
	if !exists {
		return internal.NewError(internal.ErrorCodeNotFound,
			fmt.Sprintf("job %s not found", id), nil)
	}
	if job.IsComplete() {
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("job %s is already complete", id), nil)
	}
	if cancel, ok := c.cancels[id]; ok {
		cancel()
	}
	return nil
}

// ListJobs returns every job the coordinator knows about.
func (c *Coordinator) ListJobs() []*Job {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	jobs := make([]*Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// Shutdown cancels everything still running.
func (c *Coordinator) Shutdown() {
	c.cancel()
}

func (c *Coordinator) validateJob(job *Job) error {
	if job.Source == "" {
		return internal.NewError(internal.ErrorCodeConfig, "job source is required", nil)
	}
	if job.Config == nil {
		return internal.NewError(internal.ErrorCodeConfig, "job configuration is required", nil)
	}
	if job.Config.Concurrency <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "concurrency must be positive", nil)
	}
	if job.Config.ChunkSize <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "chunk size must be positive", nil)
	}
	if job.Config.Timeout <= 0 {
		return internal.NewError(internal.ErrorCodeConfig, "timeout must be positive", nil)
	}
	if job.MinZoom > job.MaxZoom {
		return internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("min zoom (%d) cannot be greater than max zoom (%d)", job.MinZoom, job.MaxZoom), nil)
	}
	if job.Box.Empty() {
		return internal.NewError(internal.ErrorCodeDegenerate, "prefetch area is empty", nil)
	}
	return nil
}
