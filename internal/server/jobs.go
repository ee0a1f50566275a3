package server

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boscokante/piano-midi-transcription/internal/pipeline"
	"github.com/boscokante/piano-midi-transcription/internal/workspace"
)

// Job status constants
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
)

// Job represents a transcription job. The fixed fields are set before
// processing starts; the mutable state is written by the processing
// goroutine and read by handlers, so it lives behind the mutex.
type Job struct {
	ID        string
	Filename  string
	InputPath string
	Workspace *workspace.Workspace
	Updates   chan string
	CreatedAt time.Time

	mu     sync.RWMutex
	status JobStatus
	stage  string
	errMsg string
	result *pipeline.Result
}

// Status returns the job's current status
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Stage returns the current stage description
func (j *Job) Stage() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stage
}

// Err returns the failure message, if any
func (j *Job) Err() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.errMsg
}

// Result returns the pipeline result once the job is complete
func (j *Job) Result() *pipeline.Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

func (j *Job) setStatus(s JobStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *Job) setStage(stage string) {
	j.mu.Lock()
	j.stage = stage
	j.mu.Unlock()
}

func (j *Job) complete(res *pipeline.Result, stage string) {
	j.mu.Lock()
	j.result = res
	j.status = StatusComplete
	j.stage = stage
	j.mu.Unlock()
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	j.status = StatusFailed
	j.errMsg = err.Error()
	j.mu.Unlock()
}

// jobObserver forwards pipeline progress into the job's update channel
type jobObserver struct {
	job *Job
}

func (o jobObserver) Stage(name, description string) {
	o.job.setStage(description)
	o.job.Updates <- description
}

func (o jobObserver) Info(format string, args ...any) {
	o.job.Updates <- fmt.Sprintf(format, args...)
}

// JobManager manages transcription jobs
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	pipeline *pipeline.Pipeline
	ttl      time.Duration
}

// NewJobManager creates a new job manager
func NewJobManager(p *pipeline.Pipeline, ttl time.Duration) *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		pipeline: p,
		ttl:      ttl,
	}
}

// Create creates a new job with an isolated workspace
func (m *JobManager) Create() (*Job, error) {
	ws, err := workspace.Create()
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.NewString(),
		Workspace: ws,
		Updates:   make(chan string, 16),
		CreatedAt: time.Now(),
		status:    StatusPending,
		stage:     "Uploading...",
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	return job, nil
}

// Get retrieves a job by ID
func (m *JobManager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Discard removes a job whose upload never made it to processing,
// reclaiming its workspace immediately.
func (m *JobManager) Discard(job *Job) {
	close(job.Updates)
	job.Workspace.Cleanup()

	m.mu.Lock()
	delete(m.jobs, job.ID)
	m.mu.Unlock()
}

// Process runs the transcription pipeline for a job
func (m *JobManager) Process(job *Job) {
	defer close(job.Updates)
	defer func() {
		// Reclaim the workspace and forget the job after the TTL
		time.AfterFunc(m.ttl, func() {
			os.RemoveAll(job.Workspace.Dir)
			m.mu.Lock()
			delete(m.jobs, job.ID)
			m.mu.Unlock()
		})
	}()

	job.setStatus(StatusProcessing)

	result, err := m.pipeline.Run(context.Background(), job.Workspace, job.InputPath, jobObserver{job})
	if err != nil {
		job.fail(err)
		job.Updates <- fmt.Sprintf("Error: %s", err)
		return
	}

	job.complete(result, "Complete!")
	job.Updates <- "Complete!"
}
