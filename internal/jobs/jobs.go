// Package jobs tracks background fetch requests.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is a single background fetch. Read it through Snapshot.
type Job struct {
	mu sync.Mutex

	id        string
	seq       int
	symbol    string
	start     time.Time
	end       time.Time
	status    Status
	percent   int
	message   string
	total     int
	newly     int
	err       string
	createdAt time.Time
	updatedAt time.Time
}

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	ID          string    `json:"job_id"`
	Symbol      string    `json:"symbol"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Status      Status    `json:"status"`
	Percent     int       `json:"progress"`
	Message     string    `json:"message"`
	Total       int       `json:"articles_count"`
	NewlyCached int       `json:"new_articles"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Progress records fetch progress. It matches news.ProgressFunc.
func (j *Job) Progress(percent int, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusPending {
		j.status = StatusRunning
	}
	j.percent = percent
	j.message = message
	j.updatedAt = time.Now()
}

// Start marks the job as running.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.updatedAt = time.Now()
}

// Succeed marks the job as done with its article counts.
func (j *Job) Succeed(total, newlyCached int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusSucceeded
	j.percent = 100
	j.total = total
	j.newly = newlyCached
	j.updatedAt = time.Now()
}

// Fail marks the job as failed.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusFailed
	j.err = err.Error()
	j.updatedAt = time.Now()
}

// Snapshot returns a copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:          j.id,
		Symbol:      j.symbol,
		StartDate:   j.start.Format("2006-01-02"),
		EndDate:     j.end.Format("2006-01-02"),
		Status:      j.status,
		Percent:     j.percent,
		Message:     j.message,
		Total:       j.total,
		NewlyCached: j.newly,
		Error:       j.err,
		CreatedAt:   j.createdAt,
		UpdatedAt:   j.updatedAt,
	}
}

// Registry holds jobs keyed by generated id. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	seq  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create registers a pending job.
func (r *Registry) Create(symbol string, start, end time.Time) *Job {
	now := time.Now()
	j := &Job{
		id:        uuid.NewString(),
		symbol:    symbol,
		start:     start,
		end:       end,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}
	r.mu.Lock()
	r.seq++
	j.seq = r.seq
	r.jobs[j.id] = j
	r.mu.Unlock()
	return j
}

// Get returns the job with id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// List returns snapshots of all jobs, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].seq < jobs[k].seq })

	out := make([]Snapshot, len(jobs))
	for i, j := range jobs {
		out[i] = j.Snapshot()
	}
	return out
}

// Delete removes a job. It reports whether the job existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}
