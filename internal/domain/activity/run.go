package activity

import "time"

// RunStatus is the lifecycle state of a pipeline run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one execution of the pipeline
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	Source     string
	Cleaning   CleaningMetrics
	Error      string
}

// Finish marks the run as done at t, failed when err is non-nil
func (r *Run) Finish(t time.Time, err error) {
	r.FinishedAt = &t
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunSucceeded
	r.Error = ""
}

// Duration is zero until the run has finished
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
