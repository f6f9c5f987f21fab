// internal/process/adapter.go
package process

import "strconv"

// JobStatus represents the lifecycle state of a repair job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusSkipped   JobStatus = "skipped"
	JobStatusFailed    JobStatus = "failed"
)

const KindRegenerate = "regenerate_thumbnails"

// Job tracks one photo as it moves through a repair run.
type Job struct {
	ID       string
	Kind     string
	PhotoID  int64
	Filename string
	Status   JobStatus
	Error    string
}

func NewJob(kind string, photoID int64, filename string) *Job {
	return &Job{
		ID:       kind + "-" + strconv.FormatInt(photoID, 10),
		Kind:     kind,
		PhotoID:  photoID,
		Filename: filename,
		Status:   JobStatusPending,
	}
}

func MarkRunning(j *Job)   { j.Status = JobStatusRunning }
func MarkSucceeded(j *Job) { j.Status = JobStatusSucceeded }

func MarkSkipped(j *Job, reason string) {
	j.Status = JobStatusSkipped
	j.Error = reason
}

func MarkFailed(j *Job, err error) {
	j.Status = JobStatusFailed
	if err != nil {
		j.Error = err.Error()
	}
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	switch j.Status {
	case JobStatusSucceeded, JobStatusSkipped, JobStatusFailed:
		return true
	}
	return false
}
