package dispatcher

import "github.com/JakeFAU/link-archiver/internal/archive"

// Backlog holds pending jobs. Jobs are removed from the end, so the last job
// loaded is the first handed out.
type Backlog struct {
	jobs []archive.Job
}

// NewBacklog copies jobs into a new Backlog.
func NewBacklog(jobs []archive.Job) *Backlog {
	return &Backlog{jobs: append([]archive.Job(nil), jobs...)}
}

// Pop removes and returns the last job.
func (b *Backlog) Pop() (archive.Job, bool) {
	if len(b.jobs) == 0 {
		return archive.Job{}, false
	}
	last := len(b.jobs) - 1
	job := b.jobs[last]
	b.jobs = b.jobs[:last]
	return job, true
}

// Len reports the number of pending jobs.
func (b *Backlog) Len() int {
	return len(b.jobs)
}
