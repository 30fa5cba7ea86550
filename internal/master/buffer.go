package master

import (
	"sync"

	"tuesearch/internal/model"
)

// jobBuffer holds jobs already reserved in the database but not yet
// handed to a worker, so most reserve requests are served without
// touching the frontier.
type jobBuffer struct {
	mu   sync.Mutex
	jobs []model.JobDescriptor
}

// take removes and returns up to n jobs from the front of the buffer.
func (b *jobBuffer) take(n int) []model.JobDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > len(b.jobs) {
		n = len(b.jobs)
	}
	if n <= 0 {
		return nil
	}
	out := make([]model.JobDescriptor, n)
	copy(out, b.jobs[:n])
	b.jobs = b.jobs[n:]
	return out
}

// put appends freshly reserved jobs to the buffer.
func (b *jobBuffer) put(jobs []model.JobDescriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs = append(b.jobs, jobs...)
}

// size returns the number of buffered jobs.
func (b *jobBuffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// drain empties the buffer and returns the ids of everything it held.
// Used on shutdown to release reservations the master still owns.
func (b *jobBuffer) drain() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]int64, len(b.jobs))
	for i, j := range b.jobs {
		ids[i] = j.ID
	}
	b.jobs = nil
	return ids
}
