// Package queue implements the Job Queue: an ordered, mutex-guarded
// sequence of pending Jobs. Ordering is submission order; no priorities.
package queue

import (
	"sync"

	"github.com/bigdatacesga/scheduler/internal/model"
)

// Queue is a FIFO-ordered sequence of pending Jobs, safe for concurrent
// use from the admission path (Append) and the offer path (Pending,
// Claim, Release, Remove).
//
// claimed tracks jobs a goroutine is currently attempting to place but
// has not yet committed: it exists so two offers handled concurrently
// can never both place the same job, without requiring the job to leave
// the queue (and risk being lost) before its placement actually
// succeeds.
type Queue struct {
	mu      sync.Mutex
	items   []*model.Job
	claimed map[*model.Job]bool
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{claimed: map[*model.Job]bool{}}
}

// Append wraps each node as a Job and marks it queued, appending the
// resulting jobs to the tail of the queue in submission order.
func (q *Queue) Append(nodes []*model.Node) []*model.Job {
	jobs := make([]*model.Job, 0, len(nodes))
	for _, n := range nodes {
		n.Status = model.NodeQueued
		jobs = append(jobs, model.JobFromNode(n))
	}

	q.mu.Lock()
	q.items = append(q.items, jobs...)
	q.mu.Unlock()

	return jobs
}

// Remove removes job from the queue by pointer identity once its
// placement has fully succeeded (spec.md §4.6 step i: the job leaves the
// queue only after a successful launch). A no-op if job is not present.
func (q *Queue) Remove(job *model.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, job)
	for i, j := range q.items {
		if j == job {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Claim marks job as being attempted by the caller and reports whether
// the claim succeeded. Two offers handled concurrently may both see the
// same job in their Pending snapshot; whichever calls Claim first
// proceeds to place it, and the other observes false and must skip it
// rather than place it a second time. Claim also fails for a job that is
// no longer in the queue (already Removed by another offer). Claim does
// not remove job from the queue, so a failed placement can Release it
// back without losing it.
func (q *Queue) Claim(job *model.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimed[job] {
		return false
	}
	for _, j := range q.items {
		if j == job {
			q.claimed[job] = true
			return true
		}
	}
	return false
}

// Release undoes a Claim after a failed placement attempt, leaving job
// in the queue for a later offer to retry (spec.md §7's ResourceError
// policy: "job remains in queue for retry on next offer").
func (q *Queue) Release(job *model.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, job)
}

// Pending returns a snapshot of the jobs currently queued and not
// claimed by another in-flight offer. Readers must not observe
// concurrent mutation, so the caller may iterate this slice freely while
// other goroutines Append/Claim/Release/Remove.
func (q *Queue) Pending() []*model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.Job, 0, len(q.items))
	for _, j := range q.items {
		if !q.claimed[j] {
			out = append(out, j)
		}
	}
	return out
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
