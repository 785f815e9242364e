package scheduler

import (
	"sync"

	"check-orchestrator/core/models"
)

// jobQueue holds queued jobs in FIFO order per category. FIFO is a tie-break
// within one category only; there is no cross-category ordering guarantee.
type jobQueue struct {
	mu    sync.Mutex
	byCat map[models.Category][]*jobState
}

func newJobQueue() *jobQueue {
	return &jobQueue{byCat: make(map[models.Category][]*jobState)}
}

// push appends a job to the tail of its category queue
func (q *jobQueue) push(cat models.Category, st *jobState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.byCat[cat] = append(q.byCat[cat], st)
}

// pushFront puts a job back at the head of its category queue, used when
// admission fails after the job was already taken off the queue.
func (q *jobQueue) pushFront(cat models.Category, st *jobState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.byCat[cat] = append([]*jobState{st}, q.byCat[cat]...)
}

// pop removes and returns the oldest queued job in the category, or nil
func (q *jobQueue) pop(cat models.Category) *jobState {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.byCat[cat]
	if len(jobs) == 0 {
		return nil
	}
	st := jobs[0]
	q.byCat[cat] = jobs[1:]
	return st
}

// remove takes a job out of its queue by id, returning it if it was queued
func (q *jobQueue) remove(id string) *jobState {
	q.mu.Lock()
	defer q.mu.Unlock()

	for cat, jobs := range q.byCat {
		for i, st := range jobs {
			if st.job.ID == id {
				q.byCat[cat] = append(jobs[:i], jobs[i+1:]...)
				return st
			}
		}
	}
	return nil
}

// depth returns the number of queued jobs across all categories
func (q *jobQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for _, jobs := range q.byCat {
		total += len(jobs)
	}
	return total
}
