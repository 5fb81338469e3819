package resolver

// taskQueue is the coordinator's model of its execution context: a FIFO of
// zero-delay work units posted and drained on the owning goroutine.
//
// Unlike a cross-goroutine queue there is no lock and no signal channel;
// the owner check in the coordinator's entry points guarantees post and
// drain never race. Tasks posted while draining run in the same drain, in
// post order.
type taskQueue struct {
	tasks []func()
}

// Post appends a unit of work.
func (q *taskQueue) Post(task func()) {
	q.tasks = append(q.tasks, task)
}

// RunUntilIdle runs queued tasks until none remain.
func (q *taskQueue) RunUntilIdle() {
	for len(q.tasks) > 0 {
		task := q.tasks[0]
		// Nil the slot so the task's captures are collectable.
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		task()
	}
}

// Len returns the number of queued tasks.
func (q *taskQueue) Len() int { return len(q.tasks) }

// Clear drops all queued work without running it.
func (q *taskQueue) Clear() { q.tasks = nil }
