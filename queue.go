package jobs

// AnyWorker is the worker selector for jobs that may run on any worker,
// including enabled backup workers.
const AnyWorker = -1

type (
	// TaskFunc is the body of a job, it receives the data it was submitted
	// with.
	TaskFunc func(data any)

	// job is copied by value into the queues, and is immutable once queued.
	job struct {
		fn     TaskFunc
		data   any
		signal *Signal
		// AnyWorker or an index into Scheduler.workers
		worker int
	}

	// stack is the LIFO used for job queues and ready fibers. It has no
	// synchronisation of its own, see Scheduler.queueMu.
	stack[T any] []T
)

func (x *stack[T]) push(v T) {
	*x = append(*x, v)
}

func (x *stack[T]) pop() (v T, ok bool) {
	n := len(*x)
	if n == 0 {
		return v, false
	}
	v = (*x)[n-1]
	var zero T
	(*x)[n-1] = zero
	*x = (*x)[:n-1]
	return v, true
}

func (x stack[T]) len() int {
	return len(x)
}
