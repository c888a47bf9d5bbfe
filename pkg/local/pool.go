package local

import "sync"

type Task func()

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	numWorkers int
	tasks      chan Task
	startOnce  sync.Once
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// NewPool creates a pool whose queue holds up to queueSize pending tasks.
// A non-positive queueSize defaults to numWorkers.
func NewPool(numWorkers int, queueSize ...int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	size := numWorkers
	if len(queueSize) > 0 && queueSize[0] > 0 {
		size = queueSize[0]
	}
	return &Pool{
		numWorkers: numWorkers,
		tasks:      make(chan Task, size),
	}
}

func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.numWorkers; i++ {
			p.wg.Go(func() {
				for task := range p.tasks {
					if task != nil {
						task()
					}
				}
			})
		}
	})
}

// Submit blocks until the task is queued. It panics after Close.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// TrySubmit queues the task only if there is room and reports whether it did.
func (p *Pool) TrySubmit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
