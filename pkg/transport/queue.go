package transport

import "sync"

// serialQueue runs tasks one at a time in submission order. Push never
// blocks, so the read loop can always make progress.
type serialQueue struct {
	mu     sync.Mutex
	tasks  []func()
	signal chan struct{}
}

func newSerialQueue() *serialQueue {
	return &serialQueue{signal: make(chan struct{}, 1)}
}

func (q *serialQueue) push(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// run drains tasks until done is closed. Tasks still queued at that point
// are dropped.
func (q *serialQueue) run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-q.signal:
		}

		for {
			q.mu.Lock()
			if len(q.tasks) == 0 {
				q.mu.Unlock()
				break
			}
			task := q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
			q.mu.Unlock()

			select {
			case <-done:
				return
			default:
			}
			task()
		}
	}
}
