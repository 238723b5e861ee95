package connection

import "sync"

// notifier runs listener calls one at a time, in the order they were
// posted, on its own goroutine.
type notifier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	done    chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{done: make(chan struct{})}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) post(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.pending = append(n.pending, fn)
	n.cond.Signal()
}

// close lets already posted calls finish, then stops the goroutine.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.cond.Signal()
	n.mu.Unlock()
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.pending) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.pending) == 0 {
			n.mu.Unlock()
			return
		}
		fn := n.pending[0]
		n.pending[0] = nil
		n.pending = n.pending[1:]
		n.mu.Unlock()

		fn()
	}
}
