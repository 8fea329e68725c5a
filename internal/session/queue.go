package session

import (
	"sync"

	"github.com/allbin/serialterm/internal/stream"
)

// queue hands events to the consumer in order without ever blocking the
// producer. A state transition can therefore be published from any
// goroutine, including the one that drains the events channel.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []stream.Event
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(evs ...stream.Event) {
	if len(evs) == 0 {
		return
	}
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, evs...)
		q.cond.Signal()
	}
	q.mu.Unlock()
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
}

// run forwards queued events to out and closes out once the queue is closed
// and empty.
func (q *queue) run(out chan<- stream.Event) {
	defer close(out)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		ev := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		out <- ev
	}
}
