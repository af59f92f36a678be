package backend

import "sync"

// submission pairs an intent with an optional reply channel so that
// Submit callers receive the serialized transition result synchronously.
// reply is nil for fire-and-forget producers (player callbacks, OS notices).
type submission struct {
	intent Intent
	reply  chan error

	// fn, when set, is a session-lifecycle operation executed by the event
	// loop in place of an intent, keeping it ordered against all other events.
	fn func() error
}

// eventQueue is an unbounded FIFO feeding the coordinator's single event
// loop. All producers enqueue; only the loop drains. Ordering is strictly
// arrival order with no coalescing.
type eventQueue struct {
	mutex     sync.Mutex
	queue     []submission
	available *sync.Cond
	nextChan  chan submission
	closed    bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{nextChan: make(chan submission)}
	q.available = sync.NewCond(&q.mutex)
	go q.chanWriter()
	return q
}

// C returns the channel the coordinator's event loop drains.
// It is closed after Close once the queue is empty.
func (q *eventQueue) C() <-chan submission {
	return q.nextChan
}

// Enqueue adds a fire-and-forget intent.
func (q *eventQueue) Enqueue(in Intent) {
	q.add(submission{intent: in})
}

// EnqueueWait adds an intent and returns a channel that receives the
// transition result once the event loop has applied it.
func (q *eventQueue) EnqueueWait(in Intent) <-chan error {
	reply := make(chan error, 1)
	if !q.add(submission{intent: in, reply: reply}) {
		reply <- ErrNoActiveSession
	}
	return reply
}

func (q *eventQueue) add(s submission) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return false
	}
	q.queue = append(q.queue, s)
	q.available.Signal()
	return true
}

// Close stops the queue. Pending submissions are still delivered in order;
// subsequent enqueues are dropped.
func (q *eventQueue) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.available.Signal()
}

func (q *eventQueue) chanWriter() {
	for {
		q.mutex.Lock()
		for len(q.queue) == 0 && !q.closed {
			q.available.Wait()
		}
		if len(q.queue) == 0 && q.closed {
			q.mutex.Unlock()
			close(q.nextChan)
			return
		}
		s := q.queue[0]
		copy(q.queue, q.queue[1:])
		q.queue = q.queue[:len(q.queue)-1]
		q.mutex.Unlock()
		q.nextChan <- s
	}
}
