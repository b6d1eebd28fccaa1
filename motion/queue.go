package motion

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/tcolgate/motioncam/frame"
)

// ErrQueueClosed is returned by Pop once the queue is closed and drained.
var ErrQueueClosed = errors.New("key frame queue closed")

// KeyFrameRecord is a frame that contained motion, with its sequence number.
type KeyFrameRecord struct {
	Seq   uint64
	Frame *frame.Frame
}

// Queue is an unbounded FIFO of key frames. Push never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []KeyFrameRecord
	closed bool
	ready  chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Push appends rec. It reports false if the queue is already closed.
func (q *Queue) Push(rec KeyFrameRecord) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, rec)
	q.mu.Unlock()
	q.signal()
	return true
}

// TryPop removes the oldest record without waiting.
func (q *Queue) TryPop() (KeyFrameRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return KeyFrameRecord{}, false
	}
	rec := q.items[0]
	q.items[0] = KeyFrameRecord{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return rec, true
}

// Pop waits for the oldest record. It returns ErrQueueClosed once the queue
// is closed and empty, or the context error.
func (q *Queue) Pop(ctx context.Context) (KeyFrameRecord, error) {
	for {
		if rec, ok := q.TryPop(); ok {
			return rec, nil
		}
		q.mu.Lock()
		closed := q.closed && len(q.items) == 0
		q.mu.Unlock()
		if closed {
			return KeyFrameRecord{}, ErrQueueClosed
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return KeyFrameRecord{}, ctx.Err()
		}
	}
}

// Close stops further pushes. Records already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
