// internal/swm/queue.go
package swm

import "sync"

// commandQueue is the outbound FIFO. Clear starts a new generation; pushes
// made against an older generation are dropped.
type commandQueue struct {
	mu    sync.Mutex
	items []string
	gen   uint64
}

// PushAt appends items only if the queue has not been cleared since gen
func (q *commandQueue) PushAt(gen uint64, items ...string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return false
	}
	q.items = append(q.items, items...)
	return true
}

func (q *commandQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	item := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return item, true
}

func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *commandQueue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen
}

func (q *commandQueue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.gen++
	q.mu.Unlock()
}
