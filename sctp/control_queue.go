package sctp

import "sync"

// controlQueue is the outbound control-packet FIFO (spec.md §3): fully
// formed packets (INIT, INIT-ACK, COOKIE-ECHO, COOKIE-ACK, ABORT, ...) that
// bypass congestion control and go out before any data in the gather order
// (spec.md §4.2).
type controlQueue struct {
	lock    sync.Mutex
	packets [][]byte
}

func newControlQueue() *controlQueue {
	return &controlQueue{}
}

func (q *controlQueue) push(raw []byte) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.packets = append(q.packets, raw)
}

func (q *controlQueue) popAll() [][]byte {
	q.lock.Lock()
	defer q.lock.Unlock()
	p := q.packets
	q.packets = nil
	return p
}

func (q *controlQueue) size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.packets)
}
