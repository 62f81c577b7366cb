package sctp

import (
	"sync"
	"time"
)

// rtxTimerID identifies which of the association's retransmission timers
// fired, so a single timeout/failure callback can switch on it (spec.md
// §4.5).
type rtxTimerID int

const (
	timerT1Init rtxTimerID = iota
	timerT1Cookie
	timerT2Shutdown
	timerT3RTX
	timerReconfig
)

func (id rtxTimerID) String() string {
	switch id {
	case timerT1Init:
		return "T1-init"
	case timerT1Cookie:
		return "T1-cookie"
	case timerT2Shutdown:
		return "T2-shutdown"
	case timerT3RTX:
		return "T3-rtx"
	case timerReconfig:
		return "T-reconfig"
	default:
		return "unknown-timer"
	}
}

// maxInitRetrans bounds T1-init/T1-cookie backoff; T2/T3/T-reconfig retry
// without bound by default (spec.md §4.5).
const maxInitRetrans = 8

// rtxTimerObserver is implemented by the association; it receives timer
// fires and terminal failures.
type rtxTimerObserver interface {
	onRetransmissionTimeout(id rtxTimerID, nRtos uint)
	onRetransmissionFailure(id rtxTimerID)
}

// rtxTimer is a single-shot, exponential-backoff retransmission timer. Each
// start() schedules exactly one fire after rto*2^attempts; a start() call
// while already running replaces the pending fire (RFC 4960 restart
// semantics).
type rtxTimer struct {
	lock     sync.Mutex
	id       rtxTimerID
	observer rtxTimerObserver
	maxRetrans uint // 0 means unbounded

	timer    *time.Timer
	attempts uint
	running  bool
	closed   bool
}

func newRTXTimer(id rtxTimerID, observer rtxTimerObserver, maxRetrans uint) *rtxTimer {
	return &rtxTimer{id: id, observer: observer, maxRetrans: maxRetrans}
}

// start schedules a single fire after rto*2^attempts. Calling start while a
// fire is already pending cancels and reschedules it without resetting the
// attempt counter.
func (t *rtxTimer) start(rto time.Duration) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed {
		return false
	}
	if t.maxRetrans != 0 && t.attempts > t.maxRetrans {
		return false
	}

	if t.timer != nil {
		t.timer.Stop()
	}

	backoff := rto
	for i := uint(0); i < t.attempts && i < 30; i++ {
		backoff *= 2
	}

	t.running = true
	t.timer = time.AfterFunc(backoff, t.onFire)
	return true
}

func (t *rtxTimer) onFire() {
	t.lock.Lock()
	if t.closed || !t.running {
		t.lock.Unlock()
		return
	}
	t.attempts++
	attempts := t.attempts
	failed := t.maxRetrans != 0 && attempts > t.maxRetrans
	t.running = !failed
	id := t.id
	observer := t.observer
	t.lock.Unlock()

	if failed {
		observer.onRetransmissionFailure(id)
		return
	}
	observer.onRetransmissionTimeout(id, attempts)
}

// stop cancels any pending fire and resets the attempt counter.
func (t *rtxTimer) stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.running = false
	t.attempts = 0
}

// close permanently disables the timer; used during association teardown.
// A fire that takes the timer lock after close returns without calling the
// observer; an observer callback already in progress is not waited for.
func (t *rtxTimer) close() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.closed = true
	t.running = false
}

func (t *rtxTimer) isRunning() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.running
}

// ackTimerObserver is implemented by the association; onAckTimeout fires
// when the 200ms delayed-ack deferral expires.
type ackTimerObserver interface {
	onAckTimeout()
}

// ackTimer is the single-shot 200ms delayed-ack timer (spec.md §4.5).
const ackInterval = 200 * time.Millisecond

type ackTimer struct {
	lock     sync.Mutex
	observer ackTimerObserver
	timer    *time.Timer
	closed   bool
}

func newAckTimer(observer ackTimerObserver) *ackTimer {
	return &ackTimer{observer: observer}
}

func (t *ackTimer) start() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.closed {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(ackInterval, t.onFire)
	return true
}

func (t *ackTimer) onFire() {
	t.lock.Lock()
	if t.closed {
		t.lock.Unlock()
		return
	}
	observer := t.observer
	t.lock.Unlock()
	observer.onAckTimeout()
}

func (t *ackTimer) stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *ackTimer) close() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.closed = true
}
