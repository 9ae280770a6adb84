package dispatch

import "sync"

// outputLock is a FIFO ticket lock guarding one output's driver calls.
// Waiters are served strictly in the order they called acquire.
type outputLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64

	// epoch counts commands executed under the lock. A timer armed at
	// epoch e may only switch the output off while epoch is still e.
	// Guarded by holding the ticket.
	epoch uint64
}

func newOutputLock() *outputLock {
	l := &outputLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// acquire blocks until every earlier caller has released.
func (l *outputLock) acquire() {
	l.mu.Lock()
	ticket := l.next
	l.next++
	for ticket != l.serving {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

func (l *outputLock) release() {
	l.mu.Lock()
	l.serving++
	l.mu.Unlock()
	l.cond.Broadcast()
}

// waiting returns the number of holders and waiters.
func (l *outputLock) waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.next - l.serving)
}
