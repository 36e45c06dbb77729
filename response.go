// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comform

import (
	"sync"
	"time"
)

// response is what a completed call resolves to: either a value or an error,
// never both.
type response struct {
	value any
	err   error
}

// pendingCall is the wait point for one outstanding call id.
type pendingCall struct {
	mu    sync.Mutex
	ready bool
	value response
	done  chan struct{}
}

// responseTable is the client's record of outstanding and completed calls,
// keyed by call id. It is the shared state behind Execute's blocking mode
// and the TryResponse/WaitResponse non-blocking pair.
type responseTable struct {
	mu      sync.Mutex
	entries map[string]*pendingCall
	closed  <-chan struct{}
}

func newResponseTable(closed <-chan struct{}) *responseTable {
	return &responseTable{entries: map[string]*pendingCall{}, closed: closed}
}

// register creates the wait point for id. It must be called before the call
// is handed to the worker loop, so deliver can never race ahead of it.
func (t *responseTable) register(id string) *pendingCall {
	p := &pendingCall{done: make(chan struct{})}
	t.mu.Lock()
	t.entries[id] = p
	t.mu.Unlock()
	return p
}

// deliver completes the call id with resp. Calls with no registered entry
// (already retrieved, or never enqueued) are silently dropped.
func (t *responseTable) deliver(id string, resp response) {
	t.mu.Lock()
	p, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return
	}
	p.mu.Lock()
	p.value = resp
	p.ready = true
	p.mu.Unlock()
	close(p.done)
}

// abandon completes id with ErrSessionClosed. Nothing in the client calls it:
// on shutdown, blocked waiters are released by waitTake watching the
// session's closed channel instead.
func (t *responseTable) abandon(id string) {
	t.deliver(id, response{err: ErrSessionClosed})
}

// tryTake returns the response for id if it is ready, removing it from the
// table. The second return value is false if the call is unknown or not yet
// complete.
func (t *responseTable) tryTake(id string) (response, bool) {
	t.mu.Lock()
	p, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return response{}, false
	}
	p.mu.Lock()
	ready := p.ready
	val := p.value
	p.mu.Unlock()
	if !ready {
		return response{}, false
	}
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
	return val, true
}

// waitTake blocks until id completes, the session closes, or deadline
// passes (a zero deadline means no timeout). It removes the entry once
// retrieved.
func (t *responseTable) waitTake(id string, deadline time.Time) (response, error) {
	t.mu.Lock()
	p, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return response{}, ErrSessionClosed
	}

	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-p.done:
		if v, ok := t.tryTake(id); ok {
			return v, nil
		}
		return response{}, ErrSessionClosed
	case <-t.closed:
		return response{}, ErrSessionClosed
	case <-timeoutCh:
		return response{}, ErrTimeout
	}
}
