package protocol

import (
	"sync"
	"sync/atomic"
)

// Pending tracks in-flight requests by correlation ID and routes their
// responses. IDs are drawn from a counter that never repeats within the
// table's lifetime, so a late response to a retired ID can never be
// mistaken for the answer to a newer request.
type Pending struct {
	next      atomic.Uint64
	mu        sync.Mutex
	waiters   map[uint64]chan *Response
	observers map[uint64]func(float64)
	failed    error
}

// NewPending creates an empty table.
func NewPending() *Pending {
	return &Pending{
		waiters:   make(map[uint64]chan *Response),
		observers: make(map[uint64]func(float64)),
	}
}

// NextID mints a fresh correlation ID.
func (p *Pending) NextID() uint64 {
	return p.next.Add(1)
}

// Register records a waiter for id and returns the channel its terminal
// response is delivered on. The channel is buffered: Dispatch never blocks
// on a slow waiter. If the table has already failed, the failure response
// is delivered immediately.
func (p *Pending) Register(id uint64) <-chan *Response {
	ch := make(chan *Response, 1)

	p.mu.Lock()
	if p.failed != nil {
		failed := p.failed
		p.mu.Unlock()
		ch <- Failure(id, failed)
		return ch
	}
	p.waiters[id] = ch
	p.mu.Unlock()
	return ch
}

// Observe registers a progress callback for id. The callback runs on the
// dispatching goroutine.
func (p *Pending) Observe(id uint64, fn func(fraction float64)) {
	p.mu.Lock()
	p.observers[id] = fn
	p.mu.Unlock()
}

// Dispatch routes one response. Progress responses invoke the observer and
// leave the waiter registered; terminal responses retire the ID and wake
// the waiter. Responses for unknown IDs are dropped.
func (p *Pending) Dispatch(resp *Response) {
	if resp.Status == StatusProgress {
		p.mu.Lock()
		fn := p.observers[resp.ID]
		p.mu.Unlock()
		if fn != nil {
			fn(resp.Progress)
		}
		return
	}

	p.mu.Lock()
	ch, ok := p.waiters[resp.ID]
	if ok {
		delete(p.waiters, resp.ID)
		delete(p.observers, resp.ID)
	}
	p.mu.Unlock()

	if ok {
		ch <- resp
	}
}

// Retire removes a waiter without delivering anything, after the caller
// gave up on the request. A response arriving later is dropped.
func (p *Pending) Retire(id uint64) {
	p.mu.Lock()
	delete(p.waiters, id)
	delete(p.observers, id)
	p.mu.Unlock()
}

// FailAll delivers err to every pending waiter and makes future Registers
// fail immediately. Called when the transport breaks.
func (p *Pending) FailAll(err error) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[uint64]chan *Response)
	p.observers = make(map[uint64]func(float64))
	if p.failed == nil {
		p.failed = err
	}
	p.mu.Unlock()

	for id, ch := range waiters {
		ch <- Failure(id, err)
	}
}

// Active returns the number of requests still awaiting a terminal
// response.
func (p *Pending) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
