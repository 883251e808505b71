package transport

import (
	"sync"
	"time"
)

// DefaultCommandTimeout bounds one command end to end.
const DefaultCommandTimeout = 30 * time.Second

// Responder guarantees exactly one response envelope per request. Whichever
// of normal completion and the timeout guard fires first wins; the loser is
// suppressed. Bulk frames sent through it always precede the structured
// response.
type Responder struct {
	correlationID string
	send          func(*Envelope) error
	sendFrame     func(Frame) error

	once  sync.Once
	timer *time.Timer

	mu   sync.Mutex
	done bool
}

// NewResponder arms the timeout guard and returns the responder. timeout <= 0
// uses DefaultCommandTimeout.
func NewResponder(correlationID string, timeout time.Duration, send func(*Envelope) error, sendFrame func(Frame) error) *Responder {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	r := &Responder{
		correlationID: correlationID,
		send:          send,
		sendFrame:     sendFrame,
	}
	r.timer = time.AfterFunc(timeout, func() {
		r.Resolve(Failure(correlationID, "timeout", "command exceeded its overall bound"))
	})
	return r
}

// CorrelationID returns the request id this responder answers.
func (r *Responder) CorrelationID() string { return r.correlationID }

// SendFrame ships a bulk frame ahead of the structured response. Frames after
// resolution are dropped: the caller already received its single response.
func (r *Responder) SendFrame(f Frame) error {
	r.mu.Lock()
	if r.done || r.sendFrame == nil {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return r.sendFrame(f)
}

// Resolve delivers the response. Only the first call sends; it reports whether
// this call won the race.
func (r *Responder) Resolve(env *Envelope) bool {
	won := false
	r.once.Do(func() {
		won = true
		r.timer.Stop()
		r.mu.Lock()
		r.done = true
		r.mu.Unlock()
		_ = r.send(env)
	})
	return won
}

// Resolved reports whether a response has been sent.
func (r *Responder) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
