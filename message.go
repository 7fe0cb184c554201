package wirebus

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wirebus/wirebus/pattern"
)

type msgKind uint8

const (
	msgRequest msgKind = iota
	msgEvent
	msgTrigger
)

// message is a transient queue entry. The payload is an owned copy made
// by the producer; nothing downstream aliases caller memory.
type message struct {
	kind    msgKind
	id      string // trace id for log correlation
	pattern string
	payload []byte
	comp    *completion // blocking requests only
}

// completion is the rendezvous between a blocking caller and the
// dispatcher. It is heap-shared by both sides and settled exactly once
// via CAS, so a completion that arrives after the caller timed out is a
// safe no-op instead of a write into dead state.
type completion struct {
	settled atomic.Bool
	done    chan struct{}
	resp    []byte
	err     error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// complete settles the rendezvous from the dispatcher side. No-op if the
// caller already abandoned it.
func (c *completion) complete(resp []byte, err error) {
	if c.settled.CompareAndSwap(false, true) {
		c.resp = resp
		c.err = err
		close(c.done)
	}
}

// abandon settles the rendezvous from the caller side. Returns false if
// the dispatcher won the race, in which case the result is available.
func (c *completion) abandon() bool {
	return c.settled.CompareAndSwap(false, true)
}

// Request sends a request addressed by a "module.action" pattern.
//
// With timeout zero the request is fire-and-forget: the return reports
// only whether the message was enqueued, and the response is discarded.
// With a positive timeout the caller blocks until the handler completes
// or the deadline passes, whichever comes first.
//
// When called from a handler, subscription, transform or service already
// running on the dispatcher goroutine, the request executes inline and
// the timeout is ignored; enqueueing would deadlock the single-consumer
// loop against itself.
func (b *Bus) Request(ctx context.Context, pat string, payload []byte, timeout time.Duration) ([]byte, error) {
	if !b.running.Load() {
		return nil, ErrNotRunning
	}
	if pat == "" || len(pat) > pattern.MaxPatternLen {
		return nil, fmt.Errorf("%w: pattern %q", ErrInvalidArgument, pat)
	}

	id := uuid.NewString()

	if inDispatch(ctx) {
		return b.processRequest(ctx, id, pat, payload)
	}

	msg := message{
		kind:    msgRequest,
		id:      id,
		pattern: pat,
		payload: copyBytes(payload),
	}

	if timeout <= 0 {
		return nil, b.enqueue(msg)
	}

	comp := newCompletion()
	msg.comp = comp

	// One deadline covers both the enqueue and the rendezvous; the caller
	// never waits longer than the timeout it asked for.
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b.queue <- msg:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %v", ErrQueueFull, pat, timeout)
	}

	select {
	case <-comp.done:
		return comp.resp, comp.err
	case <-ctx.Done():
		if comp.abandon() {
			return nil, ctx.Err()
		}
		<-comp.done
		return comp.resp, comp.err
	case <-timer.C:
		if comp.abandon() {
			return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, pat, timeout)
		}
		<-comp.done
		return comp.resp, comp.err
	}
}

// Call is the fire-and-forget shorthand for a request without payload.
func (b *Bus) Call(ctx context.Context, pat string) error {
	_, err := b.Request(ctx, pat, nil, 0)
	return err
}

// CallString is the fire-and-forget shorthand for a request carrying a
// string payload.
func (b *Bus) CallString(ctx context.Context, pat, s string) error {
	_, err := b.Request(ctx, pat, []byte(s), 0)
	return err
}

// Emit publishes an event from a source module. The payload is copied
// before enqueueing; the call never blocks and fails with ErrQueueFull
// when the queue is saturated.
func (b *Bus) Emit(source, event string, payload []byte) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	if !pattern.ValidName(source) || !pattern.ValidName(event) {
		return fmt.Errorf("%w: event %q:%q", ErrInvalidArgument, source, event)
	}

	msg := message{
		kind:    msgEvent,
		id:      uuid.NewString(),
		pattern: source + ":" + event,
		payload: copyBytes(payload),
	}

	if err := b.enqueue(msg); err != nil {
		b.dropped.Add(1)
		return err
	}
	b.published.Add(1)
	return nil
}

// Trigger wakes the dispatcher so it re-evaluates its wait deadline,
// e.g. after arming a timer from another goroutine. It never blocks and
// is safe from any calling context; a full queue means the dispatcher is
// already awake.
func (b *Bus) Trigger() {
	if !b.running.Load() {
		return
	}
	select {
	case b.queue <- message{kind: msgTrigger}:
	default:
	}
}

// enqueue posts a message without blocking.
func (b *Bus) enqueue(msg message) error {
	select {
	case b.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func copyBytes(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	return append([]byte(nil), p...)
}
