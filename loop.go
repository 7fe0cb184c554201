package wirebus

import (
	"context"
	"fmt"
	"time"

	"github.com/wirebus/wirebus/pattern"
)

// dispatchKey marks contexts created by the dispatcher goroutine. A
// Request carrying a marked context executes inline instead of being
// enqueued.
type dispatchKey struct{}

func inDispatch(ctx context.Context) bool {
	return ctx != nil && ctx.Value(dispatchKey{}) != nil
}

// loop is the dispatcher: the single consumer of the message queue and
// the only goroutine that runs module handlers, subscription callbacks,
// route transforms and services.
func (b *Bus) loop() {
	defer close(b.done)

	ctx := context.WithValue(context.Background(), dispatchKey{}, struct{}{})

	timer := time.NewTimer(b.cfg.maxWait)
	defer timer.Stop()

	var lastServices time.Time

	for {
		wait := b.reg.nextWait(time.Now(), b.cfg.maxWait, b.cfg.minWait)
		timer.Reset(wait)

		select {
		case <-b.stop:
			return
		case msg := <-b.queue:
			b.process(ctx, msg)
			// Drain whatever else arrived before yielding.
		drain:
			for {
				select {
				case <-b.stop:
					return
				case msg := <-b.queue:
					b.process(ctx, msg)
				default:
					break drain
				}
			}
		case <-timer.C:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}

		// Run services at most once per minWait so a message flood
		// cannot turn timer evaluation into a tight loop.
		if now := time.Now(); now.Sub(lastServices) >= b.cfg.minWait {
			lastServices = now
			b.runServices(ctx)
		}
	}
}

func (b *Bus) process(ctx context.Context, msg message) {
	switch msg.kind {
	case msgRequest:
		resp, err := b.processRequest(ctx, msg.id, msg.pattern, msg.payload)
		if msg.comp != nil {
			msg.comp.complete(resp, err)
		}
	case msgEvent:
		source, event, sep, err := pattern.Parse(msg.pattern)
		if err == nil && sep == pattern.SepEvent {
			b.dispatchEvent(ctx, msg.id, source, event, msg.payload)
		}
	case msgTrigger:
		// Wake-up only; the point was to re-evaluate the wait deadline.
	}
}

// processRequest resolves and invokes the target module's request
// handler. It runs on the dispatcher goroutine, either from the queue or
// inline for nested requests. id is the message trace id carried through
// the log lines.
func (b *Bus) processRequest(ctx context.Context, id, pat string, payload []byte) ([]byte, error) {
	module, action, sep, perr := pattern.Parse(pat)
	if perr != nil || sep != pattern.SepRequest {
		b.report(id, pat, ErrInvalidArgument, "invalid request pattern")
		return nil, fmt.Errorf("%w: request pattern %q", ErrInvalidArgument, pat)
	}

	entry := b.reg.lookup(module)
	if entry == nil {
		if b.strict.Load() {
			b.report(id, pat, ErrNotFound, "module not found")
			return nil, fmt.Errorf("%w: module %q", ErrNotFound, module)
		}
		// Unknown modules are a no-op outside strict mode so routes may
		// reference modules that register later.
		return nil, nil
	}

	if entry.handler == nil {
		b.report(id, pat, ErrNotSupported, "module has no request handler")
		return nil, fmt.Errorf("%w: module %q has no request handler", ErrNotSupported, module)
	}

	b.logger.Debug().Str("msg_id", id).Str("pattern", pat).Msg("request")
	b.requests.Add(1)
	return entry.handler.HandleRequest(ctx, action, payload)
}

// dispatchEvent delivers an event to matching subscriptions and then
// evaluates matching routes. Subscriber and transform failures have no
// return channel and cannot fail the emit. Routed requests inherit the
// triggering event's trace id.
func (b *Bus) dispatchEvent(ctx context.Context, id, source, event string, payload []byte) {
	full := source + ":" + event
	b.logger.Debug().Str("msg_id", id).Str("pattern", full).Msg("event")

	for _, sub := range b.reg.matchSubs(full) {
		sub.handler.HandleEvent(ctx, event, payload)
		b.delivered.Add(1)
	}

	for _, rt := range b.reg.matchRoutes(full) {
		reqPat, reqPayload := rt.reqPattern, rt.payload
		if rt.transform != nil {
			reqPat, reqPayload = rt.transform(ctx, event, payload)
			if reqPat == "" {
				continue
			}
		}
		b.logger.Debug().Str("msg_id", id).Str("from", full).Str("to", reqPat).Msg("route")
		// Fire-and-forget; failures are reported through processRequest.
		_, _ = b.processRequest(ctx, id, reqPat, reqPayload)
	}
}

func (b *Bus) runServices(ctx context.Context) {
	for _, fn := range b.reg.takeDue(time.Now()) {
		fn(ctx)
	}
}
