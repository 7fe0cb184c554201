package wirebus

import (
	"fmt"

	"github.com/wirebus/wirebus/pattern"
)

// Connect installs a route: every event matching eventPattern issues a
// fire-and-forget request to requestPattern carrying payload. The bus
// keeps its own copy of payload for the lifetime of the route.
//
// Routes are evaluated after subscriptions on each event. There is no
// cycle detection: a route whose target handler re-emits the triggering
// event loops until queue backpressure drops it. Avoiding such feedback
// loops is the caller's responsibility.
func (b *Bus) Connect(eventPattern, requestPattern string, payload []byte) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	if err := validPattern(eventPattern); err != nil {
		return err
	}
	if err := validPattern(requestPattern); err != nil {
		return err
	}

	b.reg.addRoute(&route{
		eventPattern: eventPattern,
		reqPattern:   requestPattern,
		payload:      copyBytes(payload),
	})

	b.logger.Debug().Str("event", eventPattern).Str("request", requestPattern).Msg("route connected")
	return nil
}

// ConnectFunc installs a route whose outgoing request is computed per
// event by fn. The transform runs on the dispatcher goroutine; returning
// an empty pattern skips the route for that event.
func (b *Bus) ConnectFunc(eventPattern string, fn Transform) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	if fn == nil {
		return fmt.Errorf("%w: nil transform", ErrInvalidArgument)
	}
	if err := validPattern(eventPattern); err != nil {
		return err
	}

	b.reg.addRoute(&route{
		eventPattern: eventPattern,
		transform:    fn,
	})

	b.logger.Debug().Str("event", eventPattern).Msg("transform route connected")
	return nil
}

// Disconnect removes routes matching the exact pattern pair. An empty
// requestPattern removes every route installed for eventPattern,
// including transform routes.
func (b *Bus) Disconnect(eventPattern, requestPattern string) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	if err := validPattern(eventPattern); err != nil {
		return err
	}

	removed := b.reg.removeRoutes(eventPattern, requestPattern)
	b.logger.Debug().Str("event", eventPattern).Int("removed", removed).Msg("route disconnected")
	return nil
}

func validPattern(p string) error {
	if p == "" || len(p) > pattern.MaxPatternLen {
		return fmt.Errorf("%w: pattern %q", ErrInvalidArgument, p)
	}
	return nil
}
