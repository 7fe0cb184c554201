package wirebus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/wirebus/wirebus/pattern"
)

// Bus is an in-process message bus with one dispatcher goroutine.
//
// A Bus is an explicit value rather than process-global state; create as
// many independent buses as needed. The zero value is not usable; call
// New.
type Bus struct {
	reg    *registry
	queue  chan message
	cfg    config
	logger zerolog.Logger

	running atomic.Bool
	strict  atomic.Bool

	mu   sync.Mutex // guards lifecycle transitions
	stop chan struct{}
	done chan struct{}

	// onError has its own lock: report runs on the dispatcher, and Stop
	// holds mu while waiting for the dispatcher to exit.
	errMu   sync.Mutex
	onError ErrorFunc

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	requests  atomic.Uint64
}

// New creates a bus with the given options. The bus does not process
// messages until Start is called.
func New(opts ...Option) *Bus {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bus{
		reg:     newRegistry(),
		queue:   make(chan message, cfg.queueSize),
		cfg:     cfg,
		logger:  cfg.logger,
		onError: cfg.onError,
	}
	b.strict.Store(cfg.strict)
	return b
}

// Start launches the dispatcher goroutine. Calling Start on a running
// bus is a no-op.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running.Load() {
		return nil
	}

	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	b.running.Store(true)
	go b.loop()

	b.logger.Info().Msg("bus started")
	return nil
}

// Stop shuts the dispatcher down and clears every registered module,
// subscription, route and service. It waits for the dispatcher to finish
// its current message or for ctx to be cancelled. Pending blocking
// requests are failed with ErrNotRunning.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running.Swap(false) {
		return ErrNotRunning
	}

	close(b.stop)
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Fail whatever was still queued.
	for {
		select {
		case msg := <-b.queue:
			if msg.comp != nil {
				msg.comp.complete(nil, ErrNotRunning)
			}
		default:
			b.reg.clear()
			b.logger.Info().Msg("bus stopped")
			return nil
		}
	}
}

// IsRunning reports whether the dispatcher is active.
func (b *Bus) IsRunning() bool {
	return b.running.Load()
}

// SetStrict toggles strict mode at runtime. In strict mode a request to
// an unknown module fails with ErrNotFound; otherwise it is a silent
// no-op, which lets routes reference modules that register later.
func (b *Bus) SetStrict(strict bool) {
	b.strict.Store(strict)
}

// Strict reports whether strict mode is enabled.
func (b *Bus) Strict() bool {
	return b.strict.Load()
}

// OnError sets the error-reporting callback. Pass nil to clear it.
func (b *Bus) OnError(fn ErrorFunc) {
	b.errMu.Lock()
	b.onError = fn
	b.errMu.Unlock()
}

// Register adds a module to the bus. The module becomes addressable as
// soon as Register returns. Duplicate names are rejected with
// ErrAlreadyExists.
func (b *Bus) Register(cfg ModuleConfig) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	if !pattern.ValidName(cfg.Name) {
		return fmt.Errorf("%w: module name %q", ErrInvalidArgument, cfg.Name)
	}

	if err := b.reg.register(cfg); err != nil {
		b.logger.Error().Str("module", cfg.Name).Err(err).Msg("register failed")
		return err
	}

	b.logger.Info().Str("module", cfg.Name).Msg("module registered")
	return nil
}

// Unregister removes a module by name.
func (b *Bus) Unregister(name string) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	if err := b.reg.unregister(name); err != nil {
		return err
	}
	b.logger.Info().Str("module", name).Msg("module unregistered")
	return nil
}

// Subscribe registers an event handler for a pattern of form
// "module:event", where either side may use '*' wildcards. Handlers run
// on the dispatcher goroutine in subscription order. Returns the
// subscription id.
func (b *Bus) Subscribe(pat string, h EventHandler) (int, error) {
	if !b.running.Load() {
		return 0, ErrNotRunning
	}
	if h == nil {
		return 0, fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}
	if pat == "" || len(pat) > pattern.MaxPatternLen {
		return 0, fmt.Errorf("%w: pattern %q", ErrInvalidArgument, pat)
	}

	id := b.reg.addSub(pat, h)
	b.logger.Debug().Str("pattern", pat).Int("id", id).Msg("subscribed")
	return id, nil
}

// SubscribeFunc is a convenience wrapper around Subscribe.
func (b *Bus) SubscribeFunc(pat string, fn EventHandlerFunc) (int, error) {
	return b.Subscribe(pat, fn)
}

// Unsubscribe removes a subscription by id.
func (b *Bus) Unsubscribe(id int) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	return b.reg.removeSub(id)
}

// Stats returns a snapshot of bus counters and registry sizes.
func (b *Bus) Stats() Stats {
	modules, subs, routes, services := b.reg.counts()
	return Stats{
		EventsPublished: b.published.Load(),
		EventsDelivered: b.delivered.Load(),
		EventsDropped:   b.dropped.Load(),
		RequestsServed:  b.requests.Load(),
		Modules:         modules,
		Subscriptions:   subs,
		Routes:          routes,
		Services:        services,
	}
}

// report routes an error through the log and the error callback.
func (b *Bus) report(id, pat string, err error, msg string) {
	b.logger.Warn().Str("msg_id", id).Str("pattern", pat).Err(err).Msg(msg)

	b.errMu.Lock()
	fn := b.onError
	b.errMu.Unlock()
	if fn != nil {
		fn(pat, err, msg)
	}
}
