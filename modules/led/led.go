// Package led is an LED driver module for the bus.
//
// It serves on/off/toggle requests, timed blinking and repeating
// patterns, all driven by bus one-shot timers so no extra goroutine is
// involved. Hardware access is abstracted behind the Driver interface.
package led

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wirebus/wirebus"
)

// Actions served by an LED module.
const (
	ActionOn       = "on"
	ActionOff      = "off"
	ActionToggle   = "toggle"
	ActionBlink    = "blink"
	ActionPattern  = "pattern"
	ActionGetState = "get_state"
)

const (
	defaultBlink = 200 * time.Millisecond
)

// Driver sets the physical LED level. Set is called with the module's
// internal lock held and must not call back into the module.
type Driver interface {
	Set(on bool)
}

// DriverFunc adapts a function to Driver.
type DriverFunc func(on bool)

// Set implements the Driver interface.
func (f DriverFunc) Set(on bool) { f(on) }

// LED is a registered LED module. Requests and blink timers run on the
// dispatcher goroutine, but State and Unregister may be called from any
// goroutine, so a mutex guards the shared state.
type LED struct {
	bus  *wirebus.Bus
	name string
	drv  Driver

	mu    sync.Mutex
	state bool

	// Blink state. remaining counts half-cycles; -1 means blink until
	// stopped.
	onDur     time.Duration
	offDur    time.Duration
	remaining int
	timerID   int

	// Pattern state: alternating on/off durations, repeated until
	// stopped.
	steps   []time.Duration
	stepIdx int
}

// Register creates an LED module on the bus.
func Register(b *wirebus.Bus, name string, drv Driver) (*LED, error) {
	if drv == nil {
		return nil, fmt.Errorf("%w: nil driver", wirebus.ErrInvalidArgument)
	}

	l := &LED{
		bus:     b,
		name:    name,
		drv:     drv,
		timerID: -1,
	}
	l.mu.Lock()
	l.set(false)
	l.mu.Unlock()

	err := b.Register(wirebus.ModuleConfig{
		Name:    name,
		Handler: l,
		Actions: []wirebus.Action{
			{Name: ActionOn, RequestType: "none", ResponseType: "none", Description: "Turn LED on"},
			{Name: ActionOff, RequestType: "none", ResponseType: "none", Description: "Turn LED off"},
			{Name: ActionToggle, RequestType: "none", ResponseType: "none", Description: "Toggle LED state"},
			{Name: ActionBlink, RequestType: "json", ResponseType: "none", Description: "Blink: on_ms, off_ms, count"},
			{Name: ActionPattern, RequestType: "json", ResponseType: "none", Description: "Repeat steps_ms on/off pattern"},
			{Name: ActionGetState, RequestType: "none", ResponseType: "uint8", Description: "Get LED state (0/1)"},
		},
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Unregister stops any blink in progress and removes the module.
func (l *LED) Unregister() error {
	l.mu.Lock()
	l.stop()
	l.mu.Unlock()
	return l.bus.Unregister(l.name)
}

// HandleRequest implements wirebus.Handler.
func (l *LED) HandleRequest(_ context.Context, action string, payload []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch action {
	case ActionOn:
		l.stop()
		l.set(true)
		return nil, nil

	case ActionOff:
		l.stop()
		l.set(false)
		return nil, nil

	case ActionToggle:
		l.stop()
		l.set(!l.state)
		return nil, nil

	case ActionBlink:
		on, off, count := parseBlink(payload)
		l.startBlink(on, off, count)
		return nil, nil

	case ActionPattern:
		steps := parsePattern(payload)
		if len(steps) == 0 {
			return nil, fmt.Errorf("%w: pattern needs steps_ms", wirebus.ErrInvalidArgument)
		}
		l.startPattern(steps)
		return nil, nil

	case ActionGetState:
		if l.state {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	}

	return nil, fmt.Errorf("%w: action %q", wirebus.ErrNotSupported, action)
}

// State reports the current logical LED state.
func (l *LED) State() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *LED) set(on bool) {
	l.state = on
	l.drv.Set(on)
}

// stop cancels any pending blink or pattern timer. Callers hold l.mu.
func (l *LED) stop() {
	if l.timerID >= 0 {
		// The timer may already have fired; a missing id is fine.
		_ = l.bus.Cancel(l.timerID)
		l.timerID = -1
	}
	l.remaining = 0
	l.steps = nil
}

func (l *LED) startBlink(on, off time.Duration, count int) {
	l.stop()
	if count == 0 {
		return
	}

	l.onDur = on
	l.offDur = off
	if count < 0 {
		l.remaining = -1
	} else {
		// Two half-cycles per blink.
		l.remaining = count * 2
	}

	l.set(true)
	l.arm(l.onDur, l.blinkStep)
}

// blinkStep toggles the LED and arms the next half-cycle.
func (l *LED) blinkStep(_ context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timerID = -1

	// A step that fires after stop has nothing left to drive.
	if l.remaining == 0 {
		return
	}

	if l.remaining > 0 {
		l.remaining--
		if l.remaining == 0 {
			l.set(false)
			return
		}
	}

	l.set(!l.state)
	next := l.offDur
	if l.state {
		next = l.onDur
	}
	l.arm(next, l.blinkStep)
}

func (l *LED) startPattern(steps []time.Duration) {
	l.stop()
	l.steps = steps
	l.stepIdx = 0
	l.set(true)
	l.arm(steps[0], l.patternStep)
}

// patternStep advances the alternating on/off sequence, wrapping to
// repeat it until stopped.
func (l *LED) patternStep(_ context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timerID = -1
	if len(l.steps) == 0 {
		return
	}

	l.stepIdx = (l.stepIdx + 1) % len(l.steps)
	// Even indices are "on" phases.
	l.set(l.stepIdx%2 == 0)
	l.arm(l.steps[l.stepIdx], l.patternStep)
}

func (l *LED) arm(d time.Duration, fn wirebus.Service) {
	id, err := l.bus.After(fn, d)
	if err != nil {
		l.timerID = -1
		return
	}
	l.timerID = id
}

// parseBlink extracts blink parameters with the 200ms/200ms/infinite
// defaults.
func parseBlink(payload []byte) (on, off time.Duration, count int) {
	on, off, count = defaultBlink, defaultBlink, -1

	if v := gjson.GetBytes(payload, "on_ms"); v.Exists() && v.Int() > 0 {
		on = time.Duration(v.Int()) * time.Millisecond
	}
	if v := gjson.GetBytes(payload, "off_ms"); v.Exists() && v.Int() > 0 {
		off = time.Duration(v.Int()) * time.Millisecond
	}
	if v := gjson.GetBytes(payload, "count"); v.Exists() {
		count = int(v.Int())
	}
	return on, off, count
}

// parsePattern extracts the alternating on/off durations of a pattern
// request.
func parsePattern(payload []byte) []time.Duration {
	v := gjson.GetBytes(payload, "steps_ms")
	if !v.IsArray() {
		return nil
	}

	var steps []time.Duration
	for _, step := range v.Array() {
		if step.Int() <= 0 {
			return nil
		}
		steps = append(steps, time.Duration(step.Int())*time.Millisecond)
	}
	return steps
}
