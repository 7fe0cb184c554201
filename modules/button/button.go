// Package button is a debounced push-button module for the bus.
//
// The button polls its input on a bus tick, debounces raw transitions
// and emits press/release events other modules can subscribe or route
// to. Hardware access is abstracted behind the Input function so the
// module runs against GPIO shims, test fakes or anything else that can
// answer "is it pressed".
package button

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/wirebus/wirebus"
)

// Actions served by a button module.
const (
	ActionGetState  = "get_state"
	ActionConfigure = "config"
)

// Events emitted by a button module.
const (
	EventShortPress   = "short_press"
	EventLongPress    = "long_press"
	EventShortRelease = "short_release"
	EventLongRelease  = "long_release"
	EventDoublePress  = "double_press"
)

// Input reads the debounce-raw button level; true means pressed.
type Input func() bool

// Config holds button timing parameters. Zero values select defaults.
type Config struct {
	// LongPress is how long the button must be held before a
	// long_press event fires. Default 1s.
	LongPress time.Duration

	// DoublePress is the window within which a second press counts as
	// double_press. Default 300ms.
	DoublePress time.Duration

	// Debounce is how long the raw level must hold steady before a
	// transition is accepted. Default 20ms.
	Debounce time.Duration

	// Poll is the tick interval for sampling the input. Default 10ms.
	Poll time.Duration
}

func (c *Config) applyDefaults() {
	if c.LongPress <= 0 {
		c.LongPress = time.Second
	}
	if c.DoublePress <= 0 {
		c.DoublePress = 300 * time.Millisecond
	}
	if c.Debounce <= 0 {
		c.Debounce = 20 * time.Millisecond
	}
	if c.Poll <= 0 {
		c.Poll = 10 * time.Millisecond
	}
}

// Button is a registered button module. All state is owned by the bus
// dispatcher goroutine: the tick, the request handler and the blink of
// configuration all run there.
type Button struct {
	bus  *wirebus.Bus
	name string
	read Input
	cfg  Config

	state         bool
	raw           bool
	pressCount    uint64
	pressTime     time.Time
	lastPress     time.Time
	debounceUntil time.Time
	longFired     bool

	tickID int
}

// Register creates a button module and wires it to the bus: a module
// registration with schema plus a polling tick.
func Register(b *wirebus.Bus, name string, in Input, cfg Config) (*Button, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: nil input", wirebus.ErrInvalidArgument)
	}
	cfg.applyDefaults()

	initial := in()
	btn := &Button{
		bus:   b,
		name:  name,
		read:  in,
		cfg:   cfg,
		state: initial,
		raw:   initial,
	}

	err := b.Register(wirebus.ModuleConfig{
		Name:    name,
		Handler: btn,
		Actions: []wirebus.Action{
			{Name: ActionGetState, RequestType: "none", ResponseType: "json", Description: "Get button state"},
			{Name: ActionConfigure, RequestType: "json", ResponseType: "none", Description: "Reconfigure timing"},
		},
		Events: []wirebus.Event{
			{Name: EventShortPress, DataType: "none", Description: "Press detected"},
			{Name: EventLongPress, DataType: "none", Description: "Held past the long-press threshold"},
			{Name: EventShortRelease, DataType: "none", Description: "Released before the long-press threshold"},
			{Name: EventLongRelease, DataType: "none", Description: "Released after a long press"},
			{Name: EventDoublePress, DataType: "none", Description: "Second press inside the double window"},
		},
	})
	if err != nil {
		return nil, err
	}

	btn.tickID, err = b.Tick(btn.tick, cfg.Poll)
	if err != nil {
		_ = b.Unregister(name)
		return nil, err
	}
	return btn, nil
}

// Unregister removes the module and its polling tick from the bus.
func (btn *Button) Unregister() error {
	_ = btn.bus.Cancel(btn.tickID)
	return btn.bus.Unregister(btn.name)
}

// HandleRequest implements wirebus.Handler.
func (btn *Button) HandleRequest(_ context.Context, action string, payload []byte) ([]byte, error) {
	switch action {
	case ActionGetState:
		out := "{}"
		out, _ = sjson.Set(out, "pressed", btn.state)
		out, _ = sjson.Set(out, "press_count", btn.pressCount)
		out, _ = sjson.Set(out, "last_press_ms", btn.lastPress.UnixMilli())
		return []byte(out), nil

	case ActionConfigure:
		if v := gjson.GetBytes(payload, "long_press_ms"); v.Exists() && v.Int() > 0 {
			btn.cfg.LongPress = time.Duration(v.Int()) * time.Millisecond
		}
		if v := gjson.GetBytes(payload, "double_press_ms"); v.Exists() && v.Int() > 0 {
			btn.cfg.DoublePress = time.Duration(v.Int()) * time.Millisecond
		}
		if v := gjson.GetBytes(payload, "debounce_ms"); v.Exists() && v.Int() > 0 {
			btn.cfg.Debounce = time.Duration(v.Int()) * time.Millisecond
		}
		return nil, nil
	}

	return nil, fmt.Errorf("%w: action %q", wirebus.ErrNotSupported, action)
}

// tick samples the input, debounces and emits events. Runs on the
// dispatcher goroutine.
func (btn *Button) tick(_ context.Context) {
	now := time.Now()

	if now.Before(btn.debounceUntil) {
		return
	}

	current := btn.read()
	if current != btn.raw {
		btn.raw = current
		btn.debounceUntil = now.Add(btn.cfg.Debounce)
		return
	}

	if current != btn.state {
		btn.state = current

		if current {
			btn.pressTime = now
			btn.longFired = false
			btn.pressCount++

			_ = btn.bus.Emit(btn.name, EventShortPress, nil)

			if !btn.lastPress.IsZero() && now.Sub(btn.lastPress) < btn.cfg.DoublePress {
				_ = btn.bus.Emit(btn.name, EventDoublePress, nil)
			}
			btn.lastPress = now
		} else {
			// Ignore a release with no recorded press (startup level).
			if btn.pressTime.IsZero() {
				return
			}
			btn.pressTime = time.Time{}

			if btn.longFired {
				_ = btn.bus.Emit(btn.name, EventLongRelease, nil)
			} else {
				_ = btn.bus.Emit(btn.name, EventShortRelease, nil)
			}
		}
	}

	if btn.state && !btn.longFired && now.Sub(btn.pressTime) >= btn.cfg.LongPress {
		btn.longFired = true
		_ = btn.bus.Emit(btn.name, EventLongPress, nil)
	}
}
