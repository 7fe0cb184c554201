package led

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wirebus/wirebus"
)

// fakeDriver records every level written to it.
type fakeDriver struct {
	mu     sync.Mutex
	levels []bool
}

func (d *fakeDriver) Set(on bool) {
	d.mu.Lock()
	d.levels = append(d.levels, on)
	d.mu.Unlock()
}

func (d *fakeDriver) snapshot() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.levels...)
}

func (d *fakeDriver) ons() int {
	n := 0
	for _, on := range d.snapshot() {
		if on {
			n++
		}
	}
	return n
}

func (d *fakeDriver) last() bool {
	s := d.snapshot()
	if len(s) == 0 {
		return false
	}
	return s[len(s)-1]
}

func newTestLED(t *testing.T) (*wirebus.Bus, *LED, *fakeDriver) {
	t.Helper()

	b := wirebus.New()
	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Stop(ctx)
	})

	drv := &fakeDriver{}
	l, err := Register(b, "led", drv)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	t.Cleanup(func() { l.Unregister() })
	return b, l, drv
}

func request(t *testing.T, b *wirebus.Bus, pat string, payload []byte) []byte {
	t.Helper()
	resp, err := b.Request(context.Background(), pat, payload, time.Second)
	if err != nil {
		t.Fatalf("Request(%q) failed: %v", pat, err)
	}
	return resp
}

func TestRegister_NilDriver(t *testing.T) {
	b := wirebus.New()
	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Stop(ctx)
	}()

	if _, err := Register(b, "led", nil); !errors.Is(err, wirebus.ErrInvalidArgument) {
		t.Errorf("nil driver accepted: %v", err)
	}
}

func TestOnOffToggle(t *testing.T) {
	b, l, drv := newTestLED(t)

	if resp := request(t, b, "led.get_state", nil); len(resp) != 1 || resp[0] != 0 {
		t.Errorf("initial state = %v, want [0]", resp)
	}

	request(t, b, "led.on", nil)
	if !l.State() || !drv.last() {
		t.Error("LED not on after on")
	}
	if resp := request(t, b, "led.get_state", nil); resp[0] != 1 {
		t.Errorf("state after on = %v, want [1]", resp)
	}

	request(t, b, "led.off", nil)
	if l.State() || drv.last() {
		t.Error("LED not off after off")
	}

	request(t, b, "led.toggle", nil)
	if !l.State() {
		t.Error("LED not on after toggle")
	}
	request(t, b, "led.toggle", nil)
	if l.State() {
		t.Error("LED not off after second toggle")
	}
}

func TestBlinkCounted(t *testing.T) {
	b, _, drv := newTestLED(t)

	before := drv.ons()
	request(t, b, "led.blink", []byte(`{"on_ms":10,"off_ms":10,"count":2}`))

	// Two on-phases, then the LED settles off.
	deadline := time.After(time.Second)
	for drv.ons()-before < 2 {
		select {
		case <-deadline:
			t.Fatalf("on-phases = %d, want 2", drv.ons()-before)
		case <-time.After(5 * time.Millisecond):
		}
	}

	time.Sleep(100 * time.Millisecond)
	if got := drv.ons() - before; got != 2 {
		t.Errorf("on-phases = %d, want exactly 2", got)
	}
	if drv.last() {
		t.Error("LED still on after a counted blink")
	}
}

func TestBlinkZeroCount(t *testing.T) {
	b, l, _ := newTestLED(t)

	request(t, b, "led.blink", []byte(`{"count":0}`))
	time.Sleep(30 * time.Millisecond)
	if l.State() {
		t.Error("zero-count blink turned the LED on")
	}
}

func TestBlinkUntilStopped(t *testing.T) {
	b, l, drv := newTestLED(t)

	before := drv.ons()
	// No count: blink forever on the given half-cycles.
	request(t, b, "led.blink", []byte(`{"on_ms":5,"off_ms":5}`))

	deadline := time.After(time.Second)
	for drv.ons()-before < 4 {
		select {
		case <-deadline:
			t.Fatalf("on-phases = %d, want >= 4", drv.ons()-before)
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A plain on-request cancels the blink and holds the level.
	request(t, b, "led.on", nil)
	settled := drv.ons()
	time.Sleep(50 * time.Millisecond)
	if got := drv.ons(); got != settled {
		t.Errorf("blink kept running after on: %d -> %d on-phases", settled, got)
	}
	if !l.State() {
		t.Error("LED not on after cancelling the blink")
	}
}

func TestPattern(t *testing.T) {
	b, _, drv := newTestLED(t)

	before := drv.ons()
	request(t, b, "led.pattern", []byte(`{"steps_ms":[20,20]}`))

	// The two-step pattern repeats until stopped.
	deadline := time.After(time.Second)
	for drv.ons()-before < 3 {
		select {
		case <-deadline:
			t.Fatalf("on-phases = %d, want >= 3", drv.ons()-before)
		case <-time.After(10 * time.Millisecond):
		}
	}

	request(t, b, "led.off", nil)
	settled := drv.ons()
	time.Sleep(80 * time.Millisecond)
	if got := drv.ons(); got != settled {
		t.Errorf("pattern kept running after off: %d -> %d on-phases", settled, got)
	}
	if drv.last() {
		t.Error("LED still on after off")
	}
}

func TestPattern_Invalid(t *testing.T) {
	b, _, _ := newTestLED(t)

	if _, err := b.Request(context.Background(), "led.pattern", []byte(`{}`), time.Second); !errors.Is(err, wirebus.ErrInvalidArgument) {
		t.Errorf("missing steps_ms accepted: %v", err)
	}
	if _, err := b.Request(context.Background(), "led.pattern", []byte(`{"steps_ms":[10,0]}`), time.Second); !errors.Is(err, wirebus.ErrInvalidArgument) {
		t.Errorf("zero step accepted: %v", err)
	}
}

func TestUnknownAction(t *testing.T) {
	b, _, _ := newTestLED(t)

	if _, err := b.Request(context.Background(), "led.dance", nil, time.Second); !errors.Is(err, wirebus.ErrNotSupported) {
		t.Errorf("unknown action = %v, want ErrNotSupported", err)
	}
}

func TestUnregisterDuringBlink(t *testing.T) {
	b, l, drv := newTestLED(t)

	request(t, b, "led.blink", []byte(`{"on_ms":1,"off_ms":1}`))

	// Read state from this goroutine while the dispatcher drives the
	// blink.
	deadline := time.After(time.Second)
	for drv.ons() < 3 {
		_ = l.State()
		select {
		case <-deadline:
			t.Fatalf("on-phases = %d, want >= 3", drv.ons())
		case <-time.After(time.Millisecond):
		}
	}

	if err := l.Unregister(); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if b.Exists("led") {
		t.Error("module still registered")
	}

	// No timer step may touch the driver once Unregister returned.
	settled := len(drv.snapshot())
	time.Sleep(50 * time.Millisecond)
	if got := len(drv.snapshot()); got != settled {
		t.Errorf("driver written after Unregister: %d -> %d levels", settled, got)
	}
}

func TestParseBlinkDefaults(t *testing.T) {
	on, off, count := parseBlink(nil)
	if on != defaultBlink || off != defaultBlink || count != -1 {
		t.Errorf("defaults = (%v, %v, %d)", on, off, count)
	}

	on, off, count = parseBlink([]byte(`{"on_ms":50,"off_ms":150,"count":3}`))
	if on != 50*time.Millisecond || off != 150*time.Millisecond || count != 3 {
		t.Errorf("parsed = (%v, %v, %d)", on, off, count)
	}
}
