package wirebus

import (
	"fmt"
	"time"
)

// Tick schedules fn to run repeatedly at the given interval on the
// dispatcher goroutine and returns the service id. A tick that falls
// behind fires once and reschedules from now, so a stalled bus does not
// burst to catch up.
func (b *Bus) Tick(fn Service, interval time.Duration) (int, error) {
	return b.addService(fn, interval, true)
}

// Every is an alias for Tick.
func (b *Bus) Every(fn Service, interval time.Duration) (int, error) {
	return b.addService(fn, interval, true)
}

// After schedules fn to run once after delay and returns the service id.
// The service is removed from the set as soon as it fires.
func (b *Bus) After(fn Service, delay time.Duration) (int, error) {
	return b.addService(fn, delay, false)
}

// Cancel removes a pending service by id. A one-shot service that has
// already fired is gone and yields ErrNotFound.
func (b *Bus) Cancel(id int) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	return b.reg.cancelService(id)
}

func (b *Bus) addService(fn Service, interval time.Duration, repeat bool) (int, error) {
	if !b.running.Load() {
		return 0, ErrNotRunning
	}
	if fn == nil {
		return 0, fmt.Errorf("%w: nil service", ErrInvalidArgument)
	}
	if interval < 0 {
		return 0, fmt.Errorf("%w: negative interval", ErrInvalidArgument)
	}

	id := b.reg.addService(fn, interval, repeat, time.Now())

	// Wake the dispatcher so a long queue wait does not delay the new
	// deadline.
	b.Trigger()
	return id, nil
}
