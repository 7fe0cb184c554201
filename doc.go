// Package wirebus is an in-process publish/subscribe and request/response
// bus for event-driven systems built from independent modules.
//
// Modules register a name, a request handler and optionally an event
// handler plus a declared schema. Once registered they can be addressed
// by pattern without either side holding a reference to the other:
//
//	module.action   synchronous request
//	module:event    asynchronous event
//
// The only wildcard is '*', matching zero or more characters anywhere in
// a pattern.
//
// # Architecture
//
// A Bus owns a bounded message queue and a single dispatcher goroutine.
// Producers on any goroutine enqueue requests and events; the dispatcher
// dequeues them in FIFO order and is the only goroutine that ever runs
// module handlers, subscription callbacks, route transforms and timer
// services. Delivery is therefore strictly serialized: no two handlers
// run concurrently, and timers never preempt an in-flight message.
//
// A handler or service that issues a nested Request does not re-enter
// the queue. The dispatcher marks the contexts it hands to callbacks, and
// Request executes inline when called with such a context, because a
// single-consumer loop cannot wait on itself.
//
// # Basic usage
//
//	bus := wirebus.New()
//	bus.Start()
//	defer bus.Stop(context.Background())
//
//	bus.Register(wirebus.ModuleConfig{
//		Name: "echo",
//		Handler: wirebus.HandlerFunc(func(ctx context.Context, action string, payload []byte) ([]byte, error) {
//			return payload, nil
//		}),
//	})
//
//	resp, err := bus.Request(context.Background(), "echo.say", []byte("hi"), time.Second)
//
// # Routing
//
// Connect wires an event pattern to a follow-on request so modules can be
// composed without glue code:
//
//	bus.Connect("button:short_press", "led.toggle", nil)
//
// ConnectFunc installs a transform that computes the outgoing request per
// event. Routes have no cycle detection; a route that ultimately re-emits
// its own triggering event loops until queue backpressure drops it.
//
// # Timers
//
// Tick, Every and After schedule callbacks on the dispatcher goroutine.
// A service that falls behind fires once and reschedules from now rather
// than bursting to catch up.
package wirebus
