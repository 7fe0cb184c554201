package wirebus

import "context"

// Handler serves requests addressed to a module.
//
// HandleRequest runs on the dispatcher goroutine with the action name and
// the request payload. The returned bytes become the response delivered
// to a blocking caller; the error is propagated to the caller unchanged.
type Handler interface {
	HandleRequest(ctx context.Context, action string, payload []byte) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, action string, payload []byte) ([]byte, error)

// HandleRequest implements the Handler interface.
func (f HandlerFunc) HandleRequest(ctx context.Context, action string, payload []byte) ([]byte, error) {
	return f(ctx, action, payload)
}

// EventHandler receives matched events. Errors have no return channel on
// the event path; a misbehaving handler cannot fail the emit.
type EventHandler interface {
	HandleEvent(ctx context.Context, event string, payload []byte)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event string, payload []byte)

// HandleEvent implements the EventHandler interface.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event string, payload []byte) {
	f(ctx, event, payload)
}

// Service is a scheduled callback run by the dispatcher goroutine.
type Service func(ctx context.Context)

// Transform computes the follow-on request for a routed event.
// Returning an empty pattern skips the route for this event.
type Transform func(ctx context.Context, event string, payload []byte) (pattern string, request []byte)

// ErrorFunc receives errors the bus reports out of band: parse failures,
// strict-mode misses and modules declining an action.
type ErrorFunc func(pattern string, err error, msg string)

// Action describes one action a module supports. Schema entries are used
// for introspection only and are never enforced on the request path.
type Action struct {
	Name         string
	RequestType  string
	ResponseType string
	Description  string
}

// Event describes one event a module can emit. Introspection only.
type Event struct {
	Name        string
	DataType    string
	Description string
}

// ModuleConfig describes a module registration.
type ModuleConfig struct {
	// Name uniquely identifies the module on the bus. Required.
	Name string

	// Handler serves requests addressed to the module. Optional; a
	// module without one declines every request with ErrNotSupported.
	Handler Handler

	// OnEvent, when set, observes every event on the bus. Use Subscribe
	// for filtered delivery.
	OnEvent EventHandler

	// Actions and Events declare the module's schema for introspection
	// queries (HasAction, HasEvent). Optional.
	Actions []Action
	Events  []Event
}

// Stats is a snapshot of bus counters and registry sizes.
type Stats struct {
	EventsPublished uint64
	EventsDelivered uint64
	EventsDropped   uint64
	RequestsServed  uint64

	Modules       int
	Subscriptions int
	Routes        int
	Services      int
}
