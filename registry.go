package wirebus

import (
	"sort"
	"sync"
	"time"

	"github.com/wirebus/wirebus/pattern"
)

// registry holds every mutable shared collection of the bus: the module
// set, subscriptions, routes and timer services. One mutex guards all of
// them; the dispatcher takes the same lock for every read and works on
// copies, so callbacks always run outside the lock.
type registry struct {
	mu sync.Mutex

	modules  map[string]*moduleEntry
	subs     []*subscription
	routes   []*route
	services map[int]*service

	nextSubID int
	nextSvcID int
}

// moduleEntry is an immutable snapshot of a registration. Fields are
// never mutated after insert, so the dispatcher may use an entry after
// releasing the lock.
type moduleEntry struct {
	name    string
	handler Handler
	actions []Action
	events  []Event

	// evtSubID is the implicit wildcard subscription created for
	// ModuleConfig.OnEvent, or -1.
	evtSubID int
}

type subscription struct {
	id      int
	pattern string
	handler EventHandler
}

type route struct {
	eventPattern string
	reqPattern   string
	payload      []byte // owned copy, same lifetime as the route
	transform    Transform
}

type service struct {
	id       int
	fn       Service
	interval time.Duration
	nextRun  time.Time
	repeat   bool
}

func newRegistry() *registry {
	return &registry{
		modules:  make(map[string]*moduleEntry),
		services: make(map[int]*service),
	}
}

func (r *registry) register(cfg ModuleConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[cfg.Name]; ok {
		return ErrAlreadyExists
	}

	entry := &moduleEntry{
		name:     cfg.Name,
		handler:  cfg.Handler,
		actions:  append([]Action(nil), cfg.Actions...),
		events:   append([]Event(nil), cfg.Events...),
		evtSubID: -1,
	}

	if cfg.OnEvent != nil {
		entry.evtSubID = r.addSubLocked("*", cfg.OnEvent)
	}

	r.modules[cfg.Name] = entry
	return nil
}

func (r *registry) unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.modules[name]
	if !ok {
		return ErrNotFound
	}
	if entry.evtSubID >= 0 {
		r.removeSubLocked(entry.evtSubID)
	}
	delete(r.modules, name)
	return nil
}

func (r *registry) lookup(name string) *moduleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modules[name]
}

func (r *registry) addSub(pat string, h EventHandler) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addSubLocked(pat, h)
}

func (r *registry) addSubLocked(pat string, h EventHandler) int {
	sub := &subscription{
		id:      r.nextSubID,
		pattern: pat,
		handler: h,
	}
	r.nextSubID++
	r.subs = append(r.subs, sub)
	return sub.id
}

func (r *registry) removeSub(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.removeSubLocked(id) {
		return ErrNotFound
	}
	return nil
}

func (r *registry) removeSubLocked(id int) bool {
	for i, sub := range r.subs {
		if sub.id == id {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return true
		}
	}
	return false
}

// matchSubs returns a copy of the subscriptions matching the full event
// pattern, in registration order.
func (r *registry) matchSubs(full string) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*subscription
	for _, sub := range r.subs {
		if pattern.Match(sub.pattern, full) {
			matched = append(matched, sub)
		}
	}
	return matched
}

func (r *registry) addRoute(rt *route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, rt)
}

// removeRoutes drops every route whose event pattern equals evtPattern
// and, when reqPattern is non-empty, whose request pattern equals
// reqPattern. Returns the number removed.
func (r *registry) removeRoutes(evtPattern, reqPattern string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	kept := r.routes[:0]
	for _, rt := range r.routes {
		if rt.eventPattern == evtPattern && (reqPattern == "" || rt.reqPattern == reqPattern) {
			removed++
			continue
		}
		kept = append(kept, rt)
	}
	r.routes = kept
	return removed
}

// matchRoutes returns a copy of the routes matching the full event
// pattern, in registration order.
func (r *registry) matchRoutes(full string) []*route {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*route
	for _, rt := range r.routes {
		if pattern.Match(rt.eventPattern, full) {
			matched = append(matched, rt)
		}
	}
	return matched
}

func (r *registry) addService(fn Service, interval time.Duration, repeat bool, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc := &service{
		id:       r.nextSvcID,
		fn:       fn,
		interval: interval,
		nextRun:  now.Add(interval),
		repeat:   repeat,
	}
	r.nextSvcID++
	r.services[svc.id] = svc
	return svc.id
}

func (r *registry) cancelService(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[id]; !ok {
		return ErrNotFound
	}
	delete(r.services, id)
	return nil
}

// takeDue returns the callbacks of every service due at now, in id
// order. Repeating services are rescheduled from now rather than from
// the missed deadline; one-shot services are removed from the set.
func (r *registry) takeDue(now time.Time) []Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*service
	for _, svc := range r.services {
		if !now.Before(svc.nextRun) {
			due = append(due, svc)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })

	fns := make([]Service, 0, len(due))
	for _, svc := range due {
		fns = append(fns, svc.fn)
		if svc.repeat {
			svc.nextRun = now.Add(svc.interval)
		} else {
			delete(r.services, svc.id)
		}
	}
	return fns
}

// nextWait computes how long the dispatcher may block before the
// earliest pending service comes due, clamped to [minWait, maxWait].
func (r *registry) nextWait(now time.Time, maxWait, minWait time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	wait := maxWait
	for _, svc := range r.services {
		d := svc.nextRun.Sub(now)
		if d < minWait {
			d = minWait
		}
		if d < wait {
			wait = d
		}
	}
	return wait
}

func (r *registry) counts() (modules, subs, routes, services int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modules), len(r.subs), len(r.routes), len(r.services)
}

// clear drops every module, subscription, route and service.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.modules = make(map[string]*moduleEntry)
	r.subs = nil
	r.routes = nil
	r.services = make(map[int]*service)
}
