package wirebus

// Exists reports whether a module with the given name is registered.
func (b *Bus) Exists(module string) bool {
	if !b.running.Load() {
		return false
	}
	return b.reg.lookup(module) != nil
}

// HasAction reports whether the module declares the action in its
// schema. Schema entries are informational; a module may still serve
// actions it never declared.
func (b *Bus) HasAction(module, action string) bool {
	if !b.running.Load() {
		return false
	}
	entry := b.reg.lookup(module)
	if entry == nil {
		return false
	}
	for _, a := range entry.actions {
		if a.Name == action {
			return true
		}
	}
	return false
}

// HasEvent reports whether the module declares the event in its schema.
func (b *Bus) HasEvent(module, event string) bool {
	if !b.running.Load() {
		return false
	}
	entry := b.reg.lookup(module)
	if entry == nil {
		return false
	}
	for _, e := range entry.events {
		if e.Name == event {
			return true
		}
	}
	return false
}

// Actions returns a copy of the module's declared action schema, or nil
// if the module is unknown.
func (b *Bus) Actions(module string) []Action {
	if !b.running.Load() {
		return nil
	}
	entry := b.reg.lookup(module)
	if entry == nil {
		return nil
	}
	return append([]Action(nil), entry.actions...)
}

// Events returns a copy of the module's declared event schema, or nil if
// the module is unknown.
func (b *Bus) Events(module string) []Event {
	if !b.running.Load() {
		return nil
	}
	entry := b.reg.lookup(module)
	if entry == nil {
		return nil
	}
	return append([]Event(nil), entry.events...)
}
