// Package notify delivers settings change events to subscribers.
//
// Stores own a Notifier and publish a Change for every write, reset and
// external reload. Observers run synchronously on the publishing goroutine,
// outside the notifier's lock.
package notify

import (
	"strings"
	"sync"
)

// ChangeType represents the kind of settings change.
type ChangeType int

const (
	// ChangeSet indicates a value was written.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates an explicit value was removed, resetting the
	// setting to its default.
	ChangeDelete

	// ChangeReload indicates the backing source was reloaded.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change describes a single settings change.
type Change struct {
	// Path is the dot-separated store path. Empty for reload events.
	Path string

	// Type is the kind of change.
	Type ChangeType

	// Scope names the scope written ("global", "workspace").
	Scope string

	// OldValue is the previous explicit value at that scope, if any.
	OldValue any

	// NewValue is the written value. Nil for deletes and reloads.
	NewValue any

	// Source identifies the store that published the change.
	Source string
}

// Observer is called when a change is published.
type Observer func(change Change)

// Subscription is an active observer registration.
type Subscription struct {
	id       uint64
	notifier *Notifier
	once     sync.Once
}

// Unsubscribe removes the observer. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.notifier == nil {
		return
	}
	s.once.Do(func() {
		s.notifier.unsubscribe(s.id)
	})
}

// Notifier fans changes out to subscribed observers.
type Notifier struct {
	mu     sync.RWMutex
	global map[uint64]Observer
	byPath map[string]map[uint64]Observer
	nextID uint64
	closed bool
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{
		global: make(map[uint64]Observer),
		byPath: make(map[string]map[uint64]Observer),
	}
}

// Subscribe registers an observer for every change. After Close it returns
// an inert subscription and the observer is never called.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return &Subscription{}
	}
	id := n.nextID
	n.nextID++
	n.global[id] = observer
	return &Subscription{id: id, notifier: n}
}

// SubscribePath registers an observer for changes at path or below it.
// Subscribing to "sandbox" receives "sandbox.enableChroot". Reload events
// reach every path observer.
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return &Subscription{}
	}
	id := n.nextID
	n.nextID++
	if n.byPath[path] == nil {
		n.byPath[path] = make(map[uint64]Observer)
	}
	n.byPath[path][id] = observer
	return &Subscription{id: id, notifier: n}
}

// Notify publishes a change. It is a no-op after Close.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}

	var observers []Observer
	for _, obs := range n.global {
		observers = append(observers, obs)
	}
	for path, obs := range n.byPath {
		if change.Path == "" || matchesPath(path, change.Path) {
			for _, o := range obs {
				observers = append(observers, o)
			}
		}
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

// NotifySet publishes a set change.
func (n *Notifier) NotifySet(path, scope string, oldValue, newValue any, source string) {
	n.Notify(Change{
		Path:     path,
		Type:     ChangeSet,
		Scope:    scope,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// NotifyDelete publishes a reset.
func (n *Notifier) NotifyDelete(path, scope string, oldValue any, source string) {
	n.Notify(Change{
		Path:     path,
		Type:     ChangeDelete,
		Scope:    scope,
		OldValue: oldValue,
		Source:   source,
	})
}

// NotifyReload publishes a reload of the whole source.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{Type: ChangeReload, Source: source})
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	count := len(n.global)
	for _, obs := range n.byPath {
		count += len(obs)
	}
	return count
}

// Close drops every subscription and silences further notifications. It is
// safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	n.global = make(map[uint64]Observer)
	n.byPath = make(map[string]map[uint64]Observer)
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.global, id)
	for path, obs := range n.byPath {
		delete(obs, id)
		if len(obs) == 0 {
			delete(n.byPath, path)
		}
	}
}

// matchesPath reports whether a change at path concerns a subscription on
// prefix.
func matchesPath(prefix, path string) bool {
	if prefix == "" || prefix == path {
		return true
	}
	return strings.HasPrefix(path, prefix+".")
}
