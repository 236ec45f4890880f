// Package registry holds the frozen per-controller handler sets: which
// names are mount actions, which are event handlers, and the functions they
// select. It also performs the safe raw-name resolution that guards the
// dispatch path against unregistered input.
package registry

import (
	"fmt"
	"sort"

	"github.com/aretw0/espalier/pkg/domain"
)

// Role tags a handler at registration time.
type Role string

const (
	RoleMountAction  Role = "mount_action"
	RoleEventHandler Role = "event_handler"
)

// entry binds a canonical name to its handler. The canonical string is
// registry-owned; resolution always returns it instead of anything derived
// from caller input.
type entry struct {
	name string
	fn   domain.HandlerFunc
}

// Builder collects handler registrations before the registry is frozen.
// Registration is a load-time operation: declare every handler, then call
// Build exactly once.
type Builder struct {
	actions map[string]entry
	events  map[string]entry
	errs    []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		actions: make(map[string]entry),
		events:  make(map[string]entry),
	}
}

// MountAction registers name as a mount action.
func (b *Builder) MountAction(name string, fn domain.HandlerFunc) *Builder {
	b.register(RoleMountAction, name, fn)
	return b
}

// Event registers name as an event handler.
func (b *Builder) Event(name string, fn domain.HandlerFunc) *Builder {
	b.register(RoleEventHandler, name, fn)
	return b
}

func (b *Builder) register(role Role, name string, fn domain.HandlerFunc) {
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("%s: empty handler name", role))
		return
	}
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("%s %q: nil handler func", role, name))
		return
	}

	set := b.actions
	if role == RoleEventHandler {
		set = b.events
	}

	if _, exists := set[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("%s %q: %w", role, name, domain.ErrDuplicateHandler))
		return
	}
	set[name] = entry{name: name, fn: fn}
}

// Build validates the collected registrations and freezes them.
// A name present in both roles is rejected rather than silently preferring
// one, and duplicate registration within a role is rejected for the same
// reason: two funcs for one name is an implicit-precedence hazard.
func (b *Builder) Build() (*Registry, error) {
	errs := b.errs
	for name := range b.actions {
		if _, dual := b.events[name]; dual {
			errs = append(errs, fmt.Errorf("%q: %w", name, domain.ErrAmbiguousHandler))
		}
	}
	if len(errs) > 0 {
		// Report the first problem; load-time failures are fatal anyway.
		return nil, fmt.Errorf("invalid handler registration: %w", errs[0])
	}

	r := &Registry{
		actions: make(map[string]entry, len(b.actions)),
		events:  make(map[string]entry, len(b.events)),
	}
	for name, e := range b.actions {
		r.actions[name] = e
	}
	for name, e := range b.events {
		r.events[name] = e
	}
	return r, nil
}

// Registry is the frozen handler set of one controller. It is read-only
// after Build and safe to share across all sessions without locking.
type Registry struct {
	actions map[string]entry
	events  map[string]entry
}

// IsAction reports whether name is a registered mount action.
func (r *Registry) IsAction(name string) bool {
	_, ok := r.actions[name]
	return ok
}

// IsEvent reports whether name is a registered event handler.
func (r *Registry) IsEvent(name string) bool {
	_, ok := r.events[name]
	return ok
}

// Actions returns the registered mount-action names, sorted.
func (r *Registry) Actions() []string {
	return sortedNames(r.actions)
}

// Events returns the registered event names, sorted.
func (r *Registry) Events() []string {
	return sortedNames(r.events)
}

// ResolveAction converts a raw external action name into a handler key.
// Membership is checked with the raw string against the frozen set; on
// success the returned key is the registry-owned canonical name. Actions
// usually come from a trusted router, but we validate anyway.
func (r *Registry) ResolveAction(raw string) (domain.HandlerKey, error) {
	e, ok := r.actions[raw]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownAction, truncate(raw))
	}
	return domain.HandlerKey(e.name), nil
}

// ResolveEvent converts a raw external event name into a handler key.
// Unregistered names fail before any key is produced or cached, so hostile
// clients cannot grow any internal table by spraying distinct names.
func (r *Registry) ResolveEvent(raw string) (domain.HandlerKey, error) {
	e, ok := r.events[raw]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownEvent, truncate(raw))
	}
	return domain.HandlerKey(e.name), nil
}

// ActionHandler returns the mount-action func for a resolved key.
func (r *Registry) ActionHandler(key domain.HandlerKey) (domain.HandlerFunc, bool) {
	e, ok := r.actions[string(key)]
	return e.fn, ok
}

// EventHandler returns the event-handler func for a resolved key.
func (r *Registry) EventHandler(key domain.HandlerKey) (domain.HandlerFunc, bool) {
	e, ok := r.events[string(key)]
	return e.fn, ok
}

func sortedNames(set map[string]entry) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func truncate(raw string) string {
	if len(raw) <= domain.MaxReportedName {
		return raw
	}
	return domain.TruncateName(raw) + "..."
}
