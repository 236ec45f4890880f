package domain

import "errors"

// ErrUnknownAction is returned when a mount is requested for an action name
// absent from the registered mount-action set. This is a configuration error
// (router/handler mismatch), not a recoverable runtime condition.
var ErrUnknownAction = errors.New("unknown mount action")

// ErrUnknownEvent is returned when an event name is absent from the
// registered event set. The event is rejected before any handler key is
// produced for the raw string; the session itself is unaffected.
var ErrUnknownEvent = errors.New("unknown event")

// ErrAmbiguousHandler is returned at build time when a name is registered
// both as a mount action and as an event handler.
var ErrAmbiguousHandler = errors.New("handler name registered under both roles")

// ErrDuplicateHandler is returned at build time when a name is registered
// twice under the same role.
var ErrDuplicateHandler = errors.New("handler name registered twice")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrViewNotFound is returned by view resolvers when no view matches the
// conventional name derived from the controller.
var ErrViewNotFound = errors.New("view not found")
