package domain

import (
	"context"
	"time"
	"unicode/utf8"
)

// EventType defines the category of the lifecycle event.
type EventType string

const (
	EventMounted    EventType = "mounted"
	EventDispatched EventType = "dispatched"
	EventRejected   EventType = "rejected"
)

// EventBase contains common fields for all lifecycle events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	Controller string    `json:"controller"`
}

// MountEvent describes a completed mount pipeline run.
type MountEvent struct {
	EventBase
	Action     string        `json:"action"`
	Redirected bool          `json:"redirected"`
	Duration   time.Duration `json:"duration"`
}

// DispatchEventInfo describes a completed event pipeline run.
type DispatchEventInfo struct {
	EventBase
	Event      string        `json:"event"`
	Redirected bool          `json:"redirected"`
	Duration   time.Duration `json:"duration"`
}

// RejectKind distinguishes which unknown-name check fired.
type RejectKind string

const (
	RejectAction RejectKind = "action"
	RejectEvent  RejectKind = "event"
)

// RejectEventInfo describes a rejected raw name. RawName is truncated to a
// bounded length so adversarial input never grows logs or labels.
type RejectEventInfo struct {
	EventBase
	Kind    RejectKind `json:"kind"`
	RawName string     `json:"raw_name"`
}

// MaxReportedName bounds how much of a rejected raw name ends up in error
// messages, logs and lifecycle events.
const MaxReportedName = 64

// TruncateName cuts a raw name down to MaxReportedName bytes without
// splitting a multi-byte rune, so the reported fragment stays valid UTF-8.
func TruncateName(raw string) string {
	if len(raw) <= MaxReportedName {
		return raw
	}
	cut := MaxReportedName
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut]
}

// LifecycleHooks defines callbacks for pipeline observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnMount    func(context.Context, *MountEvent)
	OnDispatch func(context.Context, *DispatchEventInfo)
	OnReject   func(context.Context, *RejectEventInfo)
}
