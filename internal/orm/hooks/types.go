// Package hooks runs callbacks after items are written. Columns flagged
// with transitions fire one EventTransition per changed value.
package hooks

import (
	"context"
)

// EventType identifies what happened to an item
type EventType int

const (
	EventAdded EventType = iota
	EventUpdated
	EventDeleted
	EventCopied
	EventTransition
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventCopied:
		return "copied"
	case EventTransition:
		return "transition"
	default:
		return "unknown"
	}
}

// Event describes one completed write
type Event struct {
	Type   EventType
	Table  string
	ItemID interface{}

	// Column, From and To are set for transitions
	Column string
	From   interface{}
	To     interface{}

	// Item is the written data
	Item map[string]interface{}
}

// HookFunc handles an event
type HookFunc func(ctx context.Context, e Event) error

// Hook is a registered callback. An empty Column matches every column.
type Hook struct {
	Type   EventType
	Column string
	Fn     HookFunc
}

// Registry manages the hooks of one table
type Registry struct {
	hooks map[EventType][]*Hook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[EventType][]*Hook),
	}
}

// Register adds a hook to the registry
func (r *Registry) Register(eventType EventType, hook *Hook) {
	hook.Type = eventType
	r.hooks[eventType] = append(r.hooks[eventType], hook)
}

// On registers fn for every event of eventType
func (r *Registry) On(eventType EventType, fn HookFunc) {
	r.Register(eventType, &Hook{Fn: fn})
}

// OnTransition registers fn for value changes of column
func (r *Registry) OnTransition(column string, fn HookFunc) {
	r.Register(EventTransition, &Hook{Column: column, Fn: fn})
}

// GetHooks returns the hooks matching an event type and column
func (r *Registry) GetHooks(eventType EventType, column string) []*Hook {
	var out []*Hook
	for _, h := range r.hooks[eventType] {
		if h.Column == "" || h.Column == column {
			out = append(out, h)
		}
	}
	return out
}

// HasHooks returns true if any hook is registered for the event type
func (r *Registry) HasHooks(eventType EventType) bool {
	return len(r.hooks[eventType]) > 0
}
