package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter EventType = "node_enter"
	EventNodeLeave EventType = "node_leave"
	EventStoreSave EventType = "store_save"
	EventReduce    EventType = "reduce"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NodeEvent represents entry into or exit from a node during a top-down or
// bottom-up pass.
type NodeEvent struct {
	EventBase
	Key       string `json:"key"`
	Signature string `json:"signature"`
	Op        string `json:"op"`
	IsError   bool   `json:"is_error,omitempty"`
}

// StoreEvent represents a persistence operation.
type StoreEvent struct {
	EventBase
	Key   string `json:"key"`
	Merge bool   `json:"merge,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability. Nil callbacks
// are skipped.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnStoreSave func(context.Context, *StoreEvent)
	OnReduce    func(context.Context, *NodeEvent)
}
