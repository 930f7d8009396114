package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageEnter EventType = "stage_enter"
	EventError      EventType = "error"
	EventDecision   EventType = "decision"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp       time.Time `json:"timestamp"`
	Type            EventType `json:"type"`
	ConsentHandleID string    `json:"consent_handle_id"`
}

// StageEvent represents entry into a journey stage.
type StageEvent struct {
	EventBase
	From Stage `json:"from"`
	To   Stage `json:"to"`
}

// ErrorEvent represents a classified failure pinned to a stage.
type ErrorEvent struct {
	EventBase
	Stage Stage     `json:"stage"`
	Info  ErrorInfo `json:"info"`
}

// DecisionEvent represents the terminal approve/deny outcome.
type DecisionEvent struct {
	EventBase
	Decision Decision `json:"decision"`
}

// LifecycleHooks defines callbacks for journey observability.
type LifecycleHooks struct {
	OnStageEnter func(context.Context, *StageEvent)
	OnError      func(context.Context, *ErrorEvent)
	OnDecision   func(context.Context, *DecisionEvent)
}
