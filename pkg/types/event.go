package types

import "time"

type EventType string

const (
	EventRetry            EventType = "Retry"
	EventRetryExhausted   EventType = "RetryExhausted"
	EventServerError      EventType = "ServerError"
	EventTransportFailure EventType = "TransportFailure"
	EventCallComplete     EventType = "CallComplete"
	EventRunStart         EventType = "RunStart"
	EventRunComplete      EventType = "RunComplete"
)

type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"ts"`
	Strategy  string         `json:"strategy,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	Outcome   Outcome        `json:"outcome,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
