package ws

import (
	"encoding/json"
	"time"
)

type EventType string

// Inbound
const (
	EventRegister EventType = "register"
	EventFrame    EventType = "frame"
)

// Outbound
const (
	EventConnected          EventType = "connected"
	EventRegistrationResult EventType = "registration_result"
	EventRecognitionResult  EventType = "recognition_result"
	EventRecognitionError   EventType = "recognition_error"
	EventError              EventType = "error"
)

// Envelope is the inbound frame shape: {"event": ..., "data": {...}}.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event is sent to exactly one connection.
type Event struct {
	Type      EventType   `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type RegisterPayload struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type FramePayload struct {
	Image string `json:"image"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

type RegistrationReply struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
