package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/mail-sentinel/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypePIIDetection is sent when an email had entities masked
	EventTypePIIDetection EventType = "pii_detection"
	// EventTypeClassification is sent when an email was classified
	EventTypeClassification EventType = "classification"
	// EventTypeRequestLog represents a request logging event
	EventTypeRequestLog EventType = "request_log"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// PIIDetectionEvent reports what was masked. It carries counts only, never values.
type PIIDetectionEvent struct {
	RequestID     string                  `json:"request_id"`
	Path          string                  `json:"path"`
	Categories    []privacy.CategoryCount `json:"categories"`
	TotalEntities int                     `json:"total_entities"`
	ProcessingMS  float64                 `json:"processing_ms"`
}

// ClassificationEvent reports the category predicted for an email
type ClassificationEvent struct {
	RequestID   string `json:"request_id"`
	Category    string `json:"category"`
	EntityCount int    `json:"entity_count"`
	CacheHit    bool   `json:"cache_hit"`
}

// RequestLogEvent represents a request logging event
type RequestLogEvent struct {
	RequestID  string        `json:"request_id"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	ClientIP   string        `json:"client_ip"`
	Duration   time.Duration `json:"duration"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string              `json:"type"`
	Data SubscriptionRequest `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows the events a subscribed client receives
type EventFilter struct {
	Categories    []string `json:"categories,omitempty"`
	ExcludeHealth bool     `json:"exclude_health,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	IP           string
}
