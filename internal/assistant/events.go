package assistant

import "time"

// EventType labels a dashboard stream event
type EventType string

const (
	EventTranscription         EventType = "transcription"
	EventConversationStarted   EventType = "conversation-started"
	EventConversationCompleted EventType = "conversation-completed"
	EventConversationError     EventType = "conversation-error"
)

// Event is one item on the dashboard live stream. Delivery is
// at-most-once; clients re-fetch the snapshot on reconnect.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EventSink receives dashboard events. Publish must not block.
type EventSink interface {
	Publish(event Event)
}

// nopSink drops events when no dashboard hub is wired in
type nopSink struct{}

func (nopSink) Publish(Event) {}
