package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryStatus represents the processing status of a conversation entry
type EntryStatus string

const (
	EntryStatusProcessing EntryStatus = "processing"
	EntryStatusCompleted  EntryStatus = "completed"
	EntryStatusError      EntryStatus = "error"
)

// ErrInvalidTransition is returned when an entry status would move backward.
var ErrInvalidTransition = errors.New("invalid entry status transition")

// Photo is a captured camera frame
type Photo struct {
	MimeType string `json:"mime_type" bson:"mime_type"`
	Data     []byte `json:"-" bson:"data"`
}

// Size returns the encoded payload size in bytes
func (p *Photo) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Data)
}

// ConversationEntry represents one question/answer exchange for a user
type ConversationEntry struct {
	ID               string      `json:"id" bson:"_id,omitempty"`
	Timestamp        time.Time   `json:"timestamp" bson:"timestamp"`
	UserID           string      `json:"user_id" bson:"user_id"`
	Question         string      `json:"question" bson:"question"`
	Response         string      `json:"response" bson:"response"`
	HasPhoto         bool        `json:"has_photo" bson:"has_photo"`
	Photo            *Photo      `json:"-" bson:"photo,omitempty"`
	ProcessingTimeMs int64       `json:"processing_time_ms" bson:"processing_time_ms"`
	Status           EntryStatus `json:"status" bson:"status"`
	Category         string      `json:"category,omitempty" bson:"category,omitempty"`
	Location         string      `json:"location,omitempty" bson:"location,omitempty"`
}

// NewConversationEntry creates an entry in the processing state
func NewConversationEntry(userID, question string) *ConversationEntry {
	return &ConversationEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		UserID:    userID,
		Question:  question,
		Status:    EntryStatusProcessing,
	}
}

// Complete moves the entry to completed and records the outcome.
// Only valid from the processing state.
func (e *ConversationEntry) Complete(response string, photo *Photo, elapsed time.Duration) error {
	if e.Status != EntryStatusProcessing {
		return ErrInvalidTransition
	}
	e.Response = response
	e.Photo = photo
	e.HasPhoto = photo != nil
	e.ProcessingTimeMs = elapsed.Milliseconds()
	e.Status = EntryStatusCompleted
	return nil
}

// Fail moves the entry to error. Only valid from the processing state.
func (e *ConversationEntry) Fail(response string, elapsed time.Duration) error {
	if e.Status != EntryStatusProcessing {
		return ErrInvalidTransition
	}
	e.Response = response
	e.ProcessingTimeMs = elapsed.Milliseconds()
	e.Status = EntryStatusError
	return nil
}

// Validate validates the entry data
func (e *ConversationEntry) Validate() error {
	if e.UserID == "" {
		return errors.New("user_id is required")
	}
	if e.Question == "" {
		return errors.New("question is required")
	}
	if e.HasPhoto && e.Photo == nil {
		return errors.New("has_photo set without photo payload")
	}
	switch e.Status {
	case EntryStatusProcessing, EntryStatusCompleted, EntryStatusError:
	default:
		return errors.New("invalid entry status")
	}
	return nil
}
