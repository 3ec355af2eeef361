package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeLiveStart      MessageType = "live_start"
	MessageTypeLiveStop       MessageType = "live_stop"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"
	MessageTypeDeviceStatus   MessageType = "device_status"
	MessageTypeAck            MessageType = "ack"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ListeningStartMessage opens a speech recognition stream for the
// connection. All fields are optional; defaults favor the glasses'
// onboard microphone format.
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty" validate:"omitempty,min=8000,max=48000"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// ListeningEndMessage closes the recognition stream
type ListeningEndMessage struct {
	BaseMessage
}

// LiveControlMessage toggles the open-conversation mode
type LiveControlMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// AckMessage confirms a control frame was applied
type AckMessage struct {
	BaseMessage
	Ref     MessageType `json:"ref"`
	Message string      `json:"message,omitempty"`
}

// DeviceStatusMessage represents device status updates
type DeviceStatusMessage struct {
	BaseMessage
	DeviceID     string                 `json:"device_id,omitempty"`
	Status       string                 `json:"status" validate:"required,oneof=online offline sleeping error"`
	BatteryLevel int                    `json:"battery_level,omitempty" validate:"min=0,max=100"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg ListeningEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_end message: %w", err)
		}
		return &msg, nil

	case MessageTypeLiveStart, MessageTypeLiveStop:
		var msg LiveControlMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid live control message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypeDeviceStatus:
		var msg DeviceStatusMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid device status message: %w", err)
		}
		if err := v.validateDeviceStatus(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateListeningStart validates recognition stream parameters
func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if msg.Encoding != "" {
		validEncodings := map[string]bool{
			"LINEAR16": true, "WAV": true, "FLAC": true, "MULAW": true,
			"OGG_OPUS": true, "WEBM_OPUS": true,
		}
		if !validEncodings[msg.Encoding] {
			return fmt.Errorf("unsupported encoding: %s", msg.Encoding)
		}
	}
	return nil
}

// validateDeviceStatus validates device status message fields
func (v *MessageValidator) validateDeviceStatus(msg *DeviceStatusMessage) error {
	if msg.Status == "" {
		return fmt.Errorf("status is required")
	}

	validStatuses := map[string]bool{
		"online": true, "offline": true, "sleeping": true, "error": true,
	}
	if !validStatuses[msg.Status] {
		return fmt.Errorf("status must be one of: online, offline, sleeping, error")
	}

	if msg.BatteryLevel < 0 || msg.BatteryLevel > 100 {
		return fmt.Errorf("battery_level must be between 0 and 100")
	}

	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}

// newAckMessage creates a control frame acknowledgment
func newAckMessage(ref MessageType, message string) *AckMessage {
	return &AckMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeAck,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Ref:     ref,
		Message: message,
	}
}
