package websocket

import (
	"fmt"
	"testing"
	"time"
)

func TestMessageValidator_ValidateListeningStart(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name: "valid listening start",
			message: `{
				"type": "listening_start",
				"sample_rate": 16000,
				"encoding": "LINEAR16",
				"language": "en-US"
			}`,
			wantErr: false,
		},
		{
			name:    "defaults are acceptable",
			message: `{"type": "listening_start"}`,
			wantErr: false,
		},
		{
			name: "invalid sample rate",
			message: `{
				"type": "listening_start",
				"sample_rate": 100000
			}`,
			wantErr: true,
		},
		{
			name: "invalid encoding",
			message: `{
				"type": "listening_start",
				"encoding": "invalid"
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_LiveControl(t *testing.T) {
	validator := NewMessageValidator()

	for _, msgType := range []string{"live_start", "live_stop"} {
		result, err := validator.ValidateMessage([]byte(fmt.Sprintf(`{"type": %q}`, msgType)))
		if err != nil {
			t.Errorf("ValidateMessage(%s) error = %v", msgType, err)
			continue
		}
		if _, ok := result.(*LiveControlMessage); !ok {
			t.Errorf("Expected *LiveControlMessage for %s, got %T", msgType, result)
		}
	}
}

func TestMessageValidator_ValidatePing(t *testing.T) {
	validator := NewMessageValidator()

	message := `{
		"type": "ping",
		"data": "test-ping"
	}`

	result, err := validator.ValidateMessage([]byte(message))
	if err != nil {
		t.Errorf("ValidateMessage() error = %v", err)
	}

	pingMsg, ok := result.(*PingMessage)
	if !ok {
		t.Fatalf("Expected *PingMessage, got %T", result)
	}

	if pingMsg.Data != "test-ping" {
		t.Errorf("Expected data 'test-ping', got '%s'", pingMsg.Data)
	}
}

func TestMessageValidator_ValidateDeviceStatus(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name: "valid device status",
			message: `{
				"type": "device_status",
				"device_id": "glasses-1",
				"status": "online",
				"battery_level": 85
			}`,
			wantErr: false,
		},
		{
			name: "invalid battery level",
			message: `{
				"type": "device_status",
				"device_id": "glasses-1",
				"status": "online",
				"battery_level": 150
			}`,
			wantErr: true,
		},
		{
			name: "invalid status",
			message: `{
				"type": "device_status",
				"device_id": "glasses-1",
				"status": "invalid_status"
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateErrorMessage(t *testing.T) {
	code := "TEST_ERROR"
	message := "Test error message"
	details := "Test error details"

	errorMsg := CreateErrorMessage(code, message, details)

	if errorMsg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, errorMsg.Type)
	}
	if errorMsg.Code != code {
		t.Errorf("Expected code %s, got %s", code, errorMsg.Code)
	}
	if errorMsg.Message != message {
		t.Errorf("Expected message %s, got %s", message, errorMsg.Message)
	}
	if errorMsg.Details != details {
		t.Errorf("Expected details %s, got %s", details, errorMsg.Details)
	}

	// Verify timestamp is recent
	timestamp, err := time.Parse(time.RFC3339, errorMsg.Timestamp)
	if err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
	if time.Since(timestamp) > time.Second {
		t.Errorf("Timestamp is not recent: %s", errorMsg.Timestamp)
	}
}

func TestCreatePongMessage(t *testing.T) {
	data := "test-pong-data"
	pongMsg := CreatePongMessage(data)

	if pongMsg.Type != MessageTypePong {
		t.Errorf("Expected type %s, got %s", MessageTypePong, pongMsg.Type)
	}
	if pongMsg.Data != data {
		t.Errorf("Expected data %s, got %s", data, pongMsg.Data)
	}
}

func TestNewAckMessage(t *testing.T) {
	ack := newAckMessage(MessageTypeListeningStart, "listening started")

	if ack.Type != MessageTypeAck {
		t.Errorf("Expected type %s, got %s", MessageTypeAck, ack.Type)
	}
	if ack.Ref != MessageTypeListeningStart {
		t.Errorf("Expected ref %s, got %s", MessageTypeListeningStart, ack.Ref)
	}
}

func TestMessageValidator_InvalidJSON(t *testing.T) {
	validator := NewMessageValidator()

	invalidMessages := []string{
		`{invalid json}`,
		`{"type": "listening_start", "sample_rate":}`,
		``,
		`{"type": }`,
	}

	for i, msg := range invalidMessages {
		t.Run(fmt.Sprintf("invalid_json_%d", i), func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(msg))
			if err == nil {
				t.Errorf("Expected error for invalid JSON, got nil")
			}
		})
	}
}

func TestMessageValidator_UnsupportedMessageType(t *testing.T) {
	validator := NewMessageValidator()

	message := `{
		"type": "unsupported_type",
		"data": "some data"
	}`

	_, err := validator.ValidateMessage([]byte(message))
	if err == nil {
		t.Errorf("Expected error for unsupported message type, got nil")
	}
}
