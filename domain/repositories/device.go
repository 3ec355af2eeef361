package repositories

import (
	"context"
	"time"

	"github.com/lumenlabs/lumen-server/domain/entities"
)

// TranscriptionEvent is one partial or final speech recognition result
// for a device session.
type TranscriptionEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// DeviceConn is the outbound half of a connected glasses session. Writes
// are queued and must not block the caller.
type DeviceConn interface {
	// SendJSON queues a control/text frame for the device
	SendJSON(payload []byte) error
	// SendAudio queues a binary audio frame for the device
	SendAudio(data []byte) error
}

// Camera abstracts the glasses photo capture endpoint
type Camera interface {
	// RequestPhoto captures a single frame from the device identified by
	// captureRef. The call blocks until the frame arrives, the context is
	// done, or the device reports an error.
	RequestPhoto(ctx context.Context, captureRef string) (*entities.Photo, error)
}

// SpeechOutput abstracts text-to-speech delivery to a device
type SpeechOutput interface {
	// Speak synthesizes text and streams the audio to the device. It
	// returns once the full utterance has been queued or an error occurred.
	Speak(ctx context.Context, conn DeviceConn, text string) error
}

// Display abstracts the glasses heads-up text display. Failures are
// logged by implementations, never propagated.
type Display interface {
	ShowText(conn DeviceConn, text string, duration time.Duration)
}

// DeviceRegistry resolves device credentials at connect time
type DeviceRegistry interface {
	// ValidateDevice checks a serial number and secret pair and returns
	// the registered device on success.
	ValidateDevice(serialNumber, secret string) (*entities.Device, error)
}
