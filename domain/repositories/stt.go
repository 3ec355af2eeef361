package repositories

import "context"

// SpeechToText abstracts streaming speech recognition services
type SpeechToText interface {
	// InitTranscribeStreaming opens a streaming transcription session
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// SpeechToTextStreaming is a live recognition stream. Results carries
// interim and final transcripts in arrival order and is closed when the
// stream ends.
type SpeechToTextStreaming interface {
	Stream(data []byte) error
	Results() <-chan TranscriptionEvent
	Close() error
}
