package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// MockSpeechToText is a local-development recognizer that emits canned
// transcripts so the pipeline can run without Google credentials.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{logger: logger}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{
		logger:  s.logger,
		results: make(chan repositories.TranscriptionEvent, 16),
	}, nil
}

// MockSpeechToTextStream turns audio chunk sizes into canned transcripts
type MockSpeechToTextStream struct {
	logger  *zap.Logger
	results chan repositories.TranscriptionEvent

	mu     sync.Mutex
	closed bool
	total  int
}

// Stream maps cumulative audio volume to a scripted exchange: a wake
// phrase first, then a question.
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("stream is closed")
	}
	if len(data) == 0 {
		return nil
	}

	before := m.total
	m.total += len(data)

	switch {
	case before < 4000 && m.total >= 4000:
		m.emit("hey lumen", true)
	case before < 12000 && m.total >= 12000:
		m.emit("what am I", false)
		m.emit("what am I looking at", true)
	}
	return nil
}

// Results carries the scripted transcripts
func (m *MockSpeechToTextStream) Results() <-chan repositories.TranscriptionEvent {
	return m.results
}

// Close ends the session
func (m *MockSpeechToTextStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.results)
	return nil
}

func (m *MockSpeechToTextStream) emit(text string, final bool) {
	select {
	case m.results <- repositories.TranscriptionEvent{Text: text, IsFinal: final}:
	default:
		m.logger.Warn("Mock result dropped, channel full")
	}
}
