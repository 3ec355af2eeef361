package assistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/entities"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// Phrases that end a live session
var liveStopPhrases = []string{
	"stop live",
	"end live",
	"goodbye lumen",
	"that's all lumen",
}

// Service is the per-process assistant: it owns the session registry
// and wires transcription events through the listener, the scheduler,
// the orchestrator and the speaker. All per-user state lives here or in
// the components it owns; nothing is ambient.
type Service struct {
	cfg    Config
	logger *zap.Logger

	listener     *Listener
	scheduler    *Scheduler
	orchestrator *Orchestrator
	speaker      *Speaker
	history      *History
	live         *LiveManager
	steps        *StepTracker

	textModel repositories.TextModel
	memory    repositories.MemoryService
	events    EventSink

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService wires the assistant pipeline. memory may be nil (no
// durable store); events may be nil (no dashboard).
func NewService(
	cfg Config,
	camera repositories.Camera,
	textModel repositories.TextModel,
	visionModel repositories.VisionModel,
	tts repositories.SpeechOutput,
	display repositories.Display,
	memory repositories.MemoryService,
	events EventSink,
	logger *zap.Logger,
) *Service {
	cfg = cfg.withDefaults()
	if events == nil {
		events = nopSink{}
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		history:   NewHistory(cfg.HistoryCap),
		textModel: textModel,
		memory:    memory,
		events:    events,
		sessions:  make(map[string]*Session),
	}

	if cfg.StepTracking {
		s.steps = NewStepTracker(cfg, logger)
	}
	s.speaker = NewSpeaker(cfg, tts, display, logger)
	s.orchestrator = NewOrchestrator(cfg, camera, textModel, visionModel, s.history, s.steps, logger)
	s.scheduler = NewScheduler(cfg.PerUserScheduling, s.handleRequest, logger)
	s.listener = NewListener(cfg, s.dispatchQuestion, s.prompt, logger)
	s.live = NewLiveManager(cfg, s.speakLive, logger)

	return s
}

// RegisterSession adds a connected device. captureRef is the device's
// photo capture endpoint.
func (s *Service) RegisterSession(userID string, conn repositories.DeviceConn, captureRef string) *Session {
	sess := &Session{
		UserID:     userID,
		Conn:       conn,
		CaptureRef: captureRef,
		StartedAt:  time.Now(),
	}
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
	s.logger.Info("Session registered", zap.String("userID", userID))
	return sess
}

// UnregisterSession tears down a disconnected device's state
func (s *Service) UnregisterSession(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()

	s.speaker.Cancel(userID)
	s.listener.Forget(userID)
	s.live.Stop(userID)
	if s.steps != nil {
		s.steps.Forget(userID)
	}
	s.logger.Info("Session unregistered", zap.String("userID", userID))
}

// HandleTranscription consumes one transcription event for a user.
// Events for unknown users are defensively dropped; one user's
// malformed traffic never disturbs another's session.
func (s *Service) HandleTranscription(userID string, ev repositories.TranscriptionEvent) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("Transcription for unknown session", zap.String("userID", userID))
		return
	}

	s.history.Touch()
	s.events.Publish(Event{
		Type:      EventTranscription,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"user_id":  userID,
			"text":     ev.Text,
			"is_final": ev.IsFinal,
		},
	})

	if s.live.Active(userID) {
		s.handleLiveTranscription(sess, ev)
		return
	}
	s.listener.HandleTranscription(sess, ev)
}

// StartLive opens a streaming conversation session for the user
func (s *Service) StartLive(userID string) {
	s.live.Start(userID)
}

// StopLive ends the user's streaming session
func (s *Service) StopLive(userID string) {
	s.live.Stop(userID)
}

// LiveActive reports whether the user has a streaming session
func (s *Service) LiveActive(userID string) bool {
	return s.live.Active(userID)
}

// ReapIdleLive stops live sessions with no recent token activity
func (s *Service) ReapIdleLive() {
	s.live.ReapIdle()
}

// Snapshot exposes the sanitized dashboard state
func (s *Service) Snapshot() Snapshot {
	return s.history.Snapshot()
}

// Photo resolves a dashboard photo reference
func (s *Service) Photo(id string) (*entities.Photo, bool) {
	return s.history.Photo(id)
}

// dispatchQuestion is the listener's question-ready callback
func (s *Service) dispatchQuestion(sess *Session, question string) {
	s.scheduler.Enqueue(sess, question)
}

// prompt voices an assistant-originated prompt outside the queue
func (s *Service) prompt(sess *Session, text string) {
	s.speaker.Speak(sess.UserID, sess.Conn, text)
}

// handleRequest processes one dequeued request end to end: entry
// bookkeeping, orchestration, speech, persistence, dashboard events.
// Errors never escape; the scheduler's loop boundary stays clean.
func (s *Service) handleRequest(req *QueuedRequest) {
	entry := entities.NewConversationEntry(req.UserID, req.Question)
	s.history.Append(entry)
	s.events.Publish(Event{
		Type:      EventConversationStarted,
		Timestamp: time.Now(),
		Payload:   sanitize(entry),
	})

	started := time.Now()
	answer := s.orchestrator.Answer(context.Background(), req)
	elapsed := time.Since(started)

	if answer.Tier == TierCanned {
		if err := entry.Fail(answer.Text, elapsed); err != nil {
			s.logger.Error("Entry state error", zap.Error(err))
		}
		s.events.Publish(Event{
			Type:      EventConversationError,
			Timestamp: time.Now(),
			Payload:   sanitize(entry),
		})
	} else {
		if err := entry.Complete(answer.Text, answer.Photo, elapsed); err != nil {
			s.logger.Error("Entry state error", zap.Error(err))
		}
		s.events.Publish(Event{
			Type:      EventConversationCompleted,
			Timestamp: time.Now(),
			Payload:   sanitize(entry),
		})
		s.persist(entry)
	}

	s.logger.Info("Request resolved",
		zap.String("userID", req.UserID),
		zap.String("tier", string(answer.Tier)),
		zap.Duration("elapsed", elapsed))

	s.speaker.Speak(req.UserID, req.Session.Conn, answer.Text)
}

// persist writes a completed entry to the durable memory service
func (s *Service) persist(entry *entities.ConversationEntry) {
	if s.memory == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.memory.SaveConversation(ctx, entry); err != nil {
			s.logger.Warn("Failed to persist conversation",
				zap.String("entryID", entry.ID),
				zap.Error(err))
		}
	}()
}

// handleLiveTranscription routes transcripts inside a live session:
// stop phrases end the session, everything else final becomes a
// streamed model turn.
func (s *Service) handleLiveTranscription(sess *Session, ev repositories.TranscriptionEvent) {
	if !ev.IsFinal {
		return
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	lower := strings.ToLower(text)
	for _, phrase := range liveStopPhrases {
		if strings.Contains(lower, phrase) {
			s.live.Stop(sess.UserID)
			go s.prompt(sess, "Live session ended.")
			return
		}
	}
	go s.handleLiveTurn(sess, text)
}

// handleLiveTurn streams a model reply into the live buffer. Providers
// without streaming fall back to a single buffered push.
func (s *Service) handleLiveTurn(sess *Session, question string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TextTimeout*3)
	defer cancel()

	prompt := "You are Lumen, a voice assistant on smart glasses, in an open conversation. " +
		"Reply briefly and naturally.\nUser: " + question
	opts := repositories.GenerateOptions{MaxTokens: 512, Temperature: 0.8}

	if streamer, ok := s.textModel.(repositories.StreamingTextModel); ok {
		tokens, err := streamer.GenerateStream(ctx, prompt, opts)
		if err == nil {
			for token := range tokens {
				s.live.PushToken(sess.UserID, token)
			}
			return
		}
		s.logger.Warn("Streaming generation failed, falling back",
			zap.String("userID", sess.UserID),
			zap.Error(err))
	}

	text, err := s.textModel.Generate(ctx, prompt, opts)
	if err != nil {
		s.logger.Warn("Live turn failed",
			zap.String("userID", sess.UserID),
			zap.Error(err))
		go s.prompt(sess, PromptApology)
		return
	}
	s.live.PushToken(sess.UserID, text)
}

// speakLive is the live buffer's flush target
func (s *Service) speakLive(userID, text string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.speaker.Speak(userID, sess.Conn, text)
}
