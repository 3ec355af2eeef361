package assistant

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// listeningState tracks one user's wake/listening window
type listeningState struct {
	isListening bool
	wakeAt      time.Time
	lastVoiceAt time.Time
	hasSpoken   bool

	// epoch invalidates the silence monitor of a superseded window
	epoch uint64
}

// Listener decides, from the stream of transcription events, when a
// question is ready for dispatch. States: Idle -> (wake phrase on a
// final transcript) -> Listening -> (final transcript, silence timeout
// or max timeout) -> Idle.
type Listener struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]*listeningState

	// onQuestion dispatches a ready question into the request queue
	onQuestion func(sess *Session, question string)
	// onPrompt speaks an assistant-originated prompt (ack, give-up, timeout)
	onPrompt func(sess *Session, text string)
}

// NewListener creates a listener with the given callbacks
func NewListener(cfg Config, onQuestion func(*Session, string), onPrompt func(*Session, string), logger *zap.Logger) *Listener {
	return &Listener{
		cfg:        cfg.withDefaults(),
		logger:     logger,
		states:     make(map[string]*listeningState),
		onQuestion: onQuestion,
		onPrompt:   onPrompt,
	}
}

// HandleTranscription consumes one transcription event for a session.
// Events must be delivered in arrival order per user.
func (l *Listener) HandleTranscription(sess *Session, ev repositories.TranscriptionEvent) {
	text := strings.TrimSpace(ev.Text)

	l.mu.Lock()
	st := l.state(sess.UserID)

	if !st.isListening {
		// Idle: only final transcripts are tested for the wake phrase
		if !ev.IsFinal || !l.matchesWakePhrase(text) {
			l.mu.Unlock()
			return
		}
		now := time.Now()
		st.isListening = true
		st.wakeAt = now
		st.lastVoiceAt = time.Time{}
		st.hasSpoken = false
		st.epoch++
		epoch := st.epoch
		l.mu.Unlock()

		l.logger.Info("Wake phrase recognized, listening",
			zap.String("userID", sess.UserID),
			zap.String("transcript", text))

		go l.onPrompt(sess, PromptAcknowledge)
		go l.monitor(sess, epoch)
		return
	}

	// Listening: everything said now is the question, never a new command
	if len(text) >= l.cfg.MinVoiceActivityChars {
		st.lastVoiceAt = time.Now()
		st.hasSpoken = true
	}

	if ev.IsFinal && text != "" {
		l.resetLocked(st)
		l.mu.Unlock()

		l.logger.Info("Question dispatched",
			zap.String("userID", sess.UserID),
			zap.String("question", text))

		l.onQuestion(sess, text)
		return
	}
	l.mu.Unlock()
}

// IsListening reports whether the user is inside a listening window
func (l *Listener) IsListening(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.states[userID]
	return ok && st.isListening
}

// Forget drops all listening state for a disconnected user
func (l *Listener) Forget(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.states[userID]; ok {
		l.resetLocked(st)
		delete(l.states, userID)
	}
}

// monitor watches one listening window for silence and the hard upper
// bound. It exits as soon as the window's epoch is superseded.
func (l *Listener) monitor(sess *Session, epoch uint64) {
	interval := l.cfg.SilenceTimeout / 5
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > 250*time.Millisecond {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		st, ok := l.states[sess.UserID]
		if !ok || !st.isListening || st.epoch != epoch {
			l.mu.Unlock()
			return
		}

		now := time.Now()

		// The hard upper bound wins over the silence check when both
		// have elapsed.
		if now.Sub(st.wakeAt) >= l.cfg.MaxListeningTimeout {
			l.resetLocked(st)
			l.mu.Unlock()
			l.logger.Info("Listening window expired",
				zap.String("userID", sess.UserID))
			l.onPrompt(sess, PromptListenTimeout)
			return
		}

		silenceBase := st.wakeAt
		if st.hasSpoken {
			silenceBase = st.lastVoiceAt
		}
		if now.Sub(silenceBase) >= l.cfg.SilenceTimeout {
			spoke := st.hasSpoken
			l.resetLocked(st)
			l.mu.Unlock()
			if spoke {
				// Partial speech that never became a final transcript:
				// give up quietly.
				l.logger.Debug("Silence after partial speech, resetting",
					zap.String("userID", sess.UserID))
				return
			}
			l.logger.Info("Heard nothing after wake, giving up",
				zap.String("userID", sess.UserID))
			l.onPrompt(sess, PromptGiveUp)
			return
		}
		l.mu.Unlock()
	}
}

func (l *Listener) state(userID string) *listeningState {
	st, ok := l.states[userID]
	if !ok {
		st = &listeningState{}
		l.states[userID] = st
	}
	return st
}

// resetLocked returns the state to Idle and invalidates its monitor.
// Caller holds l.mu.
func (l *Listener) resetLocked(st *listeningState) {
	st.isListening = false
	st.wakeAt = time.Time{}
	st.lastVoiceAt = time.Time{}
	st.hasSpoken = false
	st.epoch++
}

// matchesWakePhrase does a case-insensitive substring match over the
// accepted phrasings, tolerating recognition noise around the phrase.
func (l *Listener) matchesWakePhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range l.cfg.WakePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
