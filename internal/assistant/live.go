package assistant

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// liveSession buffers streamed response tokens for one user and flushes
// them to speech after a quiet period in the token stream.
type liveSession struct {
	startedAt      time.Time
	lastActivityAt time.Time
	buf            strings.Builder
	isBuffering    bool
	flushTimer     *time.Timer
}

// LiveManager owns the streaming ("live") sessions. Exactly one live
// session may be active per user; it dies on an explicit stop, on
// inactivity, or when its transport errors out.
type LiveManager struct {
	cfg    Config
	speak  func(userID, text string)
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// NewLiveManager creates a live session manager. speak receives each
// flushed, length-bounded utterance.
func NewLiveManager(cfg Config, speak func(userID, text string), logger *zap.Logger) *LiveManager {
	return &LiveManager{
		cfg:      cfg.withDefaults(),
		speak:    speak,
		logger:   logger,
		sessions: make(map[string]*liveSession),
	}
}

// Start opens a live session for the user. Starting while one is
// already active is a no-op.
func (m *LiveManager) Start(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[userID]; ok {
		return
	}
	now := time.Now()
	m.sessions[userID] = &liveSession{startedAt: now, lastActivityAt: now}
	m.logger.Info("Live session started", zap.String("userID", userID))
}

// Active reports whether the user has a live session
func (m *LiveManager) Active(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// PushToken appends streamed response text and (re)arms the debounce
// flush. Tokens arriving before the quiet period resets the timer, so
// only complete buffered sentences reach the speaker.
func (m *LiveManager) PushToken(userID, token string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	sess.buf.WriteString(token)
	sess.isBuffering = true
	sess.lastActivityAt = time.Now()

	if sess.flushTimer != nil {
		sess.flushTimer.Stop()
	}
	sess.flushTimer = time.AfterFunc(m.cfg.LiveFlushDebounce, func() {
		m.flush(userID)
	})
	m.mu.Unlock()
}

// flush speaks whatever has accumulated, bounded for TTS latency
func (m *LiveManager) flush(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if !ok || !sess.isBuffering {
		m.mu.Unlock()
		return
	}
	text := strings.TrimSpace(sess.buf.String())
	sess.buf.Reset()
	sess.isBuffering = false
	m.mu.Unlock()

	if text == "" {
		return
	}
	m.speak(userID, truncateUtterance(text, m.cfg.LiveMaxUtteranceChars))
}

// Stop tears down the user's live session, discarding unflushed text
func (m *LiveManager) Stop(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if ok {
		if sess.flushTimer != nil {
			sess.flushTimer.Stop()
		}
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if ok {
		m.logger.Info("Live session stopped", zap.String("userID", userID))
	}
}

// ReapIdle stops sessions with no token activity inside the idle window
func (m *LiveManager) ReapIdle() {
	m.mu.Lock()
	var idle []string
	for userID, sess := range m.sessions {
		if time.Since(sess.lastActivityAt) > m.cfg.LiveIdleTimeout {
			idle = append(idle, userID)
		}
	}
	m.mu.Unlock()
	for _, userID := range idle {
		m.logger.Info("Reaping idle live session", zap.String("userID", userID))
		m.Stop(userID)
	}
}

// truncateUtterance bounds text for speech. Oversized text is cut at
// the last sentence boundary inside the limit, falling back to the last
// word boundary, then to a hard cut.
func truncateUtterance(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	prefix := text[:max]

	cut := -1
	for _, boundary := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(prefix, boundary); i > cut {
			cut = i
		}
	}
	// Sentence-ending rune right at the edge
	if last := prefix[len(prefix)-1]; cut < len(prefix)-1 && (last == '.' || last == '!' || last == '?') {
		return prefix
	}
	if cut >= 0 {
		return prefix[:cut+1]
	}

	if i := strings.LastIndex(prefix, " "); i > 0 {
		return prefix[:i]
	}
	return prefix
}
