package assistant

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// utterance is one in-flight speech operation. cancel signals
// supersession; done closes once the operation has fully unwound.
type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Speaker delivers spoken answers with at most one audible utterance per
// user. A newer utterance cancels the older one; the remote call may
// still complete but its result is discarded. Exhausted retries fall
// back to the heads-up display so the user always gets the answer in
// some modality.
type Speaker struct {
	cfg     Config
	tts     repositories.SpeechOutput
	display repositories.Display
	logger  *zap.Logger

	mu     sync.Mutex
	active map[string]*utterance
}

// NewSpeaker creates a speaker
func NewSpeaker(cfg Config, tts repositories.SpeechOutput, display repositories.Display, logger *zap.Logger) *Speaker {
	return &Speaker{
		cfg:     cfg.withDefaults(),
		tts:     tts,
		display: display,
		logger:  logger,
		active:  make(map[string]*utterance),
	}
}

// Speak voices text to the user's device, superseding any utterance
// already in flight for that user. It blocks until the utterance is
// delivered, cancelled, or the display fallback has fired.
func (sp *Speaker) Speak(userID string, conn repositories.DeviceConn, text string) {
	if text == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	utt := &utterance{cancel: cancel, done: make(chan struct{})}

	sp.mu.Lock()
	prev := sp.active[userID]
	sp.active[userID] = utt
	sp.mu.Unlock()

	defer func() {
		cancel()
		close(utt.done)
		sp.mu.Lock()
		if sp.active[userID] == utt {
			delete(sp.active, userID)
		}
		sp.mu.Unlock()
	}()

	if prev != nil {
		prev.cancel()
		// Give the superseded operation a beat to unwind before talking
		// over it.
		select {
		case <-prev.done:
		case <-time.After(sp.cfg.CancelWait):
		}
	}

	for attempt := 1; attempt <= sp.cfg.SpeakAttempts; attempt++ {
		if ctx.Err() != nil {
			sp.logger.Debug("Utterance superseded, dropping",
				zap.String("userID", userID))
			return
		}

		attemptCtx, attemptCancel := context.WithTimeout(ctx, sp.cfg.SpeakTimeout)
		err := sp.tts.Speak(attemptCtx, conn, text)
		attemptCancel()

		if err == nil {
			return
		}
		if ctx.Err() != nil {
			// Cancellation is not a failure
			sp.logger.Debug("Utterance cancelled mid-attempt",
				zap.String("userID", userID))
			return
		}

		sp.logger.Warn("Speech attempt failed",
			zap.String("userID", userID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < sp.cfg.SpeakAttempts {
			select {
			case <-time.After(sp.cfg.SpeakBackoff):
			case <-ctx.Done():
				return
			}
		}
	}

	if ctx.Err() != nil {
		return
	}

	sp.logger.Warn("Speech retries exhausted, showing text instead",
		zap.String("userID", userID))
	sp.display.ShowText(conn, text, sp.cfg.DisplayFallbackDuration)
}

// Cancel discards any in-flight utterance for the user
func (sp *Speaker) Cancel(userID string) {
	sp.mu.Lock()
	utt := sp.active[userID]
	sp.mu.Unlock()
	if utt != nil {
		utt.cancel()
	}
}
