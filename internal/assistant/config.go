package assistant

import "time"

// Canned prompts spoken (or displayed) by the assistant itself.
const (
	PromptAcknowledge   = "Yes?"
	PromptGiveUp        = "I didn't hear anything. Say the wake word when you need me."
	PromptListenTimeout = "Let's pick this up later. Say the wake word when you're ready."
	PromptApology       = "Sorry, I couldn't work that out. Could you ask me again?"
)

// Config holds the tunables for the interaction pipeline. Zero values
// are replaced with the defaults below; tests inject short durations.
type Config struct {
	// Wake phrase detection
	WakePhrases           []string
	SilenceTimeout        time.Duration
	MaxListeningTimeout   time.Duration
	MinVoiceActivityChars int

	// Photo capture
	CaptureTimeout     time.Duration
	CaptureSettleDelay time.Duration
	MinCaptureInterval time.Duration
	MaxPhotoBytes      int

	// Inference
	TextTimeout    time.Duration
	VisionTimeout  time.Duration
	VisionAttempts int
	VisionBackoff  time.Duration

	// Speech output
	SpeakTimeout            time.Duration
	SpeakAttempts           int
	SpeakBackoff            time.Duration
	CancelWait              time.Duration
	DisplayFallbackDuration time.Duration

	// Live streaming sessions
	LiveFlushDebounce     time.Duration
	LiveMaxUtteranceChars int
	LiveIdleTimeout       time.Duration

	// Conversation history
	HistoryCap     int
	ContextEntries int

	// Scheduling domain: false serializes all users through one queue,
	// true gives each user their own.
	PerUserScheduling bool

	// Step tracking policy layer
	StepTracking   bool
	ProjectMaxIdle time.Duration
}

// DefaultConfig returns the production configuration
func DefaultConfig() Config {
	return Config{
		WakePhrases: []string{
			"hey lumen",
			"hey, lumen",
			"a lumen",
			"hey luman",
			"hey human",
		},
		SilenceTimeout:        2500 * time.Millisecond,
		MaxListeningTimeout:   45 * time.Second,
		MinVoiceActivityChars: 3,

		CaptureTimeout:     4 * time.Second,
		CaptureSettleDelay: 300 * time.Millisecond,
		MinCaptureInterval: 2 * time.Second,
		MaxPhotoBytes:      1 << 20,

		TextTimeout:    6 * time.Second,
		VisionTimeout:  10 * time.Second,
		VisionAttempts: 2,
		VisionBackoff:  500 * time.Millisecond,

		SpeakTimeout:            8 * time.Second,
		SpeakAttempts:           2,
		SpeakBackoff:            400 * time.Millisecond,
		CancelWait:              250 * time.Millisecond,
		DisplayFallbackDuration: 8 * time.Second,

		LiveFlushDebounce:     500 * time.Millisecond,
		LiveMaxUtteranceChars: 300,
		LiveIdleTimeout:       2 * time.Minute,

		HistoryCap:     50,
		ContextEntries: 5,

		PerUserScheduling: false,

		StepTracking:   true,
		ProjectMaxIdle: 30 * time.Minute,
	}
}

// withDefaults fills in any zero field from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.WakePhrases) == 0 {
		c.WakePhrases = d.WakePhrases
	}
	if c.SilenceTimeout == 0 {
		c.SilenceTimeout = d.SilenceTimeout
	}
	if c.MaxListeningTimeout == 0 {
		c.MaxListeningTimeout = d.MaxListeningTimeout
	}
	if c.MinVoiceActivityChars == 0 {
		c.MinVoiceActivityChars = d.MinVoiceActivityChars
	}
	if c.CaptureTimeout == 0 {
		c.CaptureTimeout = d.CaptureTimeout
	}
	if c.CaptureSettleDelay == 0 {
		c.CaptureSettleDelay = d.CaptureSettleDelay
	}
	if c.MinCaptureInterval == 0 {
		c.MinCaptureInterval = d.MinCaptureInterval
	}
	if c.MaxPhotoBytes == 0 {
		c.MaxPhotoBytes = d.MaxPhotoBytes
	}
	if c.TextTimeout == 0 {
		c.TextTimeout = d.TextTimeout
	}
	if c.VisionTimeout == 0 {
		c.VisionTimeout = d.VisionTimeout
	}
	if c.VisionAttempts == 0 {
		c.VisionAttempts = d.VisionAttempts
	}
	if c.VisionBackoff == 0 {
		c.VisionBackoff = d.VisionBackoff
	}
	if c.SpeakTimeout == 0 {
		c.SpeakTimeout = d.SpeakTimeout
	}
	if c.SpeakAttempts == 0 {
		c.SpeakAttempts = d.SpeakAttempts
	}
	if c.SpeakBackoff == 0 {
		c.SpeakBackoff = d.SpeakBackoff
	}
	if c.CancelWait == 0 {
		c.CancelWait = d.CancelWait
	}
	if c.DisplayFallbackDuration == 0 {
		c.DisplayFallbackDuration = d.DisplayFallbackDuration
	}
	if c.LiveFlushDebounce == 0 {
		c.LiveFlushDebounce = d.LiveFlushDebounce
	}
	if c.LiveMaxUtteranceChars == 0 {
		c.LiveMaxUtteranceChars = d.LiveMaxUtteranceChars
	}
	if c.LiveIdleTimeout == 0 {
		c.LiveIdleTimeout = d.LiveIdleTimeout
	}
	if c.HistoryCap == 0 {
		c.HistoryCap = d.HistoryCap
	}
	if c.ContextEntries == 0 {
		c.ContextEntries = d.ContextEntries
	}
	if c.ProjectMaxIdle == 0 {
		c.ProjectMaxIdle = d.ProjectMaxIdle
	}
	return c
}
