package assistant

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLiveConfig() Config {
	cfg := DefaultConfig()
	cfg.LiveFlushDebounce = 40 * time.Millisecond
	return cfg
}

type flushRecorder struct {
	mu      sync.Mutex
	flushes []string
}

func (r *flushRecorder) speak(userID, text string) {
	r.mu.Lock()
	r.flushes = append(r.flushes, text)
	r.mu.Unlock()
}

func (r *flushRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.flushes))
	copy(out, r.flushes)
	return out
}

// Tokens arriving inside the debounce window accumulate into a single
// flushed utterance.
func TestLiveDebounceFlush(t *testing.T) {
	rec := &flushRecorder{}
	m := NewLiveManager(testLiveConfig(), rec.speak, zap.NewNop())
	m.Start("u1")

	m.PushToken("u1", "The capital ")
	time.Sleep(10 * time.Millisecond)
	m.PushToken("u1", "of France ")
	time.Sleep(10 * time.Millisecond)
	m.PushToken("u1", "is Paris.")

	if len(rec.all()) != 0 {
		t.Error("buffer must not flush while tokens are still arriving")
	}
	if !waitFor(time.Second, func() bool { return len(rec.all()) == 1 }) {
		t.Fatal("expected one flush after the quiet period")
	}
	if got := rec.all()[0]; got != "The capital of France is Paris." {
		t.Errorf("unexpected flushed text: %q", got)
	}
}

func TestLiveStopDiscardsBuffer(t *testing.T) {
	rec := &flushRecorder{}
	m := NewLiveManager(testLiveConfig(), rec.speak, zap.NewNop())
	m.Start("u1")

	m.PushToken("u1", "half a sen")
	m.Stop("u1")

	time.Sleep(100 * time.Millisecond)
	if len(rec.all()) != 0 {
		t.Errorf("stopped session must not flush, got %v", rec.all())
	}
	if m.Active("u1") {
		t.Error("session should be gone after Stop")
	}
}

func TestLiveTokensWithoutSessionDropped(t *testing.T) {
	rec := &flushRecorder{}
	m := NewLiveManager(testLiveConfig(), rec.speak, zap.NewNop())

	m.PushToken("u1", "orphan tokens")
	time.Sleep(100 * time.Millisecond)
	if len(rec.all()) != 0 {
		t.Error("tokens without a session must be dropped")
	}
}

func TestTruncateUtterance(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{
			name: "short text unchanged",
			text: "Hello there.",
			max:  300,
			want: "Hello there.",
		},
		{
			name: "cut at sentence boundary",
			text: "First sentence. Second sentence. " + strings.Repeat("x", 300),
			max:  40,
			want: "First sentence. Second sentence.",
		},
		{
			name: "cut at word boundary when no sentence fits",
			text: "one two three four five six seven eight nine ten",
			max:  20,
			want: "one two three four",
		},
		{
			name: "hard cut with no spaces",
			text: strings.Repeat("a", 50),
			max:  10,
			want: strings.Repeat("a", 10),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateUtterance(tt.text, tt.max); got != tt.want {
				t.Errorf("truncateUtterance(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.want)
			}
		})
	}
}
