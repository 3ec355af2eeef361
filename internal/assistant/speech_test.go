package assistant

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func testSpeakerConfig() Config {
	cfg := DefaultConfig()
	cfg.SpeakTimeout = 200 * time.Millisecond
	cfg.SpeakBackoff = 5 * time.Millisecond
	cfg.CancelWait = 50 * time.Millisecond
	return cfg
}

// A newer utterance supersedes an older one: only the newer text is
// audibly completed.
func TestSpeakerCancellationSupersedes(t *testing.T) {
	tts := &fakeTTS{delay: 150 * time.Millisecond}
	display := &fakeDisplay{}
	sp := NewSpeaker(testSpeakerConfig(), tts, display, zap.NewNop())

	first := make(chan struct{})
	go func() {
		defer close(first)
		sp.Speak("u1", fakeConn{}, "A")
	}()
	time.Sleep(30 * time.Millisecond)
	sp.Speak("u1", fakeConn{}, "B")
	<-first

	completed := tts.completedUtterances()
	if len(completed) != 1 || completed[0] != "B" {
		t.Errorf("expected only B to complete, got %v", completed)
	}
	if len(display.shownText()) != 0 {
		t.Error("cancellation must not trigger the display fallback")
	}
}

func TestSpeakerRetriesThenSucceeds(t *testing.T) {
	tts := &fakeTTS{errFirstN: 1}
	display := &fakeDisplay{}
	sp := NewSpeaker(testSpeakerConfig(), tts, display, zap.NewNop())

	sp.Speak("u1", fakeConn{}, "hello")

	completed := tts.completedUtterances()
	if len(completed) != 1 || completed[0] != "hello" {
		t.Errorf("expected the retry to complete the utterance, got %v", completed)
	}
	if got := tts.attemptCount(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	if len(display.shownText()) != 0 {
		t.Error("successful retry must not use the display fallback")
	}
}

// Exhausted retries surface the answer on the display, never silently.
func TestSpeakerFallsBackToDisplay(t *testing.T) {
	cfg := testSpeakerConfig()
	tts := &fakeTTS{err: errFake}
	display := &fakeDisplay{}
	sp := NewSpeaker(cfg, tts, display, zap.NewNop())

	sp.Speak("u1", fakeConn{}, "important answer")

	if got := tts.attemptCount(); got != cfg.SpeakAttempts {
		t.Errorf("expected %d attempts, got %d", cfg.SpeakAttempts, got)
	}
	shown := display.shownText()
	if len(shown) != 1 || shown[0] != "important answer" {
		t.Errorf("expected display fallback with the answer, got %v", shown)
	}
}

// Cancelling between attempts aborts the retry loop without the
// display fallback.
func TestSpeakerCancelAbortsRetries(t *testing.T) {
	cfg := testSpeakerConfig()
	cfg.SpeakBackoff = 200 * time.Millisecond
	tts := &fakeTTS{err: errFake}
	display := &fakeDisplay{}
	sp := NewSpeaker(cfg, tts, display, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		sp.Speak("u1", fakeConn{}, "doomed")
	}()
	time.Sleep(50 * time.Millisecond) // first attempt failed, now in backoff
	sp.Cancel("u1")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Speak did not return promptly after cancellation")
	}
	if got := tts.attemptCount(); got != 1 {
		t.Errorf("expected retry loop aborted after 1 attempt, got %d", got)
	}
	if len(display.shownText()) != 0 {
		t.Error("cancellation must not trigger the display fallback")
	}
}

// Cancellation never crosses users.
func TestSpeakerCancelIsPerUser(t *testing.T) {
	tts := &fakeTTS{delay: 80 * time.Millisecond}
	display := &fakeDisplay{}
	sp := NewSpeaker(testSpeakerConfig(), tts, display, zap.NewNop())

	aliceDone := make(chan struct{})
	go func() {
		defer close(aliceDone)
		sp.Speak("alice", fakeConn{}, "alice answer")
	}()
	time.Sleep(20 * time.Millisecond)
	sp.Speak("bob", fakeConn{}, "bob answer")
	<-aliceDone

	completed := tts.completedUtterances()
	if len(completed) != 2 {
		t.Fatalf("expected both users' utterances to complete, got %v", completed)
	}
}
