package assistant

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/lumenlabs/lumen-server/domain/entities"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// fakeMemory records saved entries
type fakeMemory struct {
	mu    sync.Mutex
	saved []*entities.ConversationEntry
}

func (m *fakeMemory) SaveConversation(ctx context.Context, entry *entities.ConversationEntry) (string, error) {
	m.mu.Lock()
	m.saved = append(m.saved, entry)
	m.mu.Unlock()
	return entry.ID, nil
}

func (m *fakeMemory) Search(ctx context.Context, userID, query string) ([]*entities.ConversationEntry, error) {
	return nil, nil
}

func (m *fakeMemory) Recent(ctx context.Context, userID string, limit int) ([]*entities.ConversationEntry, error) {
	return nil, nil
}

func (m *fakeMemory) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

type serviceHarness struct {
	svc     *Service
	cam     *fakeCamera
	text    *fakeTextModel
	vision  *fakeVisionModel
	tts     *fakeTTS
	display *fakeDisplay
	memory  *fakeMemory
	sink    *fakeSink
}

func newServiceHarness(t *testing.T) *serviceHarness {
	cfg := DefaultConfig()
	cfg.SilenceTimeout = 100 * time.Millisecond
	cfg.MaxListeningTimeout = 2 * time.Second
	cfg.CaptureSettleDelay = time.Millisecond
	cfg.CaptureTimeout = 100 * time.Millisecond
	cfg.MinCaptureInterval = time.Nanosecond
	cfg.TextTimeout = 100 * time.Millisecond
	cfg.VisionTimeout = 100 * time.Millisecond
	cfg.VisionBackoff = time.Millisecond
	cfg.SpeakTimeout = 100 * time.Millisecond
	cfg.SpeakBackoff = time.Millisecond
	cfg.LiveFlushDebounce = 30 * time.Millisecond

	h := &serviceHarness{
		cam:     &fakeCamera{photo: testPhoto()},
		text:    &fakeTextModel{reply: "text answer"},
		vision:  &fakeVisionModel{reply: "I see a coffee mug."},
		tts:     &fakeTTS{},
		display: &fakeDisplay{},
		memory:  &fakeMemory{},
		sink:    &fakeSink{},
	}
	h.svc = NewService(cfg, h.cam, h.text, h.vision, h.tts, h.display, h.memory, h.sink, zaptest.NewLogger(t))
	return h
}

func (h *serviceHarness) final(userID, text string) {
	h.svc.HandleTranscription(userID, repositories.TranscriptionEvent{Text: text, IsFinal: true})
}

// Wake phrase, then a question: the acknowledgment and the vision
// answer are both spoken, the entry completes, and the dashboard sees
// the started and completed events.
func TestServiceWakeQuestionAnswer(t *testing.T) {
	h := newServiceHarness(t)
	h.svc.RegisterSession("u1", fakeConn{}, "http://device/capture")

	h.final("u1", "hey lumen")
	if !waitFor(time.Second, func() bool {
		for _, u := range h.tts.completedUtterances() {
			if u == PromptAcknowledge {
				return true
			}
		}
		return false
	}) {
		t.Fatal("wake phrase was not acknowledged")
	}

	h.final("u1", "what am I looking at")
	if !waitFor(2*time.Second, func() bool {
		for _, u := range h.tts.completedUtterances() {
			if u == "I see a coffee mug." {
				return true
			}
		}
		return false
	}) {
		t.Fatalf("answer was never spoken, utterances: %v", h.tts.completedUtterances())
	}

	snap := h.svc.Snapshot()
	if len(snap.Entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(snap.Entries))
	}
	e := snap.Entries[0]
	if e.Status != entities.EntryStatusCompleted {
		t.Errorf("expected completed entry, got %s", e.Status)
	}
	if e.Question != "what am I looking at" {
		t.Errorf("unexpected question recorded: %q", e.Question)
	}
	if !e.HasPhoto || e.PhotoRef == "" {
		t.Error("expected a sanitized photo reference on the entry")
	}
	if _, ok := h.svc.Photo(e.PhotoRef); !ok {
		t.Error("photo reference should resolve")
	}

	if len(h.sink.byType(EventConversationStarted)) != 1 {
		t.Error("expected one conversation-started event")
	}
	if len(h.sink.byType(EventConversationCompleted)) != 1 {
		t.Error("expected one conversation-completed event")
	}
	if !waitFor(time.Second, func() bool { return h.memory.savedCount() == 1 }) {
		t.Error("completed entry was never persisted")
	}
}

// When every inference path fails the canned apology is spoken and the
// entry lands in the error state.
func TestServiceTotalFailureSpeaksApology(t *testing.T) {
	h := newServiceHarness(t)
	h.cam.err = errFake
	h.text.err = errFake
	h.svc.RegisterSession("u1", fakeConn{}, "ref")

	h.final("u1", "hey lumen")
	h.final("u1", "what is this")

	if !waitFor(2*time.Second, func() bool {
		for _, u := range h.tts.completedUtterances() {
			if u == PromptApology {
				return true
			}
		}
		return false
	}) {
		t.Fatal("apology was never spoken")
	}

	snap := h.svc.Snapshot()
	if len(snap.Entries) != 1 || snap.Entries[0].Status != entities.EntryStatusError {
		t.Errorf("expected one error entry, got %+v", snap.Entries)
	}
	if len(h.sink.byType(EventConversationError)) != 1 {
		t.Error("expected one conversation-error event")
	}
	if h.memory.savedCount() != 0 {
		t.Error("failed entries must not be persisted")
	}
}

func TestServiceDropsUnknownUser(t *testing.T) {
	h := newServiceHarness(t)

	h.final("ghost", "hey lumen")
	time.Sleep(50 * time.Millisecond)
	if len(h.tts.completedUtterances()) != 0 {
		t.Error("transcription without a session must be dropped")
	}
}

func TestServiceUnregisterClearsState(t *testing.T) {
	h := newServiceHarness(t)
	h.svc.RegisterSession("u1", fakeConn{}, "ref")
	h.final("u1", "hey lumen")
	waitFor(time.Second, func() bool { return len(h.tts.completedUtterances()) == 1 })

	h.svc.UnregisterSession("u1")
	h.final("u1", "what is this")
	time.Sleep(50 * time.Millisecond)
	if got := h.tts.completedUtterances(); len(got) > 1 {
		t.Errorf("unregistered session must not answer, got %v", got)
	}
}

// Live mode bypasses the wake-word machine: finals become model turns
// that flush through the debounced buffer, and a stop phrase ends it.
func TestServiceLiveSession(t *testing.T) {
	h := newServiceHarness(t)
	h.text.reply = "Paris is the capital of France."
	h.svc.RegisterSession("u1", fakeConn{}, "ref")
	h.svc.StartLive("u1")

	h.final("u1", "what's the capital of France")
	if !waitFor(2*time.Second, func() bool {
		for _, u := range h.tts.completedUtterances() {
			if u == "Paris is the capital of France." {
				return true
			}
		}
		return false
	}) {
		t.Fatalf("live reply never spoken, got %v", h.tts.completedUtterances())
	}
	if h.cam.callCount() != 0 {
		t.Error("live turns must not trigger photo capture")
	}

	h.final("u1", "okay stop live")
	if !waitFor(time.Second, func() bool { return !h.svc.live.Active("u1") }) {
		t.Error("stop phrase should end the live session")
	}
}
