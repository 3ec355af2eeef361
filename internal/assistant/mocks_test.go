package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/lumenlabs/lumen-server/domain/entities"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// fakeConn is a no-op device connection
type fakeConn struct{}

func (fakeConn) SendJSON([]byte) error  { return nil }
func (fakeConn) SendAudio([]byte) error { return nil }

// fakeCamera serves a fixed photo or error after an optional delay
type fakeCamera struct {
	mu    sync.Mutex
	photo *entities.Photo
	err   error
	delay time.Duration
	calls int
}

func (c *fakeCamera) RequestPhoto(ctx context.Context, ref string) (*entities.Photo, error) {
	c.mu.Lock()
	c.calls++
	photo, err, delay := c.photo, c.err, c.delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return photo, err
}

func (c *fakeCamera) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeTextModel returns a fixed reply or error
type fakeTextModel struct {
	mu    sync.Mutex
	reply string
	err   error
	delay time.Duration
	calls int
}

func (m *fakeTextModel) Generate(ctx context.Context, prompt string, opts repositories.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	reply, err, delay := m.reply, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (m *fakeTextModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeVisionModel returns a fixed reply or error
type fakeVisionModel struct {
	mu    sync.Mutex
	reply string
	err   error
	delay time.Duration
	calls int
}

func (m *fakeVisionModel) GenerateVision(ctx context.Context, prompt string, photo *entities.Photo, opts repositories.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	reply, err, delay := m.reply, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (m *fakeVisionModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeTTS records completed utterances and honors context cancellation
type fakeTTS struct {
	mu        sync.Mutex
	err       error
	errFirstN int
	delay     time.Duration
	attempts  int
	completed []string
}

func (t *fakeTTS) Speak(ctx context.Context, conn repositories.DeviceConn, text string) error {
	t.mu.Lock()
	t.attempts++
	attempt := t.attempts
	err, delay := t.err, t.delay
	if t.errFirstN > 0 && attempt <= t.errFirstN {
		err = errFake
	}
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.completed = append(t.completed, text)
	t.mu.Unlock()
	return nil
}

func (t *fakeTTS) completedUtterances() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.completed))
	copy(out, t.completed)
	return out
}

func (t *fakeTTS) attemptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// fakeDisplay records shown text
type fakeDisplay struct {
	mu    sync.Mutex
	shown []string
}

func (d *fakeDisplay) ShowText(conn repositories.DeviceConn, text string, duration time.Duration) {
	d.mu.Lock()
	d.shown = append(d.shown, text)
	d.mu.Unlock()
}

func (d *fakeDisplay) shownText() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.shown))
	copy(out, d.shown)
	return out
}

// fakeSink collects dashboard events
type fakeSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *fakeSink) Publish(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *fakeSink) byType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var errFake = errFakeType{}

type errFakeType struct{}

func (errFakeType) Error() string { return "fake failure" }

// waitFor polls cond until it holds or the deadline passes
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
