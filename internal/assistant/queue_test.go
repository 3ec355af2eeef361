package assistant

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// N requests are handled exactly once each, in enqueue order, and
// handler i+1 never starts before handler i returns.
func TestSchedulerFIFONoOverlap(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var inFlight, maxInFlight int32
	done := make(chan struct{}, 10)

	s := NewScheduler(false, func(req *QueuedRequest) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		order = append(order, req.Question)
		mu.Unlock()
		atomic.AddInt32(&inFlight, -1)
		done <- struct{}{}
	}, zap.NewNop())

	sess := &Session{UserID: "u1", Conn: fakeConn{}}
	const n = 5
	for i := 0; i < n; i++ {
		s.Enqueue(sess, fmt.Sprintf("q%d", i))
	}
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for request %d", i)
		}
	}

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("expected at most 1 handler in flight, saw %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != n {
		t.Fatalf("expected %d invocations, got %d", n, len(order))
	}
	for i, q := range order {
		if want := fmt.Sprintf("q%d", i); q != want {
			t.Errorf("position %d: expected %s, got %s", i, want, q)
		}
	}
}

// A panic inside one request must not stall the queue.
func TestSchedulerSurvivesPanic(t *testing.T) {
	processed := make(chan string, 2)

	s := NewScheduler(false, func(req *QueuedRequest) {
		if req.Question == "boom" {
			panic("handler exploded")
		}
		processed <- req.Question
	}, zap.NewNop())

	sess := &Session{UserID: "u1", Conn: fakeConn{}}
	s.Enqueue(sess, "boom")
	s.Enqueue(sess, "after")

	select {
	case q := <-processed:
		if q != "after" {
			t.Errorf("expected 'after' to be processed, got %q", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled after panic")
	}
}

// A second request for the same user stays queued until the first
// completes.
func TestSchedulerSecondWaitsForFirst(t *testing.T) {
	release := make(chan struct{})
	var started []string
	var mu sync.Mutex

	s := NewScheduler(false, func(req *QueuedRequest) {
		mu.Lock()
		started = append(started, req.Question)
		mu.Unlock()
		if req.Question == "first" {
			<-release
		}
	}, zap.NewNop())

	sess := &Session{UserID: "u1", Conn: fakeConn{}}
	s.Enqueue(sess, "first")
	s.Enqueue(sess, "second")

	if !waitFor(time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(started) == 1
	}) {
		t.Fatal("first request never started")
	}
	if s.Pending("u1") != 1 {
		t.Errorf("expected 1 pending request, got %d", s.Pending("u1"))
	}

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	if len(started) != 1 {
		t.Error("second request started before first completed")
	}
	mu.Unlock()

	close(release)
	if !waitFor(time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(started) == 2 && started[1] == "second"
	}) {
		t.Error("second request was not processed after first completed")
	}
}

// Per-user scheduling lets different users proceed concurrently.
func TestSchedulerPerUserDomains(t *testing.T) {
	var inFlight int32
	both := make(chan struct{})
	var once sync.Once

	s := NewScheduler(true, func(req *QueuedRequest) {
		if atomic.AddInt32(&inFlight, 1) == 2 {
			once.Do(func() { close(both) })
		}
		<-both
		atomic.AddInt32(&inFlight, -1)
	}, zap.NewNop())

	s.Enqueue(&Session{UserID: "alice", Conn: fakeConn{}}, "qa")
	s.Enqueue(&Session{UserID: "bob", Conn: fakeConn{}}, "qb")

	select {
	case <-both:
	case <-time.After(2 * time.Second):
		t.Fatal("expected two users to process concurrently with per-user domains")
	}
}
