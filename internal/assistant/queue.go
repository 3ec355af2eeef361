package assistant

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// processWideDomain is the scheduling key used when all users share one
// queue.
const processWideDomain = "*"

// Scheduler serializes question processing: per scheduling domain, at
// most one handler invocation is in flight, requests run strictly FIFO,
// and enqueue never blocks the caller. A failure inside one request
// never stalls the queue.
type Scheduler struct {
	logger  *zap.Logger
	perUser bool
	handler func(req *QueuedRequest)

	mu    sync.Mutex
	queue map[string][]*QueuedRequest
	busy  map[string]bool
}

// NewScheduler creates a scheduler. handler is invoked once per request,
// in enqueue order, never concurrently within a domain.
func NewScheduler(perUser bool, handler func(req *QueuedRequest), logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		perUser: perUser,
		handler: handler,
		queue:   make(map[string][]*QueuedRequest),
		busy:    make(map[string]bool),
	}
}

// Enqueue appends a request and kicks the domain's loop if idle
func (s *Scheduler) Enqueue(sess *Session, question string) {
	req := &QueuedRequest{
		Question:   question,
		UserID:     sess.UserID,
		Session:    sess,
		EnqueuedAt: time.Now(),
	}
	domain := s.domainFor(req.UserID)

	s.mu.Lock()
	s.queue[domain] = append(s.queue[domain], req)
	depth := len(s.queue[domain])
	start := !s.busy[domain]
	if start {
		s.busy[domain] = true
	}
	s.mu.Unlock()

	s.logger.Debug("Request enqueued",
		zap.String("userID", req.UserID),
		zap.String("domain", domain),
		zap.Int("queueDepth", depth))

	if start {
		go s.step(domain)
	}
}

// Pending returns the number of queued (not yet dequeued) requests for
// the user's domain.
func (s *Scheduler) Pending(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue[s.domainFor(userID)])
}

// step processes exactly one request, then hands the domain off to a
// fresh goroutine. Advancing asynchronously keeps bursts from growing
// the stack and yields between requests.
func (s *Scheduler) step(domain string) {
	s.mu.Lock()
	q := s.queue[domain]
	if len(q) == 0 {
		s.busy[domain] = false
		s.mu.Unlock()
		return
	}
	req := q[0]
	s.queue[domain] = q[1:]
	s.mu.Unlock()

	s.process(req)

	go s.step(domain)
}

// process runs the handler with the loop-boundary guard: a panic in one
// request is recorded and the queue advances.
func (s *Scheduler) process(req *QueuedRequest) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Request handler panicked",
				zap.String("userID", req.UserID),
				zap.String("question", req.Question),
				zap.Any("panic", r))
		}
	}()
	s.handler(req)
}

func (s *Scheduler) domainFor(userID string) string {
	if s.perUser {
		return userID
	}
	return processWideDomain
}
