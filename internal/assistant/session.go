package assistant

import (
	"time"

	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// Session is the per-user context handed through the pipeline. One
// session exists per connected device; all per-user state hangs off the
// registry keyed by UserID, never off package globals.
type Session struct {
	UserID     string
	Conn       repositories.DeviceConn
	CaptureRef string
	StartedAt  time.Time
}

// QueuedRequest is a dispatched question waiting for (or undergoing)
// processing. Requests are immutable once enqueued.
type QueuedRequest struct {
	Question   string
	UserID     string
	Session    *Session
	EnqueuedAt time.Time
}
