package websocket

import (
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/internal/assistant"
)

// LiveReaper periodically stops live conversation sessions that have
// gone quiet, so an abandoned "live mode" doesn't hold resources or
// keep bypassing the wake-word listener.
type LiveReaper struct {
	service  *assistant.Service
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewLiveReaper creates a reaper; interval zero picks one minute
func NewLiveReaper(service *assistant.Service, interval time.Duration, logger *zap.Logger) *LiveReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &LiveReaper{
		service:  service,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background reap loop
func (r *LiveReaper) Start() {
	go r.loop()
	r.logger.Info("Live session reaper started")
}

// Stop gracefully stops the reaper
func (r *LiveReaper) Stop() {
	close(r.stopChan)
	r.logger.Info("Live session reaper stopped")
}

func (r *LiveReaper) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.service.ReapIdleLive()
		}
	}
}
