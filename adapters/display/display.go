package display

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// WSDisplay implements repositories.Display by pushing show_text frames
// over the device connection. Delivery is best effort: a write failure
// is logged and swallowed, the heads-up display is a fallback surface.
type WSDisplay struct {
	logger *zap.Logger
}

var _ repositories.Display = (*WSDisplay)(nil)

// NewWSDisplay creates the heads-up display adapter
func NewWSDisplay(logger *zap.Logger) *WSDisplay {
	return &WSDisplay{logger: logger}
}

type showTextFrame struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	DurationMs int64  `json:"duration_ms"`
}

// ShowText renders text on the glasses for the given duration
func (d *WSDisplay) ShowText(conn repositories.DeviceConn, text string, duration time.Duration) {
	payload, err := json.Marshal(showTextFrame{
		Type:       "show_text",
		Text:       text,
		DurationMs: duration.Milliseconds(),
	})
	if err != nil {
		d.logger.Error("Failed to marshal show_text frame", zap.Error(err))
		return
	}
	if err := conn.SendJSON(payload); err != nil {
		d.logger.Warn("Failed to queue show_text frame", zap.Error(err))
	}
}
