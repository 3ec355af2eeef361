package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/entities"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

const defaultMaxFrameBytes = 4 << 20

// HTTPCamera implements repositories.Camera against the glasses' local
// capture endpoint: a GET on the device's captureRef returns one encoded
// frame with its Content-Type.
type HTTPCamera struct {
	client        *http.Client
	maxFrameBytes int64
	logger        *zap.Logger
}

var _ repositories.Camera = (*HTTPCamera)(nil)

// NewHTTPCamera creates the capture adapter. maxFrameBytes bounds how
// much of a response is read; zero picks the default.
func NewHTTPCamera(maxFrameBytes int64, logger *zap.Logger) *HTTPCamera {
	if maxFrameBytes <= 0 {
		maxFrameBytes = defaultMaxFrameBytes
	}
	return &HTTPCamera{
		// The per-request deadline comes from ctx; the client timeout is
		// only a safety net for callers that pass a background context.
		client:        &http.Client{Timeout: 30 * time.Second},
		maxFrameBytes: maxFrameBytes,
		logger:        logger,
	}
}

// RequestPhoto captures a single frame from the device
func (c *HTTPCamera) RequestPhoto(ctx context.Context, captureRef string) (*entities.Photo, error) {
	if captureRef == "" {
		return nil, fmt.Errorf("capture endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", captureRef, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture request: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("capture endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxFrameBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if int64(len(data)) > c.maxFrameBytes {
		return nil, fmt.Errorf("frame exceeds %d bytes", c.maxFrameBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("capture endpoint returned an empty frame")
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	c.logger.Debug("Frame captured",
		zap.Int("bytes", len(data)),
		zap.String("mimeType", mimeType),
		zap.Duration("elapsed", time.Since(started)))

	return &entities.Photo{MimeType: mimeType, Data: data}, nil
}
