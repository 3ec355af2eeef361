package repositories

import (
	"context"

	"github.com/lumenlabs/lumen-server/domain/entities"
)

// GenerateOptions tunes a single inference call
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
}

// TextModel abstracts a text-only inference provider
type TextModel interface {
	// Generate takes a prompt and returns the model's reply
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// StreamingTextModel is an optional extension of TextModel for
// providers that can stream partial replies.
type StreamingTextModel interface {
	// GenerateStream returns a channel of reply tokens. The channel is
	// closed when the reply ends or the context is done.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, error)
}

// VisionModel abstracts an image-grounded inference provider
type VisionModel interface {
	// GenerateVision takes a prompt plus a photo and returns the model's reply
	GenerateVision(ctx context.Context, prompt string, photo *entities.Photo, opts GenerateOptions) (string, error)
}
