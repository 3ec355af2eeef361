package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/lumenlabs/lumen-server/domain/entities"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

const (
	defaultTextModel   = "gemini-2.0-flash"
	defaultVisionModel = "gemini-2.0-flash"
	defaultTemperature = 0.7
	defaultTopP        = 0.95
	defaultTopK        = 40
	defaultMaxTokens   = 1024
)

// GeminiConfig configures the Gemini adapter
type GeminiConfig struct {
	APIKey          string
	TextModel       string
	VisionModel     string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
}

// GeminiConfigFromEnv builds a config from environment variables
func GeminiConfigFromEnv() GeminiConfig {
	return GeminiConfig{
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		TextModel:   os.Getenv("GEMINI_TEXT_MODEL"),
		VisionModel: os.Getenv("GEMINI_VISION_MODEL"),
	}
}

// Validate validates the GeminiConfig
func (c GeminiConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("Gemini API key is required")
	}
	if c.Temperature != 0 && (c.Temperature < 0 || c.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", c.Temperature)
	}
	if c.TopP != 0 && (c.TopP < 0 || c.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", c.TopP)
	}
	if c.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", c.TopK)
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", c.MaxOutputTokens)
	}
	return nil
}

func (c GeminiConfig) withDefaults(logger *zap.Logger) GeminiConfig {
	if c.TextModel == "" {
		c.TextModel = defaultTextModel
		logger.Info("Using default text model", zap.String("model", c.TextModel))
	}
	if c.VisionModel == "" {
		c.VisionModel = defaultVisionModel
		logger.Info("Using default vision model", zap.String("model", c.VisionModel))
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = defaultTopP
	}
	if c.TopK == 0 {
		c.TopK = defaultTopK
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = defaultMaxTokens
	}
	return c
}

// Gemini serves text, streaming and vision inference through Google's
// Gemini API. It implements repositories.TextModel,
// repositories.StreamingTextModel and repositories.VisionModel.
type Gemini struct {
	client *genai.Client
	config GeminiConfig
	logger *zap.Logger
}

// NewGemini creates a Gemini adapter from the given config
func NewGemini(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults(logger)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Generate returns the model's reply to a text-only prompt
func (g *Gemini) Generate(ctx context.Context, prompt string, opts repositories.GenerateOptions) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	response, err := g.client.Models.GenerateContent(ctx, g.config.TextModel, contents, g.generateConfig(opts))
	if err != nil {
		return "", fmt.Errorf("text generation failed: %w", err)
	}
	return extractText(response)
}

// GenerateStream streams reply tokens over a channel. The channel is
// closed when the reply ends or the context is done.
func (g *Gemini) GenerateStream(ctx context.Context, prompt string, opts repositories.GenerateOptions) (<-chan string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	stream := g.client.Models.GenerateContentStream(ctx, g.config.TextModel, contents, g.generateConfig(opts))

	tokens := make(chan string, 16)
	go func() {
		defer close(tokens)
		for response, err := range stream {
			if err != nil {
				g.logger.Warn("Streaming generation interrupted", zap.Error(err))
				return
			}
			text, err := extractText(response)
			if err != nil {
				continue
			}
			select {
			case tokens <- text:
			case <-ctx.Done():
				return
			}
		}
	}()
	return tokens, nil
}

// GenerateVision returns the model's reply to a prompt grounded on a photo
func (g *Gemini) GenerateVision(ctx context.Context, prompt string, photo *entities.Photo, opts repositories.GenerateOptions) (string, error) {
	if photo == nil || len(photo.Data) == 0 {
		return "", fmt.Errorf("vision generation requires a photo payload")
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(photo.Data, photo.MimeType),
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	response, err := g.client.Models.GenerateContent(ctx, g.config.VisionModel, contents, g.generateConfig(opts))
	if err != nil {
		return "", fmt.Errorf("vision generation failed: %w", err)
	}
	return extractText(response)
}

func (g *Gemini) generateConfig(opts repositories.GenerateOptions) *genai.GenerateContentConfig {
	temperature := g.config.Temperature
	if opts.Temperature != 0 {
		temperature = opts.Temperature
	}
	maxTokens := g.config.MaxOutputTokens
	if opts.MaxTokens != 0 {
		maxTokens = opts.MaxTokens
	}
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		TopP:            genai.Ptr(g.config.TopP),
		TopK:            genai.Ptr(g.config.TopK),
		MaxOutputTokens: int32(maxTokens),
	}
}

// extractText concatenates the text parts of the first candidate
func extractText(response *genai.GenerateContentResponse) (string, error) {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}

	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response")
	}
	return b.String(), nil
}
