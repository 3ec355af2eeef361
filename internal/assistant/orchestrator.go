package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/entities"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// Failure taxonomy for the capture/inference pipeline. Every one of
// these is absorbed into a fallback tier; none escapes Answer.
var (
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrCaptureFailed      = errors.New("capture failed")
	ErrInferenceTimeout   = errors.New("inference timed out")
	ErrInferenceEmpty     = errors.New("inference returned empty response")
	ErrInferenceFailed    = errors.New("inference failed")
)

// Tier identifies which degradation level produced the answer
type Tier string

const (
	TierVision Tier = "vision"
	TierText   Tier = "text"
	TierCanned Tier = "canned"
)

// Answer is the orchestrator's result. Text is never empty.
type Answer struct {
	Text  string
	Photo *entities.Photo
	Tier  Tier
}

type captureOutcome struct {
	photo *entities.Photo
	err   error
}

type textOutcome struct {
	text string
	err  error
}

// Orchestrator resolves a question into an answer. It races photo
// capture against a cheap text-only inference, prefers a vision-grounded
// reply, and degrades vision -> text -> canned without ever failing.
type Orchestrator struct {
	cfg         Config
	camera      repositories.Camera
	textModel   repositories.TextModel
	visionModel repositories.VisionModel
	history     *History
	steps       *StepTracker
	logger      *zap.Logger

	mu            sync.Mutex
	activeCapture map[string]bool
	lastCaptureAt map[string]time.Time
}

// NewOrchestrator creates an orchestrator. steps may be nil when the
// step-tracking policy is disabled.
func NewOrchestrator(
	cfg Config,
	camera repositories.Camera,
	textModel repositories.TextModel,
	visionModel repositories.VisionModel,
	history *History,
	steps *StepTracker,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg.withDefaults(),
		camera:        camera,
		textModel:     textModel,
		visionModel:   visionModel,
		history:       history,
		steps:         steps,
		logger:        logger,
		activeCapture: make(map[string]bool),
		lastCaptureAt: make(map[string]time.Time),
	}
}

// Answer resolves one question. Capture and text inference run
// concurrently and are joined settle-style: each branch reports success
// or failure, neither cancels the other.
func (o *Orchestrator) Answer(ctx context.Context, req *QueuedRequest) Answer {
	var stepCtx string
	stepMode := false
	if o.steps != nil {
		stepCtx, stepMode = o.steps.Prepare(req.UserID, req.Question)
	}
	prompt := o.buildPrompt(req, stepCtx, false)
	visionPrompt := o.buildPrompt(req, stepCtx, true)

	captureCh := make(chan captureOutcome, 1)
	textCh := make(chan textOutcome, 1)

	go func() {
		photo, err := o.capture(ctx, req)
		captureCh <- captureOutcome{photo: photo, err: err}
	}()
	go func() {
		text, err := o.generateText(ctx, prompt)
		textCh <- textOutcome{text: text, err: err}
	}()

	capRes := <-captureCh
	txtRes := <-textCh

	if capRes.err != nil {
		level := o.logger.Warn
		if errors.Is(capRes.err, ErrCaptureUnavailable) {
			level = o.logger.Debug
		}
		level("Proceeding without photo",
			zap.String("userID", req.UserID),
			zap.Error(capRes.err))
	}

	answer := o.resolve(ctx, req, capRes, txtRes, visionPrompt)

	if stepMode && answer.Tier != TierCanned {
		o.steps.Record(req.UserID, req.Question, answer.Text)
	}
	return answer
}

// resolve walks the fallback tiers with whatever the two branches produced
func (o *Orchestrator) resolve(ctx context.Context, req *QueuedRequest, capRes captureOutcome, txtRes textOutcome, visionPrompt string) Answer {
	if capRes.err == nil && capRes.photo != nil {
		if capRes.photo.Size() > o.cfg.MaxPhotoBytes {
			o.logger.Warn("Photo exceeds payload ceiling, skipping vision tier",
				zap.String("userID", req.UserID),
				zap.Int("bytes", capRes.photo.Size()))
		} else if text, err := o.generateVision(ctx, visionPrompt, capRes.photo); err == nil {
			return Answer{Text: text, Photo: capRes.photo, Tier: TierVision}
		}
	}

	if txtRes.err == nil && txtRes.text != "" {
		return Answer{Text: txtRes.text, Photo: capRes.photo, Tier: TierText}
	}

	o.logger.Warn("All inference tiers failed, using canned reply",
		zap.String("userID", req.UserID),
		zap.NamedError("captureErr", capRes.err),
		zap.NamedError("textErr", txtRes.err))
	return Answer{Text: PromptApology, Tier: TierCanned}
}

// capture grabs a photo from the glasses, guarded against request
// storms: a concurrent capture or one inside the minimum interval for
// this user reports unavailable rather than touching the camera.
func (o *Orchestrator) capture(ctx context.Context, req *QueuedRequest) (*entities.Photo, error) {
	userID := req.UserID

	o.mu.Lock()
	if o.activeCapture[userID] {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: capture already in flight", ErrCaptureUnavailable)
	}
	if last, ok := o.lastCaptureAt[userID]; ok && time.Since(last) < o.cfg.MinCaptureInterval {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: captured %s ago", ErrCaptureUnavailable, time.Since(last).Round(time.Millisecond))
	}
	o.activeCapture[userID] = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.activeCapture[userID] = false
		o.mu.Unlock()
	}()

	// Give the camera a moment to expose before grabbing the frame
	select {
	case <-time.After(o.cfg.CaptureSettleDelay):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, ctx.Err())
	}

	cctx, cancel := context.WithTimeout(ctx, o.cfg.CaptureTimeout)
	defer cancel()

	photo, err := o.camera.RequestPhoto(cctx, req.Session.CaptureRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if photo == nil || len(photo.Data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrCaptureFailed)
	}

	o.mu.Lock()
	o.lastCaptureAt[userID] = time.Now()
	o.mu.Unlock()

	return photo, nil
}

// generateText runs the cheap text-only inference with its own timeout
func (o *Orchestrator) generateText(ctx context.Context, prompt string) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, o.cfg.TextTimeout)
	defer cancel()

	text, err := o.textModel.Generate(tctx, prompt, repositories.GenerateOptions{
		MaxTokens:   256,
		Temperature: 0.7,
	})
	if err != nil {
		return "", classifyInferenceErr(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrInferenceEmpty
	}
	return text, nil
}

// generateVision runs the vision tier: a fixed number of attempts with
// brief backoff, each attempt racing its own timer. A timeout counts as
// a failed attempt like any other error.
func (o *Orchestrator) generateVision(ctx context.Context, prompt string, photo *entities.Photo) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.VisionAttempts; attempt++ {
		vctx, cancel := context.WithTimeout(ctx, o.cfg.VisionTimeout)
		text, err := o.visionModel.GenerateVision(vctx, prompt, photo, repositories.GenerateOptions{
			MaxTokens:   256,
			Temperature: 0.7,
		})
		cancel()

		if err == nil {
			text = strings.TrimSpace(text)
			if text != "" {
				return text, nil
			}
			err = ErrInferenceEmpty
		} else {
			err = classifyInferenceErr(err)
		}
		lastErr = err

		o.logger.Warn("Vision inference attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < o.cfg.VisionAttempts {
			select {
			case <-time.After(o.cfg.VisionBackoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrInferenceFailed, ctx.Err())
			}
		}
	}
	return "", lastErr
}

// buildPrompt assembles the model prompt from the persona, recent
// completed history, any active step context and the question itself.
func (o *Orchestrator) buildPrompt(req *QueuedRequest, stepCtx string, vision bool) string {
	var b strings.Builder
	b.WriteString("You are Lumen, a voice assistant running on smart glasses. ")
	b.WriteString("Reply in one or two short spoken sentences.\n")

	if o.history != nil {
		if hist := o.history.BuildContext(req.UserID, o.cfg.ContextEntries); hist != "" {
			b.WriteString("\nRecent conversation:\n")
			b.WriteString(hist)
		}
	}
	if stepCtx != "" {
		b.WriteString("\n")
		b.WriteString(stepCtx)
	}
	if vision {
		b.WriteString("\nThe attached photo shows what the user is looking at right now.")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(req.Question)
	return b.String()
}

func classifyInferenceErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrInferenceFailed, err)
}
