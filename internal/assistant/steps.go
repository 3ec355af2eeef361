package assistant

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/entities"
)

// Phrasings that open a guided project
var stepInitiationPhrases = []string{
	"help me build",
	"help me make",
	"help me fix",
	"help me set up",
	"how do i build",
	"how do i make",
	"how do i fix",
	"how to build",
	"how to make",
	"how to fix",
	"walk me through",
	"guide me through",
}

// Phrasings that ask for the next step of the active project
var stepContinuationPhrases = []string{
	"what's next",
	"whats next",
	"what is next",
	"next step",
	"then what",
	"what now",
	"done",
	"okay done",
	"ok done",
	"finished that",
	"did that",
	"i did it",
}

// StepTracker layers a one-step-at-a-time instruction policy over the
// orchestrator. It rewrites prompts; it never runs its own pipeline.
type StepTracker struct {
	maxIdle  func(p *entities.StepProject) bool
	logger   *zap.Logger
	mu       sync.Mutex
	projects map[string]*entities.StepProject
}

// NewStepTracker creates a tracker. Projects idle beyond cfg.ProjectMaxIdle
// are discarded on next touch.
func NewStepTracker(cfg Config, logger *zap.Logger) *StepTracker {
	cfg = cfg.withDefaults()
	return &StepTracker{
		maxIdle:  func(p *entities.StepProject) bool { return p.IsStale(cfg.ProjectMaxIdle) },
		logger:   logger,
		projects: make(map[string]*entities.StepProject),
	}
}

// Prepare inspects the question. When it initiates or continues a
// project, Prepare returns the accumulated step context to splice into
// the prompt, and true. For ordinary questions it returns ("", false).
func (t *StepTracker) Prepare(userID, question string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(question))

	t.mu.Lock()
	defer t.mu.Unlock()

	project := t.projects[userID]
	if project != nil && t.maxIdle(project) {
		t.logger.Debug("Discarding stale project",
			zap.String("userID", userID),
			zap.String("topic", project.Topic))
		delete(t.projects, userID)
		project = nil
	}

	if matchesAny(lower, stepInitiationPhrases) {
		project = entities.NewStepProject(userID, question)
		t.projects[userID] = project
		t.logger.Info("Step project started",
			zap.String("userID", userID),
			zap.String("topic", question))
		return t.contextLocked(project), true
	}

	if project != nil && (matchesAny(lower, stepContinuationPhrases) || isShortAcknowledgement(lower)) {
		return t.contextLocked(project), true
	}
	return "", false
}

// Record stores the instruction that was just given for the active project
func (t *StepTracker) Record(userID, question, instruction string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if project, ok := t.projects[userID]; ok {
		project.AddStep(question, instruction)
	}
}

// ActiveProject returns the user's current project, if any
func (t *StepTracker) ActiveProject(userID string) (*entities.StepProject, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.projects[userID]
	return p, ok
}

// Forget drops any project for a disconnected user
func (t *StepTracker) Forget(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.projects, userID)
}

// contextLocked builds the prompt fragment constraining the model to a
// single next action. Caller holds t.mu.
func (t *StepTracker) contextLocked(project *entities.StepProject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user is working through a task: %q.\n", project.Topic)
	if len(project.Steps) > 0 {
		b.WriteString("Steps already given:\n")
		for _, step := range project.Steps {
			fmt.Fprintf(&b, "%d. %s\n", step.Number, step.Instruction)
		}
	}
	b.WriteString("Give exactly ONE next action, not a full plan.")
	return b.String()
}

func matchesAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// isShortAcknowledgement treats terse confirmations mid-project as
// continuation requests.
func isShortAcknowledgement(text string) bool {
	switch strings.Trim(text, ".!? ") {
	case "ok", "okay", "yes", "yep", "yeah", "alright", "got it", "sure":
		return true
	}
	return false
}
