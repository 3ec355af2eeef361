package entities

import "time"

// StepRecord is one completed instruction within a guided project
type StepRecord struct {
	Number      int       `json:"number" bson:"number"`
	Question    string    `json:"question" bson:"question"`
	Instruction string    `json:"instruction" bson:"instruction"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// StepProject tracks an active hands-on task the user is being walked
// through one step at a time.
type StepProject struct {
	UserID       string       `json:"user_id" bson:"user_id"`
	Topic        string       `json:"topic" bson:"topic"`
	StartedAt    time.Time    `json:"started_at" bson:"started_at"`
	LastActiveAt time.Time    `json:"last_active_at" bson:"last_active_at"`
	Steps        []StepRecord `json:"steps" bson:"steps"`
}

// NewStepProject starts a project for a user around the given topic
func NewStepProject(userID, topic string) *StepProject {
	now := time.Now()
	return &StepProject{
		UserID:       userID,
		Topic:        topic,
		StartedAt:    now,
		LastActiveAt: now,
	}
}

// AddStep appends the next completed step
func (p *StepProject) AddStep(question, instruction string) {
	now := time.Now()
	p.Steps = append(p.Steps, StepRecord{
		Number:      len(p.Steps) + 1,
		Question:    question,
		Instruction: instruction,
		Timestamp:   now,
	})
	p.LastActiveAt = now
}

// IsStale reports whether the project has seen no activity for longer
// than the given duration.
func (p *StepProject) IsStale(maxIdle time.Duration) bool {
	return time.Since(p.LastActiveAt) > maxIdle
}
