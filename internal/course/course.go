package course

import (
	"time"

	"github.com/google/uuid"
)

// Status is the externally visible course lifecycle. A generating course is
// owned exclusively by its pipeline run; no other writer may touch it until
// the status is terminal for the generation (active, or back to draft on
// failure with whatever was produced retained).
type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusReview     Status = "review"
	StatusActive     Status = "active"
	StatusArchived   Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusGenerating, StatusReview, StatusActive, StatusArchived:
		return true
	default:
		return false
	}
}

// FinalAssessment is the course-level graded task generated from the plan's
// final assessment description.
type FinalAssessment struct {
	Version            int      `json:"version"`
	Task               string   `json:"task"`
	EvaluationCriteria []string `json:"evaluation_criteria"`
}

// Module is part of a course, owned exclusively by it and never shared.
type Module struct {
	ID                 uuid.UUID
	Title              string
	Description        string
	LearningObjectives []string
	Order              int
	ContentBlocks      []ContentBlock
	Assignment         Assignment
}

// Course is the aggregate root the pipeline assembles and persists.
type Course struct {
	ID                 uuid.UUID
	CreatedAt          time.Time
	CreatorID          int64
	TenantID           uuid.UUID
	Status             Status
	Title              string
	Description        string
	LearningObjectives []string
	Modules            []Module
	FinalAssessment    *FinalAssessment
}

// New returns a course shell in draft status, ready to be claimed by a
// generation run.
func New(creatorID int64, tenantID uuid.UUID) *Course {
	return &Course{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		CreatorID: creatorID,
		TenantID:  tenantID,
		Status:    StatusDraft,
	}
}

// AppendModule attaches a module at the next order slot.
func (c *Course) AppendModule(m Module) {
	m.Order = len(c.Modules)
	c.Modules = append(c.Modules, m)
}

// Validate enforces the aggregate invariants required before a course may
// leave the generating status. Violations abort persistence instead of
// silently truncating the aggregate.
func (c *Course) Validate() error {
	if c == nil {
		return violation("course", "", "nil course")
	}
	if c.Title == "" {
		return violation("course", "title", "required")
	}
	if len(c.LearningObjectives) < 2 {
		return violation("course", "learning_objectives", "need at least 2, got %d", len(c.LearningObjectives))
	}
	if len(c.Modules) == 0 {
		return violation("course", "modules", "course requires at least one module")
	}
	for i, m := range c.Modules {
		if m.Order != i {
			return violation("course", "modules", "module %q has order %d at position %d, order must be contiguous from 0", m.Title, m.Order, i)
		}
		if len(m.ContentBlocks) == 0 {
			return violation("module", "content_blocks", "module %d (%q) has no content blocks", i, m.Title)
		}
	}
	return nil
}
