package course

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TeacherContext identifies the requester and their private knowledge-index
// partition. Created once per generation request and passed by value.
type TeacherContext struct {
	UserID   int64
	TenantID uuid.UUID
	Comment  string
}

// NotObtained marks an interview section the teacher never covered. The
// summarizer writes it verbatim instead of fabricating content.
const NotObtained = "not obtained"

// TeacherInsights is the structured summary the interview session extracts
// from a free-form conversation. Produced once, never mutated afterward.
type TeacherInsights struct {
	Audience       string   `json:"audience"`
	Objectives     []string `json:"objectives"`
	Topics         []string `json:"topics"`
	Misconceptions []string `json:"misconceptions"`
	Examples       []string `json:"examples"`
}

// PromptText renders the insights into the text the structure planner
// consumes. Sections the interview never obtained stay marked as such.
func (ti TeacherInsights) PromptText() string {
	var b strings.Builder
	section := func(name, value string) {
		b.WriteString("## ")
		b.WriteString(name)
		b.WriteString("\n")
		if strings.TrimSpace(value) == "" {
			b.WriteString(NotObtained)
		} else {
			b.WriteString(strings.TrimSpace(value))
		}
		b.WriteString("\n\n")
	}
	section("Audience", ti.Audience)
	section("Learning objectives", strings.Join(ti.Objectives, "\n"))
	section("Topics", strings.Join(ti.Topics, "\n"))
	section("Common misconceptions", strings.Join(ti.Misconceptions, "\n"))
	section("Examples from practice", strings.Join(ti.Examples, "\n"))
	return strings.TrimSpace(b.String())
}

const (
	MinModules = 3
	MaxModules = 12
)

// StructurePlan is the course skeleton produced by the structure planner.
// ModuleDescriptions order is significant: it becomes module order downstream.
// The plan is ephemeral and never persisted on its own.
type StructurePlan struct {
	Title                      string   `json:"title"`
	Description                string   `json:"description"`
	AudienceDescription        string   `json:"audience_description"`
	LearningObjectives         []string `json:"learning_objectives"`
	ModuleDescriptions         []string `json:"module_descriptions"`
	FinalAssessmentDescription string   `json:"final_assessment_description"`
}

func (p StructurePlan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return violation("structure_plan", "title", "required")
	}
	if strings.TrimSpace(p.Description) == "" {
		return violation("structure_plan", "description", "required")
	}
	if len(p.LearningObjectives) < 2 {
		return violation("structure_plan", "learning_objectives", "need at least 2, got %d", len(p.LearningObjectives))
	}
	if n := len(p.ModuleDescriptions); n < MinModules || n > MaxModules {
		return violation("structure_plan", "module_descriptions", "need %d..%d modules, got %d", MinModules, MaxModules, n)
	}
	for i, d := range p.ModuleDescriptions {
		if strings.TrimSpace(d) == "" {
			return violation("structure_plan", "module_descriptions", "description %d is empty", i)
		}
	}
	return nil
}

// MinContentBlocks is the floor for a module's content plan.
const MinContentBlocks = 3

// ContentPlanItem is one entry of a module's content plan: which kind of
// block to generate and the detailed prompt for its generator.
type ContentPlanItem struct {
	Type   ContentType `json:"content_type"`
	Prompt string      `json:"prompt"`
}

// AssignmentSpec tells the assignment generator which variant to produce.
type AssignmentSpec struct {
	Type   AssignmentType `json:"assignment_type"`
	Prompt string         `json:"prompt"`
}

// ModuleStructure is the per-module build script: the content plan order is
// the student-visible reading order of the finished module.
type ModuleStructure struct {
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	LearningObjectives []string          `json:"learning_objectives"`
	ContentPlan        []ContentPlanItem `json:"content_plan"`
	AssignmentSpec     AssignmentSpec    `json:"assignment_specification"`
}

func (m ModuleStructure) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return violation("module_structure", "title", "required")
	}
	if len(m.ContentPlan) < MinContentBlocks {
		return violation("module_structure", "content_plan", "need at least %d blocks, got %d", MinContentBlocks, len(m.ContentPlan))
	}
	for i, item := range m.ContentPlan {
		if !item.Type.Valid() {
			return violation("module_structure", "content_plan", "item %d has unknown content type %q", i, string(item.Type))
		}
		if strings.TrimSpace(item.Prompt) == "" {
			return violation("module_structure", "content_plan", "item %d has empty prompt", i)
		}
	}
	if !m.AssignmentSpec.Type.Valid() {
		return violation("module_structure", "assignment_specification", "unknown assignment type %q", string(m.AssignmentSpec.Type))
	}
	if strings.TrimSpace(m.AssignmentSpec.Prompt) == "" {
		return violation("module_structure", "assignment_specification", "empty prompt")
	}
	return nil
}

// ModuleSeed carries everything the module pipeline needs for one module.
type ModuleSeed struct {
	CourseID            uuid.UUID
	AudienceDescription string
	LearningObjectives  []string
	Order               int
	Description         string
}

func (s ModuleSeed) String() string {
	return fmt.Sprintf("module %d of course %s", s.Order, s.CourseID)
}
