package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/openai"
)

const plannerPrompt = `You are a curriculum architect. From the teacher's interview summary
you design the skeleton of an online course: its title, description, target audience,
learning objectives and an ordered list of module descriptions.

Rules:
- Produce between %d and %d modules. Order them from fundamentals to advanced material.
- Each module description must be self-contained: a content generator will later expand
  it without seeing the other modules.
- Learning objectives are measurable outcomes, not topic names.
- Sections of the summary marked "%s" carry no information; plan around them instead of
  inventing teacher claims.
- You may consult the teacher's knowledge base before committing to the structure.`

// StructurePlanner turns teacher insights into a course skeleton with a
// single structured-generation call.
type StructurePlanner struct {
	log     *logger.Logger
	gen     *generate.Client
	toolbox *Toolbox
}

func NewStructurePlanner(log *logger.Logger, gen *generate.Client, toolbox *Toolbox) *StructurePlanner {
	return &StructurePlanner{
		log:     log.With("service", "StructurePlanner"),
		gen:     gen,
		toolbox: toolbox,
	}
}

// Plan runs the structure planning stage. The summary is the interview
// insights rendered as text, or the raw course prompt when no interview
// happened.
func (p *StructurePlanner) Plan(ctx context.Context, tenantID uuid.UUID, summary string) (*course.StructurePlan, error) {
	schema := generate.Object(map[string]any{
		"title":                        generate.String("A concise course title"),
		"description":                  generate.String("Two to four sentences describing the course"),
		"audience_description":         generate.String("Who the course is for and what they already know"),
		"learning_objectives":          generate.ArrayOf(generate.String("A measurable learning outcome"), 2, 10),
		"module_descriptions":          generate.ArrayOf(generate.String("A self-contained module description"), course.MinModules, course.MaxModules),
		"final_assessment_description": generate.String("What the course-level graded assessment should test"),
	})

	tools, err := p.toolbox.ForPlanning(tenantID)
	if err != nil {
		return nil, fmt.Errorf("plan tools: %w", err)
	}

	obj, err := p.gen.Generate(ctx, generate.Params{
		Stage:      "plan",
		RolePrompt: fmt.Sprintf(plannerPrompt, course.MinModules, course.MaxModules, course.NotObtained),
		Conversation: []openai.Item{
			openai.UserMessage(summary),
		},
		Tools:      tools,
		SchemaName: "course_structure_plan",
		Schema:     schema,
	})
	if err != nil {
		return nil, err
	}

	var plan course.StructurePlan
	if err := generate.DecodeInto(obj, &plan); err != nil {
		return nil, fmt.Errorf("decode structure plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	p.log.Info("structure plan ready", "title", plan.Title, "modules", len(plan.ModuleDescriptions))
	return &plan, nil
}
