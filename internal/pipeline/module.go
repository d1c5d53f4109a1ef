package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/knowledge"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/openai"
	"github.com/eduforge/coursegen-backend/internal/repos"
)

const moduleArchitectPrompt = `You are a module architect. From a one-paragraph module
description you produce the module's build script: its title, description, learning
objectives, an ordered content plan and an assignment specification.

Rules:
- The content plan needs at least %d blocks. Its order is the order the student reads.
- Start with theory (text), support it with examples (code, mermaid, video, link) and end
  with self-check material (quiz).
- Every plan item's prompt must be detailed enough for a generator that sees nothing else.
- Pick the assignment type that best fits the module's material.

Audience: %s

Course learning objectives:
%s`

// ModulePipeline builds one complete module: structure, content blocks in
// plan order, knowledge indexing of generated theory and the assignment.
// The shell is persisted before block generation so a failed run keeps
// whatever was produced.
type ModulePipeline struct {
	log         *logger.Logger
	gen         *generate.Client
	courses     repos.CourseRepo
	index       *knowledge.Index
	content     *ContentGenerator
	assignments *AssignmentGenerator
}

func NewModulePipeline(log *logger.Logger, gen *generate.Client, courses repos.CourseRepo, index *knowledge.Index, content *ContentGenerator, assignments *AssignmentGenerator) *ModulePipeline {
	return &ModulePipeline{
		log:         log.With("service", "ModulePipeline"),
		gen:         gen,
		courses:     courses,
		index:       index,
		content:     content,
		assignments: assignments,
	}
}

func moduleStructureSchema() map[string]any {
	contentTypes := []string{
		string(course.ContentTypeText), string(course.ContentTypeVideo),
		string(course.ContentTypeCode), string(course.ContentTypeQuiz),
		string(course.ContentTypeMermaid), string(course.ContentTypeLink),
	}
	assignmentTypes := []string{
		string(course.AssignmentTypeTest),
		string(course.AssignmentTypeFileUpload),
		string(course.AssignmentTypeGitHub),
	}
	return generate.Object(map[string]any{
		"title":               generate.String("Module title"),
		"description":         generate.String("Two to three sentences describing the module"),
		"learning_objectives": generate.ArrayOf(generate.String("A measurable learning outcome"), 1, 6),
		"content_plan": generate.ArrayOf(generate.Object(map[string]any{
			"content_type": generate.Enum("Kind of block to generate", contentTypes...),
			"prompt":       generate.String("Detailed brief for the block generator"),
		}), course.MinContentBlocks, 12),
		"assignment_specification": generate.Object(map[string]any{
			"assignment_type": generate.Enum("Kind of graded assignment", assignmentTypes...),
			"prompt":          generate.String("Detailed brief for the assignment generator"),
		}),
	})
}

// Structure runs the module structure call for one seed.
func (p *ModulePipeline) Structure(ctx context.Context, tenantID uuid.UUID, seed course.ModuleSeed) (*course.ModuleStructure, error) {
	objectives := ""
	for _, o := range seed.LearningObjectives {
		objectives += "- " + o + "\n"
	}
	obj, err := p.gen.Generate(ctx, generate.Params{
		Stage:      "module_structure",
		RolePrompt: fmt.Sprintf(moduleArchitectPrompt, course.MinContentBlocks, seed.AudienceDescription, objectives),
		Conversation: []openai.Item{
			openai.UserMessage(seed.Description),
		},
		SchemaName: "module_structure",
		Schema:     moduleStructureSchema(),
	})
	if err != nil {
		return nil, err
	}
	var ms course.ModuleStructure
	if err := generate.DecodeInto(obj, &ms); err != nil {
		return nil, fmt.Errorf("decode module structure: %w", err)
	}
	if err := ms.Validate(); err != nil {
		return nil, err
	}
	return &ms, nil
}

// Build runs the full per-module pipeline for one seed and returns the
// finished module as persisted.
func (p *ModulePipeline) Build(ctx context.Context, tenantID uuid.UUID, seed course.ModuleSeed) (*course.Module, error) {
	log := p.log.With("course_id", seed.CourseID, "module_order", seed.Order)

	ms, err := p.Structure(ctx, tenantID, seed)
	if err != nil {
		return nil, fmt.Errorf("structure for %s: %w", seed, err)
	}
	log.Info("module structure ready", "title", ms.Title, "blocks_planned", len(ms.ContentPlan))

	mod := course.Module{
		ID:                 uuid.New(),
		Title:              ms.Title,
		Description:        ms.Description,
		LearningObjectives: ms.LearningObjectives,
		Order:              seed.Order,
	}
	if err := p.courses.AppendModule(ctx, nil, seed.CourseID, mod); err != nil {
		return nil, fmt.Errorf("persist module shell: %w", err)
	}

	for i, item := range ms.ContentPlan {
		block, err := p.content.Generate(ctx, tenantID, seed.AudienceDescription, *ms, item)
		if err != nil {
			return nil, fmt.Errorf("block %d (%s) of %s: %w", i, item.Type, seed, err)
		}
		mod.ContentBlocks = append(mod.ContentBlocks, block)
		if err := p.courses.UpdateModule(ctx, nil, seed.CourseID, mod); err != nil {
			return nil, fmt.Errorf("persist block %d of %s: %w", i, seed, err)
		}
		p.indexTheory(ctx, tenantID, seed, i, block)
	}

	assignment, err := p.assignments.Generate(ctx, seed.AudienceDescription, *ms, ms.AssignmentSpec)
	if err != nil {
		return nil, fmt.Errorf("assignment for %s: %w", seed, err)
	}
	mod.Assignment = assignment
	if err := p.courses.UpdateModule(ctx, nil, seed.CourseID, mod); err != nil {
		return nil, fmt.Errorf("persist assignment for %s: %w", seed, err)
	}

	log.Info("module complete", "blocks", len(mod.ContentBlocks), "assignment_type", assignment.Type())
	return &mod, nil
}

// indexTheory stores generated theory text in the knowledge base so later
// modules can search it. Indexing failures are logged, never fatal.
func (p *ModulePipeline) indexTheory(ctx context.Context, tenantID uuid.UUID, seed course.ModuleSeed, position int, block course.ContentBlock) {
	text, ok := block.(course.TextBlock)
	if !ok {
		return
	}
	source := fmt.Sprintf("course/%s/module/%d/block/%d", seed.CourseID, seed.Order, position)
	if _, err := p.index.IndexText(ctx, tenantID, knowledge.CategoryTheory, source, text.MDContent); err != nil {
		p.log.Warn("theory indexing failed", "source", source, "error", err)
	}
}
