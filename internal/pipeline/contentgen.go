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

const contentWriterPrompt = `You are a course content author. You write one content block for a
module of an online course. The module context and the block brief are given below; follow the
brief exactly and stay inside the module's scope.

Audience: %s

Module: %s
%s

Write for this audience. Ground factual claims with the available tools before asserting them.`

// ContentGenerator produces one content block per call, dispatching on the
// content type from the module's content plan. Every generated block is
// marked ai_generated.
type ContentGenerator struct {
	log     *logger.Logger
	gen     *generate.Client
	toolbox *Toolbox
}

func NewContentGenerator(log *logger.Logger, gen *generate.Client, toolbox *Toolbox) *ContentGenerator {
	return &ContentGenerator{
		log:     log.With("service", "ContentGenerator"),
		gen:     gen,
		toolbox: toolbox,
	}
}

// Generate builds the block described by item for the given module. The
// returned block satisfies the variant's own validation rules.
func (g *ContentGenerator) Generate(ctx context.Context, tenantID uuid.UUID, audience string, mod course.ModuleStructure, item course.ContentPlanItem) (course.ContentBlock, error) {
	tools, err := g.toolbox.ForContentType(item.Type, tenantID)
	if err != nil {
		return nil, err
	}

	name, schema, decode := contentSchema(item.Type)
	obj, err := g.gen.Generate(ctx, generate.Params{
		Stage:      "content_" + string(item.Type),
		RolePrompt: fmt.Sprintf(contentWriterPrompt, audience, mod.Title, mod.Description),
		Conversation: []openai.Item{
			openai.UserMessage(item.Prompt),
		},
		Tools:      tools,
		SchemaName: name,
		Schema:     schema,
	})
	if err != nil {
		return nil, err
	}
	block, err := decode(obj)
	if err != nil {
		return nil, fmt.Errorf("decode %s block: %w", item.Type, err)
	}
	return block, nil
}

type blockDecoder func(map[string]any) (course.ContentBlock, error)

// contentSchema returns the output schema and decoder for one content type.
// The schemas are the model-facing contract; the decoders stamp ai_generated
// so provenance never depends on model output.
func contentSchema(ct course.ContentType) (string, map[string]any, blockDecoder) {
	switch ct {
	case course.ContentTypeText:
		schema := generate.Object(map[string]any{
			"md_content": generate.String("The block body as markdown"),
		})
		return "text_block", schema, func(obj map[string]any) (course.ContentBlock, error) {
			var b course.TextBlock
			if err := generate.DecodeInto(obj, &b); err != nil {
				return nil, err
			}
			if b.MDContent == "" {
				return nil, fmt.Errorf("empty md_content")
			}
			b.AIGenerated = true
			return b, nil
		}

	case course.ContentTypeVideo:
		schema := generate.Object(map[string]any{
			"url":              generate.String("URL of the chosen video, from video_search results only"),
			"platform":         generate.String("Hosting platform name"),
			"title":            generate.String("Video title"),
			"duration_seconds": generate.Integer("Video duration in seconds, taken from the search result; must be positive"),
			"key_moments": generate.ArrayOf(generate.Object(map[string]any{
				"at":    generate.String("Timestamp like 12:30"),
				"label": generate.String("What happens at this moment"),
			}), 0, 10),
			"discussion_questions": generate.ArrayOf(generate.String("A question to discuss after watching"), 0, 5),
		})
		return "video_block", schema, func(obj map[string]any) (course.ContentBlock, error) {
			var b course.VideoBlock
			if err := generate.DecodeInto(obj, &b); err != nil {
				return nil, err
			}
			if b.URL == "" || b.Platform == "" || b.Title == "" {
				return nil, fmt.Errorf("incomplete video block")
			}
			if b.DurationSeconds <= 0 {
				return nil, fmt.Errorf("duration_seconds must be positive, got %d", b.DurationSeconds)
			}
			b.AIGenerated = true
			return b, nil
		}

	case course.ContentTypeCode:
		schema := generate.Object(map[string]any{
			"language":    generate.String("Programming language of the example"),
			"code":        generate.String("The complete runnable example"),
			"explanation": generate.String("Walkthrough of what the code does, as markdown"),
		})
		return "code_block", schema, func(obj map[string]any) (course.ContentBlock, error) {
			var b course.CodeBlock
			if err := generate.DecodeInto(obj, &b); err != nil {
				return nil, err
			}
			if b.Code == "" {
				return nil, fmt.Errorf("empty code")
			}
			if b.Language == "" {
				return nil, fmt.Errorf("empty language")
			}
			b.AIGenerated = true
			return b, nil
		}

	case course.ContentTypeQuiz:
		schema := generate.Object(map[string]any{
			"questions": generate.ArrayOf(generate.Object(map[string]any{
				"question": generate.String("The question text"),
				"answer":   generate.String("The expected answer with a short justification"),
			}), 1, 10),
		})
		return "quiz_block", schema, func(obj map[string]any) (course.ContentBlock, error) {
			var b course.QuizBlock
			if err := generate.DecodeInto(obj, &b); err != nil {
				return nil, err
			}
			if len(b.Questions) == 0 {
				return nil, fmt.Errorf("quiz requires at least one question")
			}
			b.AIGenerated = true
			return b, nil
		}

	case course.ContentTypeMermaid:
		schema := generate.Object(map[string]any{
			"caption": generate.String("One-line caption for the diagram, may be empty"),
			"diagram": generate.String("Valid mermaid source, no code fences"),
		})
		return "mermaid_block", schema, func(obj map[string]any) (course.ContentBlock, error) {
			var b course.MermaidBlock
			if err := generate.DecodeInto(obj, &b); err != nil {
				return nil, err
			}
			if b.Diagram == "" {
				return nil, fmt.Errorf("empty diagram")
			}
			b.AIGenerated = true
			return b, nil
		}

	case course.ContentTypeLink:
		schema := generate.Object(map[string]any{
			"url":     generate.String("URL of the external resource, from search results only"),
			"title":   generate.String("Resource title"),
			"summary": generate.String("Why this resource is worth the student's time"),
		})
		return "link_block", schema, func(obj map[string]any) (course.ContentBlock, error) {
			var b course.LinkBlock
			if err := generate.DecodeInto(obj, &b); err != nil {
				return nil, err
			}
			if b.URL == "" {
				return nil, fmt.Errorf("empty link url")
			}
			b.AIGenerated = true
			return b, nil
		}
	}
	return "", nil, nil
}
