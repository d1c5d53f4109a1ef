package pipeline

import (
	"context"
	"fmt"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/openai"
)

const assignmentWriterPrompt = `You are a course assignment author. You design one graded
assignment for a module of an online course. Scores are integers; passing_score must not
exceed max_score. The assignment must be solvable using only material covered by the module.

Audience: %s

Module: %s
%s`

const finalAssessmentPrompt = `You are a course assessment author. You design the course-level
final assessment: one substantial task covering the whole course, with explicit evaluation
criteria a reviewer can check one by one.

Course: %s
%s`

// AssignmentGenerator produces module assignments and the course-level
// final assessment. Generated assignments carry version 1; version 0 is
// reserved for instructor-authored originals.
type AssignmentGenerator struct {
	log *logger.Logger
	gen *generate.Client
}

func NewAssignmentGenerator(log *logger.Logger, gen *generate.Client) *AssignmentGenerator {
	return &AssignmentGenerator{
		log: log.With("service", "AssignmentGenerator"),
		gen: gen,
	}
}

const generatedAssignmentVersion = 1

func assignmentBaseSchema() map[string]any {
	return map[string]any{
		"title":         generate.String("Assignment title"),
		"max_score":     generate.Integer("Maximum achievable score, a positive integer"),
		"passing_score": generate.Integer("Minimum passing score, at most max_score"),
	}
}

func baseFromObject(obj map[string]any) (course.AssignmentBase, error) {
	var raw struct {
		Title        string `json:"title"`
		MaxScore     int    `json:"max_score"`
		PassingScore int    `json:"passing_score"`
	}
	if err := generate.DecodeInto(obj, &raw); err != nil {
		return course.AssignmentBase{}, err
	}
	return course.AssignmentBase{
		Version:      generatedAssignmentVersion,
		Title:        raw.Title,
		MaxScore:     raw.MaxScore,
		PassingScore: raw.PassingScore,
	}, nil
}

// Generate builds the assignment described by spec for the given module.
func (g *AssignmentGenerator) Generate(ctx context.Context, audience string, mod course.ModuleStructure, spec course.AssignmentSpec) (course.Assignment, error) {
	role := fmt.Sprintf(assignmentWriterPrompt, audience, mod.Title, mod.Description)
	conversation := []openai.Item{openai.UserMessage(spec.Prompt)}

	switch spec.Type {
	case course.AssignmentTypeTest:
		props := assignmentBaseSchema()
		props["questions"] = generate.ArrayOf(generate.Object(map[string]any{
			"text":            generate.String("The question text"),
			"options":         generate.ArrayOf(generate.String("One answer option"), 2, 6),
			"correct_answers": generate.ArrayOf(generate.Integer("Zero-based index into options"), 1, 6),
			"points":          generate.Integer("Points for answering correctly, positive"),
		}), 3, 15)
		obj, err := g.gen.Generate(ctx, generate.Params{
			Stage:        "assignment_test",
			RolePrompt:   role,
			Conversation: conversation,
			SchemaName:   "test_assignment",
			Schema:       generate.Object(props),
		})
		if err != nil {
			return nil, err
		}
		base, err := baseFromObject(obj)
		if err != nil {
			return nil, err
		}
		var raw struct {
			Questions []course.TestQuestion `json:"questions"`
		}
		if err := generate.DecodeInto(obj, &raw); err != nil {
			return nil, err
		}
		return course.NewTestAssignment(base, raw.Questions)

	case course.AssignmentTypeFileUpload:
		props := assignmentBaseSchema()
		props["task"] = generate.String("What the student must produce and upload")
		props["allowed_extensions"] = generate.ArrayOf(generate.String("Allowed file extension like .pdf"), 0, 10)
		props["submission_instructions"] = generate.String("How to prepare and submit the file")
		obj, err := g.gen.Generate(ctx, generate.Params{
			Stage:        "assignment_file_upload",
			RolePrompt:   role,
			Conversation: conversation,
			SchemaName:   "file_upload_assignment",
			Schema:       generate.Object(props),
		})
		if err != nil {
			return nil, err
		}
		base, err := baseFromObject(obj)
		if err != nil {
			return nil, err
		}
		var raw struct {
			Task                   string   `json:"task"`
			AllowedExtensions      []string `json:"allowed_extensions"`
			SubmissionInstructions string   `json:"submission_instructions"`
		}
		if err := generate.DecodeInto(obj, &raw); err != nil {
			return nil, err
		}
		return course.NewFileUploadAssignment(base, raw.Task, raw.AllowedExtensions, raw.SubmissionInstructions)

	case course.AssignmentTypeGitHub:
		props := assignmentBaseSchema()
		props["repository_task"] = generate.String("What the student must implement in the repository")
		props["repository_rules"] = generate.String("Rules for commits, structure and reviews")
		props["required_branch"] = generate.String("Branch the work must land on, empty for main")
		obj, err := g.gen.Generate(ctx, generate.Params{
			Stage:        "assignment_github",
			RolePrompt:   role,
			Conversation: conversation,
			SchemaName:   "github_assignment",
			Schema:       generate.Object(props),
		})
		if err != nil {
			return nil, err
		}
		base, err := baseFromObject(obj)
		if err != nil {
			return nil, err
		}
		var raw struct {
			RepositoryTask  string `json:"repository_task"`
			RepositoryRules string `json:"repository_rules"`
			RequiredBranch  string `json:"required_branch"`
		}
		if err := generate.DecodeInto(obj, &raw); err != nil {
			return nil, err
		}
		return course.NewGitHubAssignment(base, raw.RepositoryTask, raw.RepositoryRules, raw.RequiredBranch)

	default:
		return nil, fmt.Errorf("unknown assignment type %q", spec.Type)
	}
}

// FinalAssessment builds the course-level assessment from the plan's
// description.
func (g *AssignmentGenerator) FinalAssessment(ctx context.Context, plan *course.StructurePlan) (*course.FinalAssessment, error) {
	schema := generate.Object(map[string]any{
		"task":                generate.String("The complete final assessment task, as markdown"),
		"evaluation_criteria": generate.ArrayOf(generate.String("One checkable evaluation criterion"), 2, 10),
	})
	obj, err := g.gen.Generate(ctx, generate.Params{
		Stage:      "final_assessment",
		RolePrompt: fmt.Sprintf(finalAssessmentPrompt, plan.Title, plan.Description),
		Conversation: []openai.Item{
			openai.UserMessage(plan.FinalAssessmentDescription),
		},
		SchemaName: "final_assessment",
		Schema:     schema,
	})
	if err != nil {
		return nil, err
	}
	var fa course.FinalAssessment
	if err := generate.DecodeInto(obj, &fa); err != nil {
		return nil, fmt.Errorf("decode final assessment: %w", err)
	}
	if fa.Task == "" {
		return nil, fmt.Errorf("final assessment has empty task")
	}
	fa.Version = generatedAssignmentVersion
	return &fa, nil
}
