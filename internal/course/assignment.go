package course

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AssignmentType discriminates the assignment union. Closed set, same
// dispatch rules as ContentType.
type AssignmentType string

const (
	AssignmentTypeTest       AssignmentType = "test"
	AssignmentTypeFileUpload AssignmentType = "file_upload"
	AssignmentTypeGitHub     AssignmentType = "github"
)

func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentTypeTest, AssignmentTypeFileUpload, AssignmentTypeGitHub:
		return true
	default:
		return false
	}
}

// Assignment is the graded practical task attached to a module.
type Assignment interface {
	Type() AssignmentType
	Base() AssignmentBase
	isAssignment()
}

// AssignmentBase carries the fields shared by every variant.
// Version 0 is the instructor original; >0 are generated variants.
type AssignmentBase struct {
	Version      int    `json:"version"`
	Title        string `json:"title"`
	MaxScore     int    `json:"max_score"`
	PassingScore int    `json:"passing_score"`
}

func (b AssignmentBase) validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return violation("assignment", "title", "required")
	}
	if b.Version < 0 {
		return violation("assignment", "version", "must be non-negative, got %d", b.Version)
	}
	if b.MaxScore <= 0 {
		return violation("assignment", "max_score", "must be positive, got %d", b.MaxScore)
	}
	if b.PassingScore <= 0 {
		return violation("assignment", "passing_score", "must be positive, got %d", b.PassingScore)
	}
	if b.PassingScore > b.MaxScore {
		return violation("assignment", "passing_score", "passing_score %d exceeds max_score %d", b.PassingScore, b.MaxScore)
	}
	return nil
}

type TestQuestion struct {
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectAnswers []int    `json:"correct_answers"`
	Points         int      `json:"points"`
}

func (q TestQuestion) validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return violation("test_question", "text", "required")
	}
	if len(q.Options) < 2 {
		return violation("test_question", "options", "need at least 2 options, got %d", len(q.Options))
	}
	if len(q.CorrectAnswers) == 0 {
		return violation("test_question", "correct_answers", "need at least one correct answer")
	}
	for _, idx := range q.CorrectAnswers {
		if idx < 0 || idx >= len(q.Options) {
			return violation("test_question", "correct_answers", "index %d out of range [0,%d)", idx, len(q.Options))
		}
	}
	if q.Points <= 0 {
		return violation("test_question", "points", "must be positive, got %d", q.Points)
	}
	return nil
}

type TestAssignment struct {
	AssignmentBase
	Questions []TestQuestion `json:"questions"`
}

func (TestAssignment) Type() AssignmentType  { return AssignmentTypeTest }
func (a TestAssignment) Base() AssignmentBase { return a.AssignmentBase }
func (TestAssignment) isAssignment()          {}

func NewTestAssignment(base AssignmentBase, questions []TestQuestion) (TestAssignment, error) {
	a := TestAssignment{AssignmentBase: base, Questions: questions}
	if err := a.validate(); err != nil {
		return TestAssignment{}, err
	}
	return a, nil
}

func (a TestAssignment) validate() error {
	if err := a.AssignmentBase.validate(); err != nil {
		return err
	}
	if len(a.Questions) == 0 {
		return violation("assignment", "questions", "test assignment requires at least one question")
	}
	for i, q := range a.Questions {
		if err := q.validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

type FileUploadAssignment struct {
	AssignmentBase
	Task                   string   `json:"task"`
	AllowedExtensions      []string `json:"allowed_extensions"`
	SubmissionInstructions string   `json:"submission_instructions"`
}

func (FileUploadAssignment) Type() AssignmentType  { return AssignmentTypeFileUpload }
func (a FileUploadAssignment) Base() AssignmentBase { return a.AssignmentBase }
func (FileUploadAssignment) isAssignment()          {}

func NewFileUploadAssignment(base AssignmentBase, task string, extensions []string, instructions string) (FileUploadAssignment, error) {
	if len(extensions) == 0 {
		extensions = []string{"*"}
	}
	a := FileUploadAssignment{
		AssignmentBase:         base,
		Task:                   task,
		AllowedExtensions:      extensions,
		SubmissionInstructions: instructions,
	}
	if err := a.validate(); err != nil {
		return FileUploadAssignment{}, err
	}
	return a, nil
}

func (a FileUploadAssignment) validate() error {
	if err := a.AssignmentBase.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(a.Task) == "" {
		return violation("assignment", "task", "file upload assignment requires task text")
	}
	return nil
}

type GitHubAssignment struct {
	AssignmentBase
	RepositoryTask  string `json:"repository_task"`
	RepositoryRules string `json:"repository_rules"`
	RequiredBranch  string `json:"required_branch"`
}

func (GitHubAssignment) Type() AssignmentType  { return AssignmentTypeGitHub }
func (a GitHubAssignment) Base() AssignmentBase { return a.AssignmentBase }
func (GitHubAssignment) isAssignment()          {}

func NewGitHubAssignment(base AssignmentBase, task, rules, branch string) (GitHubAssignment, error) {
	if strings.TrimSpace(branch) == "" {
		branch = "main"
	}
	a := GitHubAssignment{
		AssignmentBase:  base,
		RepositoryTask:  task,
		RepositoryRules: rules,
		RequiredBranch:  branch,
	}
	if err := a.validate(); err != nil {
		return GitHubAssignment{}, err
	}
	return a, nil
}

func (a GitHubAssignment) validate() error {
	if err := a.AssignmentBase.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(a.RepositoryTask) == "" {
		return violation("assignment", "repository_task", "github assignment requires task text")
	}
	return nil
}

const assignmentTypeKey = "assignment_type"

func MarshalAssignment(a Assignment) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil assignment")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m[assignmentTypeKey] = string(a.Type())
	return json.Marshal(m)
}

// UnmarshalAssignment dispatches on assignment_type and re-validates the
// variant, so a persisted document that violates passing_score <= max_score
// can never round-trip back into the domain.
func UnmarshalAssignment(data []byte) (Assignment, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var head struct {
		AssignmentType AssignmentType `json:"assignment_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode assignment: %w", err)
	}
	switch head.AssignmentType {
	case AssignmentTypeTest:
		var v TestAssignment
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode test assignment: %w", err)
		}
		if err := v.validate(); err != nil {
			return nil, err
		}
		return v, nil
	case AssignmentTypeFileUpload:
		var v FileUploadAssignment
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode file_upload assignment: %w", err)
		}
		if err := v.validate(); err != nil {
			return nil, err
		}
		return v, nil
	case AssignmentTypeGitHub:
		var v GitHubAssignment
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode github assignment: %w", err)
		}
		if err := v.validate(); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown assignment_type %q", string(head.AssignmentType))
	}
}
