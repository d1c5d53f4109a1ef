package course

import (
	"testing"

	"github.com/google/uuid"
)

func builtCourse() *Course {
	c := New(42, uuid.New())
	c.Title = "Introduction to Databases"
	c.Description = "Relational fundamentals"
	c.LearningObjectives = []string{"Explain the relational model", "Write basic SQL"}
	c.AppendModule(Module{
		Title:              "Relational model",
		Description:        "Tables, rows, keys",
		LearningObjectives: []string{"Define a relation"},
		ContentBlocks: []ContentBlock{
			TextBlock{MDContent: "A relation is a set of tuples."},
		},
	})
	return c
}

func TestNewCourseIsDraft(t *testing.T) {
	c := New(1, uuid.New())
	if c.Status != StatusDraft {
		t.Fatalf("status: want=%s got=%s", StatusDraft, c.Status)
	}
	if c.ID == uuid.Nil {
		t.Fatal("id not assigned")
	}
}

func TestAppendModuleAssignsContiguousOrder(t *testing.T) {
	c := builtCourse()
	c.AppendModule(Module{Title: "SQL", Description: "d", LearningObjectives: []string{"o"},
		ContentBlocks: []ContentBlock{TextBlock{MDContent: "x"}}})
	for i, m := range c.Modules {
		if m.Order != i {
			t.Fatalf("order at %d: want=%d got=%d", i, i, m.Order)
		}
	}
}

func TestCourseValidate(t *testing.T) {
	if err := builtCourse().Validate(); err != nil {
		t.Fatalf("valid course rejected: %v", err)
	}
}

func TestCourseValidateRejectsOrderGap(t *testing.T) {
	c := builtCourse()
	c.Modules[0].Order = 3
	if err := c.Validate(); err == nil {
		t.Fatal("expected order gap to be rejected")
	}
}

func TestCourseValidateRejectsEmptyModule(t *testing.T) {
	c := builtCourse()
	c.Modules[0].ContentBlocks = nil
	if err := c.Validate(); err == nil {
		t.Fatal("expected module without content blocks to be rejected")
	}
}

func TestCourseValidateRejectsSingleObjective(t *testing.T) {
	c := builtCourse()
	c.LearningObjectives = c.LearningObjectives[:1]
	if err := c.Validate(); err == nil {
		t.Fatal("expected course with one objective to be rejected")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusGenerating, StatusReview, StatusActive, StatusArchived} {
		if !s.Valid() {
			t.Fatalf("status %s unexpectedly invalid", s)
		}
	}
	if Status("published").Valid() {
		t.Fatal("unknown status unexpectedly valid")
	}
}
