package course

import "testing"

func validQuestions() []TestQuestion {
	return []TestQuestion{
		{
			Text:           "Which statement creates an index?",
			Options:        []string{"CREATE INDEX", "MAKE INDEX", "ADD INDEX"},
			CorrectAnswers: []int{0},
			Points:         5,
		},
	}
}

func TestNewTestAssignment(t *testing.T) {
	a, err := NewTestAssignment(AssignmentBase{Title: "Module quiz", MaxScore: 10, PassingScore: 6, Version: 1}, validQuestions())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Type() != AssignmentTypeTest {
		t.Fatalf("type: want=%s got=%s", AssignmentTypeTest, a.Type())
	}
	if a.Base().Version != 1 {
		t.Fatalf("version: want=1 got=%d", a.Base().Version)
	}
}

func TestAssignmentRejectsPassingScoreAboveMax(t *testing.T) {
	_, err := NewTestAssignment(AssignmentBase{Title: "Quiz", MaxScore: 10, PassingScore: 11}, validQuestions())
	if err == nil {
		t.Fatal("expected passing_score > max_score to be rejected")
	}
}

func TestTestAssignmentRejectsOutOfRangeCorrectAnswer(t *testing.T) {
	qs := validQuestions()
	qs[0].CorrectAnswers = []int{3}
	if _, err := NewTestAssignment(AssignmentBase{Title: "Quiz", MaxScore: 10, PassingScore: 5}, qs); err == nil {
		t.Fatal("expected out-of-range correct answer to be rejected")
	}
}

func TestTestAssignmentRejectsTooFewOptions(t *testing.T) {
	qs := validQuestions()
	qs[0].Options = []string{"only one"}
	if _, err := NewTestAssignment(AssignmentBase{Title: "Quiz", MaxScore: 10, PassingScore: 5}, qs); err == nil {
		t.Fatal("expected single-option question to be rejected")
	}
}

func TestFileUploadAssignmentDefaultsExtensions(t *testing.T) {
	a, err := NewFileUploadAssignment(AssignmentBase{Title: "Essay", MaxScore: 100, PassingScore: 60}, "Write an essay", nil, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(a.AllowedExtensions) != 1 || a.AllowedExtensions[0] != "*" {
		t.Fatalf("allowed extensions: want=[*] got=%v", a.AllowedExtensions)
	}
}

func TestGitHubAssignmentDefaultsBranch(t *testing.T) {
	a, err := NewGitHubAssignment(AssignmentBase{Title: "Repo task", MaxScore: 50, PassingScore: 25}, "Build a CLI", "No force pushes", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.RequiredBranch != "main" {
		t.Fatalf("required branch: want=main got=%s", a.RequiredBranch)
	}
}

func TestAssignmentRoundTrip(t *testing.T) {
	in, err := NewGitHubAssignment(AssignmentBase{Title: "Repo task", MaxScore: 50, PassingScore: 25}, "Build a CLI", "No force pushes", "dev")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	raw, err := MarshalAssignment(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalAssignment(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	g, ok := got.(GitHubAssignment)
	if !ok {
		t.Fatalf("variant type: got=%T", got)
	}
	if g.RequiredBranch != "dev" || g.RepositoryTask != in.RepositoryTask {
		t.Fatalf("fields changed: want=%+v got=%+v", in, g)
	}
}

func TestUnmarshalAssignmentRejectsUnknownType(t *testing.T) {
	if _, err := UnmarshalAssignment([]byte(`{"assignment_type":"oral_exam","title":"x"}`)); err == nil {
		t.Fatal("expected error for unknown assignment_type")
	}
}

func TestUnmarshalAssignmentRevalidates(t *testing.T) {
	raw := []byte(`{"assignment_type":"test","version":"v1","title":"Quiz","max_score":10,"passing_score":20,"questions":[{"text":"q","options":["a","b"],"correct_answers":[0],"points":1}]}`)
	if _, err := UnmarshalAssignment(raw); err == nil {
		t.Fatal("expected stored invalid assignment to be rejected on decode")
	}
}
