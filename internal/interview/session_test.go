package interview

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/openai"
)

// fakeResponder answers questions until asked count reaches finishAfter,
// then emits the finish tool call. Summarization requests (recognized by
// the schema format) return the canned insights JSON.
type fakeResponder struct {
	finishAfter int
	asked       int
	neverFinish bool
	summary     string
}

func (f *fakeResponder) Respond(ctx context.Context, req *openai.Request) (*openai.Response, error) {
	if req.Format != nil {
		body := f.summary
		if body == "" {
			body = `{"audience":"beginners","objectives":["write SQL"],"topics":["relational model"],"misconceptions":[],"examples":[]}`
		}
		return &openai.Response{OutputText: body}, nil
	}
	if !f.neverFinish && f.asked >= f.finishAfter {
		return &openai.Response{ToolCalls: []openai.ToolCall{{
			CallID: "finish_1", Name: finishToolName, Arguments: json.RawMessage(`{"reason":"enough"}`),
		}}}, nil
	}
	f.asked++
	return &openai.Response{OutputText: "What is the audience level?"}, nil
}

func newTestSession(r generate.Responder) *Session {
	gen := generate.NewClient(logger.NewNop(), r,
		generate.Policy{MaxAttempts: 2, Backoff: time.Millisecond, CallTimeout: time.Second})
	return NewSession(logger.NewNop(), r, gen, nil,
		course.TeacherContext{UserID: 7, TenantID: uuid.New()})
}

func runInterview(t *testing.T, s *Session) *course.TeacherInsights {
	t.Helper()
	ctx := context.Background()
	question, err := s.Start(ctx, "I want a beginner database course")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; question != "" && i < 50; i++ {
		var done bool
		question, done, err = s.Answer(ctx, "first-year students, no prior experience")
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if done {
			break
		}
	}
	insights, ok := s.Insights()
	if !ok {
		t.Fatalf("no insights, state=%s", s.State())
	}
	return insights
}

func TestInterviewCompletesOnFinishSignal(t *testing.T) {
	r := &fakeResponder{finishAfter: 3}
	s := newTestSession(r)
	insights := runInterview(t, s)
	if insights.Audience != "beginners" {
		t.Fatalf("audience: got=%q", insights.Audience)
	}
	if r.asked != 3 {
		t.Fatalf("questions asked: want=3 got=%d", r.asked)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state: want=%s got=%s", StateCompleted, s.State())
	}
}

func TestInterviewForceSummarizesAtHardCap(t *testing.T) {
	r := &fakeResponder{neverFinish: true}
	s := newTestSession(r)
	insights := runInterview(t, s)
	if insights == nil {
		t.Fatal("insights missing after forced summarization")
	}
	if r.asked != HardTurnCap {
		t.Fatalf("questions asked: want=%d got=%d", HardTurnCap, r.asked)
	}
}

func TestInterviewMarksMissingSections(t *testing.T) {
	r := &fakeResponder{finishAfter: 1}
	s := newTestSession(r)
	insights := runInterview(t, s)
	if len(insights.Misconceptions) != 0 {
		t.Fatalf("misconceptions: want empty, got=%v", insights.Misconceptions)
	}
	if !strings.Contains(insights.PromptText(), course.NotObtained) {
		t.Fatalf("missing sections not marked: %s", insights.PromptText())
	}
}

func TestSummaryDecodesIntoInsights(t *testing.T) {
	out := map[string]any{
		"audience":       "Junior devs",
		"objectives":     []any{"Automate grading", "Write migrations"},
		"topics":         []any{"indexes"},
		"misconceptions": []any{},
		"examples":       []any{"payroll schema"},
	}
	var insights course.TeacherInsights
	if err := generate.DecodeInto(out, &insights); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(insights.Objectives) != 2 {
		t.Fatalf("objectives: want=2 got=%d", len(insights.Objectives))
	}
	if insights.Examples[0] != "payroll schema" {
		t.Fatalf("examples: got=%v", insights.Examples)
	}
}

func TestInterviewRejectsAnswerBeforeStart(t *testing.T) {
	s := newTestSession(&fakeResponder{finishAfter: 1})
	if _, _, err := s.Answer(context.Background(), "hello"); err == nil {
		t.Fatal("expected answer-before-start to be rejected")
	}
}

func TestManagerAtMostOneActiveSessionPerKey(t *testing.T) {
	r := &fakeResponder{finishAfter: 1}
	gen := generate.NewClient(logger.NewNop(), r,
		generate.Policy{MaxAttempts: 2, Backoff: time.Millisecond, CallTimeout: time.Second})
	m := NewManager(logger.NewNop(), r, gen, nil)

	tc := course.TeacherContext{UserID: 7, TenantID: uuid.New()}
	first, err := m.Begin(tc)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := m.Begin(tc); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("want ErrSessionActive, got=%v", err)
	}

	// A different user under the same tenant is its own key.
	other := course.TeacherContext{UserID: 8, TenantID: tc.TenantID}
	if _, err := m.Begin(other); err != nil {
		t.Fatalf("Begin other user: %v", err)
	}

	// Completing the first session frees the key.
	runInterview(t, first)
	if _, err := m.Begin(tc); err != nil {
		t.Fatalf("Begin after completion: %v", err)
	}
}
