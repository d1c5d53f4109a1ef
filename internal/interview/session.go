package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/knowledge"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/openai"
)

type State string

const (
	StateStarted     State = "started"
	StateAsking      State = "asking"
	StateSummarizing State = "summarizing"
	StateCompleted   State = "completed"
)

const (
	// MaxQuestions is the soft bound the interviewer is told to stay
	// within. HardTurnCap is the cap after which the session summarizes
	// with whatever was gathered, so the pipeline can never block here.
	MaxQuestions = 5
	HardTurnCap  = 8

	finishToolName = "finish_interview"
)

const interviewerPrompt = `You are interviewing a teacher who wants an AI-generated course built
for their students. Ask one short focused question at a time to learn:
the audience and its level, the learning objectives, the key topics,
common misconceptions, and concrete examples worth including. You may
search the teacher's uploaded materials before asking. Stay within %d
questions. When you have learned enough, call the %s tool instead of
asking another question. Ask in the teacher's language.`

const summarizerPrompt = `You extract structured interview insights. Summarize the interview
into the requested fields. Use only what the teacher actually said or
what their materials contain. If the audience was not covered, write
exactly "%s"; leave list fields the interview did not cover empty.
Never invent facts.`

// Session is one teacher interview. A session is not safe for concurrent
// turns; the mutex serializes them.
type Session struct {
	mu sync.Mutex

	log       *logger.Logger
	responder generate.Responder
	gen       *generate.Client
	index     *knowledge.Index

	tenantID uuid.UUID
	userID   int64

	state      State
	transcript []openai.Item
	questions  int
	turns      int
	insights   *course.TeacherInsights
}

func NewSession(log *logger.Logger, responder generate.Responder, gen *generate.Client, index *knowledge.Index, tc course.TeacherContext) *Session {
	return &Session{
		log:       log.With("service", "InterviewSession", "user_id", tc.UserID),
		responder: responder,
		gen:       gen,
		index:     index,
		tenantID:  tc.TenantID,
		userID:    tc.UserID,
		state:     StateStarted,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Insights returns the extracted summary once the session completed.
func (s *Session) Insights() (*course.TeacherInsights, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCompleted || s.insights == nil {
		return nil, false
	}
	return s.insights, true
}

// Start asks the first question. The initial prompt is the teacher's
// course request.
func (s *Session) Start(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStarted {
		return "", fmt.Errorf("interview already started (state=%s)", s.state)
	}
	s.transcript = []openai.Item{
		openai.SystemMessage(fmt.Sprintf(interviewerPrompt, MaxQuestions, finishToolName)),
		openai.UserMessage("The teacher's course request: " + prompt),
	}
	s.state = StateAsking
	question, done, err := s.nextTurn(ctx)
	if err != nil {
		return "", err
	}
	if done {
		return "", nil
	}
	return question, nil
}

// Answer records the teacher's reply and produces the next question.
// done=true means the session summarized and completed; the question is
// then empty.
func (s *Session) Answer(ctx context.Context, text string) (question string, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCompleted {
		return "", true, nil
	}
	if s.state != StateAsking {
		return "", false, fmt.Errorf("interview not accepting answers (state=%s)", s.state)
	}
	s.transcript = append(s.transcript, openai.UserMessage(text))
	return s.nextTurn(ctx)
}

// nextTurn runs one interviewer model call. Callers hold the mutex.
func (s *Session) nextTurn(ctx context.Context) (string, bool, error) {
	s.turns++
	if s.questions >= HardTurnCap || s.turns > HardTurnCap*2 {
		s.log.Warn("interview hit hard turn cap, forcing summarization",
			"questions", s.questions, "turns", s.turns)
		if err := s.summarize(ctx); err != nil {
			return "", false, err
		}
		return "", true, nil
	}

	req := &openai.Request{
		Input: s.transcript,
		Tools: s.turnTools(),
	}
	resp, err := s.responder.Respond(ctx, req)
	if err != nil {
		return "", false, fmt.Errorf("interview turn: %w", err)
	}

	for _, call := range resp.ToolCalls {
		if call.Name == finishToolName {
			s.transcript = append(s.transcript,
				openai.FunctionCallItem(call),
				openai.FunctionCallOutput(call.CallID, "acknowledged"),
			)
			if err := s.summarize(ctx); err != nil {
				return "", false, err
			}
			return "", true, nil
		}
		if call.Name == "knowledge_search" && s.index != nil {
			output := s.runKnowledgeSearch(ctx, call)
			s.transcript = append(s.transcript,
				openai.FunctionCallItem(call),
				openai.FunctionCallOutput(call.CallID, output),
			)
			return s.nextTurn(ctx)
		}
	}

	if resp.OutputText == "" {
		return "", false, fmt.Errorf("interviewer returned neither a question nor a finish signal")
	}
	s.transcript = append(s.transcript, openai.AssistantMessage(resp.OutputText))
	s.questions++
	return resp.OutputText, false, nil
}

func (s *Session) turnTools() []openai.Tool {
	tools := []openai.Tool{{
		Type:        "function",
		Name:        finishToolName,
		Description: "Signal that the interview gathered enough to plan the course.",
		Parameters: generate.Object(map[string]any{
			"reason": generate.String("One sentence on why the interview is complete."),
		}),
	}}
	if s.index != nil {
		tools = append(tools, openai.Tool{
			Type:        "function",
			Name:        "knowledge_search",
			Description: "Search the teacher's uploaded materials.",
			Parameters: generate.Object(map[string]any{
				"query": generate.String("What to look for."),
			}),
		})
	}
	return tools
}

func (s *Session) runKnowledgeSearch(ctx context.Context, call openai.ToolCall) string {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(call.Arguments, &in); err != nil {
		return fmt.Sprintf("bad arguments: %v", err)
	}
	chunks, err := s.index.Search(ctx, s.tenantID, in.Query, knowledge.CategoryMaterials, 5)
	if err != nil {
		return fmt.Sprintf("search failed: %v", err)
	}
	if len(chunks) == 0 {
		return "no uploaded materials matched"
	}
	raw, _ := json.Marshal(chunks)
	return string(raw)
}

func insightsSchema() map[string]any {
	return generate.Object(map[string]any{
		"audience":       generate.String("Who the course is for and their level."),
		"objectives":     generate.ArrayOf(generate.String("One thing students should be able to do afterwards."), 0, 10),
		"topics":         generate.ArrayOf(generate.String("One topic the course must cover."), 0, 15),
		"misconceptions": generate.ArrayOf(generate.String("One common misconception to address."), 0, 10),
		"examples":       generate.ArrayOf(generate.String("One concrete example the teacher wants included."), 0, 10),
	})
}

// summarize extracts TeacherInsights from the transcript. Callers hold
// the mutex.
func (s *Session) summarize(ctx context.Context) error {
	s.state = StateSummarizing

	conversation := make([]openai.Item, 0, len(s.transcript))
	for _, item := range s.transcript[1:] { // drop the interviewer system prompt
		conversation = append(conversation, item)
	}
	conversation = append(conversation, openai.UserMessage(
		"Summarize the interview above into the requested fields."))

	out, err := s.gen.Generate(ctx, generate.Params{
		Stage:        "interview_summary",
		RolePrompt:   fmt.Sprintf(summarizerPrompt, course.NotObtained),
		Conversation: conversation,
		SchemaName:   "teacher_insights",
		Schema:       insightsSchema(),
	})
	if err != nil {
		return fmt.Errorf("interview summarization: %w", err)
	}

	var insights course.TeacherInsights
	if err := generate.DecodeInto(out, &insights); err != nil {
		return fmt.Errorf("interview summary decode: %w", err)
	}
	s.insights = &insights
	s.state = StateCompleted
	s.log.Info("interview completed", "questions", s.questions)
	return nil
}
