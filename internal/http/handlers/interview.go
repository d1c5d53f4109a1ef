package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/http/middleware"
	"github.com/eduforge/coursegen-backend/internal/http/response"
	"github.com/eduforge/coursegen-backend/internal/interview"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/repos"
	"github.com/eduforge/coursegen-backend/internal/types"
)

type InterviewHandler struct {
	log      *logger.Logger
	sessions *interview.Manager
	courses  repos.CourseRepo
	runs     repos.GenerationRunRepo
}

func NewInterviewHandler(log *logger.Logger, sessions *interview.Manager, courses repos.CourseRepo, runs repos.GenerationRunRepo) *InterviewHandler {
	return &InterviewHandler{
		log:      log.With("handler", "InterviewHandler"),
		sessions: sessions,
		courses:  courses,
		runs:     runs,
	}
}

func teacherContext(c *gin.Context) course.TeacherContext {
	return course.TeacherContext{
		UserID:   middleware.CreatorID(c),
		TenantID: middleware.TenantID(c),
	}
}

type startInterviewRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// StartInterview opens the teacher interview. At most one live session per
// teacher; a second start while one is active is rejected.
func (h *InterviewHandler) StartInterview(c *gin.Context) {
	var req startInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	session, err := h.sessions.Begin(teacherContext(c))
	if err != nil {
		if errors.Is(err, interview.ErrSessionActive) {
			response.RespondError(c, http.StatusConflict, "interview_in_progress", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "start_interview_failed", err)
		return
	}
	question, err := session.Start(c.Request.Context(), req.Prompt)
	if err != nil {
		h.log.Error("interview start failed", "error", err)
		h.sessions.End(teacherContext(c))
		response.RespondError(c, http.StatusBadGateway, "interview_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"question": question, "state": session.State()})
}

type answerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// AnswerInterview feeds the teacher's reply in and returns either the next
// question or completion.
func (h *InterviewHandler) AnswerInterview(c *gin.Context) {
	session, ok := h.sessions.Get(teacherContext(c))
	if !ok {
		response.RespondError(c, http.StatusNotFound, "no_active_interview", nil)
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	question, done, err := session.Answer(c.Request.Context(), req.Answer)
	if err != nil {
		h.log.Error("interview answer failed", "error", err)
		response.RespondError(c, http.StatusBadGateway, "interview_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"question": question, "done": done, "state": session.State()})
}

// CompleteInterview turns the finished interview into a course generation
// run seeded with the extracted insights.
func (h *InterviewHandler) CompleteInterview(c *gin.Context) {
	tc := teacherContext(c)
	session, ok := h.sessions.Get(tc)
	if !ok {
		response.RespondError(c, http.StatusNotFound, "no_active_interview", nil)
		return
	}
	insights, ok := session.Insights()
	if !ok {
		response.RespondError(c, http.StatusConflict, "interview_not_finished", nil)
		return
	}

	crs := course.New(tc.UserID, tc.TenantID)
	crs.Title = "untitled course"
	if err := h.courses.Create(c.Request.Context(), nil, crs); err != nil {
		h.log.Error("CompleteInterview create course failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "create_course_failed", err)
		return
	}
	run, _, err := h.runs.Enqueue(c.Request.Context(), nil, &types.GenerationRun{
		CourseID:         crs.ID,
		CreatorID:        tc.UserID,
		TenantID:         tc.TenantID,
		InterviewSummary: insights.PromptText(),
	})
	if err != nil {
		h.log.Error("CompleteInterview enqueue failed", "error", err, "course_id", crs.ID)
		response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	h.sessions.End(tc)
	response.RespondCreated(c, gin.H{"course_id": crs.ID, "run_id": run.ID, "status": run.Status})
}

// AbandonInterview drops the live session without generating anything.
func (h *InterviewHandler) AbandonInterview(c *gin.Context) {
	h.sessions.End(teacherContext(c))
	response.RespondOK(c, gin.H{"ok": true})
}
