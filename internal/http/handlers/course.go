package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/http/middleware"
	"github.com/eduforge/coursegen-backend/internal/http/response"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/repos"
	"github.com/eduforge/coursegen-backend/internal/types"
)

type CourseHandler struct {
	log     *logger.Logger
	courses repos.CourseRepo
	runs    repos.GenerationRunRepo
}

func NewCourseHandler(log *logger.Logger, courses repos.CourseRepo, runs repos.GenerationRunRepo) *CourseHandler {
	return &CourseHandler{
		log:     log.With("handler", "CourseHandler"),
		courses: courses,
		runs:    runs,
	}
}

type createCourseRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// CreateCourse creates a draft course shell and enqueues its generation
// run. The run starts from the raw prompt; interview-driven runs go
// through the interview handler instead.
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tenantID := middleware.TenantID(c)
	creatorID := middleware.CreatorID(c)

	crs := course.New(creatorID, tenantID)
	crs.Title = "untitled course"
	if err := h.courses.Create(c.Request.Context(), nil, crs); err != nil {
		h.log.Error("CreateCourse failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "create_course_failed", err)
		return
	}

	run, _, err := h.runs.Enqueue(c.Request.Context(), nil, &types.GenerationRun{
		CourseID:  crs.ID,
		CreatorID: creatorID,
		TenantID:  tenantID,
		Prompt:    req.Prompt,
	})
	if err != nil {
		h.log.Error("Enqueue failed", "error", err, "course_id", crs.ID)
		response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"course_id": crs.ID, "run_id": run.ID, "status": run.Status})
}

// GenerateCourse enqueues a generation run for an existing course. A
// second command while a run is in flight returns the existing run.
func (h *CourseHandler) GenerateCourse(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	crs, err := h.loadOwned(c, courseID)
	if err != nil {
		return
	}

	run, created, err := h.runs.Enqueue(c.Request.Context(), nil, &types.GenerationRun{
		CourseID:  crs.ID,
		CreatorID: crs.CreatorID,
		TenantID:  crs.TenantID,
		Prompt:    req.Prompt,
	})
	if err != nil {
		h.log.Error("Enqueue failed", "error", err, "course_id", courseID)
		response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	if !created {
		response.RespondOK(c, gin.H{"run_id": run.ID, "status": run.Status, "already_running": true})
		return
	}
	response.RespondCreated(c, gin.H{"run_id": run.ID, "status": run.Status})
}

func (h *CourseHandler) ListCourses(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	creatorID := middleware.CreatorID(c)
	list, err := h.courses.ListByCreator(c.Request.Context(), nil, tenantID, creatorID)
	if err != nil {
		h.log.Error("ListCourses failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_courses_failed", err)
		return
	}
	views := make([]gin.H, 0, len(list))
	for _, crs := range list {
		views = append(views, courseSummaryView(crs))
	}
	response.RespondOK(c, gin.H{"courses": views})
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	crs, err := h.loadOwned(c, courseID)
	if err != nil {
		return
	}
	view, err := courseView(crs)
	if err != nil {
		h.log.Error("GetCourse render failed", "error", err, "course_id", courseID)
		response.RespondError(c, http.StatusInternalServerError, "render_failed", err)
		return
	}
	response.RespondOK(c, view)
}

func (h *CourseHandler) GetModule(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_position", err)
		return
	}
	if _, err := h.loadOwned(c, courseID); err != nil {
		return
	}
	mod, err := h.courses.GetModule(c.Request.Context(), nil, courseID, position)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "module_not_found", nil)
			return
		}
		h.log.Error("GetModule failed", "error", err, "course_id", courseID)
		response.RespondError(c, http.StatusInternalServerError, "load_module_failed", err)
		return
	}
	view, err := moduleView(*mod)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "render_failed", err)
		return
	}
	response.RespondOK(c, view)
}

// GetGenerationStatus returns the latest run for a course: the polling
// surface external observers watch during generation.
func (h *CourseHandler) GetGenerationStatus(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	if _, err := h.loadOwned(c, courseID); err != nil {
		return
	}
	run, err := h.runs.GetLatestByCourseID(c.Request.Context(), nil, courseID)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "no_generation_run", nil)
			return
		}
		h.log.Error("GetGenerationStatus failed", "error", err, "course_id", courseID)
		response.RespondError(c, http.StatusInternalServerError, "load_run_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"run_id":   run.ID,
		"status":   run.Status,
		"progress": run.Progress,
		"error":    run.Error,
	})
}

// loadOwned loads the course and rejects cross-tenant and cross-creator
// access. On error it has already written the response.
func (h *CourseHandler) loadOwned(c *gin.Context, courseID uuid.UUID) (*course.Course, error) {
	crs, err := h.courses.GetByID(c.Request.Context(), nil, courseID)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "course_not_found", nil)
			return nil, err
		}
		h.log.Error("load course failed", "error", err, "course_id", courseID)
		response.RespondError(c, http.StatusInternalServerError, "load_course_failed", err)
		return nil, err
	}
	if crs.TenantID != middleware.TenantID(c) || crs.CreatorID != middleware.CreatorID(c) {
		response.RespondError(c, http.StatusNotFound, "course_not_found", nil)
		return nil, repos.ErrNotFound
	}
	return crs, nil
}

func courseSummaryView(crs *course.Course) gin.H {
	return gin.H{
		"id":          crs.ID,
		"status":      crs.Status,
		"title":       crs.Title,
		"description": crs.Description,
		"modules":     len(crs.Modules),
		"created_at":  crs.CreatedAt,
	}
}

func courseView(crs *course.Course) (gin.H, error) {
	modules := make([]gin.H, 0, len(crs.Modules))
	for _, m := range crs.Modules {
		mv, err := moduleView(m)
		if err != nil {
			return nil, err
		}
		modules = append(modules, mv)
	}
	return gin.H{
		"id":                  crs.ID,
		"status":              crs.Status,
		"title":               crs.Title,
		"description":         crs.Description,
		"learning_objectives": crs.LearningObjectives,
		"modules":             modules,
		"final_assessment":    crs.FinalAssessment,
		"created_at":          crs.CreatedAt,
	}, nil
}

func moduleView(m course.Module) (gin.H, error) {
	var blocks json.RawMessage
	if len(m.ContentBlocks) > 0 {
		raw, err := course.MarshalContentBlocks(m.ContentBlocks)
		if err != nil {
			return nil, err
		}
		blocks = raw
	}
	var assignment json.RawMessage
	if m.Assignment != nil {
		raw, err := course.MarshalAssignment(m.Assignment)
		if err != nil {
			return nil, err
		}
		assignment = raw
	}
	return gin.H{
		"id":                  m.ID,
		"title":               m.Title,
		"description":         m.Description,
		"learning_objectives": m.LearningObjectives,
		"order":               m.Order,
		"content_blocks":      blocks,
		"assignment":          assignment,
	}, nil
}
