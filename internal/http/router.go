package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/eduforge/coursegen-backend/internal/http/handlers"
	httpMW "github.com/eduforge/coursegen-backend/internal/http/middleware"
)

type RouterConfig struct {
	CourseHandler    *httpH.CourseHandler
	InterviewHandler *httpH.InterviewHandler
	KnowledgeHandler *httpH.KnowledgeHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	api.Use(httpMW.RequireIdentity())
	{
		if cfg.CourseHandler != nil {
			api.POST("/courses", cfg.CourseHandler.CreateCourse)
			api.GET("/courses", cfg.CourseHandler.ListCourses)
			api.GET("/courses/:id", cfg.CourseHandler.GetCourse)
			api.POST("/courses/:id/generate", cfg.CourseHandler.GenerateCourse)
			api.GET("/courses/:id/status", cfg.CourseHandler.GetGenerationStatus)
			api.GET("/courses/:id/modules/:position", cfg.CourseHandler.GetModule)
		}

		if cfg.InterviewHandler != nil {
			api.POST("/interviews", cfg.InterviewHandler.StartInterview)
			api.POST("/interviews/answer", cfg.InterviewHandler.AnswerInterview)
			api.POST("/interviews/complete", cfg.InterviewHandler.CompleteInterview)
			api.DELETE("/interviews", cfg.InterviewHandler.AbandonInterview)
		}

		if cfg.KnowledgeHandler != nil {
			api.POST("/knowledge/materials", cfg.KnowledgeHandler.UploadMaterials)
			api.POST("/knowledge/search", cfg.KnowledgeHandler.SearchKnowledge)
		}
	}

	return r
}
