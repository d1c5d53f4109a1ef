package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eduforge/coursegen-backend/internal/http/middleware"
	"github.com/eduforge/coursegen-backend/internal/http/response"
	"github.com/eduforge/coursegen-backend/internal/knowledge"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
)

type KnowledgeHandler struct {
	log   *logger.Logger
	index *knowledge.Index
}

func NewKnowledgeHandler(log *logger.Logger, index *knowledge.Index) *KnowledgeHandler {
	return &KnowledgeHandler{
		log:   log.With("handler", "KnowledgeHandler"),
		index: index,
	}
}

type uploadMaterialsRequest struct {
	Materials map[string]string `json:"materials" binding:"required"`
}

// UploadMaterials indexes teacher-provided source material into the
// tenant's knowledge base ahead of generation.
func (h *KnowledgeHandler) UploadMaterials(c *gin.Context) {
	var req uploadMaterialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Materials) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_materials", nil)
		return
	}
	chunks, err := h.index.IndexMaterials(c.Request.Context(), middleware.TenantID(c), req.Materials)
	if err != nil {
		h.log.Error("UploadMaterials failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "index_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"chunks_indexed": chunks})
}

type searchKnowledgeRequest struct {
	Query    string `json:"query" binding:"required"`
	Category string `json:"category"`
	TopK     int    `json:"top_k"`
}

// SearchKnowledge runs a retrieval query against the tenant's knowledge
// base. Mainly a debugging surface for teachers inspecting their corpus.
func (h *KnowledgeHandler) SearchKnowledge(c *gin.Context) {
	var req searchKnowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.TopK <= 0 || req.TopK > 50 {
		req.TopK = 10
	}
	chunks, err := h.index.Search(c.Request.Context(), middleware.TenantID(c), req.Query, req.Category, req.TopK)
	if err != nil {
		h.log.Error("SearchKnowledge failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"chunks": chunks})
}
