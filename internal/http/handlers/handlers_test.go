package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/eduforge/coursegen-backend/internal/course"
	httpMW "github.com/eduforge/coursegen-backend/internal/http/middleware"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/repos"
	"github.com/eduforge/coursegen-backend/internal/types"
)

func testRouter(t *testing.T) (*gin.Engine, repos.CourseRepo, repos.GenerationRunRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_t="+uuid.NewString()), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Course{}, &types.CourseModule{}, &types.GenerationRun{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := logger.NewNop()
	courses := repos.NewCourseRepo(db, log)
	runs := repos.NewGenerationRunRepo(db, log)
	h := NewCourseHandler(log, courses, runs)

	r := gin.New()
	api := r.Group("/api")
	api.Use(httpMW.RequireIdentity())
	api.POST("/courses", h.CreateCourse)
	api.GET("/courses/:id", h.GetCourse)
	api.POST("/courses/:id/generate", h.GenerateCourse)
	api.GET("/courses/:id/status", h.GetGenerationStatus)
	api.GET("/courses/:id/modules/:position", h.GetModule)
	return r, courses, runs
}

var (
	testTenant  = uuid.New()
	testCreator = int64(42)
)

func doRequest(t *testing.T, r *gin.Engine, method, path string, body any, tenant uuid.UUID, creator int64) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenant != uuid.Nil {
		req.Header.Set("X-Tenant-ID", tenant.String())
	}
	if creator > 0 {
		req.Header.Set("X-Creator-ID", fmt.Sprintf("%d", creator))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateCourseEnqueuesRun(t *testing.T) {
	r, _, runs := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/courses", gin.H{"prompt": "databases for juniors"}, testTenant, testCreator)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: want=201 got=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		CourseID uuid.UUID `json:"course_id"`
		RunID    uuid.UUID `json:"run_id"`
		Status   string    `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != types.RunStatusPending {
		t.Fatalf("run status: want=%s got=%s", types.RunStatusPending, resp.Status)
	}

	run, err := runs.GetByID(httptest.NewRequest("GET", "/", nil).Context(), nil, resp.RunID)
	if err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if run.CourseID != resp.CourseID {
		t.Fatalf("run bound to wrong course")
	}
	if run.Prompt != "databases for juniors" {
		t.Fatalf("prompt not stored: %q", run.Prompt)
	}
}

func TestCreateCourseRequiresIdentity(t *testing.T) {
	r, _, _ := testRouter(t)
	w := doRequest(t, r, http.MethodPost, "/api/courses", gin.H{"prompt": "x"}, uuid.Nil, 0)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", w.Code)
	}
}

func TestGenerateCourseDuplicateReturnsExistingRun(t *testing.T) {
	r, _, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/courses", gin.H{"prompt": "first"}, testTenant, testCreator)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want=201 got=%d", w.Code)
	}
	var created struct {
		CourseID uuid.UUID `json:"course_id"`
		RunID    uuid.UUID `json:"run_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doRequest(t, r, http.MethodPost, "/api/courses/"+created.CourseID.String()+"/generate", gin.H{"prompt": "second"}, testTenant, testCreator)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate generate: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	var dup struct {
		RunID          uuid.UUID `json:"run_id"`
		AlreadyRunning bool      `json:"already_running"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &dup); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !dup.AlreadyRunning {
		t.Fatalf("expected already_running")
	}
	if dup.RunID != created.RunID {
		t.Fatalf("duplicate started a new run")
	}
}

func TestGetCourseRejectsForeignTenant(t *testing.T) {
	r, _, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/courses", gin.H{"prompt": "mine"}, testTenant, testCreator)
	var created struct {
		CourseID uuid.UUID `json:"course_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doRequest(t, r, http.MethodGet, "/api/courses/"+created.CourseID.String(), nil, uuid.New(), testCreator)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign tenant: want=404 got=%d", w.Code)
	}
}

func TestGetModuleByPosition(t *testing.T) {
	r, courses, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/courses", gin.H{"prompt": "with module"}, testTenant, testCreator)
	var created struct {
		CourseID uuid.UUID `json:"course_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	mod := course.Module{
		ID:    uuid.New(),
		Title: "First module",
		Order: 0,
		ContentBlocks: []course.ContentBlock{
			course.TextBlock{MDContent: "hello", AIGenerated: true},
		},
	}
	ctx := httptest.NewRequest("GET", "/", nil).Context()
	if err := courses.AppendModule(ctx, nil, created.CourseID, mod); err != nil {
		t.Fatalf("append module: %v", err)
	}

	w = doRequest(t, r, http.MethodGet, "/api/courses/"+created.CourseID.String()+"/modules/0", nil, testTenant, testCreator)
	if w.Code != http.StatusOK {
		t.Fatalf("get module: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	var got struct {
		Title string `json:"title"`
		Order int    `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "First module" || got.Order != 0 {
		t.Fatalf("module view: %+v", got)
	}

	w = doRequest(t, r, http.MethodGet, "/api/courses/"+created.CourseID.String()+"/modules/5", nil, testTenant, testCreator)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing module: want=404 got=%d", w.Code)
	}
}

func TestGenerationStatusEndpoint(t *testing.T) {
	r, _, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/courses", gin.H{"prompt": "status"}, testTenant, testCreator)
	var created struct {
		CourseID uuid.UUID `json:"course_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doRequest(t, r, http.MethodGet, "/api/courses/"+created.CourseID.String()+"/status", nil, testTenant, testCreator)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	var got struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != types.RunStatusPending {
		t.Fatalf("run status: want=%s got=%s", types.RunStatusPending, got.Status)
	}
}
