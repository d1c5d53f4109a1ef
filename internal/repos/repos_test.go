package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Course{}, &types.CourseModule{}, &types.GenerationRun{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCourse(t *testing.T, repo CourseRepo) *course.Course {
	t.Helper()
	c := course.New(42, uuid.New())
	c.Title = "Introduction to Databases"
	c.Description = "Relational fundamentals"
	c.LearningObjectives = []string{"Explain the relational model", "Write basic SQL"}
	c.AppendModule(course.Module{
		Title:              "Relational model",
		Description:        "Tables, rows, keys",
		LearningObjectives: []string{"Define a relation"},
		ContentBlocks: []course.ContentBlock{
			course.TextBlock{MDContent: "A relation is a set of tuples.", AIGenerated: true},
		},
	})
	if err := repo.Create(context.Background(), nil, c); err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}

func TestCourseRepoRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewCourseRepo(db, logger.NewNop())
	want := seedCourse(t, repo)

	got, err := repo.GetByID(context.Background(), nil, want.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != want.Title || got.Status != course.StatusDraft {
		t.Fatalf("header mismatch: got=%+v", got)
	}
	if len(got.Modules) != 1 {
		t.Fatalf("modules: want=1 got=%d", len(got.Modules))
	}
	if got.Modules[0].Order != 0 {
		t.Fatalf("module order: want=0 got=%d", got.Modules[0].Order)
	}
	if len(got.Modules[0].ContentBlocks) != 1 || got.Modules[0].ContentBlocks[0].Type() != course.ContentTypeText {
		t.Fatalf("blocks not restored: %+v", got.Modules[0].ContentBlocks)
	}
}

func TestCourseRepoModulesKeepPositionOrder(t *testing.T) {
	db := testDB(t)
	repo := NewCourseRepo(db, logger.NewNop())
	c := seedCourse(t, repo)

	titles := []string{"SQL basics", "Transactions", "Indexes"}
	for _, title := range titles {
		m := course.Module{
			Title:              title,
			Description:        "d",
			LearningObjectives: []string{"o"},
			Order:              len(c.Modules),
			ContentBlocks:      []course.ContentBlock{course.TextBlock{MDContent: "x"}},
		}
		c.Modules = append(c.Modules, m)
		if err := repo.AppendModule(context.Background(), nil, c.ID, m); err != nil {
			t.Fatalf("append %s: %v", title, err)
		}
	}

	got, err := repo.GetByID(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Modules) != 4 {
		t.Fatalf("modules: want=4 got=%d", len(got.Modules))
	}
	for i, m := range got.Modules {
		if m.Order != i {
			t.Fatalf("order at %d: got=%d", i, m.Order)
		}
	}
}

func TestCourseRepoUpdateModuleFillsBlocksAndAssignment(t *testing.T) {
	db := testDB(t)
	repo := NewCourseRepo(db, logger.NewNop())
	c := seedCourse(t, repo)

	a, err := course.NewTestAssignment(
		course.AssignmentBase{Title: "Module quiz", MaxScore: 10, PassingScore: 6},
		[]course.TestQuestion{{
			Text:           "What is a key?",
			Options:        []string{"A unique identifier", "A table"},
			CorrectAnswers: []int{0},
			Points:         10,
		}})
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}

	m := c.Modules[0]
	m.ContentBlocks = append(m.ContentBlocks, course.CodeBlock{Language: "sql", Code: "SELECT 1;"})
	m.Assignment = a
	if err := repo.UpdateModule(context.Background(), nil, c.ID, m); err != nil {
		t.Fatalf("update module: %v", err)
	}

	got, err := repo.GetModule(context.Background(), nil, c.ID, 0)
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	if len(got.ContentBlocks) != 2 {
		t.Fatalf("blocks: want=2 got=%d", len(got.ContentBlocks))
	}
	if got.Assignment == nil || got.Assignment.Type() != course.AssignmentTypeTest {
		t.Fatalf("assignment not restored: %+v", got.Assignment)
	}
}

func TestCourseRepoUpdateStatusAndFinalAssessment(t *testing.T) {
	db := testDB(t)
	repo := NewCourseRepo(db, logger.NewNop())
	c := seedCourse(t, repo)

	if err := repo.UpdateStatus(context.Background(), nil, c.ID, course.StatusGenerating); err != nil {
		t.Fatalf("update status: %v", err)
	}
	fa := course.FinalAssessment{Version: 1, Task: "Design a schema", EvaluationCriteria: []string{"Normal forms applied"}}
	if err := repo.SetFinalAssessment(context.Background(), nil, c.ID, fa); err != nil {
		t.Fatalf("set final assessment: %v", err)
	}

	got, err := repo.GetByID(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != course.StatusGenerating {
		t.Fatalf("status: want=%s got=%s", course.StatusGenerating, got.Status)
	}
	if got.FinalAssessment == nil || got.FinalAssessment.Task != fa.Task {
		t.Fatalf("final assessment not restored: %+v", got.FinalAssessment)
	}
}

func TestCourseRepoGetByIDNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewCourseRepo(db, logger.NewNop())
	if _, err := repo.GetByID(context.Background(), nil, uuid.New()); err != ErrNotFound {
		t.Fatalf("want=ErrNotFound got=%v", err)
	}
}

func newRun(courseID uuid.UUID) *types.GenerationRun {
	return &types.GenerationRun{
		CourseID:  courseID,
		CreatorID: 42,
		TenantID:  uuid.New(),
		Prompt:    "I want a beginner database course",
	}
}

func TestGenerationRunEnqueueIsIdempotentPerCourse(t *testing.T) {
	db := testDB(t)
	repo := NewGenerationRunRepo(db, logger.NewNop())
	ctx := context.Background()
	courseID := uuid.New()

	first, created, err := repo.Enqueue(ctx, nil, newRun(courseID))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !created {
		t.Fatal("first enqueue did not create a run")
	}

	second, created, err := repo.Enqueue(ctx, nil, newRun(courseID))
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if created {
		t.Fatal("re-enqueue created a second live run")
	}
	if second.ID != first.ID {
		t.Fatalf("run id: want=%s got=%s", first.ID, second.ID)
	}
}

func TestGenerationRunEnqueueAfterTerminalCreatesNewRun(t *testing.T) {
	db := testDB(t)
	repo := NewGenerationRunRepo(db, logger.NewNop())
	ctx := context.Background()
	courseID := uuid.New()

	first, _, err := repo.Enqueue(ctx, nil, newRun(courseID))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.UpdateFields(ctx, nil, first.ID, map[string]interface{}{"status": types.RunStatusFailed, "error": "provider timeout"}); err != nil {
		t.Fatalf("fail run: %v", err)
	}

	second, created, err := repo.Enqueue(ctx, nil, newRun(courseID))
	if err != nil {
		t.Fatalf("enqueue after failure: %v", err)
	}
	if !created || second.ID == first.ID {
		t.Fatalf("expected fresh run after terminal one, created=%v id=%s", created, second.ID)
	}
}

func TestClaimNextRunnableClaimsOldestPending(t *testing.T) {
	db := testDB(t)
	repo := NewGenerationRunRepo(db, logger.NewNop())
	ctx := context.Background()

	first, _, err := repo.Enqueue(ctx, nil, newRun(uuid.New()))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := repo.Enqueue(ctx, nil, newRun(uuid.New())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, nil, "worker-1", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil {
		t.Fatal("nothing claimed")
	}
	if claimed.ID != first.ID {
		t.Fatalf("claimed run: want=%s got=%s", first.ID, claimed.ID)
	}
	if claimed.Status != types.RunStatusPlanning || claimed.LockedBy != "worker-1" {
		t.Fatalf("claim state: %+v", claimed)
	}
	if claimed.Attempts != 1 {
		t.Fatalf("attempts: want=1 got=%d", claimed.Attempts)
	}
}

func TestClaimNextRunnableSkipsFreshInFlightRuns(t *testing.T) {
	db := testDB(t)
	repo := NewGenerationRunRepo(db, logger.NewNop())
	ctx := context.Background()

	if _, _, err := repo.Enqueue(ctx, nil, newRun(uuid.New())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.ClaimNextRunnable(ctx, nil, "worker-1", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	again, err := repo.ClaimNextRunnable(ctx, nil, "worker-2", time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("in-flight run reclaimed: %+v", again)
	}
}

func TestClaimNextRunnableRecoversStaleRun(t *testing.T) {
	db := testDB(t)
	repo := NewGenerationRunRepo(db, logger.NewNop())
	ctx := context.Background()

	run, _, err := repo.Enqueue(ctx, nil, newRun(uuid.New()))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, err := repo.ClaimNextRunnable(ctx, nil, "worker-1", time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	stale := time.Now().UTC().Add(-time.Hour)
	if err := repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{"heartbeat_at": stale}); err != nil {
		t.Fatalf("age heartbeat: %v", err)
	}

	recovered, err := repo.ClaimNextRunnable(ctx, nil, "worker-2", time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if recovered == nil || recovered.ID != run.ID {
		t.Fatalf("stale run not recovered: %+v", recovered)
	}
	if recovered.LockedBy != "worker-2" || recovered.Attempts != 2 {
		t.Fatalf("reclaim state: %+v", recovered)
	}
}

func TestHeartbeatAdvancesTimestamp(t *testing.T) {
	db := testDB(t)
	repo := NewGenerationRunRepo(db, logger.NewNop())
	ctx := context.Background()

	run, _, err := repo.Enqueue(ctx, nil, newRun(uuid.New()))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.ClaimNextRunnable(ctx, nil, "worker-1", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}
	before, err := repo.GetByID(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := repo.Heartbeat(ctx, nil, run.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	after, err := repo.GetByID(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !after.HeartbeatAt.After(*before.HeartbeatAt) {
		t.Fatalf("heartbeat did not advance: before=%v after=%v", before.HeartbeatAt, after.HeartbeatAt)
	}
}
