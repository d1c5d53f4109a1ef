package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/jobs/runtime"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/repos"
	"github.com/eduforge/coursegen-backend/internal/types"
)

// DefaultRunTimeout bounds one full generation run.
const DefaultRunTimeout = 45 * time.Minute

// Orchestrator drives one generation run through its stages: planning,
// module generation, final assessment, assembly. The course is owned
// exclusively by the run until it reaches a terminal status; on failure
// whatever was generated stays visible and the course returns to draft.
type Orchestrator struct {
	log     *logger.Logger
	courses repos.CourseRepo
	planner *StructurePlanner
	modules *ModulePipeline
	assess  *AssignmentGenerator
	timeout time.Duration
}

func NewOrchestrator(log *logger.Logger, courses repos.CourseRepo, planner *StructurePlanner, modules *ModulePipeline, assess *AssignmentGenerator, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Orchestrator{
		log:     log.With("service", "Orchestrator"),
		courses: courses,
		planner: planner,
		modules: modules,
		assess:  assess,
		timeout: timeout,
	}
}

// Run executes the claimed generation run to a terminal status. The
// returned error is for the worker's log; user-visible failure is the run
// row's status and reason.
func (o *Orchestrator) Run(jc *runtime.Context) error {
	run := jc.Run
	ctx, cancel := context.WithTimeout(jc.Ctx, o.timeout)
	defer cancel()

	tracer := otel.Tracer("coursegen/pipeline")
	ctx, span := tracer.Start(ctx, "generation_run", trace.WithAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.String("course.id", run.CourseID.String()),
	))
	defer span.End()

	if err := o.courses.UpdateStatus(ctx, nil, run.CourseID, course.StatusGenerating); err != nil {
		return o.fail(jc, span, "planning", fmt.Errorf("claim course: %w", err))
	}

	plan, err := o.planStage(ctx, tracer, jc)
	if err != nil {
		return o.fail(jc, span, "planning", err)
	}

	built, err := o.moduleStage(ctx, tracer, jc, plan)
	if err != nil {
		return o.fail(jc, span, "generating_modules", err)
	}

	if err := o.assessmentStage(ctx, tracer, jc, plan); err != nil {
		return o.fail(jc, span, "generating_assessment", err)
	}

	if err := o.assemble(ctx, tracer, jc); err != nil {
		return o.fail(jc, span, "assembly", err)
	}

	jc.Succeed(fmt.Sprintf("generated %d modules", built))
	span.SetStatus(codes.Ok, "")
	return nil
}

// plannerInput prefers the interview summary; a run enqueued without an
// interview falls back to the raw course prompt.
func plannerInput(run *types.GenerationRun) string {
	if run.InterviewSummary != "" {
		return run.InterviewSummary
	}
	return run.Prompt
}

func (o *Orchestrator) planStage(ctx context.Context, tracer trace.Tracer, jc *runtime.Context) (*course.StructurePlan, error) {
	ctx, span := tracer.Start(ctx, "stage.planning")
	defer span.End()
	jc.Progress(types.RunStatusPlanning, 10, "planning course structure")

	plan, err := o.planner.Plan(ctx, jc.Run.TenantID, plannerInput(jc.Run))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c, err := o.courses.GetByID(ctx, nil, jc.Run.CourseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	c.Title = plan.Title
	c.Description = plan.Description
	c.LearningObjectives = plan.LearningObjectives
	if err := o.courses.UpdateHeader(ctx, nil, c); err != nil {
		return nil, fmt.Errorf("persist course header: %w", err)
	}
	return plan, nil
}

func (o *Orchestrator) moduleStage(ctx context.Context, tracer trace.Tracer, jc *runtime.Context, plan *course.StructurePlan) (int, error) {
	ctx, span := tracer.Start(ctx, "stage.generating_modules", trace.WithAttributes(
		attribute.Int("modules.planned", len(plan.ModuleDescriptions)),
	))
	defer span.End()

	total := len(plan.ModuleDescriptions)
	for i, desc := range plan.ModuleDescriptions {
		pct := 15 + (70*i)/total
		jc.Progress(types.RunStatusGeneratingModules, pct, fmt.Sprintf("generating module %d of %d", i+1, total))

		seed := course.ModuleSeed{
			CourseID:            jc.Run.CourseID,
			AudienceDescription: plan.AudienceDescription,
			LearningObjectives:  plan.LearningObjectives,
			Order:               i,
			Description:         desc,
		}
		if _, err := o.modules.Build(ctx, jc.Run.TenantID, seed); err != nil {
			span.RecordError(err)
			return i, err
		}
		jc.Heartbeat()
	}
	return total, nil
}

func (o *Orchestrator) assessmentStage(ctx context.Context, tracer trace.Tracer, jc *runtime.Context, plan *course.StructurePlan) error {
	if plan.FinalAssessmentDescription == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "stage.generating_assessment")
	defer span.End()
	jc.Progress(types.RunStatusGeneratingAssessment, 88, "generating final assessment")

	fa, err := o.assess.FinalAssessment(ctx, plan)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := o.courses.SetFinalAssessment(ctx, nil, jc.Run.CourseID, *fa); err != nil {
		return fmt.Errorf("persist final assessment: %w", err)
	}
	return nil
}

// assemble re-reads the full aggregate and validates it before the course
// may leave the generating status. Violations abort publication.
func (o *Orchestrator) assemble(ctx context.Context, tracer trace.Tracer, jc *runtime.Context) error {
	ctx, span := tracer.Start(ctx, "stage.assembly")
	defer span.End()
	jc.Progress(types.RunStatusGeneratingAssessment, 95, "assembling course")

	c, err := o.courses.GetByID(ctx, nil, jc.Run.CourseID)
	if err != nil {
		return fmt.Errorf("load course for assembly: %w", err)
	}
	if err := c.Validate(); err != nil {
		span.RecordError(err)
		return err
	}
	if err := o.courses.UpdateStatus(ctx, nil, jc.Run.CourseID, course.StatusActive); err != nil {
		return fmt.Errorf("publish course: %w", err)
	}
	return nil
}

// fail marks the run failed with a human-readable reason and returns the
// course to draft. Partially generated modules stay persisted.
func (o *Orchestrator) fail(jc *runtime.Context, span trace.Span, stage string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)

	reason := failureReason(stage, err)
	jc.Fail(stage, reason)

	// Best effort with a fresh context: jc.Ctx may already be expired.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if derr := o.courses.UpdateStatus(ctx, nil, jc.Run.CourseID, course.StatusDraft); derr != nil {
		o.log.Error("failed to return course to draft", "course_id", jc.Run.CourseID, "error", derr)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// failureReason maps the error taxonomy to the user-visible reason stored
// on the run row. Never a stack trace.
func failureReason(stage string, err error) string {
	var (
		timeout   *generate.ProviderTimeoutError
		rateLimit *generate.ProviderRateLimitedError
		schema    *generate.SchemaValidationError
		budget    *generate.ToolBudgetExceededError
		invariant *course.InvariantViolationError
	)
	switch {
	case errors.As(err, &timeout):
		return fmt.Sprintf("the model provider timed out during %s; try again later", stage)
	case errors.As(err, &rateLimit):
		return fmt.Sprintf("the model provider is rate limiting requests during %s; try again later", stage)
	case errors.As(err, &schema):
		return fmt.Sprintf("the model could not produce valid output for %s after %d attempts", stage, schema.Attempts)
	case errors.As(err, &budget):
		return fmt.Sprintf("generation exceeded its tool budget during %s", stage)
	case errors.As(err, &invariant):
		return fmt.Sprintf("generated course failed validation: %s", invariant.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("generation ran out of time during %s", stage)
	default:
		return fmt.Sprintf("generation failed during %s: %s", stage, err.Error())
	}
}
