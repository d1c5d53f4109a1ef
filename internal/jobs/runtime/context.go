package runtime

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/repos"
	"github.com/eduforge/coursegen-backend/internal/services"
	"github.com/eduforge/coursegen-backend/internal/types"
)

// Context is the execution handle for one claimed generation run. It is
// the only sanctioned way for pipeline code to report progress or
// terminate the run; pipelines never touch the run row directly.
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Run    *types.GenerationRun
	Runs   repos.GenerationRunRepo
	Notify services.RunNotifier
	Log    *logger.Logger
}

func NewContext(ctx context.Context, db *gorm.DB, run *types.GenerationRun, runs repos.GenerationRunRepo, notify services.RunNotifier, log *logger.Logger) *Context {
	return &Context{
		Ctx:    ctx,
		DB:     db,
		Run:    run,
		Runs:   runs,
		Notify: notify,
		Log:    log.With("run_id", run.ID, "course_id", run.CourseID),
	}
}

func (c *Context) event(stage string, pct int, msg string) services.RunEvent {
	return services.RunEvent{
		RunID:     c.Run.ID,
		CourseID:  c.Run.CourseID,
		CreatorID: c.Run.CreatorID,
		Stage:     stage,
		Progress:  pct,
		Message:   msg,
	}
}

// Progress moves the run to a new stage status and percentage. Stage must
// be one of the run statuses.
func (c *Context) Progress(stage string, pct int, msg string) {
	now := time.Now().UTC()
	err := c.Runs.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"status":       stage,
		"progress":     pct,
		"heartbeat_at": now,
	})
	if err != nil {
		c.Log.Warn("run progress update failed", "stage", stage, "error", err.Error())
		return
	}
	c.Run.Status = stage
	c.Run.Progress = pct
	c.Run.HeartbeatAt = &now

	if c.Notify != nil {
		c.Notify.RunProgress(c.Ctx, c.event(stage, pct, msg))
	}
	c.Log.Info("run progress", "stage", stage, "progress", pct, "message", msg)
}

// Fail terminates the run with a human-readable reason. The reason is
// what external observers see; stack traces stay in the logs.
func (c *Context) Fail(stage string, reason string) {
	now := time.Now().UTC()
	err := c.Runs.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"status":       types.RunStatusFailed,
		"error":        reason,
		"locked_by":    "",
		"locked_at":    nil,
		"heartbeat_at": now,
	})
	if err != nil {
		c.Log.Error("run fail update failed", "stage", stage, "error", err.Error())
	}
	c.Run.Status = types.RunStatusFailed
	c.Run.Error = reason

	if c.Notify != nil {
		c.Notify.RunFailed(c.Ctx, c.event(stage, c.Run.Progress, reason))
	}
	c.Log.Error("run failed", "stage", stage, "reason", reason)
}

// Succeed terminates the run as completed.
func (c *Context) Succeed(msg string) {
	now := time.Now().UTC()
	err := c.Runs.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"status":       types.RunStatusCompleted,
		"progress":     100,
		"error":        "",
		"locked_by":    "",
		"locked_at":    nil,
		"heartbeat_at": now,
	})
	if err != nil {
		c.Log.Error("run succeed update failed", "error", err.Error())
	}
	c.Run.Status = types.RunStatusCompleted
	c.Run.Progress = 100

	if c.Notify != nil {
		c.Notify.RunCompleted(c.Ctx, c.event(types.RunStatusCompleted, 100, msg))
	}
	c.Log.Info("run completed", "message", msg)
}

// Heartbeat refreshes the liveness timestamp so other workers do not
// reclaim the run.
func (c *Context) Heartbeat() {
	if err := c.Runs.Heartbeat(c.Ctx, nil, c.Run.ID); err != nil {
		c.Log.Warn("run heartbeat failed", "error", err.Error())
	}
}
