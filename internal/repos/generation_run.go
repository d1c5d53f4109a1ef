package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/types"
)

type GenerationRunRepo interface {
	// Enqueue creates a pending run for the course. If a non-terminal run
	// already exists it is returned unchanged and no new run is created.
	Enqueue(ctx context.Context, tx *gorm.DB, run *types.GenerationRun) (*types.GenerationRun, bool, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationRun, error)
	GetLatestByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.GenerationRun, error)

	// ClaimNextRunnable picks the oldest claimable run and marks it as owned
	// by workerID. Claimable means pending, or a stale in-flight run whose
	// heartbeat is older than staleAfter.
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, workerID string, staleAfter time.Duration) (*types.GenerationRun, error)

	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{db: db, log: baseLog.With("repo", "GenerationRunRepo")}
}

func (r *generationRunRepo) Enqueue(ctx context.Context, tx *gorm.DB, run *types.GenerationRun) (*types.GenerationRun, bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var created bool
	var out *types.GenerationRun
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var existing types.GenerationRun
		err := txx.
			Where("course_id = ? AND status NOT IN ?", run.CourseID,
				[]string{types.RunStatusCompleted, types.RunStatusFailed}).
			Order("created_at DESC").
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != uuid.Nil {
			out = &existing
			return nil
		}
		if run.ID == uuid.Nil {
			run.ID = uuid.New()
		}
		run.Status = types.RunStatusPending
		if err := txx.Create(run).Error; err != nil {
			return err
		}
		out = run
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		r.log.Info("enqueue is a no-op, run already live",
			"course_id", run.CourseID, "run_id", out.ID, "status", out.Status)
	}
	return out, created, nil
}

func (r *generationRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.GenerationRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (r *generationRunRepo) GetLatestByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.GenerationRun
	err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (r *generationRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, workerID string, staleAfter time.Duration) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleAfter)

	// The claim is a conditional update checked by RowsAffected, so two
	// workers racing for the same run cannot both win it.
	for attempt := 0; attempt < 3; attempt++ {
		var candidate types.GenerationRun
		err := transaction.WithContext(ctx).
			Where("status = ?", types.RunStatusPending).
			Or("status NOT IN ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?",
				[]string{types.RunStatusCompleted, types.RunStatusFailed}, staleCutoff).
			Order("created_at ASC").
			Limit(1).
			Find(&candidate).Error
		if err != nil {
			return nil, err
		}
		if candidate.ID == uuid.Nil {
			return nil, nil
		}

		res := transaction.WithContext(ctx).
			Model(&types.GenerationRun{}).
			Where("id = ? AND status = ? AND (locked_at IS NULL OR heartbeat_at < ?)",
				candidate.ID, candidate.Status, staleCutoff).
			Updates(map[string]interface{}{
				"status":       types.RunStatusPlanning,
				"locked_by":    workerID,
				"locked_at":    now,
				"heartbeat_at": now,
				"attempts":     gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Someone else got there first, try the next candidate.
			continue
		}
		return r.GetByID(ctx, transaction, candidate.ID)
	}
	return nil, nil
}

func (r *generationRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.GenerationRun{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *generationRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.GenerationRun{}).
		Where("id = ?", id).
		Update("heartbeat_at", time.Now().UTC()).Error
}
