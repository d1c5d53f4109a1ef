package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type CourseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, c *course.Course) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*course.Course, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status course.Status) error
	UpdateHeader(ctx context.Context, tx *gorm.DB, c *course.Course) error
	SetFinalAssessment(ctx context.Context, tx *gorm.DB, id uuid.UUID, fa course.FinalAssessment) error
	AppendModule(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, m course.Module) error
	UpdateModule(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, m course.Module) error
	GetModule(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, position int) (*course.Module, error)
	ListByCreator(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, creatorID int64) ([]*course.Course, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(ctx context.Context, tx *gorm.DB, c *course.Course) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row, err := courseToRow(c)
	if err != nil {
		return err
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Create(row).Error; err != nil {
			return err
		}
		for _, m := range c.Modules {
			mrow, err := moduleToRow(c.ID, m)
			if err != nil {
				return err
			}
			if err := txx.Create(mrow).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *courseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*course.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Course
	err := transaction.WithContext(ctx).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return courseFromRow(&row)
}

func (r *courseRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status course.Status) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if !status.Valid() {
		return fmt.Errorf("unknown course status %q", status)
	}
	res := transaction.WithContext(ctx).
		Model(&types.Course{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateHeader persists title, description and objectives without touching
// modules. The planner calls this once the structure plan is accepted.
func (r *courseRepo) UpdateHeader(ctx context.Context, tx *gorm.DB, c *course.Course) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	objectives, err := json.Marshal(c.LearningObjectives)
	if err != nil {
		return err
	}
	res := transaction.WithContext(ctx).
		Model(&types.Course{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"title":               c.Title,
			"description":         c.Description,
			"learning_objectives": datatypes.JSON(objectives),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *courseRepo) SetFinalAssessment(ctx context.Context, tx *gorm.DB, id uuid.UUID, fa course.FinalAssessment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	raw, err := json.Marshal(fa)
	if err != nil {
		return err
	}
	res := transaction.WithContext(ctx).
		Model(&types.Course{}).
		Where("id = ?", id).
		Update("final_assessment", datatypes.JSON(raw))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *courseRepo) AppendModule(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, m course.Module) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row, err := moduleToRow(courseID, m)
	if err != nil {
		return err
	}
	return transaction.WithContext(ctx).Create(row).Error
}

// UpdateModule replaces the stored module at m.Order for the course. The
// pipeline persists the module shell first and fills blocks in later.
func (r *courseRepo) UpdateModule(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, m course.Module) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row, err := moduleToRow(courseID, m)
	if err != nil {
		return err
	}
	res := transaction.WithContext(ctx).
		Model(&types.CourseModule{}).
		Where("course_id = ? AND position = ?", courseID, m.Order).
		Updates(map[string]interface{}{
			"title":               row.Title,
			"description":         row.Description,
			"learning_objectives": row.LearningObjectives,
			"content_blocks":      row.ContentBlocks,
			"assignment":          row.Assignment,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *courseRepo) GetModule(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, position int) (*course.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.CourseModule
	err := transaction.WithContext(ctx).
		Where("course_id = ? AND position = ?", courseID, position).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m, err := moduleFromRow(&row)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *courseRepo) ListByCreator(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, creatorID int64) ([]*course.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.Course
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND creator_id = ?", tenantID, creatorID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*course.Course, 0, len(rows))
	for i := range rows {
		c, err := courseFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func courseToRow(c *course.Course) (*types.Course, error) {
	objectives, err := json.Marshal(c.LearningObjectives)
	if err != nil {
		return nil, err
	}
	row := &types.Course{
		ID:                 c.ID,
		CreatorID:          c.CreatorID,
		TenantID:           c.TenantID,
		Status:             string(c.Status),
		Title:              c.Title,
		Description:        c.Description,
		LearningObjectives: datatypes.JSON(objectives),
	}
	if c.FinalAssessment != nil {
		fa, err := json.Marshal(c.FinalAssessment)
		if err != nil {
			return nil, err
		}
		row.FinalAssessment = datatypes.JSON(fa)
	}
	return row, nil
}

func courseFromRow(row *types.Course) (*course.Course, error) {
	c := &course.Course{
		ID:          row.ID,
		CreatedAt:   row.CreatedAt,
		CreatorID:   row.CreatorID,
		TenantID:    row.TenantID,
		Status:      course.Status(row.Status),
		Title:       row.Title,
		Description: row.Description,
	}
	if len(row.LearningObjectives) > 0 {
		if err := json.Unmarshal(row.LearningObjectives, &c.LearningObjectives); err != nil {
			return nil, fmt.Errorf("course %s objectives: %w", row.ID, err)
		}
	}
	if len(row.FinalAssessment) > 0 {
		var fa course.FinalAssessment
		if err := json.Unmarshal(row.FinalAssessment, &fa); err != nil {
			return nil, fmt.Errorf("course %s final assessment: %w", row.ID, err)
		}
		c.FinalAssessment = &fa
	}
	for i := range row.Modules {
		m, err := moduleFromRow(&row.Modules[i])
		if err != nil {
			return nil, err
		}
		c.Modules = append(c.Modules, m)
	}
	return c, nil
}

func moduleToRow(courseID uuid.UUID, m course.Module) (*types.CourseModule, error) {
	id := m.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	objectives, err := json.Marshal(m.LearningObjectives)
	if err != nil {
		return nil, err
	}
	row := &types.CourseModule{
		ID:                 id,
		CourseID:           courseID,
		Position:           m.Order,
		Title:              m.Title,
		Description:        m.Description,
		LearningObjectives: datatypes.JSON(objectives),
	}
	if len(m.ContentBlocks) > 0 {
		blocks, err := course.MarshalContentBlocks(m.ContentBlocks)
		if err != nil {
			return nil, err
		}
		row.ContentBlocks = datatypes.JSON(blocks)
	}
	if m.Assignment != nil {
		a, err := course.MarshalAssignment(m.Assignment)
		if err != nil {
			return nil, err
		}
		row.Assignment = datatypes.JSON(a)
	}
	return row, nil
}

func moduleFromRow(row *types.CourseModule) (course.Module, error) {
	m := course.Module{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Order:       row.Position,
	}
	if len(row.LearningObjectives) > 0 {
		if err := json.Unmarshal(row.LearningObjectives, &m.LearningObjectives); err != nil {
			return course.Module{}, fmt.Errorf("module %s objectives: %w", row.ID, err)
		}
	}
	if len(row.ContentBlocks) > 0 {
		blocks, err := course.UnmarshalContentBlocks(row.ContentBlocks)
		if err != nil {
			return course.Module{}, fmt.Errorf("module %s blocks: %w", row.ID, err)
		}
		m.ContentBlocks = blocks
	}
	if len(row.Assignment) > 0 {
		a, err := course.UnmarshalAssignment(row.Assignment)
		if err != nil {
			return course.Module{}, fmt.Errorf("module %s assignment: %w", row.ID, err)
		}
		m.Assignment = a
	}
	return m, nil
}
