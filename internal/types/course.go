package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Course is the persisted course row. Structured payloads (objectives,
// final assessment) live in JSON columns; modules are separate rows so the
// pipeline can persist them incrementally.
type Course struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID          int64          `gorm:"not null;index" json:"creator_id"`
	TenantID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Status             string         `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`
	Title              string         `gorm:"type:text" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	LearningObjectives datatypes.JSON `gorm:"type:jsonb" json:"learning_objectives"`
	FinalAssessment    datatypes.JSON `gorm:"type:jsonb" json:"final_assessment,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	Modules []CourseModule `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
}

func (Course) TableName() string { return "courses" }

// CourseModule is one ordered module of a course. Position is the
// zero-based index inside the course and is unique per course.
type CourseModule struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_course_modules_course_position,unique,priority:1" json:"course_id"`
	Position           int            `gorm:"not null;index:idx_course_modules_course_position,unique,priority:2" json:"position"`
	Title              string         `gorm:"type:text;not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	LearningObjectives datatypes.JSON `gorm:"type:jsonb" json:"learning_objectives"`
	ContentBlocks      datatypes.JSON `gorm:"type:jsonb" json:"content_blocks"`
	Assignment         datatypes.JSON `gorm:"type:jsonb" json:"assignment,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CourseModule) TableName() string { return "course_modules" }
