package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Generation run statuses. A run is claimable while pending and moves
// through the pipeline stages until it terminates in completed or failed.
// Interviewing happens over HTTP before the run is enqueued, so a claimed
// run starts at planning.
const (
	RunStatusPending              = "pending"
	RunStatusInterviewing         = "interviewing"
	RunStatusPlanning             = "planning"
	RunStatusGeneratingModules    = "generating_modules"
	RunStatusGeneratingAssessment = "generating_assessment"
	RunStatusCompleted            = "completed"
	RunStatusFailed               = "failed"
)

// RunTerminal reports whether a run status admits no further transitions.
func RunTerminal(status string) bool {
	return status == RunStatusCompleted || status == RunStatusFailed
}

// GenerationRun tracks one end-to-end course generation. At most one
// non-terminal run may exist per course; enqueueing while one is live is a
// no-op.
type GenerationRun struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	CreatorID        int64          `gorm:"not null" json:"creator_id"`
	TenantID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Prompt           string         `gorm:"type:text" json:"prompt"`
	InterviewSummary string         `gorm:"type:text" json:"interview_summary,omitempty"`
	Status           string         `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	Progress         int            `gorm:"not null;default:0" json:"progress"`
	Attempts         int            `gorm:"not null;default:0" json:"attempts"`
	Error            string         `gorm:"type:text" json:"error,omitempty"`
	LockedBy         string         `gorm:"type:varchar(128)" json:"locked_by,omitempty"`
	LockedAt         *time.Time     `json:"locked_at,omitempty"`
	HeartbeatAt      *time.Time     `json:"heartbeat_at,omitempty"`
	Metadata         datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GenerationRun) TableName() string { return "generation_runs" }
