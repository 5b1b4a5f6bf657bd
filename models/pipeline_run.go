package models

import "time"

const (
	PipelineRunStatusRunning             = "running"
	PipelineRunStatusCompleted           = "completed"
	PipelineRunStatusCompletedWithErrors = "completed_with_errors"
	PipelineRunStatusFailed              = "failed"
)

// PipelineRun records one execution of a pipeline job. A row is created when
// the job starts and mutated exactly once when it reaches a terminal status.
type PipelineRun struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	JobName string `json:"job_name" gorm:"column:job_name;type:varchar(64);not null;index"`
	JobType string `json:"job_type" gorm:"column:job_type;type:varchar(32);not null"`
	Status  string `json:"status" gorm:"column:status;type:varchar(32);not null;default:'running';index"`

	StartedAt       time.Time  `json:"started_at" gorm:"column:started_at;not null;index"`
	CompletedAt     *time.Time `json:"completed_at" gorm:"column:completed_at"`
	DurationSeconds *float64   `json:"duration_seconds" gorm:"column:duration_seconds"`

	RecordsProcessed int `json:"records_processed" gorm:"column:records_processed;not null;default:0"`
	RecordsCreated   int `json:"records_created" gorm:"column:records_created;not null;default:0"`
	RecordsUpdated   int `json:"records_updated" gorm:"column:records_updated;not null;default:0"`

	ErrorMessage *string `json:"error_message" gorm:"column:error_message;type:text"`
	Metadata     *string `json:"metadata" gorm:"column:metadata;type:text"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }
