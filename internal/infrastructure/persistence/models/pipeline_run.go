package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

// PipelineRunModel is the persistence model for a pipeline run
type PipelineRunModel struct {
	ID         string                                       `gorm:"type:varchar(36);primaryKey"`
	StartedAt  time.Time                                    `gorm:"not null;index"`
	FinishedAt *time.Time
	Status     string                                       `gorm:"type:varchar(16);not null"`
	Source     string                                       `gorm:"type:varchar(255)"`
	Cleaning   datatypes.JSONType[activity.CleaningMetrics]
	Error      string                                       `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PipelineRunModel) TableName() string {
	return "pipeline_runs"
}

// FromDomain populates the model from a run
func (m *PipelineRunModel) FromDomain(r activity.Run) {
	m.ID = r.ID
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt
	m.Status = string(r.Status)
	m.Source = r.Source
	m.Cleaning = datatypes.NewJSONType(r.Cleaning)
	m.Error = r.Error
}

// ToDomain converts the model to a run
func (m *PipelineRunModel) ToDomain() activity.Run {
	return activity.Run{
		ID:         m.ID,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Status:     activity.RunStatus(m.Status),
		Source:     m.Source,
		Cleaning:   m.Cleaning.Data(),
		Error:      m.Error,
	}
}
