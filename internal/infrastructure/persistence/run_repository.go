package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pulse/activitypipe/internal/domain/activity"
	"github.com/pulse/activitypipe/internal/infrastructure/persistence/models"
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("pipeline run not found")

// RunRepository records pipeline runs in the pipeline_runs table
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Migrate creates or updates the pipeline_runs table
func (r *RunRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.PipelineRunModel{})
}

// RecordStart inserts a run
func (r *RunRepository) RecordStart(ctx context.Context, run activity.Run) error {
	var model models.PipelineRunModel
	model.FromDomain(run)
	return r.db.WithContext(ctx).Create(&model).Error
}

// RecordFinish stores the final state of a run
func (r *RunRepository) RecordFinish(ctx context.Context, run activity.Run) error {
	var model models.PipelineRunModel
	model.FromDomain(run)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID returns the run with the given id
func (r *RunRepository) FindByID(ctx context.Context, id string) (activity.Run, error) {
	var model models.PipelineRunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return activity.Run{}, ErrRunNotFound
		}
		return activity.Run{}, err
	}
	return model.ToDomain(), nil
}

// Latest returns the most recently started runs, newest first
func (r *RunRepository) Latest(ctx context.Context, limit int) ([]activity.Run, error) {
	var rows []models.PipelineRunModel
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]activity.Run, len(rows))
	for i := range rows {
		runs[i] = rows[i].ToDomain()
	}
	return runs, nil
}
