package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pulse/activitypipe/internal/domain/activity"
	"github.com/pulse/activitypipe/internal/infrastructure/persistence/models"
)

const defaultBatchSize = 500

// ActivityRepository loads cleaned records into the user_activity table
type ActivityRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewActivityRepository creates a new ActivityRepository. A non-positive batch size uses the default.
func NewActivityRepository(db *gorm.DB, batchSize int) *ActivityRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ActivityRepository{db: db, batchSize: batchSize}
}

// ReplaceAll drops and recreates user_activity and inserts records in batches, all in one transaction.
// It returns the number of rows inserted.
func (r *ActivityRepository) ReplaceAll(ctx context.Context, records []activity.Record) (int, error) {
	rows := make([]models.UserActivityModel, len(records))
	for i := range records {
		rows[i].FromDomain(records[i])
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := tx.Migrator()
		if err := m.DropTable(&models.UserActivityModel{}); err != nil {
			return fmt.Errorf("drop user_activity: %w", err)
		}
		if err := m.CreateTable(&models.UserActivityModel{}); err != nil {
			return fmt.Errorf("create user_activity: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, r.batchSize).Error; err != nil {
			return fmt.Errorf("insert user_activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Count returns the number of rows in user_activity
func (r *ActivityRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.UserActivityModel{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// FindAll returns every loaded record in insertion order
func (r *ActivityRepository) FindAll(ctx context.Context) ([]activity.Record, error) {
	var rows []models.UserActivityModel
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]activity.Record, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}
