// Package transform runs SQL models over the loaded user_activity table.
package transform

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SourceTable is the table every model reads from
const SourceTable = "user_activity"

// Engine turns the loaded table into derived tables. It reports success or failure only.
type Engine interface {
	Run(ctx context.Context) error
}

// Model is a derived table materialized from a SELECT
type Model struct {
	Name  string
	Query string
}

// DefaultModels are materialized in order; later models may read earlier ones
var DefaultModels = []Model{
	{
		Name: "product_schema",
		Query: `SELECT transact_id, user_id, product_name, price, purchase_status,
	price_tier, device_type, os, browser, cohort_date, engagement_level,
	customer_lifetime_value,
	CASE WHEN purchase_status = 'completed' THEN price ELSE 0 END AS realized_revenue
FROM user_activity
WHERE purchase_status IN ('completed', 'pending', 'failed')`,
	},
	{
		Name: "product_summary",
		Query: `SELECT product_name,
	COUNT(*) AS purchases,
	SUM(CASE WHEN purchase_status = 'completed' THEN 1 ELSE 0 END) AS completed_purchases,
	SUM(realized_revenue) AS revenue,
	AVG(price) AS avg_price
FROM product_schema
GROUP BY product_name`,
	},
}

// SQLEngine materializes models with DROP TABLE / CREATE TABLE AS on the same database
type SQLEngine struct {
	db     *gorm.DB
	models []Model
	logger *zap.Logger
}

// NewSQLEngine creates an engine for models, or DefaultModels when none are given
func NewSQLEngine(db *gorm.DB, logger *zap.Logger, models ...Model) *SQLEngine {
	if len(models) == 0 {
		models = DefaultModels
	}
	return &SQLEngine{db: db, models: models, logger: logger}
}

// Models returns the configured models in execution order
func (e *SQLEngine) Models() []Model {
	return e.models
}

// Run checks that the source table is queryable and materializes every model.
// An empty source still yields empty derived tables. The first failing model stops the run.
func (e *SQLEngine) Run(ctx context.Context) error {
	db := e.db.WithContext(ctx)

	var sourceRows int64
	if err := db.Raw("SELECT COUNT(*) FROM " + SourceTable).Scan(&sourceRows).Error; err != nil {
		return fmt.Errorf("count %s: %w", SourceTable, err)
	}
	if sourceRows == 0 {
		e.logger.Warn("Transform source table is empty", zap.String("table", SourceTable))
	}

	for _, m := range e.models {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := e.materialize(db, m); err != nil {
			return fmt.Errorf("model %s: %w", m.Name, err)
		}
		e.logger.Info("Model materialized",
			zap.String("model", m.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	e.logger.Info("Transform completed",
		zap.Int("models", len(e.models)),
		zap.Int64("source_rows", sourceRows),
	)
	return nil
}

func (e *SQLEngine) materialize(db *gorm.DB, m Model) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DROP TABLE IF EXISTS " + m.Name).Error; err != nil {
			return err
		}
		return tx.Exec("CREATE TABLE " + m.Name + " AS " + m.Query).Error
	})
}
