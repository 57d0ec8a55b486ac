package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Attribute keys shared by pipeline instruments
var (
	AttrReason = attribute.Key("reason")
	AttrStage  = attribute.Key("stage")
)

// PipelineMetrics records per-run record counts and stage latency.
type PipelineMetrics struct {
	generated  *Counter
	rejected   *Counter
	duplicates *Counter
	persisted  *Counter
	stageTime  *Histogram
}

// NewPipelineMetrics registers the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		pm  PipelineMetrics
		err error
	)
	if pm.generated, err = NewCounter(meter,
		"pipeline_records_generated_total", "Candidate records produced by the source", "{records}"); err != nil {
		return nil, err
	}
	if pm.rejected, err = NewCounter(meter,
		"pipeline_records_rejected_total", "Candidate records excluded by validation", "{records}"); err != nil {
		return nil, err
	}
	if pm.duplicates, err = NewCounter(meter,
		"pipeline_duplicates_removed_total", "Records collapsed by email deduplication", "{records}"); err != nil {
		return nil, err
	}
	if pm.persisted, err = NewCounter(meter,
		"pipeline_records_persisted_total", "Records written to the cleaned dataset", "{records}"); err != nil {
		return nil, err
	}
	if pm.stageTime, err = NewHistogram(meter, HistogramOpts{
		Name:        "pipeline_stage_duration_seconds",
		Description: "Wall time of each pipeline stage",
		Unit:        "s",
		Boundaries:  []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	}); err != nil {
		return nil, err
	}
	return &pm, nil
}

// RecordGenerated counts candidates produced by the source
func (m *PipelineMetrics) RecordGenerated(ctx context.Context, n int) {
	m.generated.Add(ctx, int64(n))
}

// RecordRejected counts candidates dropped for reason
func (m *PipelineMetrics) RecordRejected(ctx context.Context, reason string, n int) {
	if n == 0 {
		return
	}
	m.rejected.Add(ctx, int64(n), AttrReason.String(reason))
}

// RecordDuplicates counts rows removed by deduplication
func (m *PipelineMetrics) RecordDuplicates(ctx context.Context, n int) {
	m.duplicates.Add(ctx, int64(n))
}

// RecordPersisted counts rows in the written dataset
func (m *PipelineMetrics) RecordPersisted(ctx context.Context, n int) {
	m.persisted.Add(ctx, int64(n))
}

// StageDone records how long stage took
func (m *PipelineMetrics) StageDone(ctx context.Context, stage string, d time.Duration) {
	m.stageTime.RecordDuration(ctx, d, AttrStage.String(stage))
}
