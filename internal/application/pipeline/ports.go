package pipeline

import (
	"context"
	"time"

	"github.com/pulse/activitypipe/internal/domain/activity"
	"github.com/pulse/activitypipe/internal/infrastructure/export"
)

// Source produces the candidate batch for a run
type Source interface {
	Generate(ctx context.Context) ([]activity.RawRecord, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]activity.RawRecord, error)

// Generate calls f(ctx)
func (f SourceFunc) Generate(ctx context.Context) ([]activity.RawRecord, error) {
	return f(ctx)
}

// SkipReporter is implemented by sources that drop unreadable input before
// the batch reaches validation
type SkipReporter interface {
	Skipped() int
}

// DatasetWriter persists the final table in every serialized form
type DatasetWriter interface {
	Write(ctx context.Context, records []activity.Record) (export.Files, error)
}

// MetricsWriter persists the run's cleaning and quality metrics
type MetricsWriter interface {
	Write(ctx context.Context, cleaning activity.CleaningMetrics, quality activity.QualityMetrics) ([]string, error)
}

// TableLoader replaces the analytical table with the final batch
type TableLoader interface {
	ReplaceAll(ctx context.Context, records []activity.Record) (int, error)
}

// Transformer runs downstream SQL models over the loaded table
type Transformer interface {
	Run(ctx context.Context) error
}

// ArtifactUploader copies local artifacts to object storage and returns their keys
type ArtifactUploader interface {
	Upload(ctx context.Context, paths ...string) ([]string, error)
}

// RunRecorder keeps the run log
type RunRecorder interface {
	RecordStart(ctx context.Context, run activity.Run) error
	RecordFinish(ctx context.Context, run activity.Run) error
}

// Instrumentation receives run counters and stage timings
type Instrumentation interface {
	RecordGenerated(ctx context.Context, n int)
	RecordRejected(ctx context.Context, reason string, n int)
	RecordDuplicates(ctx context.Context, n int)
	RecordPersisted(ctx context.Context, n int)
	StageDone(ctx context.Context, stage string, d time.Duration)
}

type noopInstrumentation struct{}

func (noopInstrumentation) RecordGenerated(context.Context, int)             {}
func (noopInstrumentation) RecordRejected(context.Context, string, int)      {}
func (noopInstrumentation) RecordDuplicates(context.Context, int)            {}
func (noopInstrumentation) RecordPersisted(context.Context, int)             {}
func (noopInstrumentation) StageDone(context.Context, string, time.Duration) {}
