// Package pipeline runs a batch of candidate activity records through
// validation, cleaning, enrichment and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pulse/activitypipe/internal/domain/activity"
	"github.com/pulse/activitypipe/internal/domain/shared"
	"github.com/pulse/activitypipe/internal/infrastructure/csvimport"
	"github.com/pulse/activitypipe/internal/infrastructure/export"
	"github.com/pulse/activitypipe/internal/infrastructure/logger"
	"github.com/pulse/activitypipe/internal/infrastructure/telemetry"
)

// Stage names, used in logs, spans and the stage duration histogram
const (
	StageGenerate  = "generate"
	StageValidate  = "validate"
	StageClean     = "clean"
	StageEnrich    = "enrich"
	StagePersist   = "persist"
	StageLoad      = "load"
	StageTransform = "transform"
	StageUpload    = "upload"
)

// Options configures a Pipeline
type Options struct {
	ValidStatuses   []string
	Workers         int
	MaxLoggedErrors int
	// SourceName is stored in the run log, e.g. "synthetic" or an input path
	SourceName string
}

// Deps holds the collaborators of a Pipeline. Source, Dataset and Metrics are
// required; the rest are skipped when nil.
type Deps struct {
	Source          Source
	Dataset         DatasetWriter
	Metrics         MetricsWriter
	Table           TableLoader
	Transformer     Transformer
	Uploader        ArtifactUploader
	Runs            RunRecorder
	Instrumentation Instrumentation
	Logger          *zap.Logger
}

// Result is what a run produced
type Result struct {
	RunID        string
	Cleaning     activity.CleaningMetrics
	Quality      activity.QualityMetrics
	Enrich       EnrichStats
	Files        export.Files
	MetricsFiles []string
	Loaded       int
	Uploaded     []string
	RowErrors    *csvimport.ErrorCollection
}

// Pipeline drives one batch through every stage in order
type Pipeline struct {
	opts      Options
	deps      Deps
	validator *activity.Validator
	cleaner   *Cleaner
	enricher  *Enricher
	instr     Instrumentation
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates a Pipeline
func New(opts Options, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: source is required")
	case deps.Dataset == nil:
		return nil, errors.New("pipeline: dataset writer is required")
	case deps.Metrics == nil:
		return nil, errors.New("pipeline: metrics writer is required")
	}
	if len(opts.ValidStatuses) == 0 {
		opts.ValidStatuses = activity.DefaultValidStatuses
	}

	instr := deps.Instrumentation
	if instr == nil {
		instr = noopInstrumentation{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Pipeline{
		opts:      opts,
		deps:      deps,
		validator: activity.NewValidator(opts.ValidStatuses),
		cleaner:   NewCleaner(opts.Workers),
		enricher:  NewEnricher(),
		instr:     instr,
		logger:    log,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Run executes one full pass. Artifacts written before a failing stage stay on disk.
// Errors carry a shared.DomainError code.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	res = &Result{
		RunID:     p.newID(),
		RowErrors: csvimport.NewErrorCollection(p.opts.MaxLoggedErrors),
	}
	ctx, log := logger.WithRunID(ctx, p.logger, res.RunID)

	run := activity.Run{
		ID:        res.RunID,
		StartedAt: p.now().UTC(),
		Status:    activity.RunRunning,
		Source:    p.opts.SourceName,
	}
	if p.deps.Runs != nil {
		if err := p.deps.Runs.RecordStart(ctx, run); err != nil {
			return res, shared.Wrap(shared.CodeCollaboratorFailed, "record run start", err)
		}
	}
	defer func() {
		run.Cleaning = res.Cleaning
		run.Finish(p.now().UTC(), err)
		if p.deps.Runs != nil {
			if rerr := p.deps.Runs.RecordFinish(context.WithoutCancel(ctx), run); rerr != nil {
				log.Warn("Failed to record run result", zap.Error(rerr))
			}
		}
		if err != nil {
			log.Error("Pipeline run failed",
				zap.String("code", shared.CodeOf(err)),
				zap.Duration("elapsed", run.Duration()),
				zap.Error(err),
			)
			return
		}
		log.Info("Pipeline run completed",
			zap.Int("records", res.Cleaning.FinalRecords),
			zap.Duration("elapsed", run.Duration()),
		)
	}()

	res.Cleaning.RunAt = run.StartedAt

	var raws []activity.RawRecord
	if err := p.stage(ctx, StageGenerate, func(ctx context.Context) error {
		var err error
		raws, err = p.deps.Source.Generate(ctx)
		if err != nil {
			return sourceError(err)
		}
		res.Cleaning.InitialRecords = len(raws)
		if sr, ok := p.deps.Source.(SkipReporter); ok {
			res.Cleaning.MalformedRowsSkipped = sr.Skipped()
		}
		p.instr.RecordGenerated(ctx, len(raws))
		logCandidates(ctx, raws)
		return nil
	}); err != nil {
		return res, err
	}

	var valid []activity.RawRecord
	if err := p.stage(ctx, StageValidate, func(ctx context.Context) error {
		valid = p.validate(raws, &res.Cleaning, res.RowErrors)
		for _, v := range activity.Violations {
			p.instr.RecordRejected(ctx, string(v), res.RowErrors.ErrorSummary()[string(v)])
		}
		if res.RowErrors.HasErrors() {
			logger.L(ctx).Warn("Rejected invalid records",
				zap.Int("rejected", res.Cleaning.Rejected()),
				zap.Any("by_reason", res.RowErrors.ErrorSummary()),
			)
			for _, rowErr := range res.RowErrors.Errors() {
				logger.L(ctx).Debug("Rejected record", zap.String("detail", rowErr.Error()), zap.String("value", rowErr.Value))
			}
		}
		return nil
	}); err != nil {
		return res, err
	}

	var records []activity.Record
	if err := p.stage(ctx, StageClean, func(ctx context.Context) error {
		var (
			stats CleanStats
			err   error
		)
		records, stats, err = p.cleaner.Clean(ctx, valid)
		if err != nil {
			return shared.Wrap(shared.CodeCancelled, "cleaning interrupted", err)
		}
		res.Cleaning.DuplicateEmailsRemoved = stats.DuplicatesRemoved
		res.Cleaning.UncoercibleRemoved = stats.Uncoercible
		p.instr.RecordDuplicates(ctx, stats.DuplicatesRemoved)
		if stats.Uncoercible > 0 {
			logger.L(ctx).Warn("Dropped records with uncoercible values", zap.Int("count", stats.Uncoercible))
		}
		logger.L(ctx).Info("Cleaned records",
			zap.Int("input", stats.Input),
			zap.Int("duplicates_removed", stats.DuplicatesRemoved),
			zap.Int("output", stats.Output),
		)
		return nil
	}); err != nil {
		return res, err
	}

	if err := p.stage(ctx, StageEnrich, func(ctx context.Context) error {
		res.Enrich = p.enricher.Enrich(records)
		if res.Enrich.PriceTierFallback {
			logger.L(ctx).Warn("Price quartiles undefined, assigned fallback tier to every record",
				zap.String("tier", string(activity.FallbackPriceTier)),
				zap.Int("records", len(records)),
			)
		}
		logger.L(ctx).Info("Enriched records",
			zap.Int("records", res.Enrich.Records),
			zap.Int("users", res.Enrich.Users),
		)
		return nil
	}); err != nil {
		return res, err
	}

	res.Cleaning.FinalRecords = len(records)
	res.Quality = BuildQualityMetrics(run.StartedAt, records)

	if err := p.stage(ctx, StagePersist, func(ctx context.Context) error {
		files, err := p.deps.Dataset.Write(ctx, records)
		if err != nil {
			return shared.Wrap(shared.CodePersistenceFailed, "write dataset", err)
		}
		res.Files = files
		p.instr.RecordPersisted(ctx, len(records))

		paths, err := p.deps.Metrics.Write(ctx, res.Cleaning, res.Quality)
		if err != nil {
			return shared.Wrap(shared.CodePersistenceFailed, "write metrics", err)
		}
		res.MetricsFiles = paths
		return nil
	}); err != nil {
		return res, err
	}

	if p.deps.Table != nil {
		if err := p.stage(ctx, StageLoad, func(ctx context.Context) error {
			n, err := p.deps.Table.ReplaceAll(ctx, records)
			if err != nil {
				return shared.Wrap(shared.CodeCollaboratorFailed, "load user_activity", err)
			}
			res.Loaded = n
			logger.L(ctx).Info("Loaded table", zap.String("table", "user_activity"), zap.Int("rows", n))
			return nil
		}); err != nil {
			return res, err
		}
	}

	if p.deps.Transformer != nil {
		if err := p.stage(ctx, StageTransform, func(ctx context.Context) error {
			if err := p.deps.Transformer.Run(ctx); err != nil {
				return shared.Wrap(shared.CodeCollaboratorFailed, "transform", err)
			}
			return nil
		}); err != nil {
			return res, err
		}
	}

	if p.deps.Uploader != nil {
		if err := p.stage(ctx, StageUpload, func(ctx context.Context) error {
			keys, err := p.deps.Uploader.Upload(ctx, res.Files.JSON, res.Files.Parquet)
			res.Uploaded = keys
			if err != nil {
				return shared.Wrap(shared.CodeCollaboratorFailed, "upload artifacts", err)
			}
			return nil
		}); err != nil {
			return res, err
		}
	}

	return res, nil
}

// stage runs fn inside a span with stage-tagged logging and timing
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return shared.Wrap(shared.CodeCancelled, "run cancelled before "+name, err)
	}

	ctx = logger.WithStage(ctx, name)
	ctx, span := telemetry.StartSpan(ctx, "pipeline."+name, telemetry.AttrStage.String(name))
	start := p.now()
	defer func() {
		elapsed := p.now().Sub(start)
		p.instr.StageDone(ctx, name, elapsed)
		span.SetAttributes(attribute.Int64("stage.duration_ms", elapsed.Milliseconds()))
		telemetry.EndSpan(span, err)
		logger.L(ctx).Debug("Stage finished", zap.Duration("elapsed", elapsed), zap.Bool("ok", err == nil))
	}()
	return fn(ctx)
}

// validate trims every candidate and keeps those passing the consistency checks.
// Rejections are counted in m and collected in errs, keyed by source line when the
// candidate has one and by 1-based batch position otherwise.
func (p *Pipeline) validate(raws []activity.RawRecord, m *activity.CleaningMetrics, errs *csvimport.ErrorCollection) []activity.RawRecord {
	valid := make([]activity.RawRecord, 0, len(raws))
	for i, r := range raws {
		r.TrimSpace()
		v := p.validator.Check(r)
		if v == activity.ViolationNone {
			valid = append(valid, r)
			continue
		}
		m.AddViolation(v)
		column, value := violationCell(v, r)
		row := r.Line
		if row == 0 {
			row = i + 1
		}
		rowErr := csvimport.NewRowError(row, column, string(v), violationMessage(v))
		rowErr.Value = value
		errs.Add(rowErr)
	}
	return valid
}

func violationCell(v activity.Violation, r activity.RawRecord) (string, string) {
	switch v {
	case activity.ViolationSession:
		return "logout_time", r.LoginTime + " / " + r.LogoutTime
	case activity.ViolationPrice:
		return "price", r.Price
	case activity.ViolationStatus:
		return "purchase_status", r.PurchaseStatus
	default:
		return "is_active", r.IsActive
	}
}

func violationMessage(v activity.Violation) string {
	switch v {
	case activity.ViolationSession:
		return "login and logout must parse and login must not be after logout"
	case activity.ViolationPrice:
		return "price must be a positive number"
	case activity.ViolationStatus:
		return "purchase status is not allowed"
	default:
		return "account timestamps or active flag are inconsistent"
	}
}

func sourceError(err error) error {
	if shared.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return shared.Wrap(shared.CodeCancelled, "generation interrupted", err)
	}
	return shared.Wrap(shared.CodeInvalidInput, "read candidates", err)
}

// logCandidates logs the size, active share and average price of the raw batch
func logCandidates(ctx context.Context, raws []activity.RawRecord) {
	var (
		active int
		priced int
		total  decimal.Decimal
	)
	for _, r := range raws {
		if flag, ok := activity.ParseActiveFlag(r.IsActive); ok && flag.Bool() {
			active++
		}
		if price, ok := activity.ParsePrice(r.Price); ok {
			total = total.Add(price)
			priced++
		}
	}

	fields := []zap.Field{zap.Int("records", len(raws))}
	if len(raws) > 0 {
		fields = append(fields, zap.String("active_share", fmt.Sprintf("%.1f%%", float64(active)/float64(len(raws))*100)))
	}
	if priced > 0 {
		fields = append(fields, zap.String("avg_price", total.Div(decimal.NewFromInt(int64(priced))).StringFixed(2)))
	}
	logger.L(ctx).Info("Generated candidates", fields...)
}
