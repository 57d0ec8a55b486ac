package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pulse/activitypipe/internal/application/synth"
	"github.com/pulse/activitypipe/internal/domain/activity"
	"github.com/pulse/activitypipe/internal/domain/shared"
	"github.com/pulse/activitypipe/internal/infrastructure/csvimport"
	"github.com/pulse/activitypipe/internal/infrastructure/export"
)

type fakeTable struct {
	records []activity.Record
	err     error
}

func (f *fakeTable) ReplaceAll(_ context.Context, records []activity.Record) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.records = append([]activity.Record(nil), records...)
	return len(records), nil
}

type fakeTransformer struct {
	calls int
	err   error
}

func (f *fakeTransformer) Run(context.Context) error {
	f.calls++
	return f.err
}

type fakeUploader struct {
	paths []string
}

func (f *fakeUploader) Upload(_ context.Context, paths ...string) ([]string, error) {
	f.paths = paths
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = "runs/" + filepath.Base(p)
	}
	return keys, nil
}

type fakeRuns struct {
	started  []activity.Run
	finished []activity.Run
	startErr error
}

func (f *fakeRuns) RecordStart(_ context.Context, run activity.Run) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, run)
	return nil
}

func (f *fakeRuns) RecordFinish(_ context.Context, run activity.Run) error {
	f.finished = append(f.finished, run)
	return nil
}

type recordingInstrumentation struct {
	mu         sync.Mutex
	generated  int
	rejected   map[string]int
	duplicates int
	persisted  int
	stages     []string
}

func (r *recordingInstrumentation) RecordGenerated(_ context.Context, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generated += n
}

func (r *recordingInstrumentation) RecordRejected(_ context.Context, reason string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejected == nil {
		r.rejected = map[string]int{}
	}
	r.rejected[reason] += n
}

func (r *recordingInstrumentation) RecordDuplicates(_ context.Context, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicates += n
}

func (r *recordingInstrumentation) RecordPersisted(_ context.Context, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persisted += n
}

func (r *recordingInstrumentation) StageDone(_ context.Context, stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

type fixture struct {
	dir         string
	table       *fakeTable
	transformer *fakeTransformer
	uploader    *fakeUploader
	runs        *fakeRuns
	instr       *recordingInstrumentation
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		dir:         t.TempDir(),
		table:       &fakeTable{},
		transformer: &fakeTransformer{},
		uploader:    &fakeUploader{},
		runs:        &fakeRuns{},
		instr:       &recordingInstrumentation{},
	}
}

func (f *fixture) pipeline(t *testing.T, source Source) *Pipeline {
	t.Helper()
	log := zaptest.NewLogger(t)
	p, err := New(Options{Workers: 4, MaxLoggedErrors: 10, SourceName: "test"}, Deps{
		Source:          source,
		Dataset:         export.NewDatasetWriter(filepath.Join(f.dir, "data"), log),
		Metrics:         export.NewMetricsWriter(filepath.Join(f.dir, "metrics"), log),
		Table:           f.table,
		Transformer:     f.transformer,
		Uploader:        f.uploader,
		Runs:            f.runs,
		Instrumentation: f.instr,
		Logger:          log,
	})
	require.NoError(t, err)
	p.newID = func() string { return "run-1" }
	return p
}

func staticSource(raws ...activity.RawRecord) Source {
	return SourceFunc(func(context.Context) ([]activity.RawRecord, error) {
		return raws, nil
	})
}

func TestPipeline_SyntheticRun(t *testing.T) {
	gen, err := synth.New(synth.Options{
		NumRows: 100,
		Start:   time.Date(2021, 1, 1, 10, 30, 0, 0, time.UTC),
		End:     time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC),
		Seed:    42,
	})
	require.NoError(t, err)

	f := newFixture(t)
	res, err := f.pipeline(t, gen).Run(context.Background())
	require.NoError(t, err)

	m := res.Cleaning
	assert.Equal(t, 100, m.InitialRecords)
	assert.Zero(t, m.Rejected())
	assert.Zero(t, m.UncoercibleRemoved)
	assert.Equal(t, m.InitialRecords-m.Rejected()-m.DuplicateEmailsRemoved-m.UncoercibleRemoved, m.FinalRecords)
	assert.Equal(t, m.FinalRecords, res.Quality.Records)

	written, err := export.ReadDataset(res.Files.CSV)
	require.NoError(t, err)
	require.Len(t, written, m.FinalRecords)
	emails := map[string]bool{}
	for _, r := range written {
		assert.False(t, emails[r.Email], "duplicate email %s", r.Email)
		emails[r.Email] = true
		assert.Equal(t, activity.DefaultCountry, r.Country)
		assert.NotEmpty(t, r.PriceTier)
		assert.False(t, r.LogoutTime.Before(r.LoginTime))
	}

	for _, path := range append(res.Files.All(), res.MetricsFiles...) {
		assert.FileExists(t, path)
	}

	assert.Equal(t, m.FinalRecords, res.Loaded)
	assert.Len(t, f.table.records, m.FinalRecords)
	assert.Equal(t, 1, f.transformer.calls)
	assert.Equal(t, []string{res.Files.JSON, res.Files.Parquet}, f.uploader.paths)
	assert.Equal(t, []string{"runs/cleaned_data.json", "runs/cleaned_data.parquet"}, res.Uploaded)

	require.Len(t, f.runs.started, 1)
	require.Len(t, f.runs.finished, 1)
	assert.Equal(t, "run-1", f.runs.finished[0].ID)
	assert.Equal(t, activity.RunSucceeded, f.runs.finished[0].Status)
	assert.Equal(t, m, f.runs.finished[0].Cleaning)
	assert.Equal(t, "test", f.runs.started[0].Source)

	assert.Equal(t, 100, f.instr.generated)
	assert.Equal(t, m.FinalRecords, f.instr.persisted)
	assert.Equal(t, []string{
		StageGenerate, StageValidate, StageClean, StageEnrich,
		StagePersist, StageLoad, StageTransform, StageUpload,
	}, f.instr.stages)
}

func TestPipeline_RejectsInvalidSession(t *testing.T) {
	bad := rawRecord("u2", "b@example.com")
	bad.LoginTime, bad.LogoutTime = bad.LogoutTime, bad.LoginTime

	f := newFixture(t)
	res, err := f.pipeline(t, staticSource(rawRecord("u1", "a@example.com"), bad)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Cleaning.InvalidSessionsRemoved)
	assert.Equal(t, 1, res.Cleaning.FinalRecords)
	assert.Equal(t, map[string]int{string(activity.ViolationSession): 1}, res.RowErrors.ErrorSummary())
	require.Len(t, res.RowErrors.Errors(), 1)
	assert.Equal(t, 2, res.RowErrors.Errors()[0].Row)
	assert.Equal(t, 1, f.instr.rejected[string(activity.ViolationSession)])
}

func TestPipeline_FileSourceLinesAndSkippedRows(t *testing.T) {
	bad := rawRecord("u3", "c@example.com")
	bad.LoginTime, bad.LogoutTime = bad.LogoutTime, bad.LoginTime

	path := filepath.Join(t.TempDir(), "raw.csv")
	out, err := os.Create(path)
	require.NoError(t, err)
	cw := csv.NewWriter(out)
	require.NoError(t, cw.WriteAll([][]string{
		activity.RawColumns(),
		rawRecord("u1", "a@example.com").Values(),
		{"too", "few", "cells"},
		bad.Values(),
	}))
	require.NoError(t, out.Close())

	f := newFixture(t)
	res, err := f.pipeline(t, csvimport.NewRawReader(path, zaptest.NewLogger(t))).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Cleaning.MalformedRowsSkipped)
	assert.Equal(t, 2, res.Cleaning.InitialRecords)
	assert.Equal(t, 1, res.Cleaning.InvalidSessionsRemoved)
	require.Len(t, res.RowErrors.Errors(), 1)
	// header is line 1, the malformed row line 3
	assert.Equal(t, 4, res.RowErrors.Errors()[0].Row)
	assert.Equal(t, res.Cleaning, f.runs.finished[0].Cleaning)
}

func TestPipeline_RejectionCounters(t *testing.T) {
	price := rawRecord("u2", "b@example.com")
	price.Price = "-5"
	status := rawRecord("u3", "c@example.com")
	status.PurchaseStatus = "shipped"
	lifecycle := rawRecord("u4", "d@example.com")
	lifecycle.IsActive = "0"

	f := newFixture(t)
	res, err := f.pipeline(t, staticSource(rawRecord("u1", "a@example.com"), price, status, lifecycle)).Run(context.Background())
	require.NoError(t, err)

	m := res.Cleaning
	assert.Equal(t, 1, m.InvalidPricesRemoved)
	assert.Equal(t, 1, m.InvalidStatusRemoved)
	assert.Equal(t, 1, m.InvalidLifecycleRemoved)
	assert.Equal(t, 1, m.FinalRecords)
}

func TestPipeline_DuplicateEmails(t *testing.T) {
	f := newFixture(t)
	res, err := f.pipeline(t, staticSource(
		rawRecord("u1", "same@example.com"),
		rawRecord("u2", "same@example.com"),
		rawRecord("u3", "same@example.com"),
	)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Cleaning.DuplicateEmailsRemoved)
	assert.Equal(t, 1, res.Cleaning.FinalRecords)
	assert.Equal(t, 2, f.instr.duplicates)
	require.Len(t, f.table.records, 1)
	assert.Equal(t, "u1", f.table.records[0].UserID)
}

func TestPipeline_LoaderFailure(t *testing.T) {
	f := newFixture(t)
	f.table.err = errors.New("connection refused")

	res, err := f.pipeline(t, staticSource(rawRecord("u1", "a@example.com"))).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, shared.CodeCollaboratorFailed, shared.CodeOf(err))
	assert.ErrorIs(t, err, shared.ErrCollaboratorFailed)

	for _, path := range res.Files.All() {
		assert.FileExists(t, path)
	}
	assert.Len(t, res.MetricsFiles, 2)
	assert.Zero(t, f.transformer.calls)
	assert.Nil(t, f.uploader.paths)

	require.Len(t, f.runs.finished, 1)
	run := f.runs.finished[0]
	assert.Equal(t, activity.RunFailed, run.Status)
	assert.Contains(t, run.Error, "connection refused")
	assert.NotNil(t, run.FinishedAt)
}

func TestPipeline_TransformFailure(t *testing.T) {
	f := newFixture(t)
	f.transformer.err = errors.New("no such table")

	_, err := f.pipeline(t, staticSource(rawRecord("u1", "a@example.com"))).Run(context.Background())
	assert.Equal(t, shared.CodeCollaboratorFailed, shared.CodeOf(err))
	assert.Nil(t, f.uploader.paths)
}

func TestPipeline_DatasetFailure(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(f.dir, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	_, err := f.pipeline(t, staticSource(rawRecord("u1", "a@example.com"))).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, shared.CodePersistenceFailed, shared.CodeOf(err))

	var perr *export.PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, blocker, perr.Path)
	assert.Nil(t, f.table.records)
	assert.Equal(t, activity.RunFailed, f.runs.finished[0].Status)
}

func TestPipeline_SourceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"cancelled", context.Canceled, shared.CodeCancelled},
		{"deadline", context.DeadlineExceeded, shared.CodeCancelled},
		{"bad input", errors.New("missing column email"), shared.CodeInvalidInput},
		{"coded", shared.Wrap(shared.CodeInvalidConfig, "bad window", nil), shared.CodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			source := SourceFunc(func(context.Context) ([]activity.RawRecord, error) {
				return nil, tt.err
			})
			_, err := f.pipeline(t, source).Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.code, shared.CodeOf(err))
			assert.Equal(t, []string{StageGenerate}, f.instr.stages)
		})
	}
}

func TestPipeline_CancelledBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture(t)
	_, err := f.pipeline(t, staticSource(rawRecord("u1", "a@example.com"))).Run(ctx)
	assert.Equal(t, shared.CodeCancelled, shared.CodeOf(err))
	require.Len(t, f.runs.finished, 1)
	assert.Equal(t, activity.RunFailed, f.runs.finished[0].Status)
}

func TestPipeline_RunLogStartFailure(t *testing.T) {
	f := newFixture(t)
	f.runs.startErr = errors.New("database is locked")

	_, err := f.pipeline(t, staticSource(rawRecord("u1", "a@example.com"))).Run(context.Background())
	assert.Equal(t, shared.CodeCollaboratorFailed, shared.CodeOf(err))
	assert.Empty(t, f.instr.stages)
	assert.Empty(t, f.runs.finished)
}

func TestPipeline_OptionalCollaborators(t *testing.T) {
	dir := t.TempDir()
	p, err := New(Options{}, Deps{
		Source:  staticSource(rawRecord("u1", "a@example.com")),
		Dataset: export.NewDatasetWriter(dir, nil),
		Metrics: export.NewMetricsWriter(dir, nil),
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cleaning.FinalRecords)
	assert.Zero(t, res.Loaded)
	assert.Empty(t, res.Uploaded)
	assert.NotEmpty(t, res.RunID)
}

func TestNew_RequiredDeps(t *testing.T) {
	source := staticSource()
	dataset := export.NewDatasetWriter(t.TempDir(), nil)
	metrics := export.NewMetricsWriter(t.TempDir(), nil)

	tests := []struct {
		name string
		deps Deps
	}{
		{"no source", Deps{Dataset: dataset, Metrics: metrics}},
		{"no dataset", Deps{Source: source, Metrics: metrics}},
		{"no metrics", Deps{Source: source, Dataset: dataset}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}, tt.deps)
			assert.Error(t, err)
		})
	}
}
