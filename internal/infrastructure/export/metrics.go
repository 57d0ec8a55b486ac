package export

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

// MetricsStampLayout timestamps metrics file names
const MetricsStampLayout = "20060102T150405"

// MetricsWriter writes per-run cleaning and quality metrics as CSV
type MetricsWriter struct {
	dir    string
	logger *zap.Logger
}

// NewMetricsWriter creates a writer rooted at dir
func NewMetricsWriter(dir string, logger *zap.Logger) *MetricsWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsWriter{dir: dir, logger: logger.Named("export")}
}

// Paths returns the metrics file names for a run started at runAt
func (w *MetricsWriter) Paths(runAt time.Time) (cleaning, quality string) {
	stamp := runAt.UTC().Format(MetricsStampLayout)
	return filepath.Join(w.dir, "cleaning_metrics_"+stamp+".csv"),
		filepath.Join(w.dir, "quality_metrics_"+stamp+".csv")
}

// Write writes both metrics files and returns their paths
func (w *MetricsWriter) Write(ctx context.Context, cleaning activity.CleaningMetrics, quality activity.QualityMetrics) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleaningPath, qualityPath := w.Paths(cleaning.RunAt)
	paths := []string{cleaningPath, qualityPath}

	err := writeAll(paths, []func(io.Writer) error{
		func(out io.Writer) error { return writeCleaningMetrics(out, cleaning) },
		func(out io.Writer) error { return writeQualityMetrics(out, quality) },
	})
	if err != nil {
		return nil, err
	}
	w.logger.Info("Metrics written", zap.Strings("files", paths))
	return paths, nil
}

var cleaningHeader = []string{
	"run_at",
	"malformed_rows_skipped",
	"initial_records",
	"duplicate_emails_removed",
	"invalid_sessions_removed",
	"invalid_prices_removed",
	"invalid_status_removed",
	"invalid_lifecycle_removed",
	"uncoercible_removed",
	"final_records",
}

func writeCleaningMetrics(out io.Writer, m activity.CleaningMetrics) error {
	cw := csv.NewWriter(out)
	row := []string{
		m.RunAt.UTC().Format(time.RFC3339),
		strconv.Itoa(m.MalformedRowsSkipped),
		strconv.Itoa(m.InitialRecords),
		strconv.Itoa(m.DuplicateEmailsRemoved),
		strconv.Itoa(m.InvalidSessionsRemoved),
		strconv.Itoa(m.InvalidPricesRemoved),
		strconv.Itoa(m.InvalidStatusRemoved),
		strconv.Itoa(m.InvalidLifecycleRemoved),
		strconv.Itoa(m.UncoercibleRemoved),
		strconv.Itoa(m.FinalRecords),
	}
	if err := cw.WriteAll([][]string{cleaningHeader, row}); err != nil {
		return err
	}
	return cw.Error()
}

// writeQualityMetrics writes one (section, key, value) row per statistic
func writeQualityMetrics(out io.Writer, m activity.QualityMetrics) error {
	cw := csv.NewWriter(out)
	rows := [][]string{{"section", "key", "value"}}
	rows = append(rows, []string{"dataset", "records", strconv.Itoa(m.Records)})

	for _, col := range activity.Columns {
		if pct, ok := m.NullPercentage[col]; ok {
			rows = append(rows, []string{"null_percentage", col, formatFloat(pct)})
		}
	}
	for _, f := range m.Price.Fields() {
		rows = append(rows, []string{"price_stats", f.Name, formatFloat(f.Value)})
	}
	for _, f := range m.SessionDuration.Fields() {
		rows = append(rows, []string{"session_duration_stats", f.Name, formatFloat(f.Value)})
	}

	devices := make([]string, 0, len(m.DeviceTypeDistribution))
	for d := range m.DeviceTypeDistribution {
		devices = append(devices, d)
	}
	sort.Strings(devices)
	for _, d := range devices {
		rows = append(rows, []string{"device_type_distribution", d, strconv.Itoa(m.DeviceTypeDistribution[d])})
	}

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
