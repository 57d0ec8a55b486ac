package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestMetricsWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metrics")
	core, logs := observer.New(zapcore.InfoLevel)
	w := NewMetricsWriter(dir, zap.New(core))
	runAt := time.Date(2024, 6, 1, 9, 30, 15, 0, time.UTC)

	cleaning := activity.CleaningMetrics{
		RunAt:                  runAt,
		MalformedRowsSkipped:   3,
		InitialRecords:         100,
		DuplicateEmailsRemoved: 2,
		InvalidSessionsRemoved: 1,
		FinalRecords:           97,
	}
	quality := activity.QualityMetrics{
		RunAt:                  runAt,
		Records:                97,
		NullPercentage:         map[string]float64{"account_deleted": 80.5, "email": 0},
		Price:                  activity.Summarize([]float64{100, 200, 300}),
		SessionDuration:        activity.Summarize([]float64{30, 60}),
		DeviceTypeDistribution: map[string]int{"Mobile": 40, "Desktop": 57},
	}

	paths, err := w.Write(context.Background(), cleaning, quality)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, 1, logs.FilterMessage("Metrics written").Len())
	assert.Equal(t, filepath.Join(dir, "cleaning_metrics_20240601T093015.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, "quality_metrics_20240601T093015.csv"), paths[1])

	rows := readCSV(t, paths[0])
	require.Len(t, rows, 2)
	assert.Equal(t, cleaningHeader, rows[0])
	assert.Equal(t, []string{"2024-06-01T09:30:15Z", "3", "100", "2", "1", "0", "0", "0", "0", "97"}, rows[1])

	rows = readCSV(t, paths[1])
	assert.Equal(t, []string{"section", "key", "value"}, rows[0])
	assert.Contains(t, rows, []string{"dataset", "records", "97"})
	assert.Contains(t, rows, []string{"null_percentage", "account_deleted", "80.5"})
	assert.Contains(t, rows, []string{"price_stats", "mean", "200"})
	assert.Contains(t, rows, []string{"price_stats", "50%", "200"})
	assert.Contains(t, rows, []string{"session_duration_stats", "max", "60"})

	var devices [][]string
	for _, r := range rows {
		if r[0] == "device_type_distribution" {
			devices = append(devices, r)
		}
	}
	assert.Equal(t, [][]string{
		{"device_type_distribution", "Desktop", "57"},
		{"device_type_distribution", "Mobile", "40"},
	}, devices)
}
