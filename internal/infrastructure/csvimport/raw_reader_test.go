package csvimport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

func rawCSV(rows ...[]string) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(activity.RawColumns(), ","))
	sb.WriteString("\n")
	for _, r := range rows {
		sb.WriteString(strings.Join(r, ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

func sampleRow(email string) []string {
	r := activity.RawRecord{
		UserID:         "u-" + email,
		FirstName:      " Ann",
		LastName:       "Lee",
		Email:          email,
		IsActive:       "1",
		LoginTime:      "2022-03-01T10:00:00",
		LogoutTime:     "2022-03-01T11:00:00",
		AccountCreated: "2022-01-01T00:00:00",
		AccountUpdated: "2022-02-01T00:00:00",
		ProductName:    "Alpha",
		Price:          "120.00",
		PurchaseStatus: "completed",
		UserAgent:      "Mozilla/5.0",
	}
	return r.Values()
}

func TestReadRaw(t *testing.T) {
	t.Run("reads rows in order", func(t *testing.T) {
		in := rawCSV(sampleRow("a@x.io"), sampleRow("b@x.io"))
		records, rowErrs, err := ReadRaw(context.Background(), strings.NewReader(in), 10)
		require.NoError(t, err)
		assert.False(t, rowErrs.HasErrors())
		require.Len(t, records, 2)
		assert.Equal(t, "a@x.io", records[0].Email)
		assert.Equal(t, " Ann", records[0].FirstName)
		assert.Equal(t, "b@x.io", records[1].Email)
		assert.Equal(t, 2, records[0].Line)
		assert.Equal(t, 3, records[1].Line)
	})

	t.Run("skips rows with wrong field count", func(t *testing.T) {
		in := rawCSV(sampleRow("a@x.io"), []string{"only", "three", "cells"}, sampleRow("c@x.io"))
		records, rowErrs, err := ReadRaw(context.Background(), strings.NewReader(in), 10)
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 1, rowErrs.TotalCount())
		assert.Equal(t, 3, rowErrs.Errors()[0].Row)
		assert.Equal(t, ErrCodeFieldCount, rowErrs.Errors()[0].Code)
		assert.Equal(t, 4, records[1].Line)
	})

	t.Run("blank lines ignored", func(t *testing.T) {
		in := rawCSV(sampleRow("a@x.io")) + strings.Repeat(",", len(activity.RawColumns())-1) + "\n"
		records, _, err := ReadRaw(context.Background(), strings.NewReader(in), 10)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("missing required columns", func(t *testing.T) {
		_, _, err := ReadRaw(context.Background(), strings.NewReader("user_id,email\nu,a@x.io\n"), 10)
		assert.ErrorIs(t, err, ErrMissingColumns)
		assert.Contains(t, err.Error(), "login_time")
	})

	t.Run("header only", func(t *testing.T) {
		_, _, err := ReadRaw(context.Background(), strings.NewReader(rawCSV()), 10)
		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := ReadRaw(ctx, strings.NewReader(rawCSV(sampleRow("a@x.io"))), 10)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRawReader_ReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(path, []byte(rawCSV(sampleRow("a@x.io"))), 0o644))

	reader := NewRawReader(path, zaptest.NewLogger(t))
	records, err := reader.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = NewRawReader(filepath.Join(dir, "missing.csv"), nil).ReadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.csv")
}

func TestRawReader_SkippedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	in := rawCSV(sampleRow("a@x.io"), []string{"short"}, sampleRow("b@x.io"), []string{"also", "short"})
	require.NoError(t, os.WriteFile(path, []byte(in), 0o644))

	core, logs := observer.New(zapcore.DebugLevel)
	reader := NewRawReader(path, zap.New(core))
	records, err := reader.Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, reader.Skipped())

	require.Equal(t, 1, logs.FilterMessage("Skipped malformed rows").Len())
	assert.Equal(t, 2, logs.FilterMessage("Malformed row").Len())
	loaded := logs.FilterMessage("Raw input loaded").All()
	require.Len(t, loaded, 1)
	assert.EqualValues(t, 2, loaded[0].ContextMap()["records"])

	require.NoError(t, os.WriteFile(path, []byte(rawCSV(sampleRow("a@x.io"))), 0o644))
	_, err = reader.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reader.Skipped())
}
