package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

const defaultMaxRowErrors = 100

// RawReader loads candidate records from a raw activity extract
type RawReader struct {
	path      string
	logger    *zap.Logger
	maxErrors int
	skipped   int
}

// NewRawReader creates a reader for the CSV file at path
func NewRawReader(path string, logger *zap.Logger) *RawReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RawReader{
		path:      path,
		logger:    logger.Named("csvimport"),
		maxErrors: defaultMaxRowErrors,
	}
}

// Generate reads the file as a candidate batch
func (r *RawReader) Generate(ctx context.Context) ([]activity.RawRecord, error) {
	return r.ReadAll(ctx)
}

// Skipped returns how many malformed rows the last ReadAll dropped
func (r *RawReader) Skipped() int {
	return r.skipped
}

// ReadAll opens the file and reads every well-formed row
func (r *RawReader) ReadAll(ctx context.Context) ([]activity.RawRecord, error) {
	r.skipped = 0
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open raw input %s: %w", r.path, err)
	}
	defer f.Close()

	records, rowErrs, err := ReadRaw(ctx, f, r.maxErrors)
	if err != nil {
		return nil, fmt.Errorf("read raw input %s: %w", r.path, err)
	}
	r.skipped = rowErrs.TotalCount()
	if rowErrs.HasErrors() {
		r.logger.Warn("Skipped malformed rows",
			zap.String("path", r.path),
			zap.Int("count", rowErrs.TotalCount()),
			zap.Any("by_code", rowErrs.ErrorSummary()),
			zap.Bool("truncated", rowErrs.IsTruncated()),
		)
		for _, e := range rowErrs.Errors() {
			r.logger.Debug("Malformed row", zap.Int("row", e.Row), zap.String("code", e.Code), zap.String("message", e.Message))
		}
	}
	r.logger.Info("Raw input loaded", zap.String("path", r.path), zap.Int("records", len(records)))
	return records, nil
}

// ReadRaw parses a raw extract. Rows that cannot be parsed or whose field count does
// not match the header are skipped and reported in the returned collection.
func ReadRaw(ctx context.Context, in io.Reader, maxErrors int) ([]activity.RawRecord, *ErrorCollection, error) {
	rowErrs := NewErrorCollection(maxErrors)

	parser, err := NewParser(in)
	if err != nil {
		return nil, rowErrs, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, rowErrs, err
	}
	if missing := parser.MissingHeaders(activity.RequiredRawColumns); len(missing) > 0 {
		return nil, rowErrs, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	width := len(parser.Headers())

	var records []activity.RawRecord
	for {
		if parser.TotalRows()%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, rowErrs, err
			}
		}

		row, err := parser.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, rowErrs, err
			}
			rowErrs.Add(NewRowError(perr.StartLine, "", ErrCodeMalformedRow, perr.Err.Error()))
			continue
		}
		if row.IsEmpty() {
			continue
		}
		if row.FieldCount != width {
			rowErrs.Add(NewRowError(row.LineNumber, "", ErrCodeFieldCount,
				fmt.Sprintf("expected %d fields, got %d", width, row.FieldCount)))
			continue
		}
		rec := activity.RawFromMap(row.Data)
		rec.Line = row.LineNumber
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, rowErrs, ErrNoDataRows
	}
	return records, rowErrs, nil
}
