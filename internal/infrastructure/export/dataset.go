// Package export serializes cleaned activity records and run metrics to disk.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

// Dataset file names inside the data directory
const (
	CSVFile     = "cleaned_data.csv"
	JSONFile    = "cleaned_data.json"
	ParquetFile = "cleaned_data.parquet"
)

// Files lists the dataset artifacts of a run
type Files struct {
	CSV     string
	JSON    string
	Parquet string
}

// All returns every path in write order
func (f Files) All() []string {
	return []string{f.CSV, f.JSON, f.Parquet}
}

// DatasetWriter writes the cleaned dataset in CSV, JSON and Parquet form
type DatasetWriter struct {
	dir    string
	logger *zap.Logger
}

// NewDatasetWriter creates a writer rooted at dir
func NewDatasetWriter(dir string, logger *zap.Logger) *DatasetWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetWriter{dir: dir, logger: logger.Named("export")}
}

// Files returns the paths the writer produces
func (w *DatasetWriter) Files() Files {
	return Files{
		CSV:     filepath.Join(w.dir, CSVFile),
		JSON:    filepath.Join(w.dir, JSONFile),
		Parquet: filepath.Join(w.dir, ParquetFile),
	}
}

// Write replaces all three dataset files. On failure the previous files are left
// in place, or restored if some were already replaced. A crash mid-commit can
// still leave a mix of old and new files.
func (w *DatasetWriter) Write(ctx context.Context, records []activity.Record) (Files, error) {
	if err := ctx.Err(); err != nil {
		return Files{}, err
	}
	files := w.Files()
	err := writeAll(files.All(), []func(io.Writer) error{
		func(out io.Writer) error { return writeCSV(out, records) },
		func(out io.Writer) error { return writeJSON(out, records) },
		func(out io.Writer) error { return writeParquet(out, records) },
	})
	if err != nil {
		return Files{}, err
	}
	w.logger.Info("Dataset written",
		zap.String("dir", w.dir),
		zap.Int("records", len(records)),
	)
	return files, nil
}

func writeCSV(out io.Writer, records []activity.Record) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(activity.Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonRecord fixes key order and null/number encoding of the JSON dataset
type jsonRecord struct {
	UserID                 string      `json:"user_id"`
	TransactID             string      `json:"transact_id"`
	FirstName              string      `json:"first_name"`
	LastName               string      `json:"last_name"`
	Email                  string      `json:"email"`
	DateOfBirth            string      `json:"date_of_birth"`
	Address                string      `json:"address"`
	State                  string      `json:"state"`
	Country                string      `json:"country"`
	Company                string      `json:"company"`
	JobTitle               string      `json:"job_title"`
	IPAddress              string      `json:"ip_address"`
	IsActive               string      `json:"is_active"`
	LoginTime              string      `json:"login_time"`
	LogoutTime             string      `json:"logout_time"`
	AccountCreated         string      `json:"account_created"`
	AccountUpdated         string      `json:"account_updated"`
	AccountDeleted         *string     `json:"account_deleted"`
	SessionDurationMinutes float64     `json:"session_duration_minutes"`
	ProductName            string      `json:"product_name"`
	Price                  json.Number `json:"price"`
	PurchaseStatus         string      `json:"purchase_status"`
	UserAgent              string      `json:"user_agent"`
	DeviceType             string      `json:"device_type"`
	OS                     string      `json:"os"`
	Browser                string      `json:"browser"`
	CohortDate             string      `json:"cohort_date"`
	UserAgeDays            int         `json:"user_age_days"`
	EngagementLevel        string      `json:"engagement_level"`
	PriceTier              string      `json:"price_tier"`
	CustomerLifetimeValue  json.Number `json:"customer_lifetime_value"`
}

func toJSONRecord(r activity.Record) jsonRecord {
	var deleted *string
	if r.AccountDeleted != nil {
		s := activity.FormatTimestamp(*r.AccountDeleted)
		deleted = &s
	}
	return jsonRecord{
		UserID:                 r.UserID,
		TransactID:             r.TransactID,
		FirstName:              r.FirstName,
		LastName:               r.LastName,
		Email:                  r.Email,
		DateOfBirth:            r.DateOfBirth,
		Address:                r.Address,
		State:                  r.State,
		Country:                r.Country,
		Company:                r.Company,
		JobTitle:               r.JobTitle,
		IPAddress:              r.IPAddress,
		IsActive:               string(r.IsActive),
		LoginTime:              activity.FormatTimestamp(r.LoginTime),
		LogoutTime:             activity.FormatTimestamp(r.LogoutTime),
		AccountCreated:         activity.FormatTimestamp(r.AccountCreated),
		AccountUpdated:         activity.FormatTimestamp(r.AccountUpdated),
		AccountDeleted:         deleted,
		SessionDurationMinutes: r.SessionDurationMinutes,
		ProductName:            r.ProductName,
		Price:                  json.Number(r.Price.String()),
		PurchaseStatus:         string(r.PurchaseStatus),
		UserAgent:              r.UserAgent,
		DeviceType:             string(r.DeviceType),
		OS:                     r.OS,
		Browser:                r.Browser,
		CohortDate:             r.CohortDate,
		UserAgeDays:            r.UserAgeDays,
		EngagementLevel:        string(r.EngagementLevel),
		PriceTier:              string(r.PriceTier),
		CustomerLifetimeValue:  json.Number(r.CustomerLifetimeValue.String()),
	}
}

func writeJSON(out io.Writer, records []activity.Record) error {
	rows := make([]jsonRecord, len(records))
	for i, r := range records {
		rows[i] = toJSONRecord(r)
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return enc.Encode(rows)
}

// parquetRow is the columnar schema of the dataset. Money columns are stored as
// doubles for analytical readers; the CSV and JSON files keep exact decimals.
type parquetRow struct {
	UserID                 string  `parquet:"user_id"`
	TransactID             string  `parquet:"transact_id"`
	FirstName              string  `parquet:"first_name"`
	LastName               string  `parquet:"last_name"`
	Email                  string  `parquet:"email"`
	DateOfBirth            string  `parquet:"date_of_birth"`
	Address                string  `parquet:"address"`
	State                  string  `parquet:"state"`
	Country                string  `parquet:"country"`
	Company                string  `parquet:"company"`
	JobTitle               string  `parquet:"job_title"`
	IPAddress              string  `parquet:"ip_address"`
	IsActive               string  `parquet:"is_active"`
	LoginTime              string  `parquet:"login_time"`
	LogoutTime             string  `parquet:"logout_time"`
	AccountCreated         string  `parquet:"account_created"`
	AccountUpdated         string  `parquet:"account_updated"`
	AccountDeleted         *string `parquet:"account_deleted,optional"`
	SessionDurationMinutes float64 `parquet:"session_duration_minutes"`
	ProductName            string  `parquet:"product_name"`
	Price                  float64 `parquet:"price"`
	PurchaseStatus         string  `parquet:"purchase_status"`
	UserAgent              string  `parquet:"user_agent"`
	DeviceType             string  `parquet:"device_type"`
	OS                     string  `parquet:"os"`
	Browser                string  `parquet:"browser"`
	CohortDate             string  `parquet:"cohort_date"`
	UserAgeDays            int64   `parquet:"user_age_days"`
	EngagementLevel        string  `parquet:"engagement_level"`
	PriceTier              string  `parquet:"price_tier"`
	CustomerLifetimeValue  float64 `parquet:"customer_lifetime_value"`
}

func toParquetRow(r activity.Record) parquetRow {
	j := toJSONRecord(r)
	return parquetRow{
		UserID:                 j.UserID,
		TransactID:             j.TransactID,
		FirstName:              j.FirstName,
		LastName:               j.LastName,
		Email:                  j.Email,
		DateOfBirth:            j.DateOfBirth,
		Address:                j.Address,
		State:                  j.State,
		Country:                j.Country,
		Company:                j.Company,
		JobTitle:               j.JobTitle,
		IPAddress:              j.IPAddress,
		IsActive:               j.IsActive,
		LoginTime:              j.LoginTime,
		LogoutTime:             j.LogoutTime,
		AccountCreated:         j.AccountCreated,
		AccountUpdated:         j.AccountUpdated,
		AccountDeleted:         j.AccountDeleted,
		SessionDurationMinutes: j.SessionDurationMinutes,
		ProductName:            j.ProductName,
		Price:                  r.Price.InexactFloat64(),
		PurchaseStatus:         j.PurchaseStatus,
		UserAgent:              j.UserAgent,
		DeviceType:             j.DeviceType,
		OS:                     j.OS,
		Browser:                j.Browser,
		CohortDate:             j.CohortDate,
		UserAgeDays:            int64(j.UserAgeDays),
		EngagementLevel:        j.EngagementLevel,
		PriceTier:              j.PriceTier,
		CustomerLifetimeValue:  r.CustomerLifetimeValue.InexactFloat64(),
	}
}

func writeParquet(out io.Writer, records []activity.Record) error {
	rows := make([]parquetRow, len(records))
	for i, r := range records {
		rows[i] = toParquetRow(r)
	}
	pw := parquet.NewGenericWriter[parquetRow](out)
	if _, err := pw.Write(rows); err != nil {
		return err
	}
	return pw.Close()
}
