package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulse/activitypipe/internal/domain/activity"
	"github.com/pulse/activitypipe/internal/infrastructure/csvimport"
)

// ReadDataset loads a cleaned CSV dataset back into typed records. It is the
// inverse of DatasetWriter's CSV output, for downstream consumers of data/
// and for round-trip checks; the pipeline itself never reads its own output.
func ReadDataset(path string) ([]activity.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PathError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	parser, err := csvimport.NewParser(f)
	if err != nil {
		return nil, &PathError{Op: "read", Path: path, Err: err}
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, &PathError{Op: "read", Path: path, Err: err}
	}
	if missing := parser.MissingHeaders(activity.Columns); len(missing) > 0 {
		return nil, &PathError{Op: "read", Path: path,
			Err: fmt.Errorf("%w: %s", csvimport.ErrMissingColumns, strings.Join(missing, ", "))}
	}

	var records []activity.Record
	for {
		row, err := parser.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &PathError{Op: "read", Path: path, Err: err}
		}
		rec, err := decodeRow(row)
		if err != nil {
			return nil, &PathError{Op: "decode", Path: path, Err: fmt.Errorf("line %d: %w", row.LineNumber, err)}
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRow(row *csvimport.Row) (activity.Record, error) {
	var (
		rec      activity.Record
		firstErr error
	)
	parseTime := func(col string) time.Time {
		t, ok := activity.ParseTimestamp(row.Get(col))
		if !ok && firstErr == nil {
			firstErr = fmt.Errorf("column %s: invalid timestamp %q", col, row.Get(col))
		}
		return t
	}
	parseDecimal := func(col string) decimal.Decimal {
		d, err := decimal.NewFromString(row.Get(col))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("column %s: %w", col, err)
		}
		return d
	}

	rec.UserID = row.Get("user_id")
	rec.TransactID = row.Get("transact_id")
	rec.FirstName = row.Get("first_name")
	rec.LastName = row.Get("last_name")
	rec.Email = row.Get("email")
	rec.DateOfBirth = row.Get("date_of_birth")
	rec.Address = row.Get("address")
	rec.State = row.Get("state")
	rec.Country = row.Get("country")
	rec.Company = row.Get("company")
	rec.JobTitle = row.Get("job_title")
	rec.IPAddress = row.Get("ip_address")
	rec.IsActive = activity.ActiveFlag(row.Get("is_active"))
	rec.LoginTime = parseTime("login_time")
	rec.LogoutTime = parseTime("logout_time")
	rec.AccountCreated = parseTime("account_created")
	rec.AccountUpdated = parseTime("account_updated")
	if !activity.IsNull(row.Get("account_deleted")) {
		d := parseTime("account_deleted")
		rec.AccountDeleted = &d
	}
	minutes, err := strconv.ParseFloat(row.Get("session_duration_minutes"), 64)
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("column session_duration_minutes: %w", err)
	}
	rec.SessionDurationMinutes = minutes
	rec.ProductName = row.Get("product_name")
	rec.Price = parseDecimal("price")
	rec.PurchaseStatus = activity.PurchaseStatus(row.Get("purchase_status"))
	rec.UserAgent = row.Get("user_agent")
	rec.DeviceType = activity.DeviceType(row.Get("device_type"))
	rec.OS = row.Get("os")
	rec.Browser = row.Get("browser")
	rec.CohortDate = row.Get("cohort_date")
	days, err := strconv.Atoi(row.Get("user_age_days"))
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("column user_age_days: %w", err)
	}
	rec.UserAgeDays = days
	rec.EngagementLevel = activity.EngagementLevel(row.Get("engagement_level"))
	rec.PriceTier = activity.PriceTier(row.Get("price_tier"))
	rec.CustomerLifetimeValue = parseDecimal("customer_lifetime_value")

	return rec, firstErr
}
