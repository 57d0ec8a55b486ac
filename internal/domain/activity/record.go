package activity

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the ISO-8601 layout used for every timestamp the pipeline writes
const TimestampLayout = "2006-01-02T15:04:05.999999999"

// DateLayout is used for date_of_birth
const DateLayout = "2006-01-02"

// CohortLayout formats cohort_date
const CohortLayout = "2006-01"

// DefaultCountry replaces whatever country the source carried
const DefaultCountry = "United States"

var timestampLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseTimestamp parses an ISO-8601 timestamp. Surrounding whitespace is ignored;
// empty and null-like values report false.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if IsNull(s) {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t with TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// IsNull reports whether a raw cell stands for a missing value
func IsNull(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "nan", "nat":
		return true
	}
	return false
}

// ParsePrice coerces a raw price cell into a decimal
func ParsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if IsNull(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// RawRecord is a candidate record before cleaning. Every cell is kept as text,
// exactly as a synthesizer or a raw CSV produced it.
type RawRecord struct {
	UserID                 string
	FirstName              string
	LastName               string
	Email                  string
	DateOfBirth            string
	PhoneNumber            string
	Address                string
	City                   string
	State                  string
	PostalCode             string
	Country                string
	Company                string
	JobTitle               string
	IPAddress              string
	IsActive               string
	LoginTime              string
	LogoutTime             string
	AccountCreated         string
	AccountUpdated         string
	AccountDeleted         string
	SessionDurationMinutes string
	ProductID              string
	ProductName            string
	Price                  string
	PurchaseStatus         string
	UserAgent              string

	// Line is the source line for file input, 0 for synthesized candidates
	Line int
}

type rawField struct {
	name string
	ref  func(r *RawRecord) *string
}

// rawFields fixes the raw column order
var rawFields = []rawField{
	{"user_id", func(r *RawRecord) *string { return &r.UserID }},
	{"first_name", func(r *RawRecord) *string { return &r.FirstName }},
	{"last_name", func(r *RawRecord) *string { return &r.LastName }},
	{"email", func(r *RawRecord) *string { return &r.Email }},
	{"date_of_birth", func(r *RawRecord) *string { return &r.DateOfBirth }},
	{"phone_number", func(r *RawRecord) *string { return &r.PhoneNumber }},
	{"address", func(r *RawRecord) *string { return &r.Address }},
	{"city", func(r *RawRecord) *string { return &r.City }},
	{"state", func(r *RawRecord) *string { return &r.State }},
	{"postal_code", func(r *RawRecord) *string { return &r.PostalCode }},
	{"country", func(r *RawRecord) *string { return &r.Country }},
	{"company", func(r *RawRecord) *string { return &r.Company }},
	{"job_title", func(r *RawRecord) *string { return &r.JobTitle }},
	{"ip_address", func(r *RawRecord) *string { return &r.IPAddress }},
	{"is_active", func(r *RawRecord) *string { return &r.IsActive }},
	{"login_time", func(r *RawRecord) *string { return &r.LoginTime }},
	{"logout_time", func(r *RawRecord) *string { return &r.LogoutTime }},
	{"account_created", func(r *RawRecord) *string { return &r.AccountCreated }},
	{"account_updated", func(r *RawRecord) *string { return &r.AccountUpdated }},
	{"account_deleted", func(r *RawRecord) *string { return &r.AccountDeleted }},
	{"session_duration_minutes", func(r *RawRecord) *string { return &r.SessionDurationMinutes }},
	{"product_id", func(r *RawRecord) *string { return &r.ProductID }},
	{"product_name", func(r *RawRecord) *string { return &r.ProductName }},
	{"price", func(r *RawRecord) *string { return &r.Price }},
	{"purchase_status", func(r *RawRecord) *string { return &r.PurchaseStatus }},
	{"user_agent", func(r *RawRecord) *string { return &r.UserAgent }},
}

// RawColumns returns the raw column names in output order
func RawColumns() []string {
	cols := make([]string, len(rawFields))
	for i, f := range rawFields {
		cols[i] = f.name
	}
	return cols
}

// RequiredRawColumns are the columns a raw input must carry for a record to be usable
var RequiredRawColumns = []string{
	"user_id", "first_name", "last_name", "email",
	"is_active", "login_time", "logout_time",
	"account_created", "account_updated",
	"product_name", "price", "purchase_status", "user_agent",
}

// Values returns the cells in RawColumns order
func (r RawRecord) Values() []string {
	vals := make([]string, len(rawFields))
	for i, f := range rawFields {
		vals[i] = *f.ref(&r)
	}
	return vals
}

// RawFromMap builds a record from a column->value map. Unknown columns are ignored,
// missing ones stay empty.
func RawFromMap(m map[string]string) RawRecord {
	var r RawRecord
	for _, f := range rawFields {
		if v, ok := m[f.name]; ok {
			*f.ref(&r) = v
		}
	}
	return r
}

// TrimSpace trims surrounding whitespace from every cell
func (r *RawRecord) TrimSpace() {
	for _, f := range rawFields {
		p := f.ref(r)
		*p = strings.TrimSpace(*p)
	}
}

// Record is a cleaned, typed activity record
type Record struct {
	UserID                 string
	TransactID             string
	FirstName              string
	LastName               string
	Email                  string
	DateOfBirth            string
	Address                string
	State                  string
	Country                string
	Company                string
	JobTitle               string
	IPAddress              string
	IsActive               ActiveFlag
	LoginTime              time.Time
	LogoutTime             time.Time
	AccountCreated         time.Time
	AccountUpdated         time.Time
	AccountDeleted         *time.Time
	SessionDurationMinutes float64
	ProductName            string
	Price                  decimal.Decimal
	PurchaseStatus         PurchaseStatus
	UserAgent              string
	DeviceType             DeviceType
	OS                     string
	Browser                string

	// Derived during enrichment
	CohortDate            string
	UserAgeDays           int
	EngagementLevel       EngagementLevel
	PriceTier             PriceTier
	CustomerLifetimeValue decimal.Decimal
}

// Columns is the output column order of cleaned datasets
var Columns = []string{
	"user_id", "transact_id", "first_name", "last_name", "email",
	"date_of_birth", "address", "state", "country", "company",
	"job_title", "ip_address", "is_active", "login_time", "logout_time",
	"account_created", "account_updated", "account_deleted",
	"session_duration_minutes", "product_name", "price", "purchase_status",
	"user_agent", "device_type", "os", "browser",
	"cohort_date", "user_age_days", "engagement_level", "price_tier",
	"customer_lifetime_value",
}

// TransactID builds the transaction id from the user and the login second
func TransactID(userID string, login time.Time) string {
	return "txn_" + userID + "_" + login.Format("20060102150405")
}

// Values returns the cells in Columns order. An empty string stands for null.
func (r Record) Values() []string {
	deleted := ""
	if r.AccountDeleted != nil {
		deleted = FormatTimestamp(*r.AccountDeleted)
	}
	return []string{
		r.UserID,
		r.TransactID,
		r.FirstName,
		r.LastName,
		r.Email,
		r.DateOfBirth,
		r.Address,
		r.State,
		r.Country,
		r.Company,
		r.JobTitle,
		r.IPAddress,
		string(r.IsActive),
		FormatTimestamp(r.LoginTime),
		FormatTimestamp(r.LogoutTime),
		FormatTimestamp(r.AccountCreated),
		FormatTimestamp(r.AccountUpdated),
		deleted,
		strconv.FormatFloat(r.SessionDurationMinutes, 'f', -1, 64),
		r.ProductName,
		r.Price.String(),
		string(r.PurchaseStatus),
		r.UserAgent,
		string(r.DeviceType),
		r.OS,
		r.Browser,
		r.CohortDate,
		strconv.Itoa(r.UserAgeDays),
		string(r.EngagementLevel),
		string(r.PriceTier),
		r.CustomerLifetimeValue.String(),
	}
}

// Raw converts a cleaned record back to raw form so it can go through cleaning again.
// Columns dropped during cleaning stay empty.
func (r Record) Raw() RawRecord {
	deleted := ""
	if r.AccountDeleted != nil {
		deleted = FormatTimestamp(*r.AccountDeleted)
	}
	return RawRecord{
		UserID:                 r.UserID,
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
		LoginTime:              FormatTimestamp(r.LoginTime),
		LogoutTime:             FormatTimestamp(r.LogoutTime),
		AccountCreated:         FormatTimestamp(r.AccountCreated),
		AccountUpdated:         FormatTimestamp(r.AccountUpdated),
		AccountDeleted:         deleted,
		SessionDurationMinutes: strconv.FormatFloat(r.SessionDurationMinutes, 'f', -1, 64),
		ProductName:            r.ProductName,
		Price:                  r.Price.String(),
		PurchaseStatus:         string(r.PurchaseStatus),
		UserAgent:              r.UserAgent,
	}
}
