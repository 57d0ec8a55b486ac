package activity

import "time"

// CleaningMetrics counts what each stage removed during a run
type CleaningMetrics struct {
	RunAt                   time.Time `json:"run_at"`
	MalformedRowsSkipped    int       `json:"malformed_rows_skipped"`
	InitialRecords          int       `json:"initial_records"`
	DuplicateEmailsRemoved  int       `json:"duplicate_emails_removed"`
	InvalidSessionsRemoved  int       `json:"invalid_sessions_removed"`
	InvalidPricesRemoved    int       `json:"invalid_prices_removed"`
	InvalidStatusRemoved    int       `json:"invalid_status_removed"`
	InvalidLifecycleRemoved int       `json:"invalid_lifecycle_removed"`
	UncoercibleRemoved      int       `json:"uncoercible_removed"`
	FinalRecords            int       `json:"final_records"`
}

// Rejected is the total number of rows excluded by validation
func (m CleaningMetrics) Rejected() int {
	return m.InvalidSessionsRemoved + m.InvalidPricesRemoved +
		m.InvalidStatusRemoved + m.InvalidLifecycleRemoved
}

// AddViolation increments the counter for v
func (m *CleaningMetrics) AddViolation(v Violation) {
	switch v {
	case ViolationSession:
		m.InvalidSessionsRemoved++
	case ViolationPrice:
		m.InvalidPricesRemoved++
	case ViolationStatus:
		m.InvalidStatusRemoved++
	case ViolationLifecycle:
		m.InvalidLifecycleRemoved++
	}
}

// QualityMetrics profiles the final dataset
type QualityMetrics struct {
	RunAt                  time.Time          `json:"run_at"`
	Records                int                `json:"records"`
	NullPercentage         map[string]float64 `json:"null_percentage"`
	Price                  Describe           `json:"price_stats"`
	SessionDuration        Describe           `json:"session_duration_stats"`
	DeviceTypeDistribution map[string]int     `json:"device_type_distribution"`
}
