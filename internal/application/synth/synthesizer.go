// Package synth produces candidate user activity records from a seeded random source.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

// ErrInvalidConfig is returned when synthesizer options are unusable.
var ErrInvalidConfig = errors.New("synth: invalid configuration")

// DefaultCatalog is the current product line
var DefaultCatalog = []string{
	"Alpha", "Beta", "Gamma", "Delta", "Omicron",
	"Phi", "Epsilon", "Zeta", "Omega",
}

// DefaultLegacyCatalog holds retired SKUs that still show up in old sessions
var DefaultLegacyCatalog = []string{"Legacy Product", "Beta Product"}

const (
	DefaultActiveProbability = 0.8
	DefaultRefundPriceFactor = 0.25

	minPrice          = 100.0
	maxPrice          = 5000.0
	priceOutlierRate  = 0.01
	legacyProductRate = 0.009
	reversalRate      = 0.005

	minSession = 30 * time.Minute
	maxSession = 4 * time.Hour

	minAge = 18
	maxAge = 72

	// ctx is checked once per this many rows
	cancelCheckEvery = 256
)

var (
	regularStatuses  = []string{string(activity.StatusCompleted), string(activity.StatusPending), string(activity.StatusFailed)}
	reversalStatuses = []string{string(activity.StatusRefunded), string(activity.StatusChargeback)}
)

// Options configures a Synthesizer
type Options struct {
	NumRows           int
	Start             time.Time
	End               time.Time
	Seed              int64
	// nil selects DefaultActiveProbability; zero makes every account deleted
	ActiveProbability *float64
	// nil selects DefaultRefundPriceFactor
	RefundPriceFactor *float64
	Catalog           []string
	LegacyCatalog     []string
}

func (o *Options) applyDefaults() {
	// copied so later writes through the caller's pointers cannot change the draw
	p, f := DefaultActiveProbability, DefaultRefundPriceFactor
	if o.ActiveProbability != nil {
		p = *o.ActiveProbability
	}
	if o.RefundPriceFactor != nil {
		f = *o.RefundPriceFactor
	}
	o.ActiveProbability, o.RefundPriceFactor = &p, &f
	if len(o.Catalog) == 0 {
		o.Catalog = DefaultCatalog
	}
	if len(o.LegacyCatalog) == 0 {
		o.LegacyCatalog = DefaultLegacyCatalog
	}
}

func (o Options) validate() error {
	if o.NumRows <= 0 {
		return fmt.Errorf("%w: num_rows must be positive, got %d", ErrInvalidConfig, o.NumRows)
	}
	if o.Start.IsZero() || o.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidConfig)
	}
	if o.Start.After(o.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidConfig,
			o.Start.Format(time.RFC3339), o.End.Format(time.RFC3339))
	}
	if p := *o.ActiveProbability; p < 0 || p > 1 {
		return fmt.Errorf("%w: active probability must be within [0,1]", ErrInvalidConfig)
	}
	if *o.RefundPriceFactor < 0 {
		return fmt.Errorf("%w: refund price factor must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Synthesizer generates candidate records. It owns its random source, so two
// synthesizers built with the same options produce the same records.
// A Synthesizer is not safe for concurrent use.
type Synthesizer struct {
	opts  Options
	faker *gofakeit.Faker
}

// New validates opts and creates a Synthesizer
func New(opts Options) (*Synthesizer, error) {
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Synthesizer{
		opts:  opts,
		faker: gofakeit.New(uint64(opts.Seed)),
	}, nil
}

// Options returns the effective options after defaults
func (s *Synthesizer) Options() Options {
	return s.opts
}

// Generate produces exactly NumRows candidates, or stops early with ctx.Err()
func (s *Synthesizer) Generate(ctx context.Context) ([]activity.RawRecord, error) {
	records := make([]activity.RawRecord, 0, s.opts.NumRows)
	for i := 0; i < s.opts.NumRows; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		records = append(records, s.next())
	}
	return records, nil
}

// next draws one record. Draw order is part of the reproducibility contract.
func (s *Synthesizer) next() activity.RawRecord {
	f := s.faker

	firstName := f.FirstName()
	lastName := f.LastName()
	price := s.price()
	product := s.product()
	status := s.status()
	active := f.Float64() < *s.opts.ActiveProbability

	created := s.between(s.opts.Start, s.opts.End)
	updated := s.between(created, s.opts.End)
	var deleted *time.Time
	if !active {
		d := s.between(updated, s.opts.End)
		deleted = &d
	}
	loginEnd := s.opts.End
	if deleted != nil {
		loginEnd = *deleted
	}
	login := s.between(created, loginEnd)
	session := minSession + time.Duration(f.Float64()*float64(maxSession-minSession))
	logout := login.Add(session.Truncate(time.Second))

	if activity.PurchaseStatus(status).IsReversal() {
		price = price.Mul(decimal.NewFromFloat(*s.opts.RefundPriceFactor)).Round(2)
	}

	isActive := "0"
	deletedText := ""
	if active {
		isActive = "1"
	} else {
		deletedText = activity.FormatTimestamp(*deleted)
	}

	return activity.RawRecord{
		UserID:                 f.UUID(),
		FirstName:              firstName,
		LastName:               lastName,
		Email:                  strings.ToLower(firstName + "_" + lastName + "@" + f.DomainName()),
		DateOfBirth:            s.dateOfBirth().Format(activity.DateLayout),
		PhoneNumber:            f.Phone(),
		Address:                f.Street(),
		City:                   f.City(),
		State:                  f.State(),
		PostalCode:             f.Zip(),
		Country:                f.Country(),
		Company:                f.Company(),
		JobTitle:               f.JobTitle(),
		IPAddress:              f.IPv4Address(),
		IsActive:               isActive,
		LoginTime:              activity.FormatTimestamp(login),
		LogoutTime:             activity.FormatTimestamp(logout),
		AccountCreated:         activity.FormatTimestamp(created),
		AccountUpdated:         activity.FormatTimestamp(updated),
		AccountDeleted:         deletedText,
		SessionDurationMinutes: strconv.FormatFloat(logout.Sub(login).Minutes(), 'f', 2, 64),
		ProductID:              f.UUID(),
		ProductName:            product,
		Price:                  price.StringFixed(2),
		PurchaseStatus:         status,
		UserAgent:              f.UserAgent(),
	}
}

// price draws a base price in cents and occasionally scales it by 10 either way
func (s *Synthesizer) price() decimal.Decimal {
	f := s.faker
	p := decimal.NewFromFloat(f.Float64Range(minPrice, maxPrice)).Round(2)
	if f.Float64() < priceOutlierRate {
		if f.Bool() {
			p = p.Mul(decimal.NewFromInt(10))
		} else {
			p = p.Div(decimal.NewFromInt(10))
		}
		p = p.Round(2)
	}
	return p
}

func (s *Synthesizer) product() string {
	f := s.faker
	if f.Float64() < legacyProductRate {
		return f.RandomString(s.opts.LegacyCatalog)
	}
	return f.RandomString(s.opts.Catalog)
}

func (s *Synthesizer) status() string {
	f := s.faker
	if f.Float64() < reversalRate {
		return f.RandomString(reversalStatuses)
	}
	return f.RandomString(regularStatuses)
}

// between draws a whole-second instant uniformly from [from, to]
func (s *Synthesizer) between(from, to time.Time) time.Time {
	if !to.After(from) {
		return from
	}
	span := float64(to.Sub(from))
	return from.Add(time.Duration(s.faker.Float64() * span)).Truncate(time.Second)
}

func (s *Synthesizer) dateOfBirth() time.Time {
	end := s.opts.End
	oldest := end.AddDate(-maxAge, 0, 0)
	youngest := end.AddDate(-minAge, 0, 0)
	return s.between(oldest, youngest)
}
