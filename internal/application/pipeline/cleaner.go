package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

// CleanStats counts what a cleaning pass did
type CleanStats struct {
	Input             int
	DuplicatesRemoved int
	Uncoercible       int
	Output            int
}

// Cleaner turns validated candidates into typed records: it trims every cell,
// collapses duplicate emails, normalizes categoricals and classifies user agents.
type Cleaner struct {
	workers int
}

// NewCleaner creates a cleaner that classifies user agents on up to workers goroutines
func NewCleaner(workers int) *Cleaner {
	if workers < 1 {
		workers = 1
	}
	return &Cleaner{workers: workers}
}

// Clean returns the cleaned batch in input order. The input slice is not modified.
func (c *Cleaner) Clean(ctx context.Context, raws []activity.RawRecord) ([]activity.Record, CleanStats, error) {
	stats := CleanStats{Input: len(raws)}
	lower := cases.Lower(language.Und)

	seen := make(map[string]struct{}, len(raws))
	out := make([]activity.Record, 0, len(raws))
	for _, raw := range raws {
		raw.TrimSpace()
		if _, dup := seen[raw.Email]; dup {
			stats.DuplicatesRemoved++
			continue
		}
		seen[raw.Email] = struct{}{}

		raw.PurchaseStatus = lower.String(raw.PurchaseStatus)
		rec, err := toRecord(raw)
		if err != nil {
			stats.Uncoercible++
			continue
		}
		out = append(out, rec)
	}

	if err := c.classify(ctx, out); err != nil {
		return nil, stats, err
	}
	stats.Output = len(out)
	return out, stats, nil
}

// classify fills device, OS and browser. Each goroutine owns a contiguous chunk,
// so results land at their input index.
func (c *Cleaner) classify(ctx context.Context, records []activity.Record) error {
	if len(records) == 0 {
		return nil
	}
	chunk := (len(records) + c.workers - 1) / c.workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for lo := 0; lo < len(records); lo += chunk {
		hi := min(lo+chunk, len(records))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				info := activity.ClassifyUserAgent(records[i].UserAgent)
				if info.Device == activity.DeviceOther {
					info.Device = activity.DeviceDesktop
				}
				records[i].DeviceType = info.Device
				records[i].OS = info.OS
				records[i].Browser = info.Browser
			}
			return nil
		})
	}
	return g.Wait()
}

// toRecord converts a trimmed raw record. Phone number, city, postal code and
// product id are dropped; country is set to the default.
func toRecord(raw activity.RawRecord) (activity.Record, error) {
	login, ok := activity.ParseTimestamp(raw.LoginTime)
	if !ok {
		return activity.Record{}, fmt.Errorf("login_time %q", raw.LoginTime)
	}
	logout, ok := activity.ParseTimestamp(raw.LogoutTime)
	if !ok {
		return activity.Record{}, fmt.Errorf("logout_time %q", raw.LogoutTime)
	}
	created, ok := activity.ParseTimestamp(raw.AccountCreated)
	if !ok {
		return activity.Record{}, fmt.Errorf("account_created %q", raw.AccountCreated)
	}
	updated, ok := activity.ParseTimestamp(raw.AccountUpdated)
	if !ok {
		return activity.Record{}, fmt.Errorf("account_updated %q", raw.AccountUpdated)
	}
	var deleted *time.Time
	if !activity.IsNull(raw.AccountDeleted) {
		t, ok := activity.ParseTimestamp(raw.AccountDeleted)
		if !ok {
			return activity.Record{}, fmt.Errorf("account_deleted %q", raw.AccountDeleted)
		}
		deleted = &t
	}
	active, ok := activity.ParseActiveFlag(raw.IsActive)
	if !ok {
		return activity.Record{}, fmt.Errorf("is_active %q", raw.IsActive)
	}
	price, ok := activity.ParsePrice(raw.Price)
	if !ok {
		return activity.Record{}, fmt.Errorf("price %q", raw.Price)
	}

	return activity.Record{
		UserID:                 raw.UserID,
		TransactID:             activity.TransactID(raw.UserID, login),
		FirstName:              raw.FirstName,
		LastName:               raw.LastName,
		Email:                  raw.Email,
		DateOfBirth:            raw.DateOfBirth,
		Address:                raw.Address,
		State:                  raw.State,
		Country:                activity.DefaultCountry,
		Company:                raw.Company,
		JobTitle:               raw.JobTitle,
		IPAddress:              raw.IPAddress,
		IsActive:               active,
		LoginTime:              login,
		LogoutTime:             logout,
		AccountCreated:         created,
		AccountUpdated:         updated,
		AccountDeleted:         deleted,
		SessionDurationMinutes: round2(logout.Sub(login).Minutes()),
		ProductName:            raw.ProductName,
		Price:                  price,
		PurchaseStatus:         activity.PurchaseStatus(raw.PurchaseStatus),
		UserAgent:              raw.UserAgent,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
