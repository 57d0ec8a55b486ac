package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

// EnrichStats describes an enrichment pass
type EnrichStats struct {
	Records int
	Users   int
	// PriceTierFallback is set when quartile edges could not be computed and
	// every row received activity.FallbackPriceTier
	PriceTierFallback bool
	PriceTierEdges    [5]float64
}

// Enricher derives cohort, account age, engagement, price tier and customer
// lifetime value. It never removes rows.
type Enricher struct{}

// NewEnricher creates an Enricher
func NewEnricher() *Enricher {
	return &Enricher{}
}

// Enrich updates records in place
func (e *Enricher) Enrich(records []activity.Record) EnrichStats {
	stats := EnrichStats{Records: len(records)}

	prices := make([]float64, len(records))
	clv := make(map[string]decimal.Decimal)
	for i := range records {
		r := &records[i]
		r.CohortDate = r.AccountCreated.Format(activity.CohortLayout)
		r.UserAgeDays = activity.AgeDays(r.AccountCreated, r.LoginTime)
		r.EngagementLevel = activity.EngagementFor(r.SessionDurationMinutes)
		prices[i] = r.Price.InexactFloat64()
		clv[r.UserID] = clv[r.UserID].Add(r.Price)
	}
	stats.Users = len(clv)

	edges, ok := activity.PriceTierEdges(prices)
	stats.PriceTierFallback = !ok
	if ok {
		stats.PriceTierEdges = edges
	}

	for i := range records {
		r := &records[i]
		if ok {
			r.PriceTier = activity.TierFor(prices[i], edges)
		} else {
			r.PriceTier = activity.FallbackPriceTier
		}
		r.CustomerLifetimeValue = clv[r.UserID]
	}
	return stats
}
