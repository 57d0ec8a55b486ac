package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

func priced(userID, price string) activity.Record {
	created := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	login := time.Date(2023, 3, 1, 10, 0, 0, 0, time.UTC)
	return activity.Record{
		UserID:                 userID,
		AccountCreated:         created,
		LoginTime:              login,
		LogoutTime:             login.Add(90 * time.Minute),
		SessionDurationMinutes: 90,
		Price:                  decimal.RequireFromString(price),
	}
}

func TestEnricher_DerivedFields(t *testing.T) {
	records := []activity.Record{priced("u1", "100")}
	records[0].SessionDurationMinutes = 29.99

	NewEnricher().Enrich(records)

	r := records[0]
	assert.Equal(t, "2022-01", r.CohortDate)
	assert.Equal(t, 424, r.UserAgeDays)
	assert.Equal(t, activity.EngagementVeryLow, r.EngagementLevel)
}

func TestEnricher_AgeNeverNegative(t *testing.T) {
	r := priced("u1", "100")
	r.LoginTime = r.AccountCreated.Add(-time.Hour)
	records := []activity.Record{r}

	NewEnricher().Enrich(records)
	assert.Zero(t, records[0].UserAgeDays)
}

func TestEnricher_PriceTiers(t *testing.T) {
	records := []activity.Record{
		priced("u1", "300"),
		priced("u2", "100"),
		priced("u3", "500"),
		priced("u4", "200"),
		priced("u5", "400"),
	}

	stats := NewEnricher().Enrich(records)
	require.False(t, stats.PriceTierFallback)
	assert.Equal(t, [5]float64{100, 200, 300, 400, 500}, stats.PriceTierEdges)

	got := map[string]activity.PriceTier{}
	for _, r := range records {
		got[r.UserID] = r.PriceTier
	}
	assert.Equal(t, map[string]activity.PriceTier{
		"u2": activity.TierBudget,
		"u4": activity.TierBudget,
		"u1": activity.TierStandard,
		"u5": activity.TierPremium,
		"u3": activity.TierLuxury,
	}, got)
}

func TestEnricher_PriceTierFallback(t *testing.T) {
	records := []activity.Record{
		priced("u1", "100"),
		priced("u2", "100"),
		priced("u3", "200"),
		priced("u4", "300"),
	}

	stats := NewEnricher().Enrich(records)
	assert.True(t, stats.PriceTierFallback)
	for _, r := range records {
		assert.Equal(t, activity.FallbackPriceTier, r.PriceTier)
	}
	assert.Len(t, records, 4)
}

func TestEnricher_CustomerLifetimeValue(t *testing.T) {
	records := []activity.Record{
		priced("u1", "0.10"),
		priced("u2", "5"),
		priced("u1", "0.20"),
	}

	stats := NewEnricher().Enrich(records)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, "0.3", records[0].CustomerLifetimeValue.String())
	assert.Equal(t, "0.3", records[2].CustomerLifetimeValue.String())
	assert.Equal(t, "5", records[1].CustomerLifetimeValue.String())
}

func TestEnricher_Empty(t *testing.T) {
	stats := NewEnricher().Enrich(nil)
	assert.Equal(t, EnrichStats{PriceTierFallback: true}, stats)
}
