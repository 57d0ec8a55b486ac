package activity

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 1.75, Quantile(sorted, 0.25))
	assert.Equal(t, 2.5, Quantile(sorted, 0.5))
	assert.Equal(t, 3.25, Quantile(sorted, 0.75))
	assert.Equal(t, 4.0, Quantile(sorted, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.5))
}

func TestPriceTierEdges(t *testing.T) {
	t.Run("distinct prices", func(t *testing.T) {
		edges, ok := PriceTierEdges([]float64{400, 100, 300, 200, 500})
		require.True(t, ok)
		assert.Equal(t, [5]float64{100, 200, 300, 400, 500}, edges)

		assert.Equal(t, TierBudget, TierFor(100, edges))
		assert.Equal(t, TierBudget, TierFor(200, edges))
		assert.Equal(t, TierStandard, TierFor(300, edges))
		assert.Equal(t, TierPremium, TierFor(400, edges))
		assert.Equal(t, TierLuxury, TierFor(500, edges))
	})

	t.Run("all identical prices", func(t *testing.T) {
		_, ok := PriceTierEdges([]float64{50, 50, 50, 50, 50})
		assert.False(t, ok)
	})

	t.Run("three distinct prices", func(t *testing.T) {
		_, ok := PriceTierEdges([]float64{1, 2, 3, 3, 3})
		assert.False(t, ok)
	})

	t.Run("edges collapse on heavy ties", func(t *testing.T) {
		prices := []float64{1, 2, 3, 4}
		for i := 0; i < 20; i++ {
			prices = append(prices, 10)
		}
		_, ok := PriceTierEdges(prices)
		assert.False(t, ok)
	})

	t.Run("empty batch", func(t *testing.T) {
		_, ok := PriceTierEdges(nil)
		assert.False(t, ok)
	})
}

func TestEngagementFor(t *testing.T) {
	assert.Equal(t, EngagementVeryLow, EngagementFor(0))
	assert.Equal(t, EngagementVeryLow, EngagementFor(29.99))
	assert.Equal(t, EngagementLow, EngagementFor(30))
	assert.Equal(t, EngagementMedium, EngagementFor(60))
	assert.Equal(t, EngagementMedium, EngagementFor(119.5))
	assert.Equal(t, EngagementHigh, EngagementFor(120))
	assert.Equal(t, EngagementHigh, EngagementFor(240))
	assert.Equal(t, EngagementVeryLow, EngagementFor(-3))
	assert.Equal(t, EngagementVeryLow, EngagementFor(math.NaN()))
}

func TestAgeDays(t *testing.T) {
	created := time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, AgeDays(created, created))
	assert.Equal(t, 0, AgeDays(created, created.Add(23*time.Hour)))
	assert.Equal(t, 1, AgeDays(created, created.Add(25*time.Hour)))
	assert.Equal(t, 0, AgeDays(created, created.Add(-48*time.Hour)))
	assert.Equal(t, 0, AgeDays(time.Time{}, created))
}

func TestSummarize(t *testing.T) {
	d := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, d.Count)
	assert.Equal(t, 5.0, d.Mean)
	assert.InDelta(t, 2.138, d.Std, 0.001)
	assert.Equal(t, 2.0, d.Min)
	assert.Equal(t, 4.0, d.P25)
	assert.Equal(t, 4.5, d.P50)
	assert.Equal(t, 5.5, d.P75)
	assert.Equal(t, 9.0, d.Max)
	assert.Len(t, d.Fields(), 8)

	single := Summarize([]float64{3})
	assert.Equal(t, 0.0, single.Std)
	assert.Equal(t, Describe{}, Summarize(nil))
}
