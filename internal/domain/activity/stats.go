package activity

import (
	"math"
	"sort"
	"time"
)

// Quantile returns the q-th quantile of sorted values using linear interpolation
// between closest ranks. sorted must be ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// PriceTierEdges computes quartile edges q0..q4 over a batch of prices.
// It reports false when the batch has fewer than four distinct prices or the
// edges are not strictly increasing, in which case tiers cannot be assigned.
func PriceTierEdges(prices []float64) ([5]float64, bool) {
	var edges [5]float64
	if len(prices) == 0 {
		return edges, false
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	distinct := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			distinct++
		}
	}
	if distinct < 4 {
		return edges, false
	}

	for i := range edges {
		edges[i] = Quantile(sorted, float64(i)/4)
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return edges, false
		}
	}
	return edges, true
}

// TierFor places price within quartile edges
func TierFor(price float64, edges [5]float64) PriceTier {
	switch {
	case price <= edges[1]:
		return TierBudget
	case price <= edges[2]:
		return TierStandard
	case price <= edges[3]:
		return TierPremium
	default:
		return TierLuxury
	}
}

// AgeDays is the whole number of days between account creation and login.
// Missing or negative spans yield 0.
func AgeDays(created, login time.Time) int {
	if created.IsZero() || login.IsZero() {
		return 0
	}
	d := login.Sub(created)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Describe summarises a numeric column
type Describe struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	P25   float64 `json:"25%"`
	P50   float64 `json:"50%"`
	P75   float64 `json:"75%"`
	Max   float64 `json:"max"`
}

// Summarize computes count, mean, sample standard deviation, min, quartiles and max.
// Std is 0 for fewer than two values.
func Summarize(values []float64) Describe {
	if len(values) == 0 {
		return Describe{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := float64(len(sorted))
	mean := sum / n

	var std float64
	if len(sorted) > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / (n - 1))
	}

	return Describe{
		Count: len(sorted),
		Mean:  mean,
		Std:   std,
		Min:   sorted[0],
		P25:   Quantile(sorted, 0.25),
		P50:   Quantile(sorted, 0.5),
		P75:   Quantile(sorted, 0.75),
		Max:   sorted[len(sorted)-1],
	}
}

// Fields returns the summary as ordered (name, value) pairs
func (d Describe) Fields() []NamedValue {
	return []NamedValue{
		{"count", float64(d.Count)},
		{"mean", d.Mean},
		{"std", d.Std},
		{"min", d.Min},
		{"25%", d.P25},
		{"50%", d.P50},
		{"75%", d.P75},
		{"max", d.Max},
	}
}

// NamedValue is a single labelled statistic
type NamedValue struct {
	Name  string
	Value float64
}
