package pipeline

import (
	"time"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

// BuildQualityMetrics profiles the final dataset. A cell counts as null when it
// serializes to an empty string.
func BuildQualityMetrics(runAt time.Time, records []activity.Record) activity.QualityMetrics {
	q := activity.QualityMetrics{
		RunAt:                  runAt,
		Records:                len(records),
		NullPercentage:         make(map[string]float64, len(activity.Columns)),
		DeviceTypeDistribution: make(map[string]int),
	}

	nulls := make([]int, len(activity.Columns))
	prices := make([]float64, len(records))
	sessions := make([]float64, len(records))
	for i, r := range records {
		for j, v := range r.Values() {
			if v == "" {
				nulls[j]++
			}
		}
		prices[i] = r.Price.InexactFloat64()
		sessions[i] = r.SessionDurationMinutes
		q.DeviceTypeDistribution[string(r.DeviceType)]++
	}

	for j, col := range activity.Columns {
		if len(records) == 0 {
			q.NullPercentage[col] = 0
			continue
		}
		q.NullPercentage[col] = float64(nulls[j]) / float64(len(records)) * 100
	}
	q.Price = activity.Summarize(prices)
	q.SessionDuration = activity.Summarize(sessions)
	return q
}
