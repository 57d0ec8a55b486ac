package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

func TestBuildQualityMetrics(t *testing.T) {
	runAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	deleted := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	a := priced("u1", "100")
	a.DeviceType = activity.DeviceMobile
	a.SessionDurationMinutes = 30
	b := priced("u2", "300")
	b.DeviceType = activity.DeviceDesktop
	b.AccountDeleted = &deleted
	b.SessionDurationMinutes = 90
	c := priced("u3", "200")
	c.DeviceType = activity.DeviceMobile
	c.SessionDurationMinutes = 60

	q := BuildQualityMetrics(runAt, []activity.Record{a, b, c})

	assert.Equal(t, runAt, q.RunAt)
	assert.Equal(t, 3, q.Records)
	assert.Len(t, q.NullPercentage, len(activity.Columns))
	assert.InDelta(t, 200.0/3, q.NullPercentage["account_deleted"], 1e-9)
	assert.Zero(t, q.NullPercentage["user_id"])
	assert.Equal(t, map[string]int{"Mobile": 2, "Desktop": 1}, q.DeviceTypeDistribution)

	assert.Equal(t, 3, q.Price.Count)
	assert.InDelta(t, 200, q.Price.Mean, 1e-9)
	assert.InDelta(t, 100, q.Price.Min, 1e-9)
	assert.InDelta(t, 300, q.Price.Max, 1e-9)
	assert.InDelta(t, 60, q.SessionDuration.P50, 1e-9)
}

func TestBuildQualityMetrics_Empty(t *testing.T) {
	q := BuildQualityMetrics(time.Time{}, nil)
	assert.Zero(t, q.Records)
	assert.Zero(t, q.NullPercentage["email"])
	assert.Zero(t, q.Price.Count)
	assert.Empty(t, q.DeviceTypeDistribution)
}
