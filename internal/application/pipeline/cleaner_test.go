package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

func TestCleaner_Clean(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes a record", func(t *testing.T) {
		raw := rawRecord("u1", "  ada@example.com ")
		raw.PurchaseStatus = " Completed "
		raw.FirstName = "\tAda "

		out, stats, err := NewCleaner(2).Clean(ctx, []activity.RawRecord{raw})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, CleanStats{Input: 1, Output: 1}, stats)

		r := out[0]
		assert.Equal(t, "ada@example.com", r.Email)
		assert.Equal(t, "Ada", r.FirstName)
		assert.Equal(t, activity.DefaultCountry, r.Country)
		assert.Equal(t, activity.ActiveYes, r.IsActive)
		assert.Equal(t, activity.StatusCompleted, r.PurchaseStatus)
		assert.Equal(t, "txn_u1_20230301100000", r.TransactID)
		assert.Equal(t, 90.0, r.SessionDurationMinutes)
		assert.Nil(t, r.AccountDeleted)
		assert.Equal(t, activity.DeviceMobile, r.DeviceType)
		assert.Equal(t, "iOS", r.OS)
		assert.Equal(t, "Safari", r.Browser)
	})

	t.Run("unknown device is treated as desktop", func(t *testing.T) {
		raw := rawRecord("u1", "a@example.com")
		raw.UserAgent = "curl/8.4.0"

		out, _, err := NewCleaner(1).Clean(ctx, []activity.RawRecord{raw})
		require.NoError(t, err)
		assert.Equal(t, activity.DeviceDesktop, out[0].DeviceType)
		assert.Equal(t, "Other", out[0].OS)
		assert.Equal(t, "Other", out[0].Browser)
	})

	t.Run("three records sharing an email keep the first", func(t *testing.T) {
		first := rawRecord("u1", "same@example.com")
		second := rawRecord("u2", "same@example.com")
		second.Price = "20.00"
		third := rawRecord("u3", " same@example.com")
		third.ProductName = "Omega"

		out, stats, err := NewCleaner(1).Clean(ctx, []activity.RawRecord{first, second, third})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "u1", out[0].UserID)
		assert.Equal(t, 2, stats.DuplicatesRemoved)
	})

	t.Run("keeps input order", func(t *testing.T) {
		raws := []activity.RawRecord{
			rawRecord("u1", "a@example.com"),
			rawRecord("u2", "b@example.com"),
			rawRecord("u1", "a@example.com"),
			rawRecord("u3", "c@example.com"),
		}
		out, _, err := NewCleaner(3).Clean(ctx, raws)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, []string{"u1", "u2", "u3"}, []string{out[0].UserID, out[1].UserID, out[2].UserID})
	})

	t.Run("uncoercible values are dropped and counted", func(t *testing.T) {
		bad := rawRecord("u2", "b@example.com")
		bad.Price = "twelve"

		out, stats, err := NewCleaner(1).Clean(ctx, []activity.RawRecord{rawRecord("u1", "a@example.com"), bad})
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Equal(t, 1, stats.Uncoercible)
	})

	t.Run("deleted accounts keep their deletion time", func(t *testing.T) {
		raw := rawRecord("u1", "a@example.com")
		raw.IsActive = "0"
		raw.AccountDeleted = "2023-01-01T00:00:00"

		out, _, err := NewCleaner(1).Clean(ctx, []activity.RawRecord{raw})
		require.NoError(t, err)
		require.NotNil(t, out[0].AccountDeleted)
		assert.Equal(t, activity.ActiveNo, out[0].IsActive)
		assert.True(t, out[0].AccountDeleted.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("does not modify the input", func(t *testing.T) {
		raws := []activity.RawRecord{rawRecord("u1", " a@example.com ")}
		_, _, err := NewCleaner(1).Clean(ctx, raws)
		require.NoError(t, err)
		assert.Equal(t, " a@example.com ", raws[0].Email)
	})

	t.Run("worker count does not change the output", func(t *testing.T) {
		uas := []string{iphoneUA, "curl/8.4.0", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0 Safari/537.36",
			"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) Safari/604.1", "Googlebot/2.1"}
		raws := make([]activity.RawRecord, 57)
		for i := range raws {
			raws[i] = rawRecord(fmt.Sprintf("u%d", i), fmt.Sprintf("user%d@example.com", i))
			raws[i].UserAgent = uas[i%len(uas)]
		}

		serial, _, err := NewCleaner(1).Clean(ctx, raws)
		require.NoError(t, err)
		parallel, _, err := NewCleaner(8).Clean(ctx, raws)
		require.NoError(t, err)
		assert.Equal(t, serial, parallel)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := NewCleaner(2).Clean(cctx, []activity.RawRecord{rawRecord("u1", "a@example.com")})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCleaner_Idempotent(t *testing.T) {
	ctx := context.Background()
	raws := []activity.RawRecord{
		rawRecord("u1", "a@example.com"),
		rawRecord("u2", "b@example.com"),
		rawRecord("u3", "a@example.com"),
		rawRecord("u4", " c@example.com"),
	}

	cleaner := NewCleaner(2)
	first, stats, err := cleaner.Clean(ctx, raws)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DuplicatesRemoved)
	NewEnricher().Enrich(first)

	again := make([]activity.RawRecord, len(first))
	validator := activity.NewValidator(activity.DefaultValidStatuses)
	for i, r := range first {
		again[i] = r.Raw()
		assert.Equal(t, activity.ViolationNone, validator.Check(again[i]))
	}

	second, stats, err := cleaner.Clean(ctx, again)
	require.NoError(t, err)
	assert.Zero(t, stats.DuplicatesRemoved)
	assert.Zero(t, stats.Uncoercible)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].TransactID, second[i].TransactID)
		assert.Equal(t, first[i].Email, second[i].Email)
		assert.Equal(t, first[i].DeviceType, second[i].DeviceType)
		assert.True(t, first[i].Price.Equal(second[i].Price))
	}
}
