package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

func TestIsSubscriptionValid(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	end := now.Add(-36 * time.Hour)
	future := now.Add(10 * 24 * time.Hour)

	tests := []struct {
		name string
		sub  *types.Subscription
		want bool
	}{
		{"no subscription record", nil, false},
		{
			"active within period",
			&types.Subscription{Status: types.SubStatusActive, CurrentPeriodEnd: &future},
			true,
		},
		{
			"active with no period end",
			&types.Subscription{Status: types.SubStatusActive},
			true,
		},
		{
			"active past grace window",
			&types.Subscription{Status: types.SubStatusActive, CurrentPeriodEnd: &end},
			false,
		},
		{
			"past_due is never valid",
			&types.Subscription{Status: types.SubStatusPastDue, CurrentPeriodEnd: &future},
			false,
		},
		{
			"cancelled is never valid",
			&types.Subscription{Status: types.SubStatusCancelled, CurrentPeriodEnd: &future},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSubscriptionValid(tt.sub, now))
		})
	}
}

func TestIsSubscriptionValid_GraceBoundary(t *testing.T) {
	end := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	sub := &types.Subscription{Status: types.SubStatusActive, CurrentPeriodEnd: &end}

	// Exactly at the grace boundary the subscription still counts.
	assert.True(t, IsSubscriptionValid(sub, end.Add(GracePeriod)))
	assert.False(t, IsSubscriptionValid(sub, end.Add(GracePeriod+time.Second)))

	// Between period end and the boundary, latency is absorbed.
	assert.True(t, IsSubscriptionValid(sub, end.Add(12*time.Hour)))
}
