package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanTier(t *testing.T) {
	for _, tier := range Tiers() {
		got, err := ParsePlanTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, got)
	}

	_, err := ParsePlanTier("platinum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "free, pro, enterprise")
}

func TestPlanTier_AtLeast(t *testing.T) {
	assert.True(t, TierFree.AtLeast(""))
	assert.True(t, TierPro.AtLeast(TierFree))
	assert.True(t, TierPro.AtLeast(TierPro))
	assert.True(t, TierEnterprise.AtLeast(TierPro))
	assert.False(t, TierFree.AtLeast(TierPro))
	assert.False(t, TierPro.AtLeast(TierEnterprise))
}

func TestPlan_RefreshedBalance(t *testing.T) {
	tests := []struct {
		name          string
		tier          PlanTier
		current       int64
		wantBalance   int64
		wantCarryover int64
	}{
		{"free never carries over", TierFree, 40, 50, 0},
		{"pro below cap", TierPro, 200, 1200, 200},
		{"pro capped", TierPro, 900, 1500, 500},
		{"enterprise empty", TierEnterprise, 0, 10000, 0},
		{"negative treated as zero", TierPro, -5, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := tt.tier.Plan()
			balance, carryover := plan.RefreshedBalance(tt.current)
			assert.Equal(t, tt.wantBalance, balance)
			assert.Equal(t, tt.wantCarryover, carryover)
			assert.GreaterOrEqual(t, balance, plan.MonthlyAllocation)
			assert.LessOrEqual(t, carryover, plan.CarryoverCap)
		})
	}
}

func TestAccount_NeedsRefresh(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

	acct := NewAccount("dev@example.com", time.Date(2026, time.February, 27, 0, 0, 0, 0, time.UTC))
	assert.True(t, acct.NeedsRefresh(now))

	acct.RefreshedAt = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, acct.NeedsRefresh(now))
}

func TestNewAccount(t *testing.T) {
	acct := NewAccount("dev@example.com", time.Now())
	assert.Equal(t, TierFree, acct.Tier)
	assert.Equal(t, TierFree.Plan().MonthlyAllocation, acct.Balance)
	assert.True(t, acct.CanAfford(acct.Balance))
	assert.False(t, acct.CanAfford(acct.Balance+1))
}
