package models

import (
	"fmt"
	"strings"
)

// PlanTier is the service level of an account.
type PlanTier string

const (
	TierFree       PlanTier = "free"
	TierPro        PlanTier = "pro"
	TierEnterprise PlanTier = "enterprise"
)

// DefaultTier is assigned to newly created accounts.
const DefaultTier = TierFree

// Plan describes the limits attached to a tier.
type Plan struct {
	Tier              PlanTier
	MonthlyAllocation int64 // credits granted on every monthly refresh
	CarryoverCap      int64 // maximum unused balance kept across a refresh
	MaxKeys           int   // maximum number of active API keys
	RequestsPerMinute int
	rank              int
}

var plans = map[PlanTier]Plan{
	TierFree: {
		Tier:              TierFree,
		MonthlyAllocation: 50,
		CarryoverCap:      0,
		MaxKeys:           1,
		RequestsPerMinute: 20,
		rank:              0,
	},
	TierPro: {
		Tier:              TierPro,
		MonthlyAllocation: 1000,
		CarryoverCap:      500,
		MaxKeys:           5,
		RequestsPerMinute: 120,
		rank:              1,
	},
	TierEnterprise: {
		Tier:              TierEnterprise,
		MonthlyAllocation: 10000,
		CarryoverCap:      5000,
		MaxKeys:           25,
		RequestsPerMinute: 600,
		rank:              2,
	},
}

// ParsePlanTier validates a tier name.
func ParsePlanTier(s string) (PlanTier, error) {
	t := PlanTier(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown plan tier %q (want one of %s)", s, TierNames())
	}
	return t, nil
}

// String returns the string representation of the tier
func (t PlanTier) String() string {
	return string(t)
}

// IsValid checks if the tier is one of the known tiers
func (t PlanTier) IsValid() bool {
	_, ok := plans[t]
	return ok
}

// Plan returns the limits of the tier. Unknown tiers get the free plan.
func (t PlanTier) Plan() Plan {
	if p, ok := plans[t]; ok {
		return p
	}
	return plans[TierFree]
}

// AtLeast reports whether t is the same as or above min.
func (t PlanTier) AtLeast(min PlanTier) bool {
	if min == "" {
		return true
	}
	return t.Plan().rank >= min.Plan().rank
}

// Tiers returns all tiers from lowest to highest.
func Tiers() []PlanTier {
	return []PlanTier{TierFree, TierPro, TierEnterprise}
}

// TierNames lists the tiers from lowest to highest, comma separated.
func TierNames() string {
	tiers := Tiers()
	names := make([]string, len(tiers))
	for i, t := range tiers {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// RefreshedBalance computes the balance and carryover after a monthly refresh.
func (p Plan) RefreshedBalance(current int64) (balance, carryover int64) {
	carryover = current
	if carryover > p.CarryoverCap {
		carryover = p.CarryoverCap
	}
	if carryover < 0 {
		carryover = 0
	}
	return p.MonthlyAllocation + carryover, carryover
}
