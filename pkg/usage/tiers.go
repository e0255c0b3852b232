package usage

// TierLimitTable maps subscription tiers to per-resource monthly ceilings.
// The table is built once at process start and never mutated afterwards;
// lookups are read-only and safe for concurrent use.
type TierLimitTable struct {
	limits map[Tier]map[LimitKey]int64
}

// DefaultTierLimits returns the built-in tier limit table.
//
// Ceilings:
//
//	trial:        5 uploads, 1000 rows, 10 analyses, 50 chat messages,
//	              100K AI tokens, 3 mapping profiles
//	pilot:        50 uploads, 50K rows, 100 analyses, 500 chat messages,
//	              1M AI tokens, 20 mapping profiles
//	subscription: unlimited across all dimensions
func DefaultTierLimits() *TierLimitTable {
	return &TierLimitTable{
		limits: map[Tier]map[LimitKey]int64{
			TierTrial: {
				LimitCSVUploads:      5,
				LimitCSVRows:         1000,
				LimitAnalyses:        10,
				LimitChatMessages:    50,
				LimitAITokens:        100000,
				LimitMappingProfiles: 3,
			},
			TierPilot: {
				LimitCSVUploads:      50,
				LimitCSVRows:         50000,
				LimitAnalyses:        100,
				LimitChatMessages:    500,
				LimitAITokens:        1000000,
				LimitMappingProfiles: 20,
			},
			TierSubscription: {
				LimitCSVUploads:      Unlimited,
				LimitCSVRows:         Unlimited,
				LimitAnalyses:        Unlimited,
				LimitChatMessages:    Unlimited,
				LimitAITokens:        Unlimited,
				LimitMappingProfiles: Unlimited,
			},
		},
	}
}

// NewTierLimitTable builds a table from the default ceilings with the given
// per-tier overrides applied on top. Overrides for unknown tiers or keys are
// ignored; a nil or empty override map yields the defaults unchanged.
func NewTierLimitTable(overrides map[Tier]map[LimitKey]int64) *TierLimitTable {
	table := DefaultTierLimits()
	for tier, keys := range overrides {
		base, ok := table.limits[tier]
		if !ok {
			continue
		}
		for key, ceiling := range keys {
			if _, ok := base[key]; ok {
				base[key] = ceiling
			}
		}
	}
	return table
}

// LimitFor returns the monthly ceiling for a tier and limit key.
//
// An unknown tier falls back to pilot's ceilings rather than trial's: a bad
// tier value on a customer record should never silently shrink a paying
// customer's quota. An unknown key is treated as unregulated (Unlimited).
func (t *TierLimitTable) LimitFor(tier Tier, key LimitKey) int64 {
	limits, ok := t.limits[tier]
	if !ok {
		limits = t.limits[TierPilot]
	}
	ceiling, ok := limits[key]
	if !ok {
		return Unlimited
	}
	return ceiling
}

// Limits returns a copy of the full ceiling map for a tier, with the same
// unknown-tier fallback as LimitFor. Used by the usage limits endpoint.
func (t *TierLimitTable) Limits(tier Tier) map[LimitKey]int64 {
	limits, ok := t.limits[tier]
	if !ok {
		limits = t.limits[TierPilot]
	}
	out := make(map[LimitKey]int64, len(limits))
	for key, ceiling := range limits {
		out[key] = ceiling
	}
	return out
}
