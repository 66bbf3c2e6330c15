package model

// ScoringConfig collects every scoring constant in one versioned structure
// so behavior changes are auditable and testable apart from the algorithms
// that consume them.
type ScoringConfig struct {
	Version string

	// Engagement score: per-channel weights summed over the recent window,
	// adjusted by outcome, clamped to [0,100].
	EngagementWeights     map[TouchpointChannel]int
	PositiveOutcomeBonus  int
	NegativeOutcomeDelta  int
	EngagementWindowDays  int

	// Lifetime value projection horizon in months.
	CLVHorizonMonths int

	// Churn risk day thresholds since the last order.
	ChurnLowMaxDays    int
	ChurnMediumMaxDays int

	// Loyalty tier score = spent*SpentWeight + orders*OrderWeight + points.
	TierSpentWeight     float64
	TierOrderWeight     float64
	TierSilverMinScore  float64
	TierGoldMinScore    float64
	TierPlatinumMin     float64

	// Advocacy stage gates.
	AdvocacyMinOrders int
	AdvocacyMinNPS    int

	// Product trending = ViewsWeight*views + ConversionWeight*100*conv + RatingWeight*rating.
	TrendingViewsWeight      float64
	TrendingConversionWeight float64
	TrendingRatingWeight     float64

	// Recommendation ranking.
	RecoTagMatchWeight   float64
	RecoPriceAffinity    float64
	RecoPriceWindow      float64
	RecoFavoriteVendor   float64
	RecoTrendingWeight   float64
	RecoLimit            int

	// Auto-tagging on purchase.
	PurchaseAutoTagLimit int
}

// DefaultScoring returns the v1 constants the reference behavior is
// specified against.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		Version: "v1",
		EngagementWeights: map[TouchpointChannel]int{
			ChannelPurchase: 10,
			ChannelStore:    8,
			ChannelQR:       5,
			ChannelSupport:  4,
			ChannelEmail:    3,
			ChannelWebsite:  2,
		},
		PositiveOutcomeBonus: 2,
		NegativeOutcomeDelta: -1,
		EngagementWindowDays: 30,

		CLVHorizonMonths: 24,

		ChurnLowMaxDays:    30,
		ChurnMediumMaxDays: 60,

		TierSpentWeight:    0.5,
		TierOrderWeight:    10,
		TierSilverMinScore: 1000,
		TierGoldMinScore:   5000,
		TierPlatinumMin:    10000,

		AdvocacyMinOrders: 6,
		AdvocacyMinNPS:    9,

		TrendingViewsWeight:      0.4,
		TrendingConversionWeight: 0.4,
		TrendingRatingWeight:     0.2,

		RecoTagMatchWeight: 10,
		RecoPriceAffinity:  5,
		RecoPriceWindow:    20,
		RecoFavoriteVendor: 15,
		RecoTrendingWeight: 0.1,
		RecoLimit:          10,

		PurchaseAutoTagLimit: 5,
	}
}
