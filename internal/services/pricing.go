package services

import "github.com/discovershop/adengine/internal/config"

// PricingModel bundles the heuristic constants used for impression and
// click pricing so they can be tuned per deployment instead of living
// inline in the pacing code.
type PricingModel struct {
	TargetClicks               int
	AssumedCTR                 float64
	FallbackClickEstimate      int
	DefaultDurationDays        int
	BaseRecommendedBudget      float64
	EstimatedCostPerImpression float64
	DefaultCTR                 float64
	DefaultCVR                 float64
	CTRWeight                  float64
	CVRWeight                  float64
}

func NewPricingModel(cfg *config.Config) PricingModel {
	return PricingModel{
		TargetClicks:               cfg.TargetClicks,
		AssumedCTR:                 cfg.AssumedCTR,
		FallbackClickEstimate:      cfg.FallbackClickEstimate,
		DefaultDurationDays:        cfg.DefaultDurationDays,
		BaseRecommendedBudget:      cfg.BaseRecommendedBudget,
		EstimatedCostPerImpression: cfg.EstimatedCostPerImpression,
		DefaultCTR:                 cfg.DefaultCTR,
		DefaultCVR:                 cfg.DefaultCVR,
		CTRWeight:                  cfg.CTRWeight,
		CVRWeight:                  cfg.CVRWeight,
	}
}

// DefaultPricingModel returns the stock pricing constants: 100 target
// clicks at an assumed 0.1% CTR, so 100,000 target impressions.
func DefaultPricingModel() PricingModel {
	return PricingModel{
		TargetClicks:               100,
		AssumedCTR:                 0.001,
		FallbackClickEstimate:      100,
		DefaultDurationDays:        30,
		BaseRecommendedBudget:      100,
		EstimatedCostPerImpression: 0.01,
		DefaultCTR:                 0.01,
		DefaultCVR:                 0.02,
		CTRWeight:                  0.6,
		CVRWeight:                  0.4,
	}
}

// TargetImpressions is the impression volume a campaign budget is spread
// over when pricing a single impression.
func (p PricingModel) TargetImpressions() float64 {
	return float64(p.TargetClicks) / p.AssumedCTR
}

// PerformanceScore blends CTR and CVR into a single weight used for
// budget recommendations.
func (p PricingModel) PerformanceScore(ctr, cvr float64) float64 {
	return ctr*p.CTRWeight + cvr*p.CVRWeight
}
