package services

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/discovershop/adengine/internal/events"
	"github.com/discovershop/adengine/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Relevance score bounds and jitter window.
const (
	minRelevanceScore = 0.1
	maxRelevanceScore = 10.0
	jitterBase        = 0.95
	jitterSpread      = 0.1
)

type PlacementOptions struct {
	UserID                     string   `json:"user_id,omitempty"`
	SessionID                  string   `json:"session_id,omitempty"`
	Location                   string   `json:"location,omitempty"`
	Interests                  []string `json:"interests,omitempty"`
	Demographics               []string `json:"demographics,omitempty"`
	PreviouslyViewedProductIDs []string `json:"previously_viewed_product_ids,omitempty"`
	CartProductIDs             []string `json:"cart_product_ids,omitempty"`
	PurchasedProductIDs        []string `json:"purchased_product_ids,omitempty"`
	MaxAds                     int      `json:"max_ads,omitempty"`
}

type Placement struct {
	CampaignID     uuid.UUID `json:"campaign_id"`
	MerchantID     uuid.UUID `json:"merchant_id"`
	ProductIDs     []string  `json:"product_ids"`
	Type           string    `json:"type"`
	RelevanceScore float64   `json:"relevance_score"`
	IsSponsored    bool      `json:"is_sponsored"`
	ImpressionCost float64   `json:"impression_cost"`
}

type PlacementRecommendation struct {
	ProductID            string  `json:"product_id"`
	RecommendedBudget    float64 `json:"recommended_budget"`
	EstimatedImpressions int64   `json:"estimated_impressions"`
	EstimatedClicks      int64   `json:"estimated_clicks"`
	EstimatedConversions int64   `json:"estimated_conversions"`
}

// PlacementService fills sponsored slots: it ranks active campaigns by
// targeting relevance, charges the winners through the budget service and
// records post-placement clicks and conversions.
type PlacementService struct {
	store      CampaignStore
	budget     *BudgetService
	publisher  events.Publisher
	defaultMax int
	log        *zap.Logger

	// jitter returns a multiplier in [jitterBase, jitterBase+jitterSpread)
	// breaking score ties; replaced with a fixed source in tests.
	jitter func() float64
}

func NewPlacementService(
	store CampaignStore,
	budget *BudgetService,
	publisher events.Publisher,
	defaultMaxAds int,
	log *zap.Logger,
) *PlacementService {
	if defaultMaxAds <= 0 {
		defaultMaxAds = 2
	}
	return &PlacementService{
		store:      store,
		budget:     budget,
		publisher:  publisher,
		defaultMax: defaultMaxAds,
		log:        log,
		jitter: func() float64 {
			return jitterBase + rand.Float64()*jitterSpread
		},
	}
}

type scoredCampaign struct {
	campaign       *models.Campaign
	relevanceScore float64
	impressionCost float64
}

// GetAdsForDiscoveryFeed selects up to maxAds sponsored placements for one
// feed render. Every selected candidate is charged one impression; a
// candidate whose charge exhausts its budget is dropped from the result,
// so fewer than maxAds placements may come back. A failed charge skips
// only that candidate.
func (s *PlacementService) GetAdsForDiscoveryFeed(ctx context.Context, opts PlacementOptions) ([]Placement, error) {
	maxAds := opts.MaxAds
	if maxAds <= 0 {
		maxAds = s.defaultMax
	}

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return []Placement{}, nil
	}

	scored := make([]scoredCampaign, 0, len(active))
	for i := range active {
		c := &active[i]
		scored = append(scored, scoredCampaign{
			campaign:       c,
			relevanceScore: s.CalculateRelevanceScore(c, opts),
			impressionCost: s.budget.CostPerImpressionFor(c),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].relevanceScore > scored[j].relevanceScore
	})
	if len(scored) > maxAds {
		scored = scored[:maxAds]
	}

	results := make([]Placement, 0, len(scored))
	for _, sc := range scored {
		c := sc.campaign

		budgetResult, err := s.budget.RecordAdSpend(ctx, c.ID, sc.impressionCost, 1)
		if err != nil {
			s.log.Error("failed to record ad impression",
				zap.String("campaign_id", c.ID.String()), zap.Error(err))
			continue
		}

		if !budgetResult.BudgetExhausted {
			results = append(results, Placement{
				CampaignID:     c.ID,
				MerchantID:     c.MerchantID,
				ProductIDs:     c.ProductIDs,
				Type:           c.Type,
				RelevanceScore: sc.relevanceScore,
				IsSponsored:    true,
				ImpressionCost: sc.impressionCost,
			})
		}

		// The impression was charged either way, so it is always reported.
		_ = s.publisher.Publish(ctx, events.StreamAds, events.Event{
			Type: events.EventAdImpression,
			Payload: map[string]any{
				"campaign_id":     c.ID.String(),
				"merchant_id":     c.MerchantID.String(),
				"user_id":         opts.UserID,
				"session_id":      opts.SessionID,
				"timestamp":       time.Now().UTC(),
				"relevance_score": sc.relevanceScore,
				"impression_cost": sc.impressionCost,
			},
		})
	}

	return results, nil
}

// CalculateRelevanceScore combines targeting-criteria matches into a
// multiplicative score clamped to [0.1, 10.0]. Missing optional signals
// keep their neutral multiplier rather than failing.
func (s *PlacementService) CalculateRelevanceScore(campaign *models.Campaign, opts PlacementOptions) float64 {
	score := 1.0

	// Audience matching only applies to identified users.
	if campaign.TargetAudience != models.AudienceAll && opts.UserID != "" {
		switch campaign.TargetAudience {
		case models.AudiencePreviousVisitors:
			if intersects(opts.PreviouslyViewedProductIDs, campaign.ProductIDs) {
				score *= 1.5
			} else {
				score *= 0.5
			}
		case models.AudienceCartAbandoners:
			if intersects(opts.CartProductIDs, campaign.ProductIDs) {
				score *= 2.0
			} else {
				score *= 0.3
			}
		case models.AudiencePreviousCustomers:
			if intersects(opts.PurchasedProductIDs, campaign.ProductIDs) {
				score *= 1.8
			} else {
				score *= 0.4
			}
		}
	}

	if len(campaign.TargetLocations) > 0 && opts.Location != "" {
		if matchesLocation(campaign.TargetLocations, opts.Location) {
			score *= 1.2
		} else {
			score *= 0.7
		}
	}

	if len(campaign.TargetInterests) > 0 && len(opts.Interests) > 0 {
		matched := countTagMatches(campaign.TargetInterests, opts.Interests)
		if matched == 0 {
			score *= 0.6
		} else {
			matchRatio := float64(matched) / float64(len(campaign.TargetInterests))
			score *= 1 + matchRatio
		}
	}

	if len(campaign.TargetDemographics) > 0 && len(opts.Demographics) > 0 {
		matched := countTagMatches(campaign.TargetDemographics, opts.Demographics)
		if matched == 0 {
			score *= 0.8
		} else {
			matchRatio := float64(matched) / float64(len(campaign.TargetDemographics))
			score *= 1 + matchRatio*0.5
		}
	}

	score *= s.jitter()

	return math.Max(minRelevanceScore, math.Min(maxRelevanceScore, score))
}

// RecordAdClick counts a click, charges the click cost against the budget
// (without an extra impression) and publishes ad.click.
func (s *PlacementService) RecordAdClick(ctx context.Context, campaignID uuid.UUID, userID, sessionID string) error {
	u, err := s.store.AddClick(ctx, campaignID)
	if err != nil {
		return err
	}

	costPerClick, err := s.budget.CalculateCostPerClick(ctx, campaignID)
	if err != nil {
		return err
	}

	if _, err := s.budget.RecordAdSpend(ctx, campaignID, costPerClick, 0); err != nil {
		return err
	}

	_ = s.publisher.Publish(ctx, events.StreamAds, events.Event{
		Type: events.EventAdClick,
		Payload: map[string]any{
			"campaign_id":    campaignID.String(),
			"merchant_id":    u.MerchantID.String(),
			"user_id":        userID,
			"session_id":     sessionID,
			"timestamp":      time.Now().UTC(),
			"cost_per_click": costPerClick,
		},
	})

	return nil
}

// RecordAdConversion counts a conversion attributed to a campaign.
func (s *PlacementService) RecordAdConversion(ctx context.Context, campaignID uuid.UUID) error {
	return s.store.AddConversion(ctx, campaignID)
}

// GetRecommendedPlacements suggests a budget per advertised product based
// on the observed performance of the merchant's active campaigns.
func (s *PlacementService) GetRecommendedPlacements(ctx context.Context, merchantID uuid.UUID) ([]PlacementRecommendation, error) {
	campaigns, err := s.store.ListActiveByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	productOrder := []string{}
	seen := map[string]bool{}
	for i := range campaigns {
		for _, pid := range campaigns[i].ProductIDs {
			if !seen[pid] {
				seen[pid] = true
				productOrder = append(productOrder, pid)
			}
		}
	}

	pricing := s.budget.pricing
	recommendations := make([]PlacementRecommendation, 0, len(productOrder))
	for _, productID := range productOrder {
		var impressions, clicks, conversions int64
		for i := range campaigns {
			if containsString(campaigns[i].ProductIDs, productID) {
				impressions += campaigns[i].Impressions
				clicks += campaigns[i].Clicks
				conversions += campaigns[i].Conversions
			}
		}

		avgCTR := pricing.DefaultCTR
		if impressions > 0 {
			avgCTR = float64(clicks) / float64(impressions)
		}
		avgCVR := pricing.DefaultCVR
		if clicks > 0 {
			avgCVR = float64(conversions) / float64(clicks)
		}

		performanceScore := pricing.PerformanceScore(avgCTR, avgCVR)
		recommendedBudget := pricing.BaseRecommendedBudget * (1 + performanceScore*10)
		estimatedImpressions := recommendedBudget / pricing.EstimatedCostPerImpression
		estimatedClicks := estimatedImpressions * avgCTR
		estimatedConversions := estimatedClicks * avgCVR

		recommendations = append(recommendations, PlacementRecommendation{
			ProductID:            productID,
			RecommendedBudget:    math.Round(recommendedBudget*100) / 100,
			EstimatedImpressions: int64(math.Round(estimatedImpressions)),
			EstimatedClicks:      int64(math.Round(estimatedClicks)),
			EstimatedConversions: int64(math.Round(estimatedConversions)),
		})
	}

	return recommendations, nil
}

func intersects(userIDs, campaignIDs []string) bool {
	for _, id := range userIDs {
		if containsString(campaignIDs, id) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func matchesLocation(targets []string, location string) bool {
	loc := strings.ToLower(location)
	for _, t := range targets {
		if strings.Contains(loc, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// countTagMatches counts campaign tags mentioned in any of the user's
// tags, case-insensitive substring match.
func countTagMatches(campaignTags, userTags []string) int {
	matched := 0
	for _, tag := range campaignTags {
		lower := strings.ToLower(tag)
		for _, ut := range userTags {
			if strings.Contains(strings.ToLower(ut), lower) {
				matched++
				break
			}
		}
	}
	return matched
}
