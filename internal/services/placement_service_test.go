package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/discovershop/adengine/internal/events"
	"github.com/discovershop/adengine/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlacementFixture(campaigns ...*models.Campaign) (*PlacementService, *fakeStore, *fakePublisher) {
	store := newFakeStore(campaigns...)
	budget, pub, _ := newTestBudgetService(store)
	svc := newTestPlacementService(store, budget, pub)
	return svc, store, pub
}

func TestCalculateRelevanceScoreMultipliers(t *testing.T) {
	svc, _, _ := newPlacementFixture()

	base := func() *models.Campaign {
		c := activeCampaign(uuid.New(), 100)
		c.ProductIDs = []string{"p1", "p2"}
		return c
	}

	tests := []struct {
		name     string
		campaign func() *models.Campaign
		opts     PlacementOptions
		want     float64
	}{
		{
			name:     "no targeting, anonymous user",
			campaign: base,
			opts:     PlacementOptions{},
			want:     1.0,
		},
		{
			name: "previous visitors matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetAudience = models.AudiencePreviousVisitors
				return c
			},
			opts: PlacementOptions{UserID: "u1", PreviouslyViewedProductIDs: []string{"p2"}},
			want: 1.5,
		},
		{
			name: "previous visitors not matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetAudience = models.AudiencePreviousVisitors
				return c
			},
			opts: PlacementOptions{UserID: "u1", PreviouslyViewedProductIDs: []string{"p9"}},
			want: 0.5,
		},
		{
			name: "cart abandoners matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetAudience = models.AudienceCartAbandoners
				return c
			},
			opts: PlacementOptions{UserID: "u1", CartProductIDs: []string{"p1"}},
			want: 2.0,
		},
		{
			name: "cart abandoners not matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetAudience = models.AudienceCartAbandoners
				return c
			},
			opts: PlacementOptions{UserID: "u1"},
			want: 0.3,
		},
		{
			name: "previous customers matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetAudience = models.AudiencePreviousCustomers
				return c
			},
			opts: PlacementOptions{UserID: "u1", PurchasedProductIDs: []string{"p1"}},
			want: 1.8,
		},
		{
			name: "audience targeting skipped for anonymous user",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetAudience = models.AudienceCartAbandoners
				return c
			},
			opts: PlacementOptions{},
			want: 1.0,
		},
		{
			name: "location matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetLocations = []string{"Berlin"}
				return c
			},
			opts: PlacementOptions{Location: "berlin, germany"},
			want: 1.2,
		},
		{
			name: "location not matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetLocations = []string{"Berlin"}
				return c
			},
			opts: PlacementOptions{Location: "Paris"},
			want: 0.7,
		},
		{
			name: "half of interests matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetInterests = []string{"running", "cycling"}
				return c
			},
			opts: PlacementOptions{Interests: []string{"trail running"}},
			want: 1.5, // 1 + 1/2
		},
		{
			name: "no interests matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetInterests = []string{"running"}
				return c
			},
			opts: PlacementOptions{Interests: []string{"chess"}},
			want: 0.6,
		},
		{
			name: "all demographics matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetDemographics = []string{"25-34"}
				return c
			},
			opts: PlacementOptions{Demographics: []string{"25-34"}},
			want: 1.5, // 1 + 1*0.5
		},
		{
			name: "no demographics matched",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetDemographics = []string{"25-34"}
				return c
			},
			opts: PlacementOptions{Demographics: []string{"45-54"}},
			want: 0.8,
		},
		{
			name: "multipliers combine",
			campaign: func() *models.Campaign {
				c := base()
				c.TargetAudience = models.AudienceCartAbandoners
				c.TargetLocations = []string{"Berlin"}
				return c
			},
			opts: PlacementOptions{UserID: "u1", CartProductIDs: []string{"p1"}, Location: "Berlin"},
			want: 2.4, // 2.0 * 1.2
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.CalculateRelevanceScore(tt.campaign(), tt.opts)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculateRelevanceScoreClamped(t *testing.T) {
	svc, _, _ := newPlacementFixture()

	// Every signal mismatched: 0.3 * 0.7 * 0.6 * 0.8 = 0.1008, then the low
	// clamp guards against anything smaller.
	weak := activeCampaign(uuid.New(), 100)
	weak.TargetAudience = models.AudienceCartAbandoners
	weak.TargetLocations = []string{"Berlin"}
	weak.TargetInterests = []string{"running"}
	weak.TargetDemographics = []string{"25-34"}

	opts := PlacementOptions{
		UserID:       "u1",
		Location:     "Paris",
		Interests:    []string{"chess"},
		Demographics: []string{"45-54"},
	}
	score := svc.CalculateRelevanceScore(weak, opts)
	assert.GreaterOrEqual(t, score, minRelevanceScore)
	assert.LessOrEqual(t, score, maxRelevanceScore)

	svc.jitter = func() float64 { return 0.5 }
	score = svc.CalculateRelevanceScore(weak, opts)
	assert.Equal(t, minRelevanceScore, score)

	// Upper clamp with an absurd jitter.
	strong := activeCampaign(uuid.New(), 100)
	svc.jitter = func() float64 { return 100.0 }
	score = svc.CalculateRelevanceScore(strong, PlacementOptions{})
	assert.Equal(t, maxRelevanceScore, score)
}

func TestGetAdsForDiscoveryFeedRanking(t *testing.T) {
	merchantID := uuid.New()
	matched := activeCampaign(merchantID, 100)
	matched.ProductIDs = []string{"p1"}
	matched.TargetAudience = models.AudienceCartAbandoners
	unmatched := activeCampaign(merchantID, 100)
	unmatched.ProductIDs = []string{"p2"}
	unmatched.TargetAudience = models.AudienceCartAbandoners

	svc, store, pub := newPlacementFixture(matched, unmatched)

	placements, err := svc.GetAdsForDiscoveryFeed(context.Background(), PlacementOptions{
		UserID:         "u1",
		CartProductIDs: []string{"p1"},
		MaxAds:         1,
	})
	require.NoError(t, err)
	require.Len(t, placements, 1)

	got := placements[0]
	assert.Equal(t, matched.ID, got.CampaignID)
	assert.True(t, got.IsSponsored)
	assert.InDelta(t, 2.0, got.RelevanceScore, 1e-9)
	assert.InDelta(t, 100.0/100000.0, got.ImpressionCost, 1e-12)

	// Only the winner was charged.
	assert.Equal(t, int64(1), store.campaigns[matched.ID].Impressions)
	assert.InDelta(t, got.ImpressionCost, store.campaigns[matched.ID].Spent, 1e-12)
	assert.Equal(t, int64(0), store.campaigns[unmatched.ID].Impressions)

	impressions := pub.byType(events.EventAdImpression)
	require.Len(t, impressions, 1)
	assert.Equal(t, matched.ID.String(), impressions[0].Payload["campaign_id"])
	assert.Equal(t, "u1", impressions[0].Payload["user_id"])
}

func TestGetAdsForDiscoveryFeedNoActiveCampaigns(t *testing.T) {
	draft := activeCampaign(uuid.New(), 100)
	draft.Status = models.CampaignStatusDraft
	svc, _, pub := newPlacementFixture(draft)

	placements, err := svc.GetAdsForDiscoveryFeed(context.Background(), PlacementOptions{})
	require.NoError(t, err)
	assert.Empty(t, placements)
	assert.Empty(t, pub.events)
}

func TestGetAdsForDiscoveryFeedExhaustedWinnerDropped(t *testing.T) {
	// Budget so small the impression charge exhausts it.
	c := activeCampaign(uuid.New(), 0.0005)
	c.Spent = 0.0005
	svc, store, pub := newPlacementFixture(c)

	placements, err := svc.GetAdsForDiscoveryFeed(context.Background(), PlacementOptions{MaxAds: 1})
	require.NoError(t, err)
	assert.Empty(t, placements)

	// The charge still happened and is still reported.
	assert.Equal(t, int64(1), store.campaigns[c.ID].Impressions)
	assert.Len(t, pub.byType(events.EventAdImpression), 1)
	assert.Len(t, pub.byType(events.EventBudgetExhausted), 1)
	assert.Equal(t, models.CampaignStatusPaused, store.campaigns[c.ID].Status)
}

func TestGetAdsForDiscoveryFeedChargeFailureSkipsCandidate(t *testing.T) {
	merchantID := uuid.New()
	broken := activeCampaign(merchantID, 100)
	broken.ProductIDs = []string{"p1"}
	healthy := activeCampaign(merchantID, 100)
	healthy.ProductIDs = []string{"p2"}

	svc, store, pub := newPlacementFixture(broken, healthy)
	store.addSpendErr = map[uuid.UUID]error{broken.ID: errors.New("connection reset")}

	placements, err := svc.GetAdsForDiscoveryFeed(context.Background(), PlacementOptions{MaxAds: 2})
	require.NoError(t, err)
	require.Len(t, placements, 1)
	assert.Equal(t, healthy.ID, placements[0].CampaignID)

	// The failed candidate was neither charged nor reported.
	assert.Equal(t, int64(0), store.campaigns[broken.ID].Impressions)
	assert.Equal(t, int64(1), store.campaigns[healthy.ID].Impressions)

	impressions := pub.byType(events.EventAdImpression)
	require.Len(t, impressions, 1)
	assert.Equal(t, healthy.ID.String(), impressions[0].Payload["campaign_id"])
}

func TestGetAdsForDiscoveryFeedDefaultMaxAds(t *testing.T) {
	merchantID := uuid.New()
	a := activeCampaign(merchantID, 100)
	b := activeCampaign(merchantID, 100)
	c := activeCampaign(merchantID, 100)
	svc, _, _ := newPlacementFixture(a, b, c)

	placements, err := svc.GetAdsForDiscoveryFeed(context.Background(), PlacementOptions{})
	require.NoError(t, err)
	assert.Len(t, placements, 2)
}

func TestRecordAdClick(t *testing.T) {
	c := activeCampaign(uuid.New(), 100)
	c.Impressions = 100
	c.Spent = 5
	svc, store, pub := newPlacementFixture(c)

	err := svc.RecordAdClick(context.Background(), c.ID, "u1", "s1")
	require.NoError(t, err)

	got := store.campaigns[c.ID]
	assert.Equal(t, int64(1), got.Clicks)
	assert.InDelta(t, 0.01, got.ClickThroughRate, 1e-9)
	// First click: observed cost is spend per click after the increment, 5 / 1.
	assert.InDelta(t, 10.0, got.Spent, 1e-9)
	// The click charge must not inflate the impression count.
	assert.Equal(t, int64(100), got.Impressions)

	clicks := pub.byType(events.EventAdClick)
	require.Len(t, clicks, 1)
	assert.Equal(t, c.ID.String(), clicks[0].Payload["campaign_id"])
	assert.InDelta(t, 5.0, clicks[0].Payload["cost_per_click"].(float64), 1e-9)
}

func TestRecordAdClickObservedCost(t *testing.T) {
	c := activeCampaign(uuid.New(), 100)
	c.Impressions = 1000
	c.Clicks = 9
	c.Spent = 18
	svc, store, _ := newPlacementFixture(c)

	err := svc.RecordAdClick(context.Background(), c.ID, "u1", "s1")
	require.NoError(t, err)

	got := store.campaigns[c.ID]
	assert.Equal(t, int64(10), got.Clicks)
	// Cost is observed spend per click after the increment: 18 / 10.
	assert.InDelta(t, 18.0+1.8, got.Spent, 1e-9)
}

func TestRecordAdClickNotFound(t *testing.T) {
	svc, _, _ := newPlacementFixture()
	err := svc.RecordAdClick(context.Background(), uuid.New(), "u1", "s1")
	assert.Error(t, err)
}

func TestRecordAdConversion(t *testing.T) {
	c := activeCampaign(uuid.New(), 100)
	c.Clicks = 4
	svc, store, _ := newPlacementFixture(c)

	require.NoError(t, svc.RecordAdConversion(context.Background(), c.ID))
	got := store.campaigns[c.ID]
	assert.Equal(t, int64(1), got.Conversions)
	assert.InDelta(t, 0.25, got.ConversionRate, 1e-9)
}

func TestGetRecommendedPlacementsDefaults(t *testing.T) {
	merchantID := uuid.New()
	c := activeCampaign(merchantID, 100)
	c.ProductIDs = []string{"p1"}
	svc, _, _ := newPlacementFixture(c)

	recs, err := svc.GetRecommendedPlacements(context.Background(), merchantID)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// No history: defaults CTR 0.01 and CVR 0.02 give a performance score
	// of 0.6*0.01 + 0.4*0.02 = 0.014.
	rec := recs[0]
	assert.Equal(t, "p1", rec.ProductID)
	assert.InDelta(t, 114.0, rec.RecommendedBudget, 1e-9)
	assert.Equal(t, int64(11400), rec.EstimatedImpressions)
	assert.Equal(t, int64(114), rec.EstimatedClicks)
	assert.Equal(t, int64(2), rec.EstimatedConversions)
}

func TestGetRecommendedPlacementsAggregatesAcrossCampaigns(t *testing.T) {
	merchantID := uuid.New()
	a := activeCampaign(merchantID, 100)
	a.ProductIDs = []string{"p1"}
	a.Impressions = 1000
	a.Clicks = 10
	a.Conversions = 1
	b := activeCampaign(merchantID, 100)
	b.ProductIDs = []string{"p1", "p2"}
	b.Impressions = 1000
	b.Clicks = 30
	b.Conversions = 3
	svc, _, _ := newPlacementFixture(a, b)

	recs, err := svc.GetRecommendedPlacements(context.Background(), merchantID)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byProduct := map[string]PlacementRecommendation{}
	for _, r := range recs {
		byProduct[r.ProductID] = r
	}

	// p1 pools both campaigns: CTR 40/2000 = 0.02, CVR 4/40 = 0.1.
	p1 := byProduct["p1"]
	score := 0.6*0.02 + 0.4*0.1
	wantBudget := 100 * (1 + score*10)
	assert.InDelta(t, wantBudget, p1.RecommendedBudget, 0.01)

	// p2 sees only the second campaign: CTR 0.03, CVR 0.1.
	p2 := byProduct["p2"]
	assert.Greater(t, p2.RecommendedBudget, p1.RecommendedBudget)
}

func TestGetRecommendedPlacementsCoversAllCampaigns(t *testing.T) {
	merchantID := uuid.New()
	const n = 600 // more than any listing page
	campaigns := make([]*models.Campaign, 0, n)
	for i := 0; i < n; i++ {
		c := activeCampaign(merchantID, 100)
		c.ProductIDs = []string{fmt.Sprintf("p%d", i)}
		campaigns = append(campaigns, c)
	}
	svc, _, _ := newPlacementFixture(campaigns...)

	recs, err := svc.GetRecommendedPlacements(context.Background(), merchantID)
	require.NoError(t, err)
	assert.Len(t, recs, n)
}

func TestGetRecommendedPlacementsIgnoresOtherMerchants(t *testing.T) {
	other := activeCampaign(uuid.New(), 100)
	other.ProductIDs = []string{"p1"}
	svc, _, _ := newPlacementFixture(other)

	recs, err := svc.GetRecommendedPlacements(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, recs)
}
