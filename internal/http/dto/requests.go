package dto

import "time"

type TokenRequest struct {
	MerchantID string `json:"merchant_id"`
	APISecret  string `json:"api_secret"`
}

// Campaigns

type CreateCampaignRequest struct {
	Name               string     `json:"name"`
	Type               string     `json:"type,omitempty"`
	ProductIDs         []string   `json:"product_ids"`
	TargetAudience     string     `json:"target_audience,omitempty"`
	TargetDemographics []string   `json:"target_demographics,omitempty"`
	TargetLocations    []string   `json:"target_locations,omitempty"`
	TargetInterests    []string   `json:"target_interests,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	Budget             float64    `json:"budget"`
}

type UpdateCampaignRequest struct {
	Name               string     `json:"name"`
	Type               string     `json:"type,omitempty"`
	ProductIDs         []string   `json:"product_ids"`
	TargetAudience     string     `json:"target_audience,omitempty"`
	TargetDemographics []string   `json:"target_demographics,omitempty"`
	TargetLocations    []string   `json:"target_locations,omitempty"`
	TargetInterests    []string   `json:"target_interests,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	Budget             float64    `json:"budget"`
}

type UpdateCampaignStatusRequest struct {
	Status string `json:"status"`
}

type CreateRetargetingCampaignRequest struct {
	ProductIDs []string `json:"product_ids"`
	Budget     float64  `json:"budget"`
}

// Budget

type AllocateBudgetRequest struct {
	TotalBudget float64  `json:"total_budget"`
	CampaignIDs []string `json:"campaign_ids"`
	Strategy    string   `json:"strategy,omitempty"` // equal / performance_based / time_based
}

// Placements

type FeedRequest struct {
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

type ClickRequest struct {
	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

type ConversionRequest struct {
	CampaignID string `json:"campaign_id"`
}
