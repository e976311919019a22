package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// Target audiences
const (
	AudienceAll               = "all"
	AudiencePreviousVisitors  = "previous_visitors"
	AudienceCartAbandoners    = "cart_abandoners"
	AudiencePreviousCustomers = "previous_customers"
)

// Campaign types
const (
	CampaignTypeProductPromotion = "product_promotion"
	CampaignTypeRetargeting      = "retargeting"
)

// Valid status transitions: from -> []to.
// active -> paused happens automatically on budget exhaustion,
// paused -> active is a merchant resume, -> completed is either a
// merchant action or the worker expiry sweep.
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusDraft:     {CampaignStatusActive, CampaignStatusCompleted},
	CampaignStatusActive:    {CampaignStatusPaused, CampaignStatusCompleted},
	CampaignStatusPaused:    {CampaignStatusActive, CampaignStatusCompleted},
	CampaignStatusCompleted: {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidAudience(a string) bool {
	switch a {
	case AudienceAll, AudiencePreviousVisitors, AudienceCartAbandoners, AudiencePreviousCustomers:
		return true
	}
	return false
}

type Campaign struct {
	ID                 uuid.UUID  `json:"id"`
	MerchantID         uuid.UUID  `json:"merchant_id"`
	Name               string     `json:"name"`
	Type               string     `json:"type"`
	ProductIDs         []string   `json:"product_ids"`
	TargetAudience     string     `json:"target_audience"`
	TargetDemographics []string   `json:"target_demographics,omitempty"`
	TargetLocations    []string   `json:"target_locations,omitempty"`
	TargetInterests    []string   `json:"target_interests,omitempty"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	Budget             float64    `json:"budget"`
	Spent              float64    `json:"spent"`
	Impressions        int64      `json:"impressions"`
	Clicks             int64      `json:"clicks"`
	Conversions        int64      `json:"conversions"`
	ClickThroughRate   float64    `json:"click_through_rate"`
	ConversionRate     float64    `json:"conversion_rate"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *Campaign) RemainingBudget() float64 {
	return c.Budget - c.Spent
}

// DurationDays is the scheduled campaign length in whole days, at least 1.
// Campaigns without an end date fall back to the supplied default.
func (c *Campaign) DurationDays(defaultDays int) int {
	if c.EndDate == nil {
		return defaultDays
	}
	days := ceilDays(c.EndDate.Sub(c.StartDate))
	if days < 1 {
		return 1
	}
	return days
}

// DaysActive is the number of whole days since the campaign started, at least 1.
func (c *Campaign) DaysActive(now time.Time) int {
	days := ceilDays(now.Sub(c.StartDate))
	if days < 1 {
		return 1
	}
	return days
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((d + day - 1) / day)
}
