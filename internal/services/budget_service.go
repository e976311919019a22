package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/discovershop/adengine/internal/events"
	"github.com/discovershop/adengine/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Budget allocation strategies
const (
	AllocationEqual            = "equal"
	AllocationPerformanceBased = "performance_based"
	AllocationTimeBased        = "time_based"
)

var ErrNoCampaignsResolved = errors.New("no valid campaigns found for budget allocation")

func IsValidAllocationStrategy(s string) bool {
	switch s {
	case AllocationEqual, AllocationPerformanceBased, AllocationTimeBased:
		return true
	}
	return false
}

type BudgetUpdateResult struct {
	CampaignID      uuid.UUID `json:"campaign_id"`
	PreviousSpent   float64   `json:"previous_spent"`
	CurrentSpent    float64   `json:"current_spent"`
	RemainingBudget float64   `json:"remaining_budget"`
	BudgetExhausted bool      `json:"budget_exhausted"`
}

type CampaignUtilization struct {
	CampaignID      uuid.UUID `json:"campaign_id"`
	Name            string    `json:"name"`
	Budget          float64   `json:"budget"`
	Spent           float64   `json:"spent"`
	UtilizationRate float64   `json:"utilization_rate"`
}

type BudgetUtilizationReport struct {
	TotalBudget         float64               `json:"total_budget"`
	TotalSpent          float64               `json:"total_spent"`
	UtilizationRate     float64               `json:"utilization_rate"`
	CampaignUtilization []CampaignUtilization `json:"campaign_utilization"`
}

type BudgetForecast struct {
	CampaignID            uuid.UUID `json:"campaign_id"`
	RemainingBudget       float64   `json:"remaining_budget"`
	DailySpendRate        float64   `json:"daily_spend_rate"`
	EstimatedDaysRemaining int      `json:"estimated_days_remaining"`
	EstimatedEndDate      time.Time `json:"estimated_end_date"`
}

// BudgetService paces campaign spend: it prices impressions and clicks,
// records spend, pauses exhausted campaigns, allocates budgets across a
// campaign group and forecasts how long a budget will last.
type BudgetService struct {
	store     CampaignStore
	audit     auditLogger
	publisher events.Publisher
	pricing   PricingModel
	log       *zap.Logger

	now func() time.Time
}

func NewBudgetService(
	store CampaignStore,
	audit auditLogger,
	publisher events.Publisher,
	pricing PricingModel,
	log *zap.Logger,
) *BudgetService {
	return &BudgetService{
		store:     store,
		audit:     audit,
		publisher: publisher,
		pricing:   pricing,
		log:       log,
		now:       time.Now,
	}
}

// CalculateDailyBudget spreads the campaign budget evenly over its
// scheduled duration.
func (s *BudgetService) CalculateDailyBudget(ctx context.Context, campaignID uuid.UUID) (float64, error) {
	campaign, err := s.store.GetByID(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return campaign.Budget / float64(campaign.DurationDays(s.pricing.DefaultDurationDays)), nil
}

// RecordAdSpend charges the campaign and counts impressions atomically.
// When the charge exhausts the budget of an active campaign, the campaign
// is paused and campaign.budget.exhausted is published; the pause is a
// conditional update, so of several racing exhausted charges exactly one
// emits the event.
func (s *BudgetService) RecordAdSpend(ctx context.Context, campaignID uuid.UUID, amount float64, impressionCount int64) (*BudgetUpdateResult, error) {
	u, err := s.store.AddSpend(ctx, campaignID, amount, impressionCount)
	if err != nil {
		return nil, err
	}

	result := &BudgetUpdateResult{
		CampaignID:      campaignID,
		PreviousSpent:   u.Spent - amount,
		CurrentSpent:    u.Spent,
		RemainingBudget: u.Budget - u.Spent,
		BudgetExhausted: u.Budget-u.Spent <= 0,
	}

	if result.BudgetExhausted && u.Status == models.CampaignStatusActive {
		paused, err := s.store.PauseIfActive(ctx, campaignID)
		if err != nil {
			// The charge is already applied; the overspend sweep will
			// catch the still-active campaign.
			s.log.Error("failed to pause exhausted campaign",
				zap.String("campaign_id", campaignID.String()), zap.Error(err))
			return result, nil
		}
		if paused {
			s.log.Info("campaign paused due to budget exhaustion",
				zap.String("campaign_id", campaignID.String()),
				zap.Float64("spent", u.Spent),
				zap.Float64("budget", u.Budget),
			)

			_ = s.audit.Log(ctx, models.AuditLog{
				ActorType:  "system",
				Action:     "campaign_auto_paused",
				EntityType: "campaign",
				EntityID:   &campaignID,
				Meta:       map[string]any{"spent": u.Spent, "budget": u.Budget},
			})

			_ = s.publisher.Publish(ctx, events.StreamAds, events.Event{
				Type: events.EventBudgetExhausted,
				Payload: map[string]any{
					"campaign_id": campaignID.String(),
					"merchant_id": u.MerchantID.String(),
				},
			})
		}
	}

	return result, nil
}

// CalculateCostPerImpression prices one impression by spreading the
// budget over the pricing model's target impression volume.
func (s *BudgetService) CalculateCostPerImpression(ctx context.Context, campaignID uuid.UUID) (float64, error) {
	campaign, err := s.store.GetByID(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return s.CostPerImpressionFor(campaign), nil
}

// CostPerImpressionFor prices one impression for an already loaded campaign.
func (s *BudgetService) CostPerImpressionFor(campaign *models.Campaign) float64 {
	return campaign.Budget / s.pricing.TargetImpressions()
}

// CalculateCostPerClick derives the click price from observed spend per
// click, falling back to an estimate when the campaign has no clicks yet.
func (s *BudgetService) CalculateCostPerClick(ctx context.Context, campaignID uuid.UUID) (float64, error) {
	campaign, err := s.store.GetByID(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if campaign.Clicks == 0 {
		return campaign.Budget / float64(s.pricing.FallbackClickEstimate), nil
	}
	return campaign.Spent / float64(campaign.Clicks), nil
}

// AllocateBudget distributes totalBudget across the named campaigns under
// the chosen strategy and persists the new per-campaign budgets. The
// writes are not transactional across campaigns: a mid-batch failure
// leaves earlier campaigns updated. The worker overspend sweep reconciles
// campaigns whose shrunken budget is already spent.
func (s *BudgetService) AllocateBudget(ctx context.Context, merchantID uuid.UUID, totalBudget float64, campaignIDs []uuid.UUID, strategy string) (map[uuid.UUID]float64, error) {
	if !IsValidAllocationStrategy(strategy) {
		return nil, fmt.Errorf("invalid allocation strategy %q", strategy)
	}

	campaigns, err := s.store.ListByMerchantAndIDs(ctx, merchantID, campaignIDs)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, ErrNoCampaignsResolved
	}

	allocation := make(map[uuid.UUID]float64, len(campaigns))

	switch strategy {
	case AllocationPerformanceBased:
		var totalClicks int64
		for i := range campaigns {
			totalClicks += campaigns[i].Clicks
		}
		if totalClicks == 0 {
			// No performance data yet, degrade to equal split.
			equal := totalBudget / float64(len(campaigns))
			for i := range campaigns {
				allocation[campaigns[i].ID] = equal
			}
		} else {
			for i := range campaigns {
				ratio := float64(campaigns[i].Clicks) / float64(totalClicks)
				allocation[campaigns[i].ID] = totalBudget * ratio
			}
		}

	case AllocationTimeBased:
		// Newer campaigns get a larger share.
		now := s.now()
		totalDaysActive := 0
		for i := range campaigns {
			totalDaysActive += campaigns[i].DaysActive(now)
		}
		for i := range campaigns {
			daysActive := campaigns[i].DaysActive(now)
			inverseRatio := float64(totalDaysActive-daysActive+1) / float64(totalDaysActive)
			allocation[campaigns[i].ID] = totalBudget * inverseRatio / float64(len(campaigns))
		}

	default: // AllocationEqual
		equal := totalBudget / float64(len(campaigns))
		for i := range campaigns {
			allocation[campaigns[i].ID] = equal
		}
	}

	for id, budget := range allocation {
		if err := s.store.UpdateBudget(ctx, id, budget); err != nil {
			return nil, fmt.Errorf("allocation partially applied, failed at campaign %s: %w", id, err)
		}
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorMerchantID: &merchantID,
		ActorType:       "merchant",
		Action:          "budget_allocated",
		EntityType:      "merchant",
		EntityID:        &merchantID,
		Meta:            map[string]any{"strategy": strategy, "total_budget": totalBudget, "campaigns": len(campaigns)},
	})

	return allocation, nil
}

// UtilizationReport aggregates spend against budget across all of a
// merchant's campaigns.
func (s *BudgetService) UtilizationReport(ctx context.Context, merchantID uuid.UUID) (*BudgetUtilizationReport, error) {
	campaigns, err := s.store.ListAllByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	report := &BudgetUtilizationReport{
		CampaignUtilization: make([]CampaignUtilization, 0, len(campaigns)),
	}
	for i := range campaigns {
		c := &campaigns[i]
		report.TotalBudget += c.Budget
		report.TotalSpent += c.Spent

		rate := 0.0
		if c.Budget > 0 {
			rate = c.Spent / c.Budget
		}
		report.CampaignUtilization = append(report.CampaignUtilization, CampaignUtilization{
			CampaignID:      c.ID,
			Name:            c.Name,
			Budget:          c.Budget,
			Spent:           c.Spent,
			UtilizationRate: rate,
		})
	}
	if report.TotalBudget > 0 {
		report.UtilizationRate = report.TotalSpent / report.TotalBudget
	}
	return report, nil
}

// ForecastRemainingDuration projects how long the remaining budget lasts
// at the observed daily spend rate.
func (s *BudgetService) ForecastRemainingDuration(ctx context.Context, campaignID uuid.UUID) (*BudgetForecast, error) {
	campaign, err := s.store.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	remaining := campaign.RemainingBudget()
	dailyRate := campaign.Spent / float64(campaign.DaysActive(now))

	daysRemaining := 0
	if dailyRate > 0 {
		daysRemaining = int(math.Ceil(remaining / dailyRate))
	}

	return &BudgetForecast{
		CampaignID:             campaignID,
		RemainingBudget:        remaining,
		DailySpendRate:         dailyRate,
		EstimatedDaysRemaining: daysRemaining,
		EstimatedEndDate:       now.AddDate(0, 0, daysRemaining),
	}, nil
}
