package services

import (
	"context"
	"fmt"
	"time"

	"github.com/discovershop/adengine/internal/events"
	"github.com/discovershop/adengine/internal/models"
	"github.com/discovershop/adengine/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CampaignService owns the merchant-facing campaign lifecycle: CRUD,
// explicit status transitions and the retargeting shortcut. Spend and
// placement mutations live in BudgetService / PlacementService.
type CampaignService struct {
	campaignRepo campaignRepository
	audit        auditStore
	publisher    events.Publisher
	log          *zap.Logger
}

func NewCampaignService(
	campaignRepo campaignRepository,
	audit auditStore,
	publisher events.Publisher,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaignRepo: campaignRepo,
		audit:        audit,
		publisher:    publisher,
		log:          log,
	}
}

func validateCampaign(c *models.Campaign) error {
	if c.Name == "" {
		return fmt.Errorf("campaign name is required")
	}
	if len(c.ProductIDs) == 0 {
		return fmt.Errorf("campaign must target at least one product")
	}
	if !models.IsValidAudience(c.TargetAudience) {
		return fmt.Errorf("invalid target audience %q", c.TargetAudience)
	}
	if c.Budget < 0 {
		return fmt.Errorf("budget must be non-negative")
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end date must not precede start date")
	}
	return nil
}

func (s *CampaignService) Create(ctx context.Context, merchantID uuid.UUID, c *models.Campaign) error {
	c.MerchantID = merchantID
	if c.Type == "" {
		c.Type = models.CampaignTypeProductPromotion
	}
	if c.TargetAudience == "" {
		c.TargetAudience = models.AudienceAll
	}
	if c.StartDate.IsZero() {
		c.StartDate = time.Now().UTC()
	}
	c.Status = models.CampaignStatusDraft

	if err := validateCampaign(c); err != nil {
		return err
	}

	if err := s.campaignRepo.Create(ctx, c); err != nil {
		return err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorMerchantID: &merchantID,
		ActorType:       "merchant",
		Action:          "campaign_created",
		EntityType:      "campaign",
		EntityID:        &c.ID,
	})

	return nil
}

// CreateRetargetingCampaign is a shortcut for a cart-abandoner campaign
// over the given products with a 30-day window.
func (s *CampaignService) CreateRetargetingCampaign(ctx context.Context, merchantID uuid.UUID, productIDs []string, budget float64) (*models.Campaign, error) {
	start := time.Now().UTC()
	end := start.AddDate(0, 0, 30)

	c := &models.Campaign{
		Name:           fmt.Sprintf("Retargeting %s", start.Format("2006-01-02")),
		Type:           models.CampaignTypeRetargeting,
		ProductIDs:     productIDs,
		TargetAudience: models.AudienceCartAbandoners,
		StartDate:      start,
		EndDate:        &end,
		Budget:         budget,
	}
	if err := s.Create(ctx, merchantID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) GetByID(ctx context.Context, id, merchantID uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.MerchantID != merchantID {
		return nil, repositories.ErrCampaignNotFound
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, merchantID uuid.UUID, f repositories.CampaignFilter) ([]models.Campaign, error) {
	f.MerchantID = &merchantID
	return s.campaignRepo.List(ctx, f)
}

func (s *CampaignService) Update(ctx context.Context, id, merchantID uuid.UUID, c *models.Campaign) error {
	existing, err := s.GetByID(ctx, id, merchantID)
	if err != nil {
		return err
	}

	c.ID = id
	c.MerchantID = existing.MerchantID
	if c.Type == "" {
		c.Type = existing.Type
	}
	if c.TargetAudience == "" {
		c.TargetAudience = existing.TargetAudience
	}
	if c.StartDate.IsZero() {
		c.StartDate = existing.StartDate
	}

	if err := validateCampaign(c); err != nil {
		return err
	}

	if err := s.campaignRepo.Update(ctx, c); err != nil {
		return err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorMerchantID: &merchantID,
		ActorType:       "merchant",
		Action:          "campaign_updated",
		EntityType:      "campaign",
		EntityID:        &id,
	})

	return nil
}

// UpdateStatus performs a merchant-initiated status transition, validated
// against the campaign state machine.
func (s *CampaignService) UpdateStatus(ctx context.Context, id, merchantID uuid.UUID, newStatus string) error {
	existing, err := s.GetByID(ctx, id, merchantID)
	if err != nil {
		return err
	}

	if !models.IsValidTransition(existing.Status, newStatus) {
		return fmt.Errorf("invalid transition from %s to %s", existing.Status, newStatus)
	}

	if err := s.campaignRepo.UpdateStatus(ctx, id, newStatus); err != nil {
		return err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorMerchantID: &merchantID,
		ActorType:       "merchant",
		Action:          fmt.Sprintf("campaign_status_%s_to_%s", existing.Status, newStatus),
		EntityType:      "campaign",
		EntityID:        &id,
		Meta:            map[string]any{"old_status": existing.Status, "new_status": newStatus},
	})

	_ = s.publisher.Publish(ctx, events.StreamAds, events.Event{
		Type: events.EventStatusChanged,
		Payload: map[string]any{
			"campaign_id": id.String(),
			"merchant_id": merchantID.String(),
			"old_status":  existing.Status,
			"new_status":  newStatus,
		},
	})

	return nil
}

// AuditTrail returns the campaign's audit history, newest first. The
// campaign must belong to the requesting merchant.
func (s *CampaignService) AuditTrail(ctx context.Context, id, merchantID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.GetByID(ctx, id, merchantID); err != nil {
		return nil, err
	}
	return s.audit.GetByEntity(ctx, "campaign", id, limit, offset)
}

func (s *CampaignService) Delete(ctx context.Context, id, merchantID uuid.UUID) error {
	if _, err := s.GetByID(ctx, id, merchantID); err != nil {
		return err
	}

	if err := s.campaignRepo.Delete(ctx, id); err != nil {
		return err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorMerchantID: &merchantID,
		ActorType:       "merchant",
		Action:          "campaign_deleted",
		EntityType:      "campaign",
		EntityID:        &id,
	})

	return nil
}
