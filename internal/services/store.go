package services

import (
	"context"

	"github.com/discovershop/adengine/internal/models"
	"github.com/discovershop/adengine/internal/repositories"
	"github.com/google/uuid"
)

// CampaignStore is the slice of the campaign repository the pacing and
// placement services depend on. *repositories.CampaignRepo satisfies it.
// The ListAllByMerchant / ListActiveByMerchant reads are unpaginated:
// aggregates computed from them must see every campaign.
type CampaignStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListAllByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Campaign, error)
	ListActiveByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Campaign, error)
	ListActive(ctx context.Context) ([]models.Campaign, error)
	ListByMerchantAndIDs(ctx context.Context, merchantID uuid.UUID, ids []uuid.UUID) ([]models.Campaign, error)
	AddSpend(ctx context.Context, id uuid.UUID, amount float64, impressions int64) (*repositories.SpendUpdate, error)
	PauseIfActive(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateBudget(ctx context.Context, id uuid.UUID, budget float64) error
	AddClick(ctx context.Context, id uuid.UUID) (*repositories.ClickUpdate, error)
	AddConversion(ctx context.Context, id uuid.UUID) error
}

// campaignRepository is the repository surface the campaign lifecycle
// service uses. *repositories.CampaignRepo satisfies it.
type campaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// auditLogger is the write-only slice of the audit repository services use.
type auditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// auditStore adds the per-entity history read for audit trail surfaces.
type auditStore interface {
	auditLogger
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}
