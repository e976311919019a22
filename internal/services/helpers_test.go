package services

import (
	"context"
	"math"
	"sync"

	"github.com/discovershop/adengine/internal/events"
	"github.com/discovershop/adengine/internal/models"
	"github.com/discovershop/adengine/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fakeStore is an in-memory CampaignStore. Mutations hold a single mutex,
// mirroring the linearized-per-campaign behavior of the SQL repository.
// addSpendErr and pauseErr inject per-campaign write failures.
type fakeStore struct {
	mu          sync.Mutex
	campaigns   map[uuid.UUID]*models.Campaign
	addSpendErr map[uuid.UUID]error
	pauseErr    error
}

func newFakeStore(campaigns ...*models.Campaign) *fakeStore {
	s := &fakeStore{campaigns: make(map[uuid.UUID]*models.Campaign)}
	for _, c := range campaigns {
		if c.ID == (uuid.UUID{}) {
			c.ID = uuid.New()
		}
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, repositories.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) list(match func(*models.Campaign) bool) []models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Campaign
	for _, c := range s.campaigns {
		if match(c) {
			out = append(out, *c)
		}
	}
	return out
}

func (s *fakeStore) ListAllByMerchant(_ context.Context, merchantID uuid.UUID) ([]models.Campaign, error) {
	return s.list(func(c *models.Campaign) bool {
		return c.MerchantID == merchantID
	}), nil
}

func (s *fakeStore) ListActiveByMerchant(_ context.Context, merchantID uuid.UUID) ([]models.Campaign, error) {
	return s.list(func(c *models.Campaign) bool {
		return c.MerchantID == merchantID && c.Status == models.CampaignStatusActive
	}), nil
}

func (s *fakeStore) ListActive(_ context.Context) ([]models.Campaign, error) {
	return s.list(func(c *models.Campaign) bool {
		return c.Status == models.CampaignStatusActive
	}), nil
}

func (s *fakeStore) ListByMerchantAndIDs(_ context.Context, merchantID uuid.UUID, ids []uuid.UUID) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Campaign
	for _, id := range ids {
		if c, ok := s.campaigns[id]; ok && c.MerchantID == merchantID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeStore) AddSpend(_ context.Context, id uuid.UUID, amount float64, impressions int64) (*repositories.SpendUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.addSpendErr[id]; err != nil {
		return nil, err
	}
	c, ok := s.campaigns[id]
	if !ok {
		return nil, repositories.ErrCampaignNotFound
	}
	c.Spent += amount
	c.Impressions += impressions
	return &repositories.SpendUpdate{
		MerchantID: c.MerchantID,
		Spent:      c.Spent,
		Budget:     c.Budget,
		Status:     c.Status,
	}, nil
}

func (s *fakeStore) PauseIfActive(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseErr != nil {
		return false, s.pauseErr
	}
	c, ok := s.campaigns[id]
	if !ok {
		return false, repositories.ErrCampaignNotFound
	}
	if c.Status != models.CampaignStatusActive {
		return false, nil
	}
	c.Status = models.CampaignStatusPaused
	return true, nil
}

func (s *fakeStore) UpdateBudget(_ context.Context, id uuid.UUID, budget float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return repositories.ErrCampaignNotFound
	}
	c.Budget = budget
	return nil
}

func (s *fakeStore) AddClick(_ context.Context, id uuid.UUID) (*repositories.ClickUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, repositories.ErrCampaignNotFound
	}
	c.Clicks++
	if c.Impressions > 0 {
		c.ClickThroughRate = math.Round(float64(c.Clicks)/float64(c.Impressions)*10000) / 10000
	} else {
		c.ClickThroughRate = 0
	}
	return &repositories.ClickUpdate{
		MerchantID:       c.MerchantID,
		Clicks:           c.Clicks,
		Impressions:      c.Impressions,
		ClickThroughRate: c.ClickThroughRate,
	}, nil
}

func (s *fakeStore) AddConversion(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return repositories.ErrCampaignNotFound
	}
	c.Conversions++
	if c.Clicks > 0 {
		c.ConversionRate = math.Round(float64(c.Conversions)/float64(c.Clicks)*10000) / 10000
	} else {
		c.ConversionRate = 0
	}
	return nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) byType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeAudit records audit entries.
type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *fakeAudit) Log(_ context.Context, entry models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudit) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditLog
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestBudgetService(store CampaignStore) (*BudgetService, *fakePublisher, *fakeAudit) {
	pub := &fakePublisher{}
	audit := &fakeAudit{}
	svc := NewBudgetService(store, audit, pub, DefaultPricingModel(), zap.NewNop())
	return svc, pub, audit
}

func newTestPlacementService(store CampaignStore, budget *BudgetService, pub *fakePublisher) *PlacementService {
	svc := NewPlacementService(store, budget, pub, 2, zap.NewNop())
	svc.jitter = func() float64 { return 1.0 }
	return svc
}
