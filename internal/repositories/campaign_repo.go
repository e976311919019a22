package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/discovershop/adengine/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCampaignNotFound = errors.New("campaign not found")

const campaignColumns = `id, merchant_id, name, type, product_ids, target_audience,
	       target_demographics, target_locations, target_interests,
	       start_date, end_date, budget, spent, impressions, clicks, conversions,
	       click_through_rate, conversion_rate, status, created_at, updated_at`

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func scanCampaign(row pgx.Row, c *models.Campaign) error {
	return row.Scan(&c.ID, &c.MerchantID, &c.Name, &c.Type, &c.ProductIDs, &c.TargetAudience,
		&c.TargetDemographics, &c.TargetLocations, &c.TargetInterests,
		&c.StartDate, &c.EndDate, &c.Budget, &c.Spent, &c.Impressions, &c.Clicks, &c.Conversions,
		&c.ClickThroughRate, &c.ConversionRate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (merchant_id, name, type, product_ids, target_audience,
		                       target_demographics, target_locations, target_interests,
		                       start_date, end_date, budget, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, c.MerchantID, c.Name, c.Type, c.ProductIDs, c.TargetAudience,
		c.TargetDemographics, c.TargetLocations, c.TargetInterests,
		c.StartDate, c.EndDate, c.Budget, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	err := scanCampaign(r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id), &c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET name = $1, type = $2, product_ids = $3, target_audience = $4,
		       target_demographics = $5, target_locations = $6, target_interests = $7,
		       start_date = $8, end_date = $9, budget = $10, updated_at = now()
		WHERE id = $11
	`, c.Name, c.Type, c.ProductIDs, c.TargetAudience,
		c.TargetDemographics, c.TargetLocations, c.TargetInterests,
		c.StartDate, c.EndDate, c.Budget, c.ID)
	return err
}

func (r *CampaignRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	return err
}

type CampaignFilter struct {
	MerchantID *uuid.UUID
	Status     *string
	Limit      int
	Offset     int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.MerchantID != nil {
		where = append(where, fmt.Sprintf("merchant_id = $%d", argIdx))
		args = append(args, *f.MerchantID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, clampLimit(f.Limit), f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

// clampLimit bounds a page size for the paginated listing. Zero or
// negative falls back to the default page, oversized requests get the cap.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 500 {
		return 500
	}
	return limit
}

// ListAllByMerchant returns every campaign of the merchant without
// pagination. Budget and recommendation aggregates need the full set; a
// page cap would silently drop campaigns from the totals.
func (r *CampaignRepo) ListAllByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE merchant_id = $1`, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

// ListActiveByMerchant returns every active campaign of the merchant
// without pagination.
func (r *CampaignRepo) ListActiveByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE merchant_id = $1 AND status = $2`,
		merchantID, models.CampaignStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

// ListActive returns every campaign currently eligible for placement.
func (r *CampaignRepo) ListActive(ctx context.Context) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE status = $1`, models.CampaignStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

// ListByMerchantAndIDs resolves the given ids scoped to the owning merchant.
// Ids that do not resolve are silently absent from the result.
func (r *CampaignRepo) ListByMerchantAndIDs(ctx context.Context, merchantID uuid.UUID, ids []uuid.UUID) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE merchant_id = $1 AND id = ANY($2)`,
		merchantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

func collectCampaigns(rows pgx.Rows) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// SpendUpdate is the post-update snapshot returned by AddSpend.
type SpendUpdate struct {
	MerchantID uuid.UUID
	Spent      float64
	Budget     float64
	Status     string
}

// AddSpend charges the campaign and counts impressions in a single
// server-side update, so concurrent charges against the same campaign
// never lose increments.
func (r *CampaignRepo) AddSpend(ctx context.Context, id uuid.UUID, amount float64, impressions int64) (*SpendUpdate, error) {
	var u SpendUpdate
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET spent = spent + $1, impressions = impressions + $2, updated_at = now()
		WHERE id = $3
		RETURNING merchant_id, spent, budget, status
	`, amount, impressions, id).Scan(&u.MerchantID, &u.Spent, &u.Budget, &u.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// PauseIfActive flips active -> paused. The condition makes the flip
// exclusive: of several racing exhausted spends, exactly one observes
// paused=true and owns the exhaustion event.
func (r *CampaignRepo) PauseIfActive(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.CampaignStatusPaused, id, models.CampaignStatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now() WHERE id = $2
	`, status, id)
	return err
}

func (r *CampaignRepo) UpdateBudget(ctx context.Context, id uuid.UUID, budget float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET budget = $1, updated_at = now() WHERE id = $2
	`, budget, id)
	return err
}

// ClickUpdate is the post-update snapshot returned by AddClick.
type ClickUpdate struct {
	MerchantID       uuid.UUID
	Clicks           int64
	Impressions      int64
	ClickThroughRate float64
}

// AddClick increments the click counter and recomputes the click-through
// rate server-side in one statement.
func (r *CampaignRepo) AddClick(ctx context.Context, id uuid.UUID) (*ClickUpdate, error) {
	var u ClickUpdate
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET clicks = clicks + 1,
		    click_through_rate = CASE WHEN impressions > 0
		        THEN round((clicks + 1)::numeric / impressions, 4)::float8
		        ELSE 0 END,
		    updated_at = now()
		WHERE id = $1
		RETURNING merchant_id, clicks, impressions, click_through_rate
	`, id).Scan(&u.MerchantID, &u.Clicks, &u.Impressions, &u.ClickThroughRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AddConversion increments the conversion counter and recomputes the
// conversion rate server-side in one statement.
func (r *CampaignRepo) AddConversion(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET conversions = conversions + 1,
		    conversion_rate = CASE WHEN clicks > 0
		        THEN round((conversions + 1)::numeric / clicks, 4)::float8
		        ELSE 0 END,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// CompleteExpired transitions campaigns whose end date has passed to
// completed and returns the affected ids.
func (r *CampaignRepo) CompleteExpired(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now()
		WHERE status IN ($2, $3) AND end_date IS NOT NULL AND end_date < now()
		RETURNING id
	`, models.CampaignStatusCompleted, models.CampaignStatusActive, models.CampaignStatusPaused)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectIDs(rows)
}

// PauseOverspent pauses any active campaign whose recorded spend already
// meets or exceeds its budget. Budget reallocation racing with live spend
// can leave such campaigns behind; this sweep reconciles them.
func (r *CampaignRepo) PauseOverspent(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now()
		WHERE status = $2 AND spent >= budget
		RETURNING id
	`, models.CampaignStatusPaused, models.CampaignStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
