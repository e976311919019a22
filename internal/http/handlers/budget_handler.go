package handlers

import (
	"errors"

	"github.com/discovershop/adengine/internal/http/dto"
	"github.com/discovershop/adengine/internal/middleware"
	"github.com/discovershop/adengine/internal/repositories"
	"github.com/discovershop/adengine/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BudgetHandler struct {
	budgetService *services.BudgetService
	log           *zap.Logger
}

func NewBudgetHandler(budgetService *services.BudgetService, log *zap.Logger) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, log: log}
}

func (h *BudgetHandler) GetDailyBudget(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	daily, err := h.budgetService.CalculateDailyBudget(c.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		h.log.Error("daily budget failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DailyBudgetResponse{
		CampaignID:  id.String(),
		DailyBudget: daily,
	}})
}

func (h *BudgetHandler) GetForecast(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	forecast, err := h.budgetService.ForecastRemainingDuration(c.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		h.log.Error("forecast failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: forecast})
}

func (h *BudgetHandler) AllocateBudget(c *fiber.Ctx) error {
	var req dto.AllocateBudgetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.TotalBudget <= 0 || len(req.CampaignIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "total_budget and campaign_ids are required"})
	}
	if req.Strategy == "" {
		req.Strategy = services.AllocationEqual
	}

	ids := make([]uuid.UUID, 0, len(req.CampaignIDs))
	for _, s := range req.CampaignIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id " + s})
		}
		ids = append(ids, id)
	}

	merchantID := middleware.GetMerchantID(c)
	allocation, err := h.budgetService.AllocateBudget(c.Context(), merchantID, req.TotalBudget, ids, req.Strategy)
	if err != nil {
		if errors.Is(err, services.ErrNoCampaignsResolved) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		h.log.Error("budget allocation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	// uuid keys are not JSON-friendly
	out := make(map[string]float64, len(allocation))
	for id, budget := range allocation {
		out[id.String()] = budget
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *BudgetHandler) GetUtilizationReport(c *fiber.Ctx) error {
	merchantID := middleware.GetMerchantID(c)
	report, err := h.budgetService.UtilizationReport(c.Context(), merchantID)
	if err != nil {
		h.log.Error("utilization report failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: report})
}
