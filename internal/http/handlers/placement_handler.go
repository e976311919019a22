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

type PlacementHandler struct {
	placementService *services.PlacementService
	log              *zap.Logger
}

func NewPlacementHandler(placementService *services.PlacementService, log *zap.Logger) *PlacementHandler {
	return &PlacementHandler{placementService: placementService, log: log}
}

func (h *PlacementHandler) GetFeedAds(c *fiber.Ctx) error {
	var req dto.FeedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	placements, err := h.placementService.GetAdsForDiscoveryFeed(c.Context(), services.PlacementOptions{
		UserID:                     req.UserID,
		SessionID:                  req.SessionID,
		Location:                   req.Location,
		Interests:                  req.Interests,
		Demographics:               req.Demographics,
		PreviouslyViewedProductIDs: req.PreviouslyViewedProductIDs,
		CartProductIDs:             req.CartProductIDs,
		PurchasedProductIDs:        req.PurchasedProductIDs,
		MaxAds:                     req.MaxAds,
	})
	if err != nil {
		h.log.Error("feed placement failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: placements})
}

func (h *PlacementHandler) RecordClick(c *fiber.Ctx) error {
	var req dto.ClickRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	if err := h.placementService.RecordAdClick(c.Context(), campaignID, req.UserID, req.SessionID); err != nil {
		if errors.Is(err, repositories.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		h.log.Error("click recording failed",
			zap.String("campaign_id", req.CampaignID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PlacementHandler) RecordConversion(c *fiber.Ctx) error {
	var req dto.ConversionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	if err := h.placementService.RecordAdConversion(c.Context(), campaignID); err != nil {
		if errors.Is(err, repositories.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		h.log.Error("conversion recording failed",
			zap.String("campaign_id", req.CampaignID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PlacementHandler) GetRecommendations(c *fiber.Ctx) error {
	merchantID := middleware.GetMerchantID(c)
	recommendations, err := h.placementService.GetRecommendedPlacements(c.Context(), merchantID)
	if err != nil {
		h.log.Error("recommendations failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: recommendations})
}
