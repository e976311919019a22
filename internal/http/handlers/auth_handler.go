package handlers

import (
	"crypto/subtle"

	"github.com/discovershop/adengine/internal/auth"
	"github.com/discovershop/adengine/internal/config"
	"github.com/discovershop/adengine/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthHandler exchanges the shared merchant API secret for a scoped JWT.
// Merchant identity management itself lives in the storefront platform;
// this engine only needs a verified merchant id per request.
type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if h.cfg.MerchantAPISecret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "token endpoint disabled"})
	}
	if subtle.ConstantTimeCompare([]byte(req.APISecret), []byte(h.cfg.MerchantAPISecret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid api secret"})
	}

	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid merchant id"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, merchantID, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to sign token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.TokenResponse{Token: token})
}
