package http

import (
	"time"

	"github.com/discovershop/adengine/internal/config"
	"github.com/discovershop/adengine/internal/http/handlers"
	"github.com/discovershop/adengine/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	campaignHandler *handlers.CampaignHandler,
	budgetHandler *handlers.BudgetHandler,
	placementHandler *handlers.PlacementHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/token", authHandler.Token)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Placement (public: called by the storefront on behalf of shoppers)
	api.Post("/placements/feed", placementHandler.GetFeedAds)
	api.Post("/placements/click", placementHandler.RecordClick)
	api.Post("/placements/conversion", placementHandler.RecordConversion)

	// Protected merchant endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Campaigns
	protected.Post("/campaigns", campaignHandler.CreateCampaign)
	protected.Post("/campaigns/retargeting", campaignHandler.CreateRetargetingCampaign)
	protected.Get("/campaigns", campaignHandler.ListCampaigns)
	protected.Get("/campaigns/:id", campaignHandler.GetCampaign)
	protected.Put("/campaigns/:id", campaignHandler.UpdateCampaign)
	protected.Post("/campaigns/:id/status", campaignHandler.UpdateCampaignStatus)
	protected.Get("/campaigns/:id/audit", campaignHandler.GetCampaignAudit)
	protected.Delete("/campaigns/:id", campaignHandler.DeleteCampaign)

	// Budget pacing
	protected.Get("/campaigns/:id/daily-budget", budgetHandler.GetDailyBudget)
	protected.Get("/campaigns/:id/forecast", budgetHandler.GetForecast)
	protected.Post("/budget/allocate", budgetHandler.AllocateBudget)
	protected.Get("/budget/utilization", budgetHandler.GetUtilizationReport)

	// Placement insights
	protected.Get("/placements/recommendations", placementHandler.GetRecommendations)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
