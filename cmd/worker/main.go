package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/discovershop/adengine/internal/config"
	"github.com/discovershop/adengine/internal/db"
	"github.com/discovershop/adengine/internal/events"
	"github.com/discovershop/adengine/internal/models"
	"github.com/discovershop/adengine/internal/repositories"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	campaignRepo := repositories.NewCampaignRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	log.Info("worker started")

	expiryTicker := time.NewTicker(cfg.ExpirySweepInterval)
	overspendTicker := time.NewTicker(cfg.OverspendSweepInterval)
	defer expiryTicker.Stop()
	defer overspendTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expiryTicker.C:
			runExpirySweep(ctx, campaignRepo, auditRepo, publisher, log)
		case <-overspendTicker.C:
			runOverspendSweep(ctx, campaignRepo, auditRepo, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runExpirySweep completes campaigns whose end date has passed. The state
// machine has no other path to completed for unattended campaigns.
func runExpirySweep(ctx context.Context, campaignRepo *repositories.CampaignRepo, auditRepo *repositories.AuditRepo, publisher events.Publisher, log *zap.Logger) {
	ids, err := campaignRepo.CompleteExpired(ctx)
	if err != nil {
		log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		campaignID := id
		log.Info("campaign completed by expiry sweep", zap.String("campaign_id", campaignID.String()))

		_ = auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "worker",
			Action:     "campaign_expired",
			EntityType: "campaign",
			EntityID:   &campaignID,
		})
		_ = publisher.Publish(ctx, events.StreamAds, events.Event{
			Type: events.EventStatusChanged,
			Payload: map[string]any{
				"campaign_id": campaignID.String(),
				"new_status":  models.CampaignStatusCompleted,
				"reason":      "expired",
			},
		})
	}
}

// runOverspendSweep pauses active campaigns whose spend already covers
// their budget. Reallocation racing with live spend recording can leave
// such campaigns running; this reconciles them.
func runOverspendSweep(ctx context.Context, campaignRepo *repositories.CampaignRepo, auditRepo *repositories.AuditRepo, log *zap.Logger) {
	ids, err := campaignRepo.PauseOverspent(ctx)
	if err != nil {
		log.Error("overspend sweep failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		campaignID := id
		log.Info("campaign paused by overspend sweep", zap.String("campaign_id", campaignID.String()))

		_ = auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "worker",
			Action:     "campaign_paused_overspent",
			EntityType: "campaign",
			EntityID:   &campaignID,
		})
	}
}
