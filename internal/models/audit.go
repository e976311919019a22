package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID              uuid.UUID  `json:"id"`
	ActorMerchantID *uuid.UUID `json:"actor_merchant_id,omitempty"`
	ActorType       string     `json:"actor_type"` // merchant/system/worker
	Action          string     `json:"action"`
	EntityType      string     `json:"entity_type"`
	EntityID        *uuid.UUID `json:"entity_id,omitempty"`
	Meta            any        `json:"meta,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
