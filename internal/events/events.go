package events

import "context"

// Redis channel all ad engine events are published on.
const StreamAds = "events:ads"

// Event types
const (
	EventBudgetExhausted = "campaign.budget.exhausted"
	EventAdImpression    = "ad.impression"
	EventAdClick         = "ad.click"
	EventStatusChanged   = "campaign.status.changed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
