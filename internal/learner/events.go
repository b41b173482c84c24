package learner

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantforge/adaptive/internal/domain"
)

// EventType identifies controller notifications.
type EventType string

const (
	EventConfigPromoted EventType = "CONFIG_PROMOTED"
	EventConfigRejected EventType = "CONFIG_REJECTED"
)

// Event is emitted after each evaluation cycle for external consumers
// (dashboards, alerting). Delivery is fire-and-forget and never blocks
// promotion.
type Event struct {
	Type        EventType                 `json:"type"`
	Symbol      string                    `json:"symbol"`
	MarketType  string                    `json:"market_type"`
	OldConfigID string                    `json:"old_config_id,omitempty"`
	NewConfigID string                    `json:"new_config_id,omitempty"`
	Reason      string                    `json:"reason,omitempty"`
	Metrics     domain.PerformanceMetrics `json:"metrics"`
	Timestamp   time.Time                 `json:"timestamp"`
}

// Notifier receives controller events. Implementations must not assume
// delivery ordering and should return quickly; slow sinks belong behind
// their own buffering.
type Notifier interface {
	Publish(event Event)
}

// LogNotifier writes events to the structured log. Default sink.
type LogNotifier struct{}

// Publish logs the event.
func (LogNotifier) Publish(event Event) {
	log.Info().
		Str("type", string(event.Type)).
		Str("symbol", event.Symbol).
		Str("market_type", event.MarketType).
		Str("old_config", event.OldConfigID).
		Str("new_config", event.NewConfigID).
		Str("reason", event.Reason).
		Msg("learning controller event")
}
