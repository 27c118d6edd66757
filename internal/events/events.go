// Package events publishes platform events over Redis pub/sub so
// external consumers (dashboards, notifiers) can follow the tournament
// without polling. Publishing is best-effort and optional: with no
// default publisher set, every call is a no-op.
package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const Channel = "botbattle:events"

// Event types.
const (
	CodeUpdated  = "code_updated"
	GameFinished = "game_finished"
	BotSuspended = "bot_suspended"
)

type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Default is the process-wide publisher; nil disables publishing.
var Default *Publisher

func SetDefault(p *Publisher) {
	Default = p
}

// Publish emits one event through the default publisher, if configured.
func Publish(ctx context.Context, eventType string, payload map[string]any) {
	if Default == nil {
		return
	}
	Default.Publish(ctx, eventType, payload)
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["type"] = eventType

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] Failed to encode %s event: %v", eventType, err)
		return
	}
	if err := p.rdb.Publish(ctx, Channel, body).Err(); err != nil {
		log.Printf("[EVENTS] Failed to publish %s event: %v", eventType, err)
	}
}
