package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeScreenChanged  EventType = "screen.changed"
	EventTypeBattleStarted  EventType = "battle.started"
	EventTypeBattleFinished EventType = "battle.finished"
	EventTypeGameSaved      EventType = "game.saved"
)

// ParseType reports whether name is a known event type.
func ParseType(name string) (EventType, bool) {
	switch t := EventType(name); t {
	case EventTypeScreenChanged, EventTypeBattleStarted, EventTypeBattleFinished, EventTypeGameSaved:
		return t, true
	}
	return "", false
}

// Event represents a generic event structure
type Event struct {
	Type   EventType      `json:"type"`
	GameID string         `json:"game_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Publisher announces session changes to presentation clients.
type Publisher interface {
	PublishScreenChanged(ctx context.Context, gameID uuid.UUID, screen, beatID string) error
	PublishBattleStarted(ctx context.Context, gameID uuid.UUID, enemyID, enemyName string) error
	PublishBattleFinished(ctx context.Context, gameID uuid.UUID, phase string, items []string) error
	PublishGameSaved(ctx context.Context, gameID uuid.UUID, slot int, auto bool) error
}

// Channel returns the Pub/Sub channel carrying a game's events.
func Channel(gameID uuid.UUID) string {
	return fmt.Sprintf("game-events:%s", gameID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// ScreenChanged builds the screen.changed event for a game.
func ScreenChanged(gameID uuid.UUID, screen, beatID string) Event {
	return Event{
		Type:   EventTypeScreenChanged,
		GameID: gameID.String(),
		Data: map[string]any{
			"screen":  screen,
			"storyID": beatID,
		},
	}
}

// PublishScreenChanged publishes a screen.changed event
func (b *Broadcaster) PublishScreenChanged(ctx context.Context, gameID uuid.UUID, screen, beatID string) error {
	return b.publishToGame(ctx, gameID, ScreenChanged(gameID, screen, beatID))
}

// PublishBattleStarted publishes a battle.started event
func (b *Broadcaster) PublishBattleStarted(ctx context.Context, gameID uuid.UUID, enemyID, enemyName string) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:   EventTypeBattleStarted,
		GameID: gameID.String(),
		Data: map[string]any{
			"enemy_id":   enemyID,
			"enemy_name": enemyName,
		},
	})
}

// PublishBattleFinished publishes a battle.finished event. items lists the
// drop granted on victory.
func (b *Broadcaster) PublishBattleFinished(ctx context.Context, gameID uuid.UUID, phase string, items []string) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:   EventTypeBattleFinished,
		GameID: gameID.String(),
		Data: map[string]any{
			"phase": phase,
			"items": items,
		},
	})
}

// PublishGameSaved publishes a game.saved event
func (b *Broadcaster) PublishGameSaved(ctx context.Context, gameID uuid.UUID, slot int, auto bool) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:   EventTypeGameSaved,
		GameID: gameID.String(),
		Data: map[string]any{
			"slot": slot,
			"auto": auto,
		},
	})
}

// publishToGame publishes an event to the game-specific channel
func (b *Broadcaster) publishToGame(ctx context.Context, gameID uuid.UUID, event Event) error {
	channel := Channel(gameID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)
	return nil
}

// Noop discards events. Used when no Redis is configured.
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) PublishScreenChanged(context.Context, uuid.UUID, string, string) error { return nil }
func (Noop) PublishBattleStarted(context.Context, uuid.UUID, string, string) error  { return nil }
func (Noop) PublishBattleFinished(context.Context, uuid.UUID, string, []string) error {
	return nil
}
func (Noop) PublishGameSaved(context.Context, uuid.UUID, int, bool) error { return nil }
