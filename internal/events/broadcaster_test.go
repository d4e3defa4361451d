package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	gameID := uuid.New()
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel(gameID))
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)
	msgs := sub.Channel()

	b := NewBroadcaster(client, nil)

	tests := []struct {
		name     string
		publish  func() error
		expected EventType
		check    func(t *testing.T, data map[string]any)
	}{
		{
			name:     "screen changed",
			publish:  func() error { return b.PublishScreenChanged(ctx, gameID, "BATTLE", "forest_03") },
			expected: EventTypeScreenChanged,
			check: func(t *testing.T, data map[string]any) {
				assert.Equal(t, "BATTLE", data["screen"])
				assert.Equal(t, "forest_03", data["storyID"])
			},
		},
		{
			name:     "battle started",
			publish:  func() error { return b.PublishBattleStarted(ctx, gameID, "slime", "Slime") },
			expected: EventTypeBattleStarted,
			check: func(t *testing.T, data map[string]any) {
				assert.Equal(t, "slime", data["enemy_id"])
			},
		},
		{
			name:     "battle finished",
			publish:  func() error { return b.PublishBattleFinished(ctx, gameID, "victory", []string{"gel"}) },
			expected: EventTypeBattleFinished,
			check: func(t *testing.T, data map[string]any) {
				assert.Equal(t, "victory", data["phase"])
				assert.Equal(t, []any{"gel"}, data["items"])
			},
		},
		{
			name:     "game saved",
			publish:  func() error { return b.PublishGameSaved(ctx, gameID, 2, false) },
			expected: EventTypeGameSaved,
			check: func(t *testing.T, data map[string]any) {
				assert.Equal(t, float64(2), data["slot"])
				assert.Equal(t, false, data["auto"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.publish())

			select {
			case msg := <-msgs:
				var ev Event
				require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
				assert.Equal(t, tt.expected, ev.Type)
				assert.Equal(t, gameID.String(), ev.GameID)
				tt.check(t, ev.Data)
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for event")
			}
		})
	}
}

func TestBroadcaster_PublishFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	b := NewBroadcaster(client, nil)
	assert.Error(t, b.PublishGameSaved(context.Background(), uuid.New(), 0, true))
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	ctx := context.Background()
	id := uuid.New()
	assert.NoError(t, p.PublishScreenChanged(ctx, id, "NOVEL", "a"))
	assert.NoError(t, p.PublishBattleStarted(ctx, id, "slime", "Slime"))
	assert.NoError(t, p.PublishBattleFinished(ctx, id, "defeat", nil))
	assert.NoError(t, p.PublishGameSaved(ctx, id, 0, false))
}
