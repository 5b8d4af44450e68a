package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBus backs the observation queue with a Redis list, for running
// the orchestrator and the integrations as separate processes — the
// teacher's in-process bus.MessageBus has no multi-process story, so
// this is new wiring for go-redis/v9, used only when configured.
type RedisBus struct {
	client *redis.Client
	key    string
}

// NewRedisBus constructs a RedisBus using key as the list name.
func NewRedisBus(client *redis.Client, key string) *RedisBus {
	if key == "" {
		key = "socialagent:observations"
	}
	return &RedisBus{client: client, key: key}
}

func (b *RedisBus) Publish(ctx context.Context, obs Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	return b.client.RPush(ctx, b.key, data).Err()
}

func (b *RedisBus) Consume(ctx context.Context) (Observation, bool) {
	res, err := b.client.BLPop(ctx, 0, b.key).Result()
	if err != nil || len(res) < 2 {
		return Observation{}, false
	}
	var obs Observation
	if err := json.Unmarshal([]byte(res[1]), &obs); err != nil {
		return Observation{}, false
	}
	return obs, true
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
