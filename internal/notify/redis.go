package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/tidwall/gjson"
)

// RedisFanout publishes notifications on a redis channel. Every instance
// runs Relay to feed what it receives into its local hub.
type RedisFanout struct {
	client  *redis.Client
	channel string
}

func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func NewRedisFanout(client *redis.Client, channel string) *RedisFanout {
	return &RedisFanout{client: client, channel: channel}
}

func (r *RedisFanout) Deliver(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisFanout) Relay(ctx context.Context, hub *Hub) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	log.Printf("[redis] relaying %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			relayMessage(ctx, hub, msg.Payload)
		}
	}
}

func relayMessage(ctx context.Context, hub *Hub, payload string) {
	if !gjson.Valid(payload) {
		log.Printf("[redis] skip invalid payload")
		return
	}

	// most instances hold no subscriber for a given audience
	if hub.Count(gjson.Get(payload, "audience").String()) == 0 {
		return
	}

	var n models.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		log.Printf("[redis] decode notification: %v", err)
		return
	}

	_ = hub.Deliver(ctx, n)
}
