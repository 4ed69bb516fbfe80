// internal/realtime/events.go
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventChannel carries conversation events between instances; every instance
// republishes what it receives to its local hub.
const EventChannel = "chat:events"

const notifyPrefix = "notifications:"

// Event is the wire format on EventChannel.
type Event struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func NotifyChannel(userID uuid.UUID) string {
	return notifyPrefix + userID.String()
}

// PublishConversationEvent pushes an event for one conversation through
// Redis; the bridge on each instance delivers it to local subscribers.
func PublishConversationEvent(ctx context.Context, rdb *redis.Client, eventType, conversationID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := Event{Type: eventType, ConversationID: conversationID, Payload: raw}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, EventChannel, b).Err()
}

// PublishNotification pushes a direct event to one user's channel.
func PublishNotification(ctx context.Context, rdb *redis.Client, userID uuid.UUID, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, NotifyChannel(userID), b).Err()
}

// StartBridge subscribes to the event and notification channels and forwards
// everything to the hub. It returns once the subscriptions are established;
// delivery runs until ctx is cancelled.
func StartBridge(ctx context.Context, rdb *redis.Client, hub *Hub) error {
	sub := rdb.Subscribe(ctx, EventChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	psub := rdb.PSubscribe(ctx, notifyPrefix+"*")
	if _, err := psub.Receive(ctx); err != nil {
		_ = sub.Close()
		_ = psub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		defer psub.Close()

		events := sub.Channel()
		notifs := psub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-events:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("realtime: bad event payload: %v", err)
					continue
				}
				if ev.ConversationID == "" {
					continue
				}
				hub.SendRawToConversation(ev.ConversationID, []byte(msg.Payload))
			case msg, ok := <-notifs:
				if !ok {
					return
				}
				uid, err := uuid.Parse(strings.TrimPrefix(msg.Channel, notifyPrefix))
				if err != nil {
					continue
				}
				hub.SendRawToUser(uid, []byte(msg.Payload))
			}
		}
	}()

	return nil
}
