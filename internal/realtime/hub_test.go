package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newHubClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Send:   make(chan []byte, 16),
	}
}

func waitForPayload(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestHubSendToConversationReachesSubscribersOnly(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	member := newHubClient(uuid.New())
	outsider := newHubClient(uuid.New())
	hub.RegisterClient(member)
	hub.RegisterClient(outsider)

	hub.Subscribe(member, "conv-1")

	hub.SendToConversation("conv-1", map[string]string{"type": "new_message"})

	got := waitForPayload(t, member.Send)
	if len(got) == 0 {
		t.Fatal("expected payload for subscriber")
	}

	select {
	case b := <-outsider.Send:
		t.Errorf("outsider should not receive conversation events, got %s", b)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newHubClient(uuid.New())
	hub.RegisterClient(client)

	hub.Subscribe(client, "conv-2")
	hub.Unsubscribe(client, "conv-2")

	hub.SendToConversation("conv-2", map[string]string{"type": "new_message"})

	select {
	case b := <-client.Send:
		t.Errorf("expected no delivery after unsubscribe, got %s", b)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubSendToUserTargetsAllUserSockets(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	first := newHubClient(userID)
	second := newHubClient(userID)
	other := newHubClient(uuid.New())
	hub.RegisterClient(first)
	hub.RegisterClient(second)
	hub.RegisterClient(other)

	// registration is asynchronous; retry until both sockets see the event
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.SendToUser(userID, map[string]string{"type": "notify"})
		if len(first.Send) > 0 && len(second.Send) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for user fan-out")
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case b := <-other.Send:
		t.Errorf("unrelated user should not receive the event, got %s", b)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubUnregisterReleasesSubscriptions(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newHubClient(uuid.New())
	hub.RegisterClient(client)
	hub.Subscribe(client, "conv-3")

	hub.UnregisterClient(client)

	// wait for the unregister to be processed: Send is closed by the hub
	select {
	case _, open := <-client.Send:
		if open {
			t.Fatal("expected Send to be closed after unregister")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unregister")
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if len(hub.subs["conv-3"]) != 0 {
		t.Error("expected conversation subscription to be released on unregister")
	}
	if len(hub.clientSubs[client.ID]) != 0 {
		t.Error("expected client subscription index to be cleared")
	}
}
