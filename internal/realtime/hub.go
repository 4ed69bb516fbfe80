// internal/realtime/hub.go
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

type Client struct {
	ID     string
	UserID uuid.UUID
	Send   chan []byte
}

// Hub fans events out to connected sockets. A client receives events for the
// conversations it subscribed to, plus direct notifications addressed to its
// user id.
type Hub struct {
	clients    map[string]*Client
	subs       map[string]map[string]*Client // conversation id -> client id -> client
	clientSubs map[string]map[string]bool    // client id -> conversation ids
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		subs:       make(map[string]map[string]*Client),
		clientSubs: make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Subscribe adds the client to a conversation's fan-out set. Calling it again
// for the same pair is a no-op.
func (h *Hub) Subscribe(client *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[string]*Client)
	}
	h.subs[conversationID][client.ID] = client
	if h.clientSubs[client.ID] == nil {
		h.clientSubs[client.ID] = make(map[string]bool)
	}
	h.clientSubs[client.ID][conversationID] = true
}

// Unsubscribe releases one conversation subscription.
func (h *Hub) Unsubscribe(client *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropSub(client.ID, conversationID)
}

// caller must hold mu
func (h *Hub) dropSub(clientID, conversationID string) {
	if set, ok := h.subs[conversationID]; ok {
		delete(set, clientID)
		if len(set) == 0 {
			delete(h.subs, conversationID)
		}
	}
	if set, ok := h.clientSubs[clientID]; ok {
		delete(set, conversationID)
		if len(set) == 0 {
			delete(h.clientSubs, clientID)
		}
	}
}

// SendToConversation delivers data to every client subscribed to the
// conversation.
func (h *Hub) SendToConversation(conversationID string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("realtime: marshal conversation event: %v", err)
		return
	}
	h.SendRawToConversation(conversationID, payload)
}

func (h *Hub) SendRawToConversation(conversationID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.subs[conversationID] {
		select {
		case client.Send <- payload:
		default:
			// slow consumer, skip instead of blocking the hub
		}
	}
}

// SendToUser delivers data to every socket of one user.
func (h *Hub) SendToUser(userID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("realtime: marshal user event: %v", err)
		return
	}
	h.SendRawToUser(userID, payload)
}

func (h *Hub) SendRawToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- payload:
			default:
			}
		}
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("Client registered: %s (UserID: %s)", client.ID, client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			for convID := range h.clientSubs[client.ID] {
				h.dropSub(client.ID, convID)
			}
			if old, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(old.Send)
				log.Printf("Client unregistered: %s", client.ID)
			}
			h.mu.Unlock()
		}
	}
}
