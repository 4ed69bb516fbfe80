package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillbridge-ng/skillbridge_be/internal/chat"
	"github.com/skillbridge-ng/skillbridge_be/internal/middleware"
	"github.com/skillbridge-ng/skillbridge_be/internal/models"
	"github.com/skillbridge-ng/skillbridge_be/internal/realtime"
	"github.com/skillbridge-ng/skillbridge_be/internal/utils"
)

// summaryRetries bounds how often a conversation summary update is retried
// after a successful message append before the send is reported stale.
const summaryRetries = 3

type ChatHandler struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	RDB       *redis.Client
	JWTSecret string
}

func NewChatHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client, jwtSecret string) *ChatHandler {
	return &ChatHandler{DB: db, Hub: hub, RDB: rdb, JWTSecret: jwtSecret}
}

// EnsureConversation resolves the caller + peer pair to its canonical
// conversation, creating the row if absent. The merge update only refreshes
// the denormalized display names, so a concurrent call from the other side
// can never reset last_msg or the unread counters.
func (h *ChatHandler) EnsureConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req struct {
		PeerID string `json:"peer_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PeerID == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "peer_id required"})
	}

	peerUUID, err := uuid.Parse(req.PeerID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid peer ID"})
	}

	var caller, peer models.User
	if err := h.DB.First(&caller, "id = ?", userUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "User not found"})
	}
	if err := h.DB.First(&peer, "id = ?", peerUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Peer not found"})
	}

	// a conversation always pairs a client with a worker
	var client, worker models.User
	switch {
	case caller.Role == models.RoleWorker && peer.Role != models.RoleWorker:
		client, worker = peer, caller
	case caller.Role != models.RoleWorker && peer.Role == models.RoleWorker:
		client, worker = caller, peer
	default:
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Conversations pair a client with a worker"})
	}

	convID, err := chat.DeriveConversationID(client.ID, worker.ID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid participants"})
	}

	created := false
	var existing models.Conversation
	if err := h.DB.First(&existing, "id = ?", convID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Println("Error fetching conversation:", err)
			return fail500(c, "Failed to fetch conversation")
		}
		created = true
	}

	now := time.Now()
	conv := models.Conversation{
		ID:         convID,
		ClientID:   client.ID,
		WorkerID:   worker.ID,
		ClientName: client.Name,
		WorkerName: worker.Name,
		LastMsg:    "",
		LastMsgAt:  now,
	}

	if err := h.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"client_name", "worker_name", "updated_at"}),
	}).Create(&conv).Error; err != nil {
		log.Println("Error creating conversation:", err)
		return fail500(c, "Failed to create conversation")
	}

	// re-read so a concurrent creator's summary fields are returned intact
	if err := h.DB.First(&conv, "id = ?", convID).Error; err != nil {
		log.Println("Error reloading conversation:", err)
		return fail500(c, "Failed to fetch conversation")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"created": created,
		"data":    conv,
	})
}

type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

func toMessageResponse(msg *models.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID.String(),
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt,
	}
}

type ConversationOut struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	WorkerID    string    `json:"worker_id"`
	PeerName    string    `json:"peer_name"`
	LastMsg     string    `json:"last_msg"`
	LastMsgAt   time.Time `json:"last_msg_at"`
	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetConversations returns the caller's conversations, most recent activity
// first, with the caller-side unread counter.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var convs []models.Conversation
	if err := h.DB.
		Where("client_id = ? OR worker_id = ?", userUUID, userUUID).
		Order("last_msg_at DESC").
		Find(&convs).Error; err != nil {

		log.Println("Error fetching conversations:", err)
		return fail500(c, "Failed to fetch conversations")
	}

	out := make([]ConversationOut, 0, len(convs))
	for _, conv := range convs {
		peerName := conv.WorkerName
		unread := conv.ClientUnread
		if conv.WorkerID == userUUID {
			peerName = conv.ClientName
			unread = conv.WorkerUnread
		}
		out = append(out, ConversationOut{
			ID:          conv.ID,
			ClientID:    conv.ClientID.String(),
			WorkerID:    conv.WorkerID.String(),
			PeerName:    peerName,
			LastMsg:     conv.LastMsg,
			LastMsgAt:   conv.LastMsgAt,
			UnreadCount: unread,
			CreatedAt:   conv.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *ChatHandler) loadConversationFor(c *fiber.Ctx, userUUID uuid.UUID) (*models.Conversation, error) {
	convID := c.Params("id")

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convID).Error; err != nil {
		return nil, c.Status(404).JSON(fiber.Map{"success": false, "message": "Conversation not found"})
	}

	if !chat.IsParticipant(userUUID, conv.ClientID, conv.WorkerID) {
		return nil, c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}
	return &conv, nil
}

// GetMessages returns a conversation's messages, oldest first, and resets the
// caller's unread counter.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	conv, doneErr := h.loadConversationFor(c, userUUID)
	if conv == nil {
		return doneErr
	}

	var messages []models.Message
	if err := h.DB.
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC, seq ASC").
		Find(&messages).Error; err != nil {

		log.Println("Error fetching messages:", err)
		return fail500(c, "Failed to fetch messages")
	}

	if err := h.resetUnread(conv, userUUID); err != nil {
		log.Println("Error resetting unread counter:", err)
		// don't fail the read, just log it
	}

	responses := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, toMessageResponse(&messages[i]))
	}

	return c.JSON(fiber.Map{"success": true, "data": responses})
}

func (h *ChatHandler) resetUnread(conv *models.Conversation, userUUID uuid.UUID) error {
	column := "client_unread"
	if conv.WorkerID == userUUID {
		column = "worker_unread"
	}
	return h.DB.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Update(column, 0).Error
}

// MarkAsRead resets the caller's unread counter. Calling it when the counter
// is already zero is a no-op.
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	conv, doneErr := h.loadConversationFor(c, userUUID)
	if conv == nil {
		return doneErr
	}

	if err := h.resetUnread(conv, userUUID); err != nil {
		log.Println("Error marking conversation as read:", err)
		return fail500(c, "Failed to mark as read")
	}

	return c.JSON(fiber.Map{"success": true})
}

// SendMessage appends one immutable message, then updates the conversation
// summary (last_msg, last_msg_at, peer unread). The summary update is retried
// a bounded number of times; if it still fails the send is reported with
// summary_stale so the caller knows the preview line may lag.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid body"})
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Text is required"})
	}

	conv, doneErr := h.loadConversationFor(c, userUUID)
	if conv == nil {
		return doneErr
	}

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       userUUID,
		Text:           text,
	}
	if err := h.DB.Create(&msg).Error; err != nil {
		log.Println("Error creating message:", err)
		return fail500(c, "Failed to send message")
	}

	// summary update; the append already succeeded so retry before giving up
	updates := map[string]interface{}{
		"last_msg":    text,
		"last_msg_at": msg.CreatedAt,
	}
	recipientID := conv.WorkerID
	if userUUID == conv.WorkerID {
		recipientID = conv.ClientID
		updates["client_unread"] = gorm.Expr("client_unread + 1")
	} else {
		updates["worker_unread"] = gorm.Expr("worker_unread + 1")
	}

	var sumErr error
	for attempt := 0; attempt < summaryRetries; attempt++ {
		sumErr = h.DB.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Updates(updates).Error
		if sumErr == nil {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	if sumErr != nil {
		log.Println("Error updating conversation summary:", sumErr)
	}

	msgResp := toMessageResponse(&msg)

	// fan out through Redis so every instance's hub delivers it
	ctx := context.Background()
	if err := realtime.PublishConversationEvent(ctx, h.RDB, "new_message", conv.ID, msgResp); err != nil {
		log.Println("Error publishing message event:", err)
		h.Hub.SendToConversation(conv.ID, fiber.Map{
			"type":            "new_message",
			"conversation_id": conv.ID,
			"payload":         msgResp,
		})
	}

	notif := map[string]interface{}{
		"type":            "chat_message",
		"conversation_id": conv.ID,
		"sender_id":       userUUID.String(),
		"text":            text,
	}
	if err := realtime.PublishNotification(ctx, h.RDB, recipientID, notif); err != nil {
		log.Println("Error publishing notification:", err)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"summary_stale": sumErr != nil,
		"data":          msgResp,
	})
}

type wsFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// WebSocketHandler carries the live message stream. Clients authenticate via
// the session cookie (or a token query param), then subscribe per
// conversation; each subscribe replays the full current message set before
// live events continue.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	token := c.Cookies(middleware.SessionCookie)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		log.Println("WebSocket: missing session token")
		c.Close()
		return
	}

	claims, err := utils.ParseJWT(h.JWTSecret, token)
	if err != nil {
		log.Println("WebSocket: invalid session token:", err)
		c.Close()
		return
	}

	userUUID, err := uuid.Parse(claims.UserID)
	if err != nil {
		log.Println("WebSocket: invalid user id in token:", err)
		c.Close()
		return
	}

	log.Printf("WebSocket: user %s connected\n", userUUID)

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("WebSocket: user %s disconnected\n", userUUID)
	}()

	// writer: the hub owns Send and closes it on unregister
	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	for {
		var frame wsFrame
		if err := c.ReadJSON(&frame); err != nil {
			log.Printf("WebSocket read error for user %s: %v\n", userUUID, err)
			break
		}

		switch frame.Type {
		case "subscribe":
			h.handleSubscribe(client, userUUID, frame.ConversationID)
		case "unsubscribe":
			h.Hub.Unsubscribe(client, frame.ConversationID)
		case "pong":
			// keepalive, nothing to do
		}
	}
}

// handleSubscribe checks participant-ship, replays the current message set as
// a snapshot, then registers the live subscription.
func (h *ChatHandler) handleSubscribe(client *realtime.Client, userUUID uuid.UUID, conversationID string) {
	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", conversationID).Error; err != nil {
		h.pushFrame(client, fiber.Map{"type": "error", "conversation_id": conversationID, "message": "Conversation not found"})
		return
	}
	if !chat.IsParticipant(userUUID, conv.ClientID, conv.WorkerID) {
		h.pushFrame(client, fiber.Map{"type": "error", "conversation_id": conversationID, "message": "Access denied"})
		return
	}

	var messages []models.Message
	if err := h.DB.
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC, seq ASC").
		Find(&messages).Error; err != nil {
		h.pushFrame(client, fiber.Map{"type": "error", "conversation_id": conversationID, "message": "Failed to load messages"})
		return
	}

	snapshot := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		snapshot = append(snapshot, toMessageResponse(&messages[i]))
	}

	// the subscription only exists once the snapshot was delivered; a live
	// subscription without the replay would hand the client a gapped stream
	if !h.pushFrame(client, fiber.Map{
		"type":            "snapshot",
		"conversation_id": conv.ID,
		"messages":        snapshot,
	}) {
		log.Printf("WebSocket: snapshot undeliverable, subscribe dropped (client %s, conversation %s)\n", client.ID, conv.ID)
		return
	}

	h.Hub.Subscribe(client, conv.ID)
}

// pushFrame reports whether the frame was handed to the client's send buffer.
func (h *ChatHandler) pushFrame(client *realtime.Client, data fiber.Map) bool {
	b, err := json.Marshal(data)
	if err != nil {
		log.Println("WebSocket marshal error:", err)
		return false
	}
	select {
	case client.Send <- b:
		return true
	default:
		return false
	}
}
