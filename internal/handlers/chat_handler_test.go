package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillbridge-ng/skillbridge_be/internal/chat"
	"github.com/skillbridge-ng/skillbridge_be/internal/models"
	"github.com/skillbridge-ng/skillbridge_be/internal/realtime"
)

func newChatTestHandler(t *testing.T, db *gorm.DB) *ChatHandler {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := realtime.NewRedis(mr.Addr(), "")
	t.Cleanup(func() { rdb.Close() })

	hub := realtime.NewHub()
	go hub.Run()

	return NewChatHandler(db, hub, rdb, "test-secret")
}

func mountChat(app *fiber.App, h *ChatHandler) {
	app.Post("/chat/conversations", h.EnsureConversation)
	app.Get("/chat/conversations", h.GetConversations)
	app.Get("/chat/conversations/:id/messages", h.GetMessages)
	app.Post("/chat/conversations/:id/messages", h.SendMessage)
	app.Patch("/chat/conversations/:id/read", h.MarkAsRead)
}

type ensureResp struct {
	Success bool                `json:"success"`
	Created bool                `json:"created"`
	Data    models.Conversation `json:"data"`
}

// Opening the chat from either side must resolve to the same single row, and
// the second open must leave the summary fields of the first untouched.
func TestEnsureConversationIdempotentBothSides(t *testing.T) {
	db := openTestDB(t)
	h := newChatTestHandler(t, db)
	app := testApp()
	mountChat(app, h)

	client := seedUser(t, db, "Kwame Mensah", "kwame@example.com", models.RoleClient)
	worker := seedUser(t, db, "Amara Obi", "amara@example.com", models.RoleWorker)

	wantID, err := chat.DeriveConversationID(client.ID, worker.ID)
	if err != nil {
		t.Fatalf("derive conversation id: %v", err)
	}

	var first ensureResp
	decodeBody(t, doJSON(t, app, "POST", "/chat/conversations", client.ID,
		fiber.Map{"peer_id": worker.ID.String()}), &first)
	if !first.Success || !first.Created {
		t.Fatalf("first open: success=%v created=%v", first.Success, first.Created)
	}
	if first.Data.ID != wantID {
		t.Fatalf("conversation id = %q, want %q", first.Data.ID, wantID)
	}
	if first.Data.LastMsg != "" {
		t.Fatalf("new conversation has last_msg %q", first.Data.LastMsg)
	}

	// give the row summary state that the second open must not reset
	resp := doJSON(t, app, "POST", "/chat/conversations/"+wantID+"/messages", client.ID,
		fiber.Map{"text": "hello"})
	if resp.StatusCode != 200 {
		t.Fatalf("send message: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	var second ensureResp
	decodeBody(t, doJSON(t, app, "POST", "/chat/conversations", worker.ID,
		fiber.Map{"peer_id": client.ID.String()}), &second)
	if second.Created {
		t.Fatal("second open reported created")
	}
	if second.Data.ID != wantID {
		t.Fatalf("second open id = %q, want %q", second.Data.ID, wantID)
	}
	if second.Data.LastMsg != "hello" {
		t.Fatalf("second open reset last_msg to %q", second.Data.LastMsg)
	}
	if second.Data.WorkerUnread != 1 {
		t.Fatalf("second open worker_unread = %d, want 1", second.Data.WorkerUnread)
	}
	if second.Data.ClientName != client.Name || second.Data.WorkerName != worker.Name {
		t.Fatalf("display names = %q / %q", second.Data.ClientName, second.Data.WorkerName)
	}

	var rows int64
	if err := db.Model(&models.Conversation{}).Count(&rows).Error; err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if rows != 1 {
		t.Fatalf("conversation rows = %d, want 1", rows)
	}
}

// The chat-now path: open, send, and the summary plus the peer's unread
// counter follow; reading as the peer resets their counter.
func TestSendMessageUpdatesSummaryAndUnread(t *testing.T) {
	db := openTestDB(t)
	h := newChatTestHandler(t, db)
	app := testApp()
	mountChat(app, h)

	client := seedUser(t, db, "Kwame Mensah", "kwame@example.com", models.RoleClient)
	worker := seedUser(t, db, "Amara Obi", "amara@example.com", models.RoleWorker)

	var opened ensureResp
	decodeBody(t, doJSON(t, app, "POST", "/chat/conversations", client.ID,
		fiber.Map{"peer_id": worker.ID.String()}), &opened)
	convID := opened.Data.ID

	var sent struct {
		Success      bool            `json:"success"`
		SummaryStale bool            `json:"summary_stale"`
		Data         MessageResponse `json:"data"`
	}
	decodeBody(t, doJSON(t, app, "POST", "/chat/conversations/"+convID+"/messages", client.ID,
		fiber.Map{"text": "hello, are you available today?"}), &sent)
	if !sent.Success || sent.SummaryStale {
		t.Fatalf("send: success=%v summary_stale=%v", sent.Success, sent.SummaryStale)
	}

	var msgs int64
	db.Model(&models.Message{}).Where("conversation_id = ?", convID).Count(&msgs)
	if msgs != 1 {
		t.Fatalf("message rows = %d, want 1", msgs)
	}

	var conv models.Conversation
	if err := db.First(&conv, "id = ?", convID).Error; err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if conv.LastMsg != "hello, are you available today?" {
		t.Fatalf("last_msg = %q", conv.LastMsg)
	}
	if conv.WorkerUnread != 1 || conv.ClientUnread != 0 {
		t.Fatalf("unread = client %d / worker %d, want 0 / 1", conv.ClientUnread, conv.WorkerUnread)
	}

	// an outsider never reads the thread
	stranger := seedUser(t, db, "Chidi Eze", "chidi@example.com", models.RoleClient)
	resp := doJSON(t, app, "GET", "/chat/conversations/"+convID+"/messages", stranger.ID, nil)
	if resp.StatusCode != 403 {
		t.Fatalf("outsider read: status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	var listed struct {
		Success bool              `json:"success"`
		Data    []MessageResponse `json:"data"`
	}
	decodeBody(t, doJSON(t, app, "GET", "/chat/conversations/"+convID+"/messages", worker.ID, nil), &listed)
	if len(listed.Data) != 1 || listed.Data[0].Text != "hello, are you available today?" {
		t.Fatalf("worker read = %+v", listed.Data)
	}

	if err := db.First(&conv, "id = ?", convID).Error; err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if conv.WorkerUnread != 0 {
		t.Fatalf("worker_unread after read = %d, want 0", conv.WorkerUnread)
	}

	// marking an already-read thread stays a no-op
	resp = doJSON(t, app, "PATCH", "/chat/conversations/"+convID+"/read", worker.ID, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("mark read: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// Messages created in the same instant keep their insertion order.
func TestGetMessagesInsertionOrderTieBreak(t *testing.T) {
	db := openTestDB(t)
	h := newChatTestHandler(t, db)
	app := testApp()
	mountChat(app, h)

	client := seedUser(t, db, "Kwame Mensah", "kwame@example.com", models.RoleClient)
	worker := seedUser(t, db, "Amara Obi", "amara@example.com", models.RoleWorker)

	convID, err := chat.DeriveConversationID(client.ID, worker.ID)
	if err != nil {
		t.Fatalf("derive conversation id: %v", err)
	}
	conv := models.Conversation{
		ID:         convID,
		ClientID:   client.ID,
		WorkerID:   worker.ID,
		ClientName: client.Name,
		WorkerName: worker.Name,
		LastMsgAt:  time.Now(),
	}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	stamp := time.Now().UTC().Truncate(time.Second)
	for _, text := range []string{"first", "second", "third"} {
		msg := models.Message{
			ID:             uuid.New(),
			ConversationID: convID,
			SenderID:       client.ID,
			Text:           text,
			CreatedAt:      stamp,
		}
		if err := db.Create(&msg).Error; err != nil {
			t.Fatalf("create message %q: %v", text, err)
		}
	}

	var listed struct {
		Success bool              `json:"success"`
		Data    []MessageResponse `json:"data"`
	}
	decodeBody(t, doJSON(t, app, "GET", "/chat/conversations/"+convID+"/messages", client.ID, nil), &listed)

	want := []string{"first", "second", "third"}
	if len(listed.Data) != len(want) {
		t.Fatalf("got %d messages, want %d", len(listed.Data), len(want))
	}
	for i, text := range want {
		if listed.Data[i].Text != text {
			t.Fatalf("message %d = %q, want %q", i, listed.Data[i].Text, text)
		}
	}
}

// A subscribe only becomes live after the snapshot reached the socket; a
// consumer whose buffer can't take the replay must not receive later events.
func TestSubscribeRequiresSnapshotDelivery(t *testing.T) {
	db := openTestDB(t)
	h := newChatTestHandler(t, db)

	client := seedUser(t, db, "Kwame Mensah", "kwame@example.com", models.RoleClient)
	worker := seedUser(t, db, "Amara Obi", "amara@example.com", models.RoleWorker)

	convID, err := chat.DeriveConversationID(client.ID, worker.ID)
	if err != nil {
		t.Fatalf("derive conversation id: %v", err)
	}
	conv := models.Conversation{
		ID:        convID,
		ClientID:  client.ID,
		WorkerID:  worker.ID,
		LastMsgAt: time.Now(),
	}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	msg := models.Message{ID: uuid.New(), ConversationID: convID, SenderID: client.ID, Text: "hello"}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}

	slow := &realtime.Client{ID: "slow", UserID: client.ID, Send: make(chan []byte, 1)}
	slow.Send <- []byte("backlog")

	h.handleSubscribe(slow, client.ID, convID)

	<-slow.Send // the backlog; no snapshot may follow
	select {
	case b := <-slow.Send:
		t.Fatalf("frame after dropped snapshot: %s", b)
	default:
	}

	h.Hub.SendToConversation(convID, fiber.Map{"type": "new_message"})
	select {
	case b := <-slow.Send:
		t.Fatalf("live event without snapshot: %s", b)
	case <-time.After(50 * time.Millisecond):
	}

	ready := &realtime.Client{ID: "ready", UserID: worker.ID, Send: make(chan []byte, 8)}
	h.handleSubscribe(ready, worker.ID, convID)

	var frame struct {
		Type     string            `json:"type"`
		Messages []MessageResponse `json:"messages"`
	}
	if err := json.Unmarshal(recvFrame(t, ready.Send, "snapshot"), &frame); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if frame.Type != "snapshot" || len(frame.Messages) != 1 {
		t.Fatalf("snapshot = type %q with %d messages", frame.Type, len(frame.Messages))
	}

	h.Hub.SendToConversation(convID, fiber.Map{"type": "new_message"})
	if err := json.Unmarshal(recvFrame(t, ready.Send, "live event"), &frame); err != nil {
		t.Fatalf("unmarshal live event: %v", err)
	}
	if frame.Type != "new_message" {
		t.Fatalf("live frame type = %q", frame.Type)
	}
}

func recvFrame(t *testing.T, ch chan []byte, what string) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}
