package chat

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDeriveConversationIDSymmetric(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	ab, err := DeriveConversationID(a, b)
	if err != nil {
		t.Fatalf("DeriveConversationID(a, b) failed: %v", err)
	}
	ba, err := DeriveConversationID(b, a)
	if err != nil {
		t.Fatalf("DeriveConversationID(b, a) failed: %v", err)
	}

	if ab != ba {
		t.Errorf("expected identical ids for both argument orders, got %q and %q", ab, ba)
	}
}

func TestDeriveConversationIDOrdersLexicographically(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	id, err := DeriveConversationID(b, a)
	if err != nil {
		t.Fatalf("DeriveConversationID failed: %v", err)
	}

	want := a.String() + "_" + b.String()
	if id != want {
		t.Errorf("expected %q, got %q", want, id)
	}
	if !strings.Contains(id, "_") {
		t.Errorf("expected separator in id, got %q", id)
	}
}

func TestDeriveConversationIDRejectsSelfChat(t *testing.T) {
	a := uuid.New()
	if _, err := DeriveConversationID(a, a); err != ErrInvalidParticipants {
		t.Errorf("expected ErrInvalidParticipants for self-chat, got %v", err)
	}
}

func TestDeriveConversationIDRejectsEmpty(t *testing.T) {
	a := uuid.New()
	if _, err := DeriveConversationID(uuid.Nil, a); err != ErrInvalidParticipants {
		t.Errorf("expected ErrInvalidParticipants for nil first id, got %v", err)
	}
	if _, err := DeriveConversationID(a, uuid.Nil); err != ErrInvalidParticipants {
		t.Errorf("expected ErrInvalidParticipants for nil second id, got %v", err)
	}
}

func TestIsParticipant(t *testing.T) {
	client := uuid.New()
	worker := uuid.New()
	stranger := uuid.New()

	if !IsParticipant(client, client, worker) {
		t.Error("client should be a participant")
	}
	if !IsParticipant(worker, client, worker) {
		t.Error("worker should be a participant")
	}
	if IsParticipant(stranger, client, worker) {
		t.Error("stranger should not be a participant")
	}
}
