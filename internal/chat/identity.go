// Package chat holds the conversation-identity rules shared by the HTTP
// handlers and the realtime layer.
package chat

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrInvalidParticipants is returned for a self-chat or an empty id.
	ErrInvalidParticipants = errors.New("chat: invalid participants")
	// ErrNotParticipant is returned when a caller is not part of the conversation.
	ErrNotParticipant = errors.New("chat: not a participant")
	// ErrEmptyMessage is returned when a message is empty after trimming.
	ErrEmptyMessage = errors.New("chat: empty message")
)

// DeriveConversationID maps an unordered participant pair to one canonical
// id: the lexicographically smaller id, "_", the larger one. Both orders of
// the same pair yield the same string.
func DeriveConversationID(a, b uuid.UUID) (string, error) {
	if a == uuid.Nil || b == uuid.Nil || a == b {
		return "", ErrInvalidParticipants
	}
	as, bs := a.String(), b.String()
	if as < bs {
		return as + "_" + bs, nil
	}
	return bs + "_" + as, nil
}

// IsParticipant reports whether userID is one of the two members of the pair.
func IsParticipant(userID, clientID, workerID uuid.UUID) bool {
	return userID == clientID || userID == workerID
}
