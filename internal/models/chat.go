// internal/models/chat.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a two-participant chat thread. Its ID is derived from the
// participant pair (see internal/chat), so both sides resolve the same row.
type Conversation struct {
	ID string `gorm:"type:varchar(80);primaryKey" json:"id"`

	ClientID uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	WorkerID uuid.UUID `gorm:"type:uuid;index;not null" json:"worker_id"`

	// denormalized display names for list rendering
	ClientName string `gorm:"type:varchar(120)" json:"client_name"`
	WorkerName string `gorm:"type:varchar(120)" json:"worker_name"`

	LastMsg   string    `gorm:"type:text" json:"last_msg"`
	LastMsgAt time.Time `gorm:"index" json:"last_msg_at"`

	// unread counters, one per side; reset by MarkAsRead
	ClientUnread int `gorm:"default:0" json:"client_unread"`
	WorkerUnread int `gorm:"default:0" json:"worker_unread"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client   *User     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Worker   *User     `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// Message is immutable once created. Ordering within a conversation is
// created_at ascending with Seq breaking ties (insertion order).
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Seq            int64     `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	ConversationID string    `gorm:"type:varchar(80);index" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;index" json:"sender_id"`
	Text           string    `gorm:"type:text" json:"text"`
	CreatedAt      time.Time `json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
