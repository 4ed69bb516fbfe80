package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Bookmark holds one client's saved workers as a map keyed by worker id.
// Each value is a snapshot of the listing at save time; snapshots are not
// refreshed when the listing changes.
type Bookmark struct {
	ClientID uuid.UUID         `gorm:"type:uuid;primaryKey" json:"client_id"`
	Items    datatypes.JSONMap `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
