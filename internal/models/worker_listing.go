package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WorkerListing is the discovery-facing copy of a worker's profile. It is
// owned by the worker and read by clients; rating/review fields are
// denormalized aggregates.
type WorkerListing struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	FullName string `gorm:"type:varchar(120);not null" json:"full_name"`
	Category string `gorm:"type:varchar(80);index" json:"category"` // Plumber, Electrician, ...
	Location string `gorm:"type:varchar(120);index" json:"location"`

	Rating      float64 `gorm:"default:0" json:"rating"`
	ReviewCount int     `gorm:"default:0" json:"review_count"`
	HourlyRate  int64   `gorm:"default:0" json:"hourly_rate"`

	Verified bool `gorm:"default:false;index" json:"verified"`

	About    string `gorm:"type:text" json:"about"`
	PhotoURL string `gorm:"type:text" json:"photo_url"`

	// extra presentation fields (availability, service areas, gallery)
	Extras datatypes.JSON `json:"extras"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
