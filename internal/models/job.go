// internal/models/job.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a booking between a client and a worker. Completed job amounts feed
// the worker's earnings total on the dashboard.
type Job struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	WorkerID uuid.UUID `gorm:"type:uuid;index;not null" json:"worker_id"`

	Service string `gorm:"type:varchar(120)" json:"service"`
	Notes   string `gorm:"type:text" json:"notes"`
	Amount  int64  `gorm:"default:0" json:"amount"`

	Status JobStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Worker *User `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
}
